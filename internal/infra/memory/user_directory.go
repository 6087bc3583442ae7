package memory

import (
	"context"
	"sync"

	"lab-quiz-player/internal/domain"
)

// UserDirectory maps device ids to signed-in users.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserDirectory(users map[string]domain.User) *UserDirectory {
	if users == nil {
		users = make(map[string]domain.User)
	}
	return &UserDirectory{users: users}
}

func (d *UserDirectory) GetActiveUser(_ context.Context, deviceID string) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if user, ok := d.users[deviceID]; ok {
		return user, nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

// SignIn records the user active on a device.
func (d *UserDirectory) SignIn(deviceID string, user domain.User) {
	d.mu.Lock()
	d.users[deviceID] = user
	d.mu.Unlock()
}

// SignOut clears the device's active user.
func (d *UserDirectory) SignOut(deviceID string) {
	d.mu.Lock()
	delete(d.users, deviceID)
	d.mu.Unlock()
}
