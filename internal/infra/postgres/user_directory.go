package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lab-quiz-player/internal/domain"
)

// UserDirectory resolves the user signed in on a lab device.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

func (d *UserDirectory) GetActiveUser(ctx context.Context, deviceID string) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	err := d.pool.QueryRow(ctx,
		`SELECT user_id, display_name, role FROM active_users WHERE device_id = $1`, deviceID,
	).Scan(&user.ID, &user.DisplayName, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get active user: %w", err)
	}
	user.Role = domain.Role(role)
	return user, nil
}

// SignIn marks user as active on the device, replacing whoever was there.
func (d *UserDirectory) SignIn(ctx context.Context, deviceID string, user domain.User) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO active_users (device_id, user_id, display_name, role, signed_in_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (device_id) DO UPDATE
		 SET user_id = EXCLUDED.user_id, display_name = EXCLUDED.display_name,
		     role = EXCLUDED.role, signed_in_at = NOW()`,
		deviceID, user.ID, user.DisplayName, string(user.Role))
	return err
}

// SignOut clears the device.
func (d *UserDirectory) SignOut(ctx context.Context, deviceID string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM active_users WHERE device_id = $1`, deviceID)
	return err
}
