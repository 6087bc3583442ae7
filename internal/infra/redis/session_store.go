package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lab-quiz-player/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions own timers and subscribers, so they stay in a local map; Redis
// holds a liveness key per session (quiz:session:{id} -> quiz id) that a
// monitoring dashboard can scan.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

var _ app.SessionToucher = (*SessionStore)(nil)

func NewSessionStore(client *redis.Client, ttl time.Duration, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      log.With().Str("component", "redis_session_store").Logger(),
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	// best-effort liveness marker
	quizID := session.Snapshot().QuizID
	if err := s.client.Set(context.Background(), key(session.ID()), quizID, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID()).Msg("mark session live failed")
	}
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if err := s.client.Del(context.Background(), key(sessionID)).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("clear session marker failed")
	}
}

// Touch extends the liveness marker of a session still in use.
func (s *SessionStore) Touch(ctx context.Context, sessionID string) error {
	if s.ttl <= 0 {
		return nil
	}
	return s.client.Expire(ctx, key(sessionID), s.ttl).Err()
}

func key(sessionID string) string {
	return "quiz:session:" + sessionID
}
