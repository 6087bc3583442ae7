package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lab-quiz-player/internal/domain"
)

// SessionRepository abstracts where live player sessions are registered (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// SessionToucher is implemented by repositories that expire idle sessions.
// The service refreshes the session on every accepted answer.
type SessionToucher interface {
	Touch(ctx context.Context, sessionID string) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// UserDirectory resolves who is signed in on a device.
type UserDirectory interface {
	GetActiveUser(ctx context.Context, deviceID string) (domain.User, error)
}

// PlayerOptions tunes sessions opened by the service.
type PlayerOptions struct {
	Timings     Timings
	SaveTimeout time.Duration
	Scheduler   Scheduler
}

// PlayerService opens one quiz session per player window and routes
// presentation-layer calls to it.
type PlayerService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	users    UserDirectory
	records  RecordStore
	opts     PlayerOptions
	log      zerolog.Logger
}

func NewPlayerService(sessions SessionRepository, quizzes QuizRepository, users UserDirectory, records RecordStore, opts PlayerOptions, log zerolog.Logger) *PlayerService {
	return &PlayerService{
		sessions: sessions,
		quizzes:  quizzes,
		users:    users,
		records:  records,
		opts:     opts,
		log:      log.With().Str("component", "player_service").Logger(),
	}
}

// Open loads a quiz and starts a session for the device's active user. A
// device without a signed-in user plays as a guest and no record is saved.
func (s *PlayerService) Open(ctx context.Context, quizID, deviceID string) (*Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load quiz %s: %w", quizID, err)
	}

	user := s.activeUser(ctx, deviceID)
	session, err := NewSession(quiz, SessionOptions{
		User:      user,
		Scheduler: s.opts.Scheduler,
		Timings:   s.opts.Timings,
		Reporter:  NewReporter(s.records, s.opts.SaveTimeout, s.log),
		Log:       s.log,
	})
	if err != nil {
		return nil, err
	}

	s.sessions.Put(session)
	session.Start()
	s.log.Info().
		Str("session_id", session.ID()).
		Str("quiz_id", quizID).
		Str("device_id", deviceID).
		Str("user_id", user.ID).
		Msg("quiz session opened")
	return session, nil
}

// Submit forwards an answer to the session's current question.
func (s *PlayerService) Submit(ctx context.Context, sessionID string, answer domain.Answer) (Result, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Result{}, domain.ErrSessionNotFound
	}
	res, err := session.SubmitAnswer(answer)
	if err != nil {
		return res, err
	}
	if toucher, ok := s.sessions.(SessionToucher); ok {
		if err := toucher.Touch(ctx, sessionID); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("refresh session liveness failed")
		}
	}
	return res, nil
}

// Snapshot returns the session's current state.
func (s *PlayerService) Snapshot(_ context.Context, sessionID string) (State, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return State{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Subscribe returns a channel that receives state updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *PlayerService) Subscribe(_ context.Context, sessionID string) (<-chan State, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Close tears the session down when its window closes. Pending timers are
// cancelled; an in-flight record save is left to finish on its own.
func (s *PlayerService) Close(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(sessionID)
}

func (s *PlayerService) activeUser(ctx context.Context, deviceID string) domain.User {
	if s.users == nil || deviceID == "" {
		return domain.User{}
	}
	user, err := s.users.GetActiveUser(ctx, deviceID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Warn().Err(err).Str("device_id", deviceID).Msg("active user lookup failed, playing as guest")
		}
		return domain.User{}
	}
	return user
}
