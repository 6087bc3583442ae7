package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lab-quiz-player/internal/domain"
	"lab-quiz-player/internal/validator"
)

// RecordStore persists finished-session records.
type RecordStore interface {
	SaveQuizRecord(ctx context.Context, record domain.QuizRecord) error
}

// ReportStatus tells the presentation layer what happened to the record.
type ReportStatus string

const (
	ReportPending ReportStatus = "pending"
	ReportSaved   ReportStatus = "saved"
	ReportSkipped ReportStatus = "skipped"
	ReportFailed  ReportStatus = "failed"
)

// Reporter issues at most one save per session. The reported flag is never reset.
type Reporter struct {
	store   RecordStore
	timeout time.Duration
	log     zerolog.Logger

	mu       sync.Mutex
	reported bool
	wg       sync.WaitGroup
}

func NewReporter(store RecordStore, timeout time.Duration, log zerolog.Logger) *Reporter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reporter{store: store, timeout: timeout, log: log}
}

// Report saves the record in the background and calls done with the outcome
// from that goroutine. Only student sessions are saved. It returns false when
// the record was already reported, in which case done is never called.
func (r *Reporter) Report(user domain.User, record domain.QuizRecord, done func(ReportStatus, error)) bool {
	r.mu.Lock()
	if r.reported {
		r.mu.Unlock()
		r.log.Warn().Str("session_id", record.SessionID).Msg("completion reported twice, ignoring")
		return false
	}
	r.reported = true
	r.mu.Unlock()

	if done == nil {
		done = func(ReportStatus, error) {}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		status, err := r.save(user, record)
		done(status, err)
	}()
	return true
}

func (r *Reporter) save(user domain.User, record domain.QuizRecord) (ReportStatus, error) {
	if user.Role != domain.RoleStudent || r.store == nil {
		r.log.Info().
			Str("session_id", record.SessionID).
			Str("role", string(user.Role)).
			Msg("record not saved for non-student session")
		return ReportSkipped, nil
	}

	if err := validator.Struct(record); err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		r.log.Error().Err(err).Str("session_id", record.SessionID).Msg("invalid quiz record")
		return ReportFailed, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.store.SaveQuizRecord(ctx, record); err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		r.log.Error().Err(err).
			Str("session_id", record.SessionID).
			Str("quiz_id", record.QuizID).
			Msg("save quiz record failed")
		return ReportFailed, err
	}
	r.log.Info().
		Str("session_id", record.SessionID).
		Str("quiz_id", record.QuizID).
		Int("score", record.Score).
		Int("total_points", record.TotalPoints).
		Msg("quiz record saved")
	return ReportSaved, nil
}

// Wait blocks until an in-flight save has finished.
func (r *Reporter) Wait() {
	r.wg.Wait()
}
