package memory

import (
	"context"
	"sync"

	"lab-quiz-player/internal/domain"
)

// RecordStore keeps quiz records in memory. Saves are idempotent per session.
type RecordStore struct {
	mu        sync.Mutex
	calls     int
	err       error
	records   []domain.QuizRecord
	bySession map[string]struct{}
}

func NewRecordStore() *RecordStore {
	return &RecordStore{bySession: make(map[string]struct{})}
}

func (s *RecordStore) SaveQuizRecord(_ context.Context, record domain.QuizRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	if _, ok := s.bySession[record.SessionID]; ok {
		return nil
	}
	s.bySession[record.SessionID] = struct{}{}
	s.records = append(s.records, record)
	return nil
}

// FailWith makes subsequent saves return err (nil restores success).
func (s *RecordStore) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Calls reports how many saves were attempted.
func (s *RecordStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Records returns a copy of the stored records.
func (s *RecordStore) Records() []domain.QuizRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.QuizRecord, len(s.records))
	copy(out, s.records)
	return out
}
