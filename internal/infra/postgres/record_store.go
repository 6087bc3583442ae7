package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lab-quiz-player/internal/domain"
)

const insertRecordSQL = `INSERT INTO quiz_records
	(id, session_id, subject_id, user_id, quiz_id, score, total_points, total_questions, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (session_id) DO NOTHING`

// RecordStore writes completion records. A record whose session was already
// saved is ignored.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

func (s *RecordStore) SaveQuizRecord(ctx context.Context, rec domain.QuizRecord) error {
	if _, err := s.pool.Exec(ctx, insertRecordSQL, recordArgs(rec)...); err != nil {
		return fmt.Errorf("insert quiz record: %w", err)
	}
	return nil
}

// SaveQuizRecords writes a batch in one round trip.
func (s *RecordStore) SaveQuizRecords(ctx context.Context, recs []domain.QuizRecord) error {
	if len(recs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(insertRecordSQL, recordArgs(rec)...)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert quiz record batch: %w", err)
		}
	}
	return nil
}

// RecordsForUser lists a user's records, newest first.
func (s *RecordStore) RecordsForUser(ctx context.Context, userID string) ([]domain.QuizRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, subject_id, user_id, quiz_id, score, total_points, total_questions, completed_at
		 FROM quiz_records WHERE user_id = $1 ORDER BY completed_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QuizRecord
	for rows.Next() {
		var r domain.QuizRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.SubjectID, &r.UserID, &r.QuizID,
			&r.Score, &r.TotalPoints, &r.TotalQuestions, &r.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func recordArgs(r domain.QuizRecord) []interface{} {
	return []interface{}{
		r.ID, r.SessionID, r.SubjectID, r.UserID, r.QuizID,
		r.Score, r.TotalPoints, r.TotalQuestions, r.CompletedAt,
	}
}
