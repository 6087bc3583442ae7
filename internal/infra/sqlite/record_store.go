package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"lab-quiz-player/internal/domain"
)

// timeLayout has fixed width so completed_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordStore keeps completion records in a local SQLite file so a lab
// machine can run offline.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore opens (or creates) the database at path. Use ":memory:"
// for a throwaway store.
func NewRecordStore(path string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection: sqlite has a single writer and :memory: is per connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &RecordStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}

func (s *RecordStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS quiz_records (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		subject_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		quiz_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		total_points INTEGER NOT NULL,
		total_questions INTEGER NOT NULL,
		completed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS quiz_records_user_idx ON quiz_records (user_id);`)
	return err
}

func (s *RecordStore) SaveQuizRecord(ctx context.Context, r domain.QuizRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_records
		 (id, session_id, subject_id, user_id, quiz_id, score, total_points, total_questions, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id) DO NOTHING`,
		r.ID, r.SessionID, r.SubjectID, r.UserID, r.QuizID,
		r.Score, r.TotalPoints, r.TotalQuestions, r.CompletedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert quiz record: %w", err)
	}
	return nil
}

// RecordsForUser lists a user's records, newest first.
func (s *RecordStore) RecordsForUser(ctx context.Context, userID string) ([]domain.QuizRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, subject_id, user_id, quiz_id, score, total_points, total_questions, completed_at
		 FROM quiz_records WHERE user_id = ? ORDER BY completed_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QuizRecord
	for rows.Next() {
		var (
			r         domain.QuizRecord
			completed string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.SubjectID, &r.UserID, &r.QuizID,
			&r.Score, &r.TotalPoints, &r.TotalQuestions, &completed); err != nil {
			return nil, err
		}
		if r.CompletedAt, err = time.Parse(timeLayout, completed); err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
