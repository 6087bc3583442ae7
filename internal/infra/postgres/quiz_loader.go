package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lab-quiz-player/internal/domain"
)

// QuizLoader loads a quiz and its ordered questions from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz := domain.Quiz{ID: quizID}
	err := l.pool.QueryRow(ctx,
		`SELECT subject_id, title FROM quizzes WHERE id = $1`, quizID,
	).Scan(&quiz.SubjectID, &quiz.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, fmt.Errorf("%w: %q", domain.ErrQuizNotFound, quizID)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, type, prompt, options, time_limit, points, order_index
		 FROM questions
		 WHERE quiz_id = $1
		 ORDER BY order_index, id`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q       domain.Question
			qType   string
			options []byte
		)
		if err := rows.Scan(&q.ID, &qType, &q.Prompt, &options, &q.TimeLimit, &q.Points, &q.OrderIndex); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		q.Type = domain.QuestionType(qType)
		q.Options = json.RawMessage(options)
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	if len(quiz.Questions) == 0 {
		return domain.Quiz{}, fmt.Errorf("%w: quiz %q has no questions", domain.ErrQuizNotFound, quizID)
	}
	return quiz, nil
}
