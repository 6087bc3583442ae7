package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/uptrace/bun"

	"lab-quiz-player/internal/domain"
)

type quizModel struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID        string `bun:"id,pk"`
	SubjectID string `bun:"subject_id"`
	Title     string `bun:"title"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions"`

	QuizID     string          `bun:"quiz_id,pk"`
	ID         string          `bun:"id,pk"`
	Type       string          `bun:"type"`
	Prompt     string          `bun:"prompt"`
	Options    json.RawMessage `bun:"options,type:jsonb"`
	TimeLimit  int             `bun:"time_limit"`
	Points     int             `bun:"points"`
	OrderIndex int             `bun:"order_index"`
}

// SeedQuizzes upserts quizzes and replaces their questions, one transaction
// for the whole set.
func SeedQuizzes(ctx context.Context, db *bun.DB, quizzes []domain.Quiz) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, quiz := range quizzes {
			model := &quizModel{ID: quiz.ID, SubjectID: quiz.SubjectID, Title: quiz.Title}
			if _, err := tx.NewInsert().
				Model(model).
				On("CONFLICT (id) DO UPDATE").
				Set("subject_id = EXCLUDED.subject_id").
				Set("title = EXCLUDED.title").
				Exec(ctx); err != nil {
				return err
			}

			if _, err := tx.NewDelete().
				Model((*questionModel)(nil)).
				Where("quiz_id = ?", quiz.ID).
				Exec(ctx); err != nil {
				return err
			}
			if len(quiz.Questions) == 0 {
				continue
			}

			rows := make([]questionModel, 0, len(quiz.Questions))
			for _, q := range quiz.Questions {
				options := q.Options
				if len(options) == 0 {
					options = json.RawMessage("[]")
				}
				rows = append(rows, questionModel{
					QuizID:     quiz.ID,
					ID:         q.ID,
					Type:       string(q.Type),
					Prompt:     q.Prompt,
					Options:    options,
					TimeLimit:  q.TimeLimit,
					Points:     q.Points,
					OrderIndex: q.OrderIndex,
				})
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
