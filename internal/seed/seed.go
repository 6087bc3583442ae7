package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lab-quiz-player/internal/domain"
	"lab-quiz-player/internal/validator"
)

// File is the authoring format accepted by the seed command.
type File struct {
	Quizzes []Quiz `yaml:"quizzes" validate:"required,min=1,dive"`
}

type Quiz struct {
	ID        string     `yaml:"id" validate:"required"`
	SubjectID string     `yaml:"subject_id"`
	Title     string     `yaml:"title"`
	Questions []Question `yaml:"questions" validate:"required,min=1,dive"`
}

type Question struct {
	ID         string   `yaml:"id" validate:"required"`
	Type       string   `yaml:"type" validate:"required,oneof=multiple_choice fill_in_blank identification enumeration true_false"`
	Prompt     string   `yaml:"prompt" validate:"required"`
	TimeLimit  int      `yaml:"time_limit" validate:"gte=0"`
	Points     int      `yaml:"points" validate:"gte=0"`
	OrderIndex int      `yaml:"order_index"`
	Options    []Option `yaml:"options" validate:"required,min=1,dive"`
}

type Option struct {
	ID        string `yaml:"id"`
	Text      string `yaml:"text" validate:"required"`
	IsCorrect bool   `yaml:"is_correct"`
}

// Load reads a seed file and converts it to quizzes. Every question's
// options must parse for its type, so a bad file is rejected before any
// row is written.
func Load(path string) ([]domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) ([]domain.Quiz, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := validator.Struct(f); err != nil {
		return nil, err
	}

	quizzes := make([]domain.Quiz, 0, len(f.Quizzes))
	seen := make(map[string]bool, len(f.Quizzes))
	for _, sq := range f.Quizzes {
		if seen[sq.ID] {
			return nil, fmt.Errorf("duplicate quiz id %q", sq.ID)
		}
		seen[sq.ID] = true

		quiz := domain.Quiz{ID: sq.ID, SubjectID: sq.SubjectID, Title: sq.Title}
		questionIDs := make(map[string]bool, len(sq.Questions))
		for _, sqq := range sq.Questions {
			if questionIDs[sqq.ID] {
				return nil, fmt.Errorf("quiz %s: duplicate question id %q", sq.ID, sqq.ID)
			}
			questionIDs[sqq.ID] = true

			opts := make([]domain.Option, len(sqq.Options))
			for i, o := range sqq.Options {
				opts[i] = domain.Option{ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect}
			}
			q := domain.Question{
				ID:         sqq.ID,
				Type:       domain.QuestionType(sqq.Type),
				Prompt:     sqq.Prompt,
				Options:    domain.EncodeOptions(opts...),
				TimeLimit:  sqq.TimeLimit,
				Points:     sqq.Points,
				OrderIndex: sqq.OrderIndex,
			}
			parsed, err := domain.ParseOptions(q)
			if err != nil {
				return nil, fmt.Errorf("quiz %s question %s: %w", sq.ID, sqq.ID, err)
			}
			if enum, ok := parsed.(domain.EnumerationOptions); ok && q.Points != 0 && q.Points != len(enum.Answers) {
				return nil, fmt.Errorf("quiz %s question %s: enumeration is worth %d points (one per answer), got %d",
					sq.ID, sqq.ID, len(enum.Answers), q.Points)
			}
			quiz.Questions = append(quiz.Questions, q)
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}
