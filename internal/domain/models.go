package domain

import (
	"encoding/json"
	"time"
)

// QuestionType selects how a question's options are parsed and evaluated.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFillInBlank    QuestionType = "fill_in_blank"
	QuestionIdentification QuestionType = "identification"
	QuestionEnumeration    QuestionType = "enumeration"
	QuestionTrueFalse      QuestionType = "true_false"
)

// DefaultTimeLimit is used for questions authored without a usable time limit.
const DefaultTimeLimit = 30

// Role gates whether a finished session is persisted.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// User is whoever is signed in on the device running the player.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// Option is one serialized entry of a question's option list.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question is a single authored question. Options stays in its serialized
// form here; the player parses it once per session with ParseOptions.
type Question struct {
	ID         string          `json:"id"`
	Type       QuestionType    `json:"type"`
	Prompt     string          `json:"prompt"`
	Options    json.RawMessage `json:"options"`
	TimeLimit  int             `json:"timeLimit"` // seconds
	Points     int             `json:"points"`
	OrderIndex int             `json:"orderIndex"`
}

// Quiz is an ordered collection of questions for one subject.
type Quiz struct {
	ID        string     `json:"id"`
	SubjectID string     `json:"subjectId"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Answer is a learner's candidate for the current question. Text carries a
// selected option or free text, Values carries blanks, multi-answer
// selections or enumeration items.
type Answer struct {
	Text   string   `json:"text,omitempty"`
	Values []string `json:"values,omitempty"`
}

// QuizRecord is the single persisted summary of a finished session.
type QuizRecord struct {
	ID             string    `json:"id" validate:"required"`
	SessionID      string    `json:"sessionId" validate:"required"`
	SubjectID      string    `json:"subjectId"`
	UserID         string    `json:"userId" validate:"required"`
	QuizID         string    `json:"quizId" validate:"required"`
	Score          int       `json:"score" validate:"gte=0,ltefield=TotalPoints"`
	TotalPoints    int       `json:"totalPoints" validate:"gte=1"`
	TotalQuestions int       `json:"totalQuestions" validate:"gte=1"`
	CompletedAt    time.Time `json:"completedAt" validate:"required"`
}
