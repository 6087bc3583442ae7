package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a player session is not registered.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz is missing or has no questions.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrUserNotFound indicates no user is signed in on the device.
	ErrUserNotFound = errors.New("active user not found")
	// ErrMalformedOptions indicates a question's serialized options could not be used.
	ErrMalformedOptions = errors.New("malformed question options")
	// ErrPersistence wraps failures of the record sink.
	ErrPersistence = errors.New("quiz record not persisted")

	// ErrInvalidSubmission is the parent of every rejected submission.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrAnswerAlreadySubmitted is returned when the current question already has an answer.
	ErrAnswerAlreadySubmitted = fmt.Errorf("%w: answer already submitted", ErrInvalidSubmission)
	// ErrSessionCompleted is returned once the last question has resolved.
	ErrSessionCompleted = fmt.Errorf("%w: session completed", ErrInvalidSubmission)
	// ErrQuestionNotActive is returned during the countdown, a feedback dwell or after close.
	ErrQuestionNotActive = fmt.Errorf("%w: no question awaiting an answer", ErrInvalidSubmission)
)
