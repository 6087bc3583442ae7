package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// blankMarker matches a run of two or more underscores used as a
// fill-in-blank input. A single underscore is ordinary text, so
// "H_O is ___" has one blank.
var blankMarker = regexp.MustCompile(`_{2,}`)

// Options is the parsed form of a question's option list. The concrete type
// depends on the question type.
type Options interface {
	QuestionType() QuestionType
	// Accepted lists the texts shown when the correct answer is revealed.
	Accepted() []string
}

// ChoiceOptions backs multiple-choice and true/false questions.
type ChoiceOptions struct {
	Type        QuestionType
	Choices     []Option
	MultiAnswer bool
}

func (o ChoiceOptions) QuestionType() QuestionType { return o.Type }

func (o ChoiceOptions) Accepted() []string {
	var out []string
	for _, c := range o.Choices {
		if c.IsCorrect {
			out = append(out, c.Text)
		}
	}
	return out
}

// BlankOptions holds one accepted answer per blank marker, in prompt order.
type BlankOptions struct {
	Blanks []Option
}

func (BlankOptions) QuestionType() QuestionType { return QuestionFillInBlank }

func (o BlankOptions) Accepted() []string { return texts(o.Blanks) }

// AcceptedAnswers lists interchangeable answers for an identification question.
type AcceptedAnswers struct {
	Answers []Option
}

func (AcceptedAnswers) QuestionType() QuestionType { return QuestionIdentification }

func (o AcceptedAnswers) Accepted() []string { return texts(o.Answers) }

// EnumerationOptions lists the answers a learner must enumerate, in any order.
type EnumerationOptions struct {
	Answers []Option
}

func (EnumerationOptions) QuestionType() QuestionType { return QuestionEnumeration }

func (o EnumerationOptions) Accepted() []string { return texts(o.Answers) }

// CountBlanks returns the number of blank markers in a prompt.
func CountBlanks(prompt string) int {
	return len(blankMarker.FindAllStringIndex(prompt, -1))
}

// ParseOptions decodes a question's serialized options according to its type.
// Any error wraps ErrMalformedOptions.
func ParseOptions(q Question) (Options, error) {
	var opts []Option
	if len(q.Options) > 0 {
		if err := json.Unmarshal(q.Options, &opts); err != nil {
			return nil, fmt.Errorf("%w: question %s: %v", ErrMalformedOptions, q.ID, err)
		}
	}
	opts = withoutBlankTexts(opts)
	if len(opts) == 0 {
		return nil, fmt.Errorf("%w: question %s has no options", ErrMalformedOptions, q.ID)
	}

	switch q.Type {
	case QuestionMultipleChoice, QuestionTrueFalse:
		correct := 0
		for _, o := range opts {
			if o.IsCorrect {
				correct++
			}
		}
		if correct == 0 {
			return nil, fmt.Errorf("%w: question %s has no correct option", ErrMalformedOptions, q.ID)
		}
		if q.Type == QuestionTrueFalse && (len(opts) != 2 || correct != 1) {
			return nil, fmt.Errorf("%w: true/false question %s needs two options and one answer", ErrMalformedOptions, q.ID)
		}
		return ChoiceOptions{Type: q.Type, Choices: opts, MultiAnswer: correct > 1}, nil
	case QuestionFillInBlank:
		if n := CountBlanks(q.Prompt); n != len(opts) {
			return nil, fmt.Errorf("%w: question %s has %d blanks but %d answers", ErrMalformedOptions, q.ID, n, len(opts))
		}
		return BlankOptions{Blanks: opts}, nil
	case QuestionIdentification:
		return AcceptedAnswers{Answers: opts}, nil
	case QuestionEnumeration:
		return EnumerationOptions{Answers: opts}, nil
	default:
		return nil, fmt.Errorf("%w: question %s has unknown type %q", ErrMalformedOptions, q.ID, q.Type)
	}
}

// EncodeOptions serializes an option list for storage.
func EncodeOptions(opts ...Option) json.RawMessage {
	raw, _ := json.Marshal(opts)
	return raw
}

func withoutBlankTexts(opts []Option) []Option {
	out := opts[:0:0]
	for _, o := range opts {
		if strings.TrimSpace(o.Text) != "" {
			out = append(out, o)
		}
	}
	return out
}

func texts(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Text
	}
	return out
}
