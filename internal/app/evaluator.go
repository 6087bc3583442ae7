package app

import (
	"strings"

	"lab-quiz-player/internal/domain"
)

// PreparedQuestion is a question whose options were parsed once at load time.
type PreparedQuestion struct {
	domain.Question
	Options   domain.Options
	Malformed error
}

// Prepare parses options and normalizes time limit and points. A question
// with unusable options is kept but marked malformed so the session can still
// show, time and score it (always incorrect).
func Prepare(q domain.Question) PreparedQuestion {
	p := PreparedQuestion{Question: q}
	p.Options, p.Malformed = domain.ParseOptions(q)

	if p.TimeLimit < 1 {
		p.TimeLimit = domain.DefaultTimeLimit
	}
	if p.Points < 1 {
		p.Points = 1
	}
	// one point per accepted item, whatever was authored
	if enum, ok := p.Options.(domain.EnumerationOptions); ok {
		p.Points = len(enum.Answers)
	}
	return p
}

// Result is the outcome of evaluating one answer.
type Result struct {
	QuestionID   string   `json:"questionId"`
	Correct      bool     `json:"correct"`
	FullyCorrect bool     `json:"fullyCorrect"`
	Earned       int      `json:"earned"`
	Reveal       []string `json:"reveal,omitempty"`
	Malformed    bool     `json:"malformed,omitempty"`
}

// Evaluate scores a candidate answer. It has no side effects.
func Evaluate(q PreparedQuestion, answer domain.Answer) Result {
	res := Result{QuestionID: q.ID}
	if q.Malformed != nil || q.Options == nil {
		res.Malformed = true
		return res
	}
	res.Reveal = q.Options.Accepted()

	switch opts := q.Options.(type) {
	case domain.ChoiceOptions:
		if opts.MultiAnswer {
			res.Correct = selectsExactly(opts.Choices, answer.Values)
		} else {
			res.Correct = selectsCorrect(opts.Choices, answer.Text)
		}
	case domain.BlankOptions:
		res.Correct = blanksMatch(opts.Blanks, answer.Values)
	case domain.AcceptedAnswers:
		res.Correct = anyMatches(opts.Answers, answer.Text)
	case domain.EnumerationOptions:
		count := enumerate(opts.Answers, answer.Values)
		res.Earned = count
		res.Correct = count > 0
		res.FullyCorrect = count == len(opts.Answers)
		return res
	}

	if res.Correct {
		res.FullyCorrect = true
		res.Earned = q.Points
	}
	return res
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func selectsCorrect(choices []domain.Option, selected string) bool {
	want := normalize(selected)
	if want == "" {
		return false
	}
	for _, c := range choices {
		if normalize(c.Text) == want {
			return c.IsCorrect
		}
	}
	return false
}

func selectsExactly(choices []domain.Option, selected []string) bool {
	picked := make(map[string]bool, len(selected))
	for _, s := range selected {
		if n := normalize(s); n != "" {
			picked[n] = true
		}
	}
	matched := 0
	for _, c := range choices {
		n := normalize(c.Text)
		if picked[n] != c.IsCorrect {
			return false
		}
		if picked[n] {
			matched++
		}
	}
	// every pick must name a known option
	return matched == len(picked)
}

func blanksMatch(blanks []domain.Option, values []string) bool {
	if len(values) != len(blanks) {
		return false
	}
	for i, b := range blanks {
		if normalize(values[i]) != normalize(b.Text) {
			return false
		}
	}
	return true
}

func anyMatches(accepted []domain.Option, text string) bool {
	want := normalize(text)
	if want == "" {
		return false
	}
	for _, a := range accepted {
		if normalize(a.Text) == want {
			return true
		}
	}
	return false
}

// enumerate counts responses that match a distinct accepted answer. Each
// accepted answer is consumed by at most one response.
func enumerate(accepted []domain.Option, responses []string) int {
	consumed := make([]bool, len(accepted))
	count := 0
	for _, r := range responses {
		want := normalize(r)
		if want == "" {
			continue
		}
		for i, a := range accepted {
			if !consumed[i] && normalize(a.Text) == want {
				consumed[i] = true
				count++
				break
			}
		}
	}
	return count
}
