package app

import (
	"errors"
	"fmt"
)

// Phase is a state of the per-question timer.
type Phase string

const (
	PhaseCounting        Phase = "counting"
	PhaseAwaitingAnswer  Phase = "awaiting_answer"
	PhaseFeedbackCorrect Phase = "feedback_correct"
	PhaseFeedbackReveal  Phase = "feedback_reveal"
	PhaseAdvancing       Phase = "advancing"
	PhaseCompleted       Phase = "completed"
)

// Event drives a transition between phases.
type Event string

const (
	EventCountdownElapsed Event = "countdown_elapsed"
	EventTimeout          Event = "timeout"
	EventAnsweredCorrect  Event = "answered_correct"
	EventAnsweredOther    Event = "answered_other"
	EventDwellElapsed     Event = "dwell_elapsed"
	EventNextQuestion     Event = "next_question"
	EventFinish           Event = "finish"
)

// ErrInvalidTransition is returned when an event is not allowed in the current phase.
var ErrInvalidTransition = errors.New("invalid timer transition")

// transitions is shared by every question type.
var transitions = map[Phase]map[Event]Phase{
	PhaseCounting: {
		EventCountdownElapsed: PhaseAwaitingAnswer,
	},
	PhaseAwaitingAnswer: {
		EventTimeout:         PhaseAdvancing,
		EventAnsweredCorrect: PhaseFeedbackCorrect,
		EventAnsweredOther:   PhaseFeedbackReveal,
	},
	PhaseFeedbackCorrect: {
		EventDwellElapsed: PhaseAdvancing,
	},
	PhaseFeedbackReveal: {
		EventDwellElapsed: PhaseAdvancing,
	},
	PhaseAdvancing: {
		EventNextQuestion: PhaseAwaitingAnswer,
		EventFinish:       PhaseCompleted,
	},
}

// Controller is the timer state machine for one session. It holds no timers
// itself; the session schedules ticks and dwells and reports them here.
type Controller struct {
	phase     Phase
	remaining int
}

// NewController starts in the pre-session countdown with the first question's limit loaded.
func NewController(firstLimit int) Controller {
	return Controller{phase: PhaseCounting, remaining: firstLimit}
}

func (c *Controller) Phase() Phase    { return c.phase }
func (c *Controller) Remaining() int { return c.remaining }

// Fire applies an event and returns the new phase.
func (c *Controller) Fire(ev Event) (Phase, error) {
	next, ok := transitions[c.phase][ev]
	if !ok {
		return c.phase, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev, c.phase)
	}
	c.phase = next
	return next, nil
}

// Tick decrements the remaining time while an answer is awaited. It reports
// true exactly once, when the counter reaches zero and the timeout fires.
func (c *Controller) Tick() bool {
	if c.phase != PhaseAwaitingAnswer || c.remaining <= 0 {
		return false
	}
	c.remaining--
	if c.remaining > 0 {
		return false
	}
	_, err := c.Fire(EventTimeout)
	return err == nil
}

// Answered moves to the matching feedback phase.
func (c *Controller) Answered(fullyCorrect bool) (Phase, error) {
	if fullyCorrect {
		return c.Fire(EventAnsweredCorrect)
	}
	return c.Fire(EventAnsweredOther)
}

// Next loads the next question's limit and resumes awaiting an answer.
func (c *Controller) Next(limit int) error {
	if _, err := c.Fire(EventNextQuestion); err != nil {
		return err
	}
	c.remaining = limit
	return nil
}

// Finish makes the controller terminal.
func (c *Controller) Finish() error {
	if _, err := c.Fire(EventFinish); err != nil {
		return err
	}
	c.remaining = 0
	return nil
}
