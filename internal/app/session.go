package app

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lab-quiz-player/internal/domain"
)

// Timings configures the countdown, tick and dwell durations of a session.
type Timings struct {
	Countdown    time.Duration
	Tick         time.Duration
	CorrectDwell time.Duration
	RevealDwell  time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		Countdown:    3 * time.Second,
		Tick:         time.Second,
		CorrectDwell: 2 * time.Second,
		RevealDwell:  4 * time.Second,
	}
}

// withDefaults replaces every non-positive duration with its default.
func (t Timings) withDefaults() Timings {
	def := DefaultTimings()
	for _, f := range []struct{ v, d *time.Duration }{
		{&t.Countdown, &def.Countdown},
		{&t.Tick, &def.Tick},
		{&t.CorrectDwell, &def.CorrectDwell},
		{&t.RevealDwell, &def.RevealDwell},
	} {
		if *f.v <= 0 {
			*f.v = *f.d
		}
	}
	return t
}

// SessionOptions carries a session's collaborators. Zero values fall back to
// defaults: a random id, a guest user, the real scheduler and no persistence.
type SessionOptions struct {
	ID        string
	User      domain.User
	Scheduler Scheduler
	Timings   Timings
	Reporter  *Reporter
	Now       func() time.Time
	Log       zerolog.Logger
}

// SlotStatus is the answer state of one question.
type SlotStatus string

const (
	SlotUnanswered SlotStatus = "unanswered"
	SlotAnswered   SlotStatus = "answered"
	SlotTimedOut   SlotStatus = "timed_out"
)

// Slot holds what happened to one question.
type Slot struct {
	Status SlotStatus     `json:"status"`
	Answer *domain.Answer `json:"answer,omitempty"`
	Result *Result        `json:"result,omitempty"`
}

// QuestionView is what the presentation layer renders. It never carries
// correctness flags.
type QuestionView struct {
	ID        string              `json:"id"`
	Type      domain.QuestionType `json:"type"`
	Prompt    string              `json:"prompt"`
	Choices   []string            `json:"choices,omitempty"`
	Multi     bool                `json:"multi,omitempty"`
	Blanks    int                 `json:"blanks,omitempty"`
	Items     int                 `json:"items,omitempty"`
	TimeLimit int                 `json:"timeLimit"`
	Points    int                 `json:"points"`
}

// Summary is published once the session completes.
type Summary struct {
	Score          int          `json:"score"`
	TotalPoints    int          `json:"totalPoints"`
	TotalQuestions int          `json:"totalQuestions"`
	Answered       int          `json:"answered"`
	TimedOut       int          `json:"timedOut"`
	Report         ReportStatus `json:"report"`
	Warning        string       `json:"warning,omitempty"`
}

// State is a snapshot of a session for the presentation layer.
type State struct {
	SessionID   string        `json:"sessionId"`
	QuizID      string        `json:"quizId"`
	Phase       Phase         `json:"phase"`
	Index       int           `json:"index"`
	Total       int           `json:"total"`
	Question    *QuestionView `json:"question,omitempty"`
	Remaining   int           `json:"remaining"`
	Score       int           `json:"score"`
	TotalPoints int           `json:"totalPoints"`
	Feedback    *Result       `json:"feedback,omitempty"`
	Summary     *Summary      `json:"summary,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Session is one learner's pass through a quiz. All state is guarded by mu,
// so timer callbacks, submissions and Close are serialized.
type Session struct {
	id          string
	quiz        domain.Quiz
	user        domain.User
	questions   []PreparedQuestion
	totalPoints int
	timings     Timings
	sched       Scheduler
	reporter    *Reporter
	now         func() time.Time
	log         zerolog.Logger

	mu          sync.Mutex
	ctrl        Controller
	index       int
	score       int
	slots       []Slot
	feedback    *Result
	summary     *Summary
	started     bool
	closed      bool
	gen         uint64
	timers      []Timer
	subscribers map[chan State]struct{}
	done        chan struct{}
}

// NewSession prepares a quiz for play. It fails with ErrQuizNotFound when the
// quiz has no questions.
func NewSession(quiz domain.Quiz, opts SessionOptions) (*Session, error) {
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("%w: quiz %q has no questions", domain.ErrQuizNotFound, quiz.ID)
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	opts.Timings = opts.Timings.withDefaults()
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ordered := make([]domain.Question, len(quiz.Questions))
	copy(ordered, quiz.Questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].OrderIndex != ordered[j].OrderIndex {
			return ordered[i].OrderIndex < ordered[j].OrderIndex
		}
		return ordered[i].ID < ordered[j].ID
	})
	quiz.Questions = ordered

	log := opts.Log.With().Str("session_id", opts.ID).Str("quiz_id", quiz.ID).Logger()

	questions := make([]PreparedQuestion, len(ordered))
	total := 0
	for i, q := range ordered {
		questions[i] = Prepare(q)
		total += questions[i].Points
		if questions[i].Malformed != nil {
			log.Warn().Err(questions[i].Malformed).Str("question_id", q.ID).Msg("question will be scored as incorrect")
		}
	}

	slots := make([]Slot, len(questions))
	for i := range slots {
		slots[i].Status = SlotUnanswered
	}

	return &Session{
		id:          opts.ID,
		quiz:        quiz,
		user:        opts.User,
		questions:   questions,
		totalPoints: total,
		timings:     opts.Timings,
		sched:       opts.Scheduler,
		reporter:    opts.Reporter,
		now:         opts.Now,
		log:         log,
		ctrl:        NewController(questions[0].TimeLimit),
		slots:       slots,
		subscribers: make(map[chan State]struct{}),
		done:        make(chan struct{}),
	}, nil
}

func (s *Session) ID() string { return s.id }

// Done is closed when the session reaches the completed phase.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start begins the pre-session countdown. Calling it again has no effect.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	s.after(s.timings.Countdown, s.beginLocked)
	s.broadcastLocked()
}

// SubmitAnswer evaluates an answer for the current question. Rejected
// submissions wrap domain.ErrInvalidSubmission and change nothing.
func (s *Session) SubmitAnswer(answer domain.Answer) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.ctrl.Phase() == PhaseCompleted:
		return Result{}, domain.ErrSessionCompleted
	case s.closed:
		return Result{}, domain.ErrQuestionNotActive
	case s.slots[s.index].Status != SlotUnanswered:
		return Result{}, domain.ErrAnswerAlreadySubmitted
	case s.ctrl.Phase() != PhaseAwaitingAnswer:
		return Result{}, domain.ErrQuestionNotActive
	}

	q := s.questions[s.index]
	res := Evaluate(q, answer)
	if res.Malformed {
		s.log.Warn().Str("question_id", q.ID).Msg("answer to malformed question scored as incorrect")
	}

	stored := answer
	s.slots[s.index] = Slot{Status: SlotAnswered, Answer: &stored, Result: &res}
	s.score += res.Earned
	s.feedback = &res

	s.stopTimersLocked()
	phase, err := s.ctrl.Answered(res.FullyCorrect)
	if err != nil {
		// unreachable: the phase was checked above
		return res, err
	}
	dwell := s.timings.RevealDwell
	if phase == PhaseFeedbackCorrect {
		dwell = s.timings.CorrectDwell
	}
	s.after(dwell, func() {
		if _, err := s.ctrl.Fire(EventDwellElapsed); err != nil {
			s.log.Error().Err(err).Msg("dwell elapsed out of phase")
			return
		}
		s.advanceLocked()
	})

	s.log.Debug().
		Str("question_id", q.ID).
		Bool("correct", res.Correct).
		Int("earned", res.Earned).
		Int("score", s.score).
		Msg("answer evaluated")
	s.broadcastLocked()
	return res, nil
}

// Advance moves past a resolved question. It only acts in the advancing
// phase and has no effect once the session is completed.
func (s *Session) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.advanceLocked()
}

// Close cancels every pending timer. Subscribers' channels are closed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimersLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	if s.ctrl.Phase() != PhaseCompleted {
		s.log.Info().Int("index", s.index).Msg("session closed before completion")
	}
}

// Snapshot returns the current presentation state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Slots returns a copy of the per-question answer slots.
func (s *Session) Slots() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// Subscribe returns a channel of state updates, primed with the current
// state. The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// WaitReported blocks until the completion record save, if any, has finished.
func (s *Session) WaitReported() {
	if s.reporter != nil {
		s.reporter.Wait()
	}
}

func (s *Session) beginLocked() {
	if _, err := s.ctrl.Fire(EventCountdownElapsed); err != nil {
		s.log.Error().Err(err).Msg("countdown elapsed out of phase")
		return
	}
	s.every(s.timings.Tick, s.tickLocked)
	s.broadcastLocked()
}

func (s *Session) tickLocked() {
	if !s.ctrl.Tick() {
		s.broadcastLocked()
		return
	}
	q := s.questions[s.index]
	s.slots[s.index] = Slot{Status: SlotTimedOut, Result: &Result{QuestionID: q.ID}}
	s.feedback = nil
	s.stopTimersLocked()
	s.log.Debug().Str("question_id", q.ID).Msg("question timed out")
	s.advanceLocked()
}

func (s *Session) advanceLocked() bool {
	if s.ctrl.Phase() != PhaseAdvancing {
		return false
	}
	s.stopTimersLocked()
	if s.index+1 < len(s.questions) {
		s.index++
		if err := s.ctrl.Next(s.questions[s.index].TimeLimit); err != nil {
			s.log.Error().Err(err).Msg("advance to next question")
			return false
		}
		s.feedback = nil
		s.every(s.timings.Tick, s.tickLocked)
		s.broadcastLocked()
		return true
	}
	if err := s.ctrl.Finish(); err != nil {
		s.log.Error().Err(err).Msg("finish session")
		return false
	}
	s.completeLocked()
	return true
}

func (s *Session) completeLocked() {
	close(s.done)

	summary := &Summary{
		Score:          s.score,
		TotalPoints:    s.totalPoints,
		TotalQuestions: len(s.questions),
		Report:         ReportSkipped,
	}
	for _, slot := range s.slots {
		switch slot.Status {
		case SlotAnswered:
			summary.Answered++
		case SlotTimedOut:
			summary.TimedOut++
		}
	}
	s.summary = summary

	record := domain.QuizRecord{
		ID:             uuid.NewString(),
		SessionID:      s.id,
		SubjectID:      s.quiz.SubjectID,
		UserID:         s.user.ID,
		QuizID:         s.quiz.ID,
		Score:          s.score,
		TotalPoints:    s.totalPoints,
		TotalQuestions: len(s.questions),
		CompletedAt:    s.now(),
	}
	if s.reporter != nil && s.reporter.Report(s.user, record, s.reported) {
		summary.Report = ReportPending
	}

	s.log.Info().
		Int("score", s.score).
		Int("total_points", s.totalPoints).
		Msg("session completed")
	s.broadcastLocked()
}

func (s *Session) reported(status ReportStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return
	}
	s.summary.Report = status
	if err != nil {
		s.summary.Warning = err.Error()
		if errors.Is(err, domain.ErrPersistence) {
			s.log.Warn().Err(err).Msg("quiz record not persisted")
		}
	}
	s.broadcastLocked()
}

// after and every arm timers tagged with the current generation. A callback
// that fires after stopTimersLocked or Close is dropped.
func (s *Session) after(d time.Duration, fn func()) {
	s.timers = append(s.timers, s.sched.AfterFunc(d, s.guard(fn)))
}

func (s *Session) every(d time.Duration, fn func()) {
	s.timers = append(s.timers, s.sched.Every(d, s.guard(fn)))
}

func (s *Session) guard(fn func()) func() {
	gen := s.gen
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.gen != gen {
			return
		}
		fn()
	}
}

func (s *Session) stopTimersLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.gen++
}

func (s *Session) broadcastLocked() {
	state := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// drop the oldest update so a slow reader never blocks the session
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func (s *Session) snapshotLocked() State {
	state := State{
		SessionID:   s.id,
		QuizID:      s.quiz.ID,
		Phase:       s.ctrl.Phase(),
		Index:       s.index,
		Total:       len(s.questions),
		Remaining:   s.ctrl.Remaining(),
		Score:       s.score,
		TotalPoints: s.totalPoints,
		UpdatedAt:   s.now(),
	}
	if s.feedback != nil {
		fb := *s.feedback
		if fb.FullyCorrect {
			fb.Reveal = nil
		}
		state.Feedback = &fb
	}
	if s.summary != nil {
		sum := *s.summary
		state.Summary = &sum
		return state
	}
	if state.Phase != PhaseCounting {
		view := viewOf(s.questions[s.index])
		state.Question = &view
	}
	return state
}

func viewOf(q PreparedQuestion) QuestionView {
	view := QuestionView{
		ID:        q.ID,
		Type:      q.Type,
		Prompt:    q.Prompt,
		TimeLimit: q.TimeLimit,
		Points:    q.Points,
	}
	switch opts := q.Options.(type) {
	case domain.ChoiceOptions:
		for _, c := range opts.Choices {
			view.Choices = append(view.Choices, c.Text)
		}
		view.Multi = opts.MultiAnswer
	case domain.BlankOptions:
		view.Blanks = len(opts.Blanks)
	case domain.EnumerationOptions:
		view.Items = len(opts.Answers)
	}
	return view
}
