package app_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lab-quiz-player/internal/app"
	"lab-quiz-player/internal/domain"
	"lab-quiz-player/internal/infra/memory"
)

var testTimings = app.Timings{
	Countdown:    3 * time.Second,
	Tick:         time.Second,
	CorrectDwell: 2 * time.Second,
	RevealDwell:  4 * time.Second,
}

var student = domain.User{ID: "u-1", DisplayName: "Ana", Role: domain.RoleStudent}

func TestSessionEndToEndScoring(t *testing.T) {
	sched := app.NewManualScheduler()
	records := memory.NewRecordStore()
	session := newTestSession(t, labQuiz(), sched, student, records)

	session.Start()
	if st := session.Snapshot(); st.Phase != app.PhaseCounting || st.Question != nil {
		t.Fatalf("expected countdown without question, got %+v", st)
	}
	sched.Advance(3 * time.Second)

	st := session.Snapshot()
	if st.Phase != app.PhaseAwaitingAnswer || st.Question == nil || st.Question.ID != "q1" {
		t.Fatalf("expected q1 awaiting answer, got %+v", st)
	}
	if len(st.Question.Choices) != 2 {
		t.Fatalf("expected 2 choices rendered, got %v", st.Question.Choices)
	}

	res, err := session.SubmitAnswer(domain.Answer{Text: "Switch"})
	if err != nil || !res.Correct || res.Earned != 1 {
		t.Fatalf("q1: expected correct, got %+v err=%v", res, err)
	}
	if st := session.Snapshot(); st.Phase != app.PhaseFeedbackCorrect || st.Feedback == nil || st.Feedback.Reveal != nil {
		t.Fatalf("expected correct feedback without reveal, got %+v", st)
	}
	sched.Advance(2 * time.Second)

	if st := session.Snapshot(); st.Index != 1 || st.Phase != app.PhaseAwaitingAnswer {
		t.Fatalf("expected q2 awaiting answer, got %+v", st)
	}
	res, err = session.SubmitAnswer(domain.Answer{Text: "hub"})
	if err != nil || res.Correct {
		t.Fatalf("q2: expected incorrect, got %+v err=%v", res, err)
	}
	if st := session.Snapshot(); st.Phase != app.PhaseFeedbackReveal || len(st.Feedback.Reveal) != 1 {
		t.Fatalf("expected reveal feedback, got %+v", st)
	}
	sched.Advance(4 * time.Second)

	st = session.Snapshot()
	if st.Index != 2 || st.Question.Items != 2 {
		t.Fatalf("expected q3 with 2 items, got %+v", st)
	}
	res, err = session.SubmitAnswer(domain.Answer{Values: []string{"ethernet", ""}})
	if err != nil || res.Earned != 1 || res.FullyCorrect {
		t.Fatalf("q3: expected partial credit, got %+v err=%v", res, err)
	}
	if st := session.Snapshot(); st.Phase != app.PhaseFeedbackReveal {
		t.Fatalf("expected partial credit to reveal, got %s", st.Phase)
	}
	sched.Advance(4 * time.Second)

	select {
	case <-session.Done():
	default:
		t.Fatalf("expected session done")
	}
	session.WaitReported()

	st = session.Snapshot()
	if st.Phase != app.PhaseCompleted || st.Summary == nil {
		t.Fatalf("expected completed summary, got %+v", st)
	}
	if st.Summary.Score != 2 || st.Summary.TotalPoints != 4 || st.Summary.TotalQuestions != 3 {
		t.Fatalf("expected 2/4 over 3 questions, got %+v", st.Summary)
	}
	if st.Summary.Report != app.ReportSaved {
		t.Fatalf("expected record saved, got %s", st.Summary.Report)
	}

	recs := records.Records()
	if len(recs) != 1 || records.Calls() != 1 {
		t.Fatalf("expected one record, got %d (calls %d)", len(recs), records.Calls())
	}
	rec := recs[0]
	if rec.Score != 2 || rec.TotalPoints != 4 || rec.TotalQuestions != 3 || rec.UserID != "u-1" || rec.SubjectID != "networking" || rec.SessionID != session.ID() {
		t.Fatalf("unexpected record %+v", rec)
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected no timers after completion, got %d", sched.Pending())
	}
}

func TestSessionTimeoutAdvancesOnce(t *testing.T) {
	sched := app.NewManualScheduler()
	session := newTestSession(t, labQuiz(), sched, student, memory.NewRecordStore())

	session.Start()
	sched.Advance(3 * time.Second)
	sched.Advance(29 * time.Second)
	if st := session.Snapshot(); st.Remaining != 1 || st.Index != 0 {
		t.Fatalf("expected 1 second left on q1, got %+v", st)
	}

	sched.Advance(time.Second)
	st := session.Snapshot()
	if st.Index != 1 || st.Remaining != 20 || st.Phase != app.PhaseAwaitingAnswer {
		t.Fatalf("expected single advance to q2 with fresh limit, got %+v", st)
	}
	if st.Score != 0 {
		t.Fatalf("timeout must not score, got %d", st.Score)
	}
	slots := session.Slots()
	if slots[0].Status != app.SlotTimedOut || slots[0].Answer != nil {
		t.Fatalf("expected q1 timed out, got %+v", slots[0])
	}

	sched.Advance(time.Second)
	if st := session.Snapshot(); st.Index != 1 || st.Remaining != 19 {
		t.Fatalf("expected q2 counting down, got %+v", st)
	}
}

func TestSessionCompletesOnLastTimeout(t *testing.T) {
	sched := app.NewManualScheduler()
	records := memory.NewRecordStore()
	quiz := domain.Quiz{ID: "single", Questions: []domain.Question{labQuiz().Questions[0]}}
	session := newTestSession(t, quiz, sched, student, records)

	session.Start()
	sched.Advance(33 * time.Second)
	<-session.Done()
	session.WaitReported()

	if _, err := session.SubmitAnswer(domain.Answer{Text: "Switch"}); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed rejection, got %v", err)
	}
	if session.Advance() {
		t.Fatalf("advance after completion must be a no-op")
	}
	sched.Advance(time.Minute)
	if records.Calls() != 1 {
		t.Fatalf("expected exactly one save, got %d", records.Calls())
	}
	if sum := session.Snapshot().Summary; sum.TimedOut != 1 || sum.Score != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestSessionRejectsInvalidSubmissions(t *testing.T) {
	sched := app.NewManualScheduler()
	session := newTestSession(t, labQuiz(), sched, student, memory.NewRecordStore())
	session.Start()

	if _, err := session.SubmitAnswer(domain.Answer{Text: "Switch"}); !errors.Is(err, domain.ErrQuestionNotActive) {
		t.Fatalf("expected countdown rejection, got %v", err)
	}
	sched.Advance(3 * time.Second)

	if _, err := session.SubmitAnswer(domain.Answer{Text: "Router"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	before := session.Snapshot()
	_, err := session.SubmitAnswer(domain.Answer{Text: "Switch"})
	if !errors.Is(err, domain.ErrAnswerAlreadySubmitted) || !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected already-submitted rejection, got %v", err)
	}
	after := session.Snapshot()
	if before.Score != after.Score || before.Phase != after.Phase {
		t.Fatalf("rejected submission changed state: %+v -> %+v", before, after)
	}
	if session.Advance() {
		t.Fatalf("advance during feedback must be a no-op")
	}
}

func TestSessionScoreNeverDecreases(t *testing.T) {
	sched := app.NewManualScheduler()
	session := newTestSession(t, labQuiz(), sched, student, memory.NewRecordStore())
	updates, cancel := session.Subscribe()
	defer cancel()

	session.Start()
	steps := []func(){
		func() { sched.Advance(3 * time.Second) },
		func() { _, _ = session.SubmitAnswer(domain.Answer{Text: "Switch"}) },
		func() { _, _ = session.SubmitAnswer(domain.Answer{Text: "Switch"}) },
		func() { sched.Advance(2 * time.Second) },
		func() { sched.Advance(25 * time.Second) },
		func() { _, _ = session.SubmitAnswer(domain.Answer{Values: []string{"wifi", "ethernet", "wifi"}}) },
		func() { sched.Advance(10 * time.Second) },
	}

	last := 0
	for i, step := range steps {
		step()
		score := session.Snapshot().Score
		if score < last {
			t.Fatalf("step %d: score decreased from %d to %d", i, last, score)
		}
		last = score
	}
	if last != 3 {
		t.Fatalf("expected final score 3, got %d", last)
	}

	prev := 0
	for {
		select {
		case st := <-updates:
			if st.Score < prev {
				t.Fatalf("published score decreased from %d to %d", prev, st.Score)
			}
			prev = st.Score
			continue
		default:
		}
		break
	}
}

func TestSessionCloseCancelsTimers(t *testing.T) {
	sched := app.NewManualScheduler()
	records := memory.NewRecordStore()
	session := newTestSession(t, labQuiz(), sched, student, records)
	updates, _ := session.Subscribe()

	session.Start()
	sched.Advance(5 * time.Second)
	session.Close()

	if sched.Pending() != 0 {
		t.Fatalf("expected all timers cancelled, got %d", sched.Pending())
	}
	remaining := session.Snapshot().Remaining
	sched.Advance(10 * time.Minute)
	if got := session.Snapshot().Remaining; got != remaining {
		t.Fatalf("ticks continued after close: %d -> %d", remaining, got)
	}
	if records.Calls() != 0 {
		t.Fatalf("abandoned session must not save a record")
	}
	for range updates {
	}
	if _, err := session.SubmitAnswer(domain.Answer{Text: "Switch"}); !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected rejection after close, got %v", err)
	}
}

func TestSessionPersistenceFailureStillCompletes(t *testing.T) {
	sched := app.NewManualScheduler()
	records := memory.NewRecordStore()
	records.FailWith(errors.New("connection refused"))
	session := newTestSession(t, labQuiz(), sched, student, records)

	session.Start()
	sched.Advance(3*time.Second + 30*time.Second + 20*time.Second + 45*time.Second)
	<-session.Done()
	session.WaitReported()

	sum := session.Snapshot().Summary
	if sum == nil || sum.Report != app.ReportFailed || sum.Warning == "" {
		t.Fatalf("expected failed report with warning, got %+v", sum)
	}
	if records.Calls() != 1 {
		t.Fatalf("failed save must not be retried, got %d calls", records.Calls())
	}
}

func TestSessionSavesUnderAuthoredEnumeration(t *testing.T) {
	quiz := domain.Quiz{
		ID:        "quiz-proto",
		SubjectID: "networking",
		Questions: []domain.Question{{
			ID:        "q1",
			Type:      domain.QuestionEnumeration,
			Prompt:    "Name three IP protocols",
			Options:   domain.EncodeOptions(domain.Option{Text: "TCP"}, domain.Option{Text: "UDP"}, domain.Option{Text: "ICMP"}),
			TimeLimit: 30,
			Points:    1,
		}},
	}
	sched := app.NewManualScheduler()
	records := memory.NewRecordStore()
	session := newTestSession(t, quiz, sched, student, records)

	session.Start()
	sched.Advance(3 * time.Second)
	res, err := session.SubmitAnswer(domain.Answer{Values: []string{"tcp", "udp", "icmp"}})
	if err != nil || res.Earned != 3 {
		t.Fatalf("expected 3 points, got %+v err=%v", res, err)
	}
	sched.Advance(2 * time.Second)
	<-session.Done()
	session.WaitReported()

	sum := session.Snapshot().Summary
	if sum == nil || sum.Report != app.ReportSaved {
		t.Fatalf("expected record saved, got %+v", sum)
	}
	if sum.Score != 3 || sum.TotalPoints != 3 {
		t.Fatalf("expected 3/3, got %+v", sum)
	}
	if records.Calls() != 1 || len(records.Records()) != 1 {
		t.Fatalf("expected one saved record, got %d calls", records.Calls())
	}
}

func TestSessionSkipsRecordForTeacher(t *testing.T) {
	sched := app.NewManualScheduler()
	records := memory.NewRecordStore()
	teacher := domain.User{ID: "t-1", Role: domain.RoleTeacher}
	session := newTestSession(t, labQuiz(), sched, teacher, records)

	session.Start()
	sched.Advance(2 * time.Minute)
	<-session.Done()
	session.WaitReported()

	if records.Calls() != 0 {
		t.Fatalf("teacher session must not be saved")
	}
	if sum := session.Snapshot().Summary; sum.Report != app.ReportSkipped {
		t.Fatalf("expected skipped report, got %s", sum.Report)
	}
}

func TestSessionOrdersQuestions(t *testing.T) {
	quiz := labQuiz()
	quiz.Questions[0], quiz.Questions[2] = quiz.Questions[2], quiz.Questions[0]
	sched := app.NewManualScheduler()
	session := newTestSession(t, quiz, sched, student, nil)
	session.Start()
	sched.Advance(3 * time.Second)
	if st := session.Snapshot(); st.Question.ID != "q1" {
		t.Fatalf("expected q1 first by order index, got %s", st.Question.ID)
	}
}

func TestSessionDefaultsNonPositiveTimings(t *testing.T) {
	sched := app.NewManualScheduler()
	session, err := app.NewSession(labQuiz(), app.SessionOptions{
		ID:        "session-1",
		User:      student,
		Scheduler: sched,
		Timings:   app.Timings{Countdown: 3 * time.Second, Tick: 0, CorrectDwell: -time.Second},
		Log:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(session.Close)

	session.Start()
	sched.Advance(3 * time.Second)
	sched.Advance(time.Second)
	if st := session.Snapshot(); st.Remaining != 29 {
		t.Fatalf("expected one-second tick, got %d remaining", st.Remaining)
	}
	if _, err := session.SubmitAnswer(domain.Answer{Text: "Switch"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	sched.Advance(2 * time.Second)
	if st := session.Snapshot(); st.Index != 1 {
		t.Fatalf("expected default correct dwell, got index %d", st.Index)
	}
}

func TestNewSessionRejectsEmptyQuiz(t *testing.T) {
	_, err := app.NewSession(domain.Quiz{ID: "empty"}, app.SessionOptions{})
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newTestSession(t *testing.T, quiz domain.Quiz, sched app.Scheduler, user domain.User, records app.RecordStore) *app.Session {
	t.Helper()
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	session, err := app.NewSession(quiz, app.SessionOptions{
		ID:        "session-1",
		User:      user,
		Scheduler: sched,
		Timings:   testTimings,
		Reporter:  app.NewReporter(records, time.Second, zerolog.Nop()),
		Now:       func() time.Time { return fixed },
		Log:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(session.Close)
	return session
}

// labQuiz is a 3-question quiz worth 1 + 1 + 2 points.
func labQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-net",
		SubjectID: "networking",
		Title:     "Networking basics",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Type:   domain.QuestionMultipleChoice,
				Prompt: "Which device forwards frames by MAC address?",
				Options: domain.EncodeOptions(
					domain.Option{ID: "a", Text: "Router"},
					domain.Option{ID: "b", Text: "Switch", IsCorrect: true},
				),
				TimeLimit:  30,
				Points:     1,
				OrderIndex: 1,
			},
			{
				ID:         "q2",
				Type:       domain.QuestionIdentification,
				Prompt:     "Device that connects different networks",
				Options:    domain.EncodeOptions(domain.Option{Text: "Router"}),
				TimeLimit:  20,
				Points:     1,
				OrderIndex: 2,
			},
			{
				ID:         "q3",
				Type:       domain.QuestionEnumeration,
				Prompt:     "Name two LAN media",
				Options:    domain.EncodeOptions(domain.Option{Text: "Ethernet"}, domain.Option{Text: "WiFi"}),
				TimeLimit:  45,
				OrderIndex: 3,
			},
		},
	}
}
