package memory

import (
	"testing"

	"lab-quiz-player/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	session, err := app.NewSession(sampleQuiz(), app.SessionOptions{ID: "s-1", Scheduler: app.NewManualScheduler()})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	store.Put(session)
	if got, ok := store.Get("s-1"); !ok || got != session {
		t.Fatalf("expected session present")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}

	store.Delete("s-1")
	if _, ok := store.Get("s-1"); ok {
		t.Fatalf("expected session removed")
	}
}
