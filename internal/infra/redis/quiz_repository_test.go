package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lab-quiz-player/internal/domain"
	"lab-quiz-player/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(client, loader, time.Minute, zerolog.Nop())

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:quiz-1:payload") {
		t.Fatalf("expected cached payload")
	}
	if ttl := mr.TTL("quiz:quiz-1:payload"); ttl < time.Minute || ttl > 66*time.Second {
		t.Fatalf("expected jittered ttl, got %v", ttl)
	}

	// second call is served from Redis with the full question content
	cached, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.SubjectID != quiz.SubjectID || len(cached.Questions) != 1 || cached.Questions[0].Prompt != "What is 2 + 2?" {
		t.Fatalf("cached quiz lost content: %+v", cached)
	}
	if _, err := domain.ParseOptions(cached.Questions[0]); err != nil {
		t.Fatalf("cached options unreadable: %v", err)
	}

	if err := repo.Invalidate(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestQuizRepositoryIgnoresCorruptCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	if err := mr.Set("quiz:quiz-1:payload", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	loader := &countingLoader{QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()})}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute, zerolog.Nop())

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected fallback to loader, got %d calls", loader.calls)
	}
}

func TestQuizRepositoryMissingQuiz(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewQuizRepository(newClient(mr), memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"empty": {ID: "empty"},
	}), time.Minute, zerolog.Nop())

	for _, id := range []string{"missing", "empty"} {
		if _, err := repo.GetQuiz(context.Background(), id); !errors.Is(err, domain.ErrQuizNotFound) {
			t.Fatalf("%s: expected not found, got %v", id, err)
		}
		if mr.Exists("quiz:" + id + ":payload") {
			t.Fatalf("%s: nothing should be cached", id)
		}
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-1",
		SubjectID: "math",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Type:   domain.QuestionMultipleChoice,
				Prompt: "What is 2 + 2?",
				Options: domain.EncodeOptions(
					domain.Option{ID: "o1", Text: "3"},
					domain.Option{ID: "o2", Text: "4", IsCorrect: true},
				),
				Points: 1,
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
