package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lab-quiz-player/internal/app"
	"lab-quiz-player/internal/config"
	"lab-quiz-player/internal/domain"
	"lab-quiz-player/internal/infra/memory"
	"lab-quiz-player/internal/infra/postgres"
	"lab-quiz-player/internal/infra/rabbitmq"
	redisinfra "lab-quiz-player/internal/infra/redis"
	"lab-quiz-player/internal/infra/sqlite"
	transport "lab-quiz-player/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz player server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = newRedisClient(cfg)
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	var users app.UserDirectory = memory.NewUserDirectory(nil)
	if pool != nil {
		loader = postgres.NewQuizLoader(pool)
		users = postgres.NewUserDirectory(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL, log)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL, log)
	} else {
		store = memory.NewSessionStore()
	}

	records, closeRecords, err := openRecordSink(cfg, redisClient, pool)
	if err != nil {
		return err
	}
	defer closeRecords()

	service := app.NewPlayerService(store, quizRepo, users, records, app.PlayerOptions{
		Timings:     timingsFromConfig(cfg),
		SaveTimeout: config.TTLDuration(cfg.Records.SaveTimeout, 10*time.Second),
	}, log)
	wsHandler := transport.NewWSHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("record_sink", cfg.RecordSink()).Msg("starting quiz player")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.Worker.Enabled && redisClient != nil && pool != nil {
		w := newRecordWorker(cfg, redisClient, pool, log)
		g.Go(func() error { return w.Run(gctx) })
	}
	return g.Wait()
}

// openRecordSink picks where completion records go.
func openRecordSink(cfg config.Config, rdb *redis.Client, pool *pgxpool.Pool) (app.RecordStore, func(), error) {
	noop := func() {}
	switch sink := cfg.RecordSink(); sink {
	case config.SinkMemory:
		return memory.NewRecordStore(), noop, nil
	case config.SinkPostgres:
		if pool == nil {
			return nil, noop, fmt.Errorf("record sink %s: postgres not configured", sink)
		}
		return postgres.NewRecordStore(pool), noop, nil
	case config.SinkSQLite:
		s, err := sqlite.NewRecordStore(cfg.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil
	case config.SinkQueue:
		if rdb == nil {
			return nil, noop, fmt.Errorf("record sink %s: redis not configured", sink)
		}
		return redisinfra.NewRecordQueue(rdb, cfg.RedisQueue()), noop, nil
	case config.SinkRabbitMQ:
		p, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			return nil, noop, err
		}
		return p, func() { p.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown record sink %q", sink)
	}
}

func timingsFromConfig(cfg config.Config) app.Timings {
	def := app.DefaultTimings()
	return app.Timings{
		Countdown:    positiveDuration(cfg.Timings.Countdown, def.Countdown),
		Tick:         positiveDuration(cfg.Timings.Tick, def.Tick),
		CorrectDwell: positiveDuration(cfg.Timings.CorrectDwell, def.CorrectDwell),
		RevealDwell:  positiveDuration(cfg.Timings.RevealDwell, def.RevealDwell),
	}
}

func positiveDuration(raw string, fallback time.Duration) time.Duration {
	if d := config.TTLDuration(raw, fallback); d > 0 {
		return d
	}
	return fallback
}

// sampleQuizzes serves a demo quiz when no database is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:        "quiz-1",
			SubjectID: "demo",
			Title:     "Warm-up",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Type:   domain.QuestionMultipleChoice,
					Prompt: "What is 2 + 2?",
					Options: domain.EncodeOptions(
						domain.Option{ID: "o1", Text: "3"},
						domain.Option{ID: "o2", Text: "4", IsCorrect: true},
						domain.Option{ID: "o3", Text: "5"},
					),
					TimeLimit:  20,
					Points:     1,
					OrderIndex: 1,
				},
				{
					ID:         "q2",
					Type:       domain.QuestionTrueFalse,
					Prompt:     "Go has generics.",
					Options:    domain.EncodeOptions(domain.Option{Text: "True", IsCorrect: true}, domain.Option{Text: "False"}),
					TimeLimit:  15,
					OrderIndex: 2,
				},
			},
		},
	}
}
