package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lab-quiz-player/internal/config"
	"lab-quiz-player/internal/infra/postgres"
	"lab-quiz-player/internal/worker"
)

// NewWorkerCmd runs only the record worker, for deployments where lab
// machines queue records in Redis and one host writes them to Postgres.
func NewWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Drain queued quiz records into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" || cfg.Postgres.URL == "" {
				return fmt.Errorf("worker requires redis.addr and postgres.url")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			rdb := newRedisClient(cfg)
			defer rdb.Close()

			return newRecordWorker(cfg, rdb, pool, log).Run(ctx)
		},
	}
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func newRecordWorker(cfg config.Config, rdb *redis.Client, pool *pgxpool.Pool, log zerolog.Logger) *worker.RecordWorker {
	return worker.NewRecordWorker(rdb, postgres.NewRecordStore(pool), worker.Options{
		Queue:       cfg.RedisQueue(),
		BatchSize:   cfg.Worker.BatchSize,
		PollTimeout: config.TTLDuration(cfg.Worker.PollInterval, time.Second),
	}, log)
}

