package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lab-quiz-player/internal/domain"
)

const (
	DefaultBatchSize    = 100
	DefaultPollTimeout  = time.Second
	DefaultRetryBackoff = 5 * time.Second
)

// BatchSink stores a batch of records in one go.
type BatchSink interface {
	SaveQuizRecords(ctx context.Context, records []domain.QuizRecord) error
}

// RecordWorker drains the Redis record queue into a durable sink in batches.
type RecordWorker struct {
	rdb     *redis.Client
	sink    BatchSink
	queue   string
	batch   int
	poll    time.Duration
	backoff time.Duration
	log     zerolog.Logger
}

type Options struct {
	Queue        string
	BatchSize    int
	PollTimeout  time.Duration
	RetryBackoff time.Duration
}

func NewRecordWorker(rdb *redis.Client, sink BatchSink, opts Options, log zerolog.Logger) *RecordWorker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return &RecordWorker{
		rdb:     rdb,
		sink:    sink,
		queue:   opts.Queue,
		batch:   opts.BatchSize,
		poll:    opts.PollTimeout,
		backoff: opts.RetryBackoff,
		log:     log.With().Str("component", "record_worker").Logger(),
	}
}

// Run blocks until ctx is cancelled, then flushes what is left.
func (w *RecordWorker) Run(ctx context.Context) error {
	w.log.Info().Str("queue", w.queue).Int("batch_size", w.batch).Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("shutdown requested, draining queue")
			n, err := w.Drain(context.Background())
			w.log.Info().Int("count", n).Msg("worker stopped")
			return err
		default:
		}

		item, err := w.rdb.BLPop(ctx, w.poll, w.queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				w.log.Error().Err(err).Dur("backoff", w.backoff).Msg("BLPop error")
				select {
				case <-ctx.Done():
				case <-time.After(w.backoff):
				}
			}
			continue
		}
		if len(item) < 2 {
			continue
		}

		raw := []string{item[1]}
		if w.batch > 1 {
			more, err := w.rdb.LPopCount(ctx, w.queue, w.batch-1).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				w.log.Error().Err(err).Msg("LPOP error")
			}
			raw = append(raw, more...)
		}

		if err := w.flush(ctx, raw); err != nil {
			w.log.Warn().Err(err).Dur("backoff", w.backoff).Msg("batch requeued")
			select {
			case <-ctx.Done():
			case <-time.After(w.backoff):
			}
		}
	}
}

// Drain flushes queued records until the queue is empty or a batch fails.
// It returns how many queued items were consumed.
func (w *RecordWorker) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		raw, err := w.rdb.LPopCount(ctx, w.queue, w.batch).Result()
		if errors.Is(err, redis.Nil) || (err == nil && len(raw) == 0) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n := len(raw)
		if err := w.flush(ctx, raw); err != nil {
			return total, err
		}
		total += n
	}
}

// flush decodes and stores one batch. Undecodable items are dropped; on a
// sink failure the whole batch goes back to the end of the queue.
func (w *RecordWorker) flush(ctx context.Context, raw []string) error {
	records := make([]domain.QuizRecord, 0, len(raw))
	kept := make([]interface{}, 0, len(raw))
	for _, item := range raw {
		var rec domain.QuizRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil || rec.SessionID == "" {
			w.log.Error().Err(err).Str("payload", item).Msg("dropping invalid record payload")
			continue
		}
		records = append(records, rec)
		kept = append(kept, item)
	}
	if len(records) == 0 {
		return nil
	}

	if err := w.sink.SaveQuizRecords(ctx, records); err != nil {
		if rerr := w.rdb.RPush(context.Background(), w.queue, kept...).Err(); rerr != nil {
			w.log.Error().Err(rerr).Int("count", len(kept)).Msg("requeue failed, records lost")
		}
		return err
	}
	w.log.Info().Int("count", len(records)).Msg("records flushed")
	return nil
}
