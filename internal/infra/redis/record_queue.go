package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"lab-quiz-player/internal/domain"
)

// DefaultRecordQueue is the list completion records are pushed to.
const DefaultRecordQueue = "quiz:records"

// RecordQueue is a record sink that pushes records onto a Redis list. The
// worker drains the list into Postgres in batches.
type RecordQueue struct {
	client *redis.Client
	key    string
}

func NewRecordQueue(client *redis.Client, key string) *RecordQueue {
	if key == "" {
		key = DefaultRecordQueue
	}
	return &RecordQueue{client: client, key: key}
}

func (q *RecordQueue) SaveQuizRecord(ctx context.Context, record domain.QuizRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key, payload).Err()
}

// Key is the list the queue pushes to.
func (q *RecordQueue) Key() string { return q.key }
