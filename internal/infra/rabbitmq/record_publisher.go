package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"lab-quiz-player/internal/domain"
)

// DefaultQueue receives completion records for dashboards and grading.
const DefaultQueue = "quiz.records"

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RecordPublisher is a record sink that publishes each record as a
// persistent JSON message. Consumers dedupe on the message id, which is the
// session id.
type RecordPublisher struct {
	channel Channel
	queue   string

	mu       sync.Mutex
	declared bool
	closer   func() error
}

func NewRecordPublisher(channel Channel, queue string) *RecordPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RecordPublisher{channel: channel, queue: queue}
}

// Dial connects to the broker and opens a channel for a publisher.
func Dial(url, queue string) (*RecordPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p := NewRecordPublisher(channel, queue)
	p.closer = func() error {
		channel.Close()
		return conn.Close()
	}
	return p, nil
}

func (p *RecordPublisher) SaveQuizRecord(ctx context.Context, record domain.QuizRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared {
		if _, err := p.channel.QueueDeclare(
			p.queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("failed to declare queue: %w", err)
		}
		p.declared = true
	}

	return p.channel.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    record.SessionID,
			Type:         "quiz.record.completed",
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *RecordPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
