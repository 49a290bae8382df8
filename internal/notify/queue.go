package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/diagnosis/roombook/pkg/logger"
)

// QueueNotifier hands messages to a durable RabbitMQ queue. cmd/notifier
// drains the queue and does the actual delivery.
type QueueNotifier struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewQueueNotifier(url, queue string) (*QueueNotifier, error) {
	q := &QueueNotifier{url: url, queue: queue}
	if _, err := q.connection(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *QueueNotifier) connection() (*amqp.Connection, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil && !q.conn.IsClosed() {
		return q.conn, nil
	}
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	q.conn = conn
	return conn, nil
}

func (q *QueueNotifier) Notify(ctx context.Context, msg Message) error {
	conn, err := q.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Expiration:   ttlMillis(msg.ExpiresAt),
		Body:         body,
	})
}

func (q *QueueNotifier) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// ttlMillis drops queued codes once they could no longer be used.
func ttlMillis(expiresAt time.Time) string {
	ms := time.Until(expiresAt).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%d", ms)
}

// Consume drains queue into deliver until ctx is done, reconnecting with
// backoff when the broker goes away.
func Consume(ctx context.Context, url, queue string, deliver Notifier) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("notify consumer: dial failed", "error", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queue, deliver)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("notify consumer: loop ended, reconnecting", "error", err)
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, deliver Notifier) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(20, 0, false); err != nil {
		logger.Warn("notify consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleDelivery(ctx, d.Body, deliver); err != nil {
				logger.Error("notify consumer: delivery failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleDelivery(ctx context.Context, body []byte, deliver Notifier) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if !msg.ExpiresAt.IsZero() && time.Now().After(msg.ExpiresAt) {
		logger.Info("notify consumer: dropping expired code", "challenge_id", msg.ChallengeID)
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return deliver.Notify(ctx, msg)
}
