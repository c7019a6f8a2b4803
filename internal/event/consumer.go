package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const eventLogFile = "os-events.log"

// StartEventLog consumes the os.events queue and appends one
// human-readable line per event to logs/os-events.log. It runs a
// reconnect loop with capped backoff until the context is cancelled,
// logging processing errors and rejecting the offending message so
// the rest of the stream keeps flowing.
func StartEventLog(ctx context.Context, url string, log *zap.Logger) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("event-log: broker dial failed", zap.Duration("retryIn", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(ctx, conn, log); err != nil {
			log.Warn("event-log: consume loop ended", zap.Error(err))
		}
		_ = conn.Close()
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := appendLogLine(d.Body); err != nil {
				log.Warn("event-log: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // do not requeue, avoids tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func appendLogLine(body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", eventLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var line string
	switch {
	case msg.Order != nil:
		line = fmt.Sprintf("[%s] %s | os=%s | client=%q | status=%s | priority=%s\n",
			msg.EmittedAt, msg.Event, msg.Order.OSNumber, msg.Order.ClientName,
			msg.Order.CurrentStatus, msg.Order.Priority)
	case msg.Comment != nil:
		line = fmt.Sprintf("[%s] %s | order_id=%d | type=%s\n",
			msg.EmittedAt, msg.Event, msg.OrderID, msg.Comment.CommentType)
	default:
		line = fmt.Sprintf("[%s] %s | order_id=%d\n", msg.EmittedAt, msg.Event, msg.OrderID)
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
