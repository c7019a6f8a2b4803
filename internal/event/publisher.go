package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hospmaint/os-manager/internal/model"
)

// Publisher sends event messages to the os.events queue. It keeps a
// single connection and channel, redialing lazily after a failure.
// All publish methods are fire-and-forget: errors are logged and
// swallowed so a broker outage can never fail or roll back the store
// write that produced the event.
type Publisher struct {
	url string
	log *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the given AMQP URL. No
// connection is made until the first publish.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// Close shuts down the cached connection, if any.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// reset drops the cached channel/connection. Caller holds p.mu.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// channel returns a usable channel, dialing and declaring the durable
// queue when needed. Caller holds p.mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	p.ch = ch
	return ch, nil
}

// publish marshals and sends one message, retrying once on a stale
// connection. Failures are logged, never returned.
func (p *Publisher) publish(ctx context.Context, msg Message) {
	msg.EmittedAt = time.Now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("event marshal failed", zap.String("event", msg.Event), zap.Error(err))
		return
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for attempt := 0; attempt < 2; attempt++ {
		ch, err := p.channel()
		if err != nil {
			p.log.Warn("event broker unavailable", zap.String("event", msg.Event), zap.Error(err))
			return
		}
		err = ch.PublishWithContext(ctx, "", QueueName, false, false, pub)
		if err == nil {
			return
		}
		p.reset()
		if attempt == 1 {
			p.log.Warn("event publish failed", zap.String("event", msg.Event), zap.Error(err))
		}
	}
}

// OrderCreated broadcasts a freshly created order.
func (p *Publisher) OrderCreated(ctx context.Context, o *model.ServiceOrder) {
	p.publish(ctx, Message{Event: OrderCreated, Order: o})
}

// OrderUpdated broadcasts the refreshed order after any field change.
func (p *Publisher) OrderUpdated(ctx context.Context, o *model.ServiceOrder) {
	p.publish(ctx, Message{Event: OrderUpdated, Order: o})
}

// OrderDeleted broadcasts a finalization; only the id travels.
func (p *Publisher) OrderDeleted(ctx context.Context, orderID uint64) {
	p.publish(ctx, Message{Event: OrderDeleted, OrderID: orderID})
}

// CommentAdded broadcasts a new timeline comment.
func (p *Publisher) CommentAdded(ctx context.Context, c *model.Comment, orderID uint64) {
	p.publish(ctx, Message{Event: CommentAdded, Comment: c, OrderID: orderID})
}
