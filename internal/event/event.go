// Package event carries persisted state changes out of the process.
// The lifecycle engine and the legacy importer publish named events
// to a durable queue; the fan-out to connected clients (websocket
// gateway, desktop shells) happens downstream and is not this
// service's concern.
package event

import (
	"context"

	"github.com/hospmaint/os-manager/internal/model"
)

// QueueName is the durable queue all service-order events go to.
const QueueName = "os.events"

// Event names. The order:deleted name is kept for compatibility with
// listeners that expect removal semantics even though finalized
// orders are retained and only marked COMPLETED.
const (
	OrderCreated = "order:created"
	OrderUpdated = "order:updated"
	OrderDeleted = "order:deleted"
	CommentAdded = "comment:added"
)

// Message is the envelope published for every event. Exactly one of
// Order/Comment is set depending on the event; OrderID accompanies
// order:deleted and comment:added.
type Message struct {
	Event     string              `json:"event"`
	Order     *model.ServiceOrder `json:"order,omitempty"`
	Comment   *model.Comment      `json:"comment,omitempty"`
	OrderID   uint64              `json:"orderId,omitempty"`
	EmittedAt string              `json:"emittedAt"`
}

// NopBus discards every event. It stands in for the Publisher when no
// broker URL is configured so the rest of the system needs no nil
// checks.
type NopBus struct{}

func (NopBus) OrderCreated(context.Context, *model.ServiceOrder)   {}
func (NopBus) OrderUpdated(context.Context, *model.ServiceOrder)   {}
func (NopBus) OrderDeleted(context.Context, uint64)                {}
func (NopBus) CommentAdded(context.Context, *model.Comment, uint64) {}
