package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hospmaint/os-manager/internal/model"
	"github.com/hospmaint/os-manager/internal/perm"
)

// Actor is the resolved identity an operation runs as. Authentication
// happens elsewhere; the engine only sees the outcome.
type Actor struct {
	UserID uint64
	Role   perm.Role
}

// OrderStore is the persistence surface the engine writes through.
// *repository.OrderRepo satisfies it; tests substitute an in-memory
// implementation.
type OrderStore interface {
	Insert(ctx context.Context, o *model.ServiceOrder) error
	Update(ctx context.Context, id uint64, d model.OrderDelta) error
	GetByID(ctx context.Context, id uint64) (*model.ServiceOrder, error)
	List(ctx context.Context, f model.OrderFilter) ([]model.ServiceOrder, error)
	ListCompleted(ctx context.Context, dr model.DateRange, f model.OrderFilter) ([]model.ServiceOrder, error)
	Touch(ctx context.Context, id uint64, at time.Time) error
}

// Broadcaster fans persisted state changes out to connected clients.
// Delivery is fire-and-forget: implementations log their own failures
// and never block or fail the write that triggered them.
type Broadcaster interface {
	OrderCreated(ctx context.Context, o *model.ServiceOrder)
	OrderUpdated(ctx context.Context, o *model.ServiceOrder)
	OrderDeleted(ctx context.Context, orderID uint64)
	CommentAdded(ctx context.Context, c *model.Comment, orderID uint64)
}

// OrderService is the lifecycle engine: it owns every transition of a
// service order's status, priority, assignment and completion stamp.
type OrderService struct {
	store OrderStore
	bus   Broadcaster
	log   *zap.Logger
	now   func() time.Time
}

// NewOrderService wires the engine to its collaborators.
func NewOrderService(store OrderStore, bus Broadcaster, log *zap.Logger) *OrderService {
	return &OrderService{store: store, bus: bus, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// CreateOrderInput carries the already-parsed fields of a new order.
type CreateOrderInput struct {
	OSNumber                  string
	ClientName                string
	EquipmentName             string
	EquipmentClass            string
	SerialNumber              string
	Accessories               string
	HasPreviousDefect         bool
	PreviousDefectDescription string
	OptionalDescription       string
	Priority                  model.Priority
	CurrentStatus             model.Status
	AssignedToUserID          *uint64
}

// Create validates and persists a new service order, then broadcasts
// order:created. Priority defaults to MEDIUM and status to RECEIVED
// when unset.
func (s *OrderService) Create(ctx context.Context, actor Actor, in CreateOrderInput) (*model.ServiceOrder, error) {
	if !perm.Allowed(actor.Role, perm.ActionCreateOS) {
		return nil, ErrDenied
	}
	if strings.TrimSpace(in.OSNumber) == "" {
		return nil, invalid("osNumber", "required")
	}
	if strings.TrimSpace(in.ClientName) == "" {
		return nil, invalid("clientName", "required")
	}
	if strings.TrimSpace(in.EquipmentName) == "" {
		return nil, invalid("equipmentName", "required")
	}
	if in.HasPreviousDefect && strings.TrimSpace(in.PreviousDefectDescription) == "" {
		return nil, invalid("previousDefectDescription", "required when hasPreviousDefect is set")
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	} else if !in.Priority.Valid() {
		return nil, invalid("priority", "unknown value")
	}
	if in.CurrentStatus == "" {
		in.CurrentStatus = model.StatusReceived
	} else if !in.CurrentStatus.Valid() {
		return nil, invalid("currentStatus", "unknown value")
	}

	now := s.now()
	creator := actor.UserID
	o := &model.ServiceOrder{
		OSNumber:                  in.OSNumber,
		ClientName:                in.ClientName,
		EquipmentName:             in.EquipmentName,
		EquipmentClass:            in.EquipmentClass,
		SerialNumber:              in.SerialNumber,
		Accessories:               in.Accessories,
		HasPreviousDefect:         in.HasPreviousDefect,
		PreviousDefectDescription: in.PreviousDefectDescription,
		OptionalDescription:       in.OptionalDescription,
		Priority:                  in.Priority,
		CurrentStatus:             in.CurrentStatus,
		AssignedToUserID:          in.AssignedToUserID,
		CreatedByUserID:           &creator,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if o.CurrentStatus == model.StatusCompleted {
		t := now
		o.CompletedAt = &t
	}
	if err := s.store.Insert(ctx, o); err != nil {
		return nil, err
	}
	s.log.Info("order created",
		zap.Uint64("id", o.ID), zap.String("osNumber", o.OSNumber), zap.Uint64("actor", actor.UserID))
	s.bus.OrderCreated(ctx, o)
	return o, nil
}

// Update applies a field delta to an existing order. Any edit needs
// EDIT_OS; landing on COMPLETED additionally needs COMPLETE_OS and
// leaving COMPLETED needs REOPEN_OS. The defect invariant is checked
// against the merged view of the current row and the delta, the
// completion timestamp is stamped or cleared so that it is non-nil
// exactly when the order is completed, and order:updated is emitted
// with the refreshed order.
func (s *OrderService) Update(ctx context.Context, actor Actor, id uint64, d model.OrderDelta) (*model.ServiceOrder, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !perm.Allowed(actor.Role, perm.ActionEditOS) {
		return nil, ErrDenied
	}

	if d.CurrentStatus != nil {
		if !d.CurrentStatus.Valid() {
			return nil, invalid("currentStatus", "unknown value")
		}
		completing := *d.CurrentStatus == model.StatusCompleted && current.CurrentStatus != model.StatusCompleted
		reopening := current.CurrentStatus == model.StatusCompleted && *d.CurrentStatus != model.StatusCompleted
		if completing && !perm.Allowed(actor.Role, perm.ActionCompleteOS) {
			return nil, ErrDenied
		}
		if reopening && !perm.Allowed(actor.Role, perm.ActionReopenOS) {
			return nil, ErrDenied
		}
		if completing && d.CompletedAt == nil {
			t := s.now()
			d.CompletedAt = &t
		}
		if reopening {
			d.CompletedAt = nil
			d.ClearCompleted = true
		}
	}
	if d.Priority != nil && !d.Priority.Valid() {
		return nil, invalid("priority", "unknown value")
	}

	// Re-check the defect invariant on the merged view: the delta may
	// flip the flag without a description, or blank the description
	// while the flag stays set.
	hasDefect := current.HasPreviousDefect
	if d.HasPreviousDefect != nil {
		hasDefect = *d.HasPreviousDefect
	}
	defectDesc := current.PreviousDefectDescription
	if d.PreviousDefectDescription != nil {
		defectDesc = *d.PreviousDefectDescription
	}
	if hasDefect && strings.TrimSpace(defectDesc) == "" {
		return nil, invalid("previousDefectDescription", "required when hasPreviousDefect is set")
	}

	d.UpdatedAt = s.now()
	if err := s.store.Update(ctx, id, d); err != nil {
		return nil, err
	}
	updated, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("order updated",
		zap.Uint64("id", id), zap.String("status", string(updated.CurrentStatus)), zap.Uint64("actor", actor.UserID))
	s.bus.OrderUpdated(ctx, updated)
	return updated, nil
}

// Finalize is the only destructive operation exposed and it does not
// actually destroy anything: the order is forced to COMPLETED with a
// fresh completion stamp and kept for the history views. For
// compatibility with listeners that expect removal semantics an
// order:deleted event is emitted carrying just the order id.
func (s *OrderService) Finalize(ctx context.Context, actor Actor, id uint64) (*model.ServiceOrder, error) {
	if !perm.Allowed(actor.Role, perm.ActionDeleteOS) {
		return nil, ErrDenied
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	now := s.now()
	status := model.StatusCompleted
	d := model.OrderDelta{CurrentStatus: &status, CompletedAt: &now, UpdatedAt: now}
	if err := s.store.Update(ctx, id, d); err != nil {
		return nil, err
	}
	updated, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("order finalized", zap.Uint64("id", id), zap.Uint64("actor", actor.UserID))
	s.bus.OrderDeleted(ctx, id)
	return updated, nil
}

// Get returns one hydrated order.
func (s *OrderService) Get(ctx context.Context, id uint64) (*model.ServiceOrder, error) {
	return s.store.GetByID(ctx, id)
}

// ListOpen returns the open board. The store already orders by
// priority, but its enum ordering has silently diverged from the
// intended URGENT-first rank before, so the result is re-sorted in
// memory against the fixed ranking.
func (s *OrderService) ListOpen(ctx context.Context, f model.OrderFilter) ([]model.ServiceOrder, error) {
	orders, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	sortByPriority(orders)
	return orders, nil
}

// ListHistory returns completed orders, newest completion first.
func (s *OrderService) ListHistory(ctx context.Context, dr model.DateRange, f model.OrderFilter) ([]model.ServiceOrder, error) {
	return s.store.ListCompleted(ctx, dr, f)
}

// sortByPriority sorts by the fixed priority rank, then createdAt
// ascending, then id for a stable tie-break.
func sortByPriority(orders []model.ServiceOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := &orders[i], &orders[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
