package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hospmaint/os-manager/internal/model"
	"github.com/hospmaint/os-manager/internal/repository"
)

// ── in-memory OrderStore ──

type memOrderStore struct {
	orders map[uint64]*model.ServiceOrder
	nextID uint64
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[uint64]*model.ServiceOrder), nextID: 1}
}

func (m *memOrderStore) Insert(_ context.Context, o *model.ServiceOrder) error {
	o.ID = m.nextID
	m.nextID++
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderStore) Update(_ context.Context, id uint64, d model.OrderDelta) error {
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if d.OSNumber != nil {
		o.OSNumber = *d.OSNumber
	}
	if d.ClientName != nil {
		o.ClientName = *d.ClientName
	}
	if d.EquipmentName != nil {
		o.EquipmentName = *d.EquipmentName
	}
	if d.EquipmentClass != nil {
		o.EquipmentClass = *d.EquipmentClass
	}
	if d.SerialNumber != nil {
		o.SerialNumber = *d.SerialNumber
	}
	if d.Accessories != nil {
		o.Accessories = *d.Accessories
	}
	if d.HasPreviousDefect != nil {
		o.HasPreviousDefect = *d.HasPreviousDefect
	}
	if d.PreviousDefectDescription != nil {
		o.PreviousDefectDescription = *d.PreviousDefectDescription
	}
	if d.OptionalDescription != nil {
		o.OptionalDescription = *d.OptionalDescription
	}
	if d.Priority != nil {
		o.Priority = *d.Priority
	}
	if d.CurrentStatus != nil {
		o.CurrentStatus = *d.CurrentStatus
	}
	if d.ClearAssigned {
		o.AssignedToUserID = nil
	} else if d.AssignedToUserID != nil {
		o.AssignedToUserID = d.AssignedToUserID
	}
	if d.ClearCompleted {
		o.CompletedAt = nil
	} else if d.CompletedAt != nil {
		t := *d.CompletedAt
		o.CompletedAt = &t
	}
	o.UpdatedAt = d.UpdatedAt
	return nil
}

func (m *memOrderStore) GetByID(_ context.Context, id uint64) (*model.ServiceOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderStore) List(_ context.Context, f model.OrderFilter) ([]model.ServiceOrder, error) {
	out := make([]model.ServiceOrder, 0)
	for _, o := range m.orders {
		if f.Status != "" {
			if o.CurrentStatus != f.Status {
				continue
			}
		} else if o.CurrentStatus == model.StatusCompleted {
			continue
		}
		if f.Priority != "" && o.Priority != f.Priority {
			continue
		}
		if f.ClientName != "" && !strings.Contains(strings.ToLower(o.ClientName), strings.ToLower(f.ClientName)) {
			continue
		}
		if f.EquipmentName != "" && !strings.Contains(strings.ToLower(o.EquipmentName), strings.ToLower(f.EquipmentName)) {
			continue
		}
		out = append(out, *o)
	}
	// Deliberately returned in id order, not priority order, so the
	// engine's in-memory re-sort is actually exercised.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memOrderStore) ListCompleted(_ context.Context, dr model.DateRange, f model.OrderFilter) ([]model.ServiceOrder, error) {
	out := make([]model.ServiceOrder, 0)
	for _, o := range m.orders {
		if o.CurrentStatus != model.StatusCompleted || o.CompletedAt == nil {
			continue
		}
		if dr.Start != nil && o.CompletedAt.Before(*dr.Start) {
			continue
		}
		if dr.End != nil && o.CompletedAt.After(*dr.End) {
			continue
		}
		if f.Status != "" && o.CurrentStatus != f.Status {
			continue
		}
		if f.Priority != "" && o.Priority != f.Priority {
			continue
		}
		if f.ClientName != "" && !strings.Contains(strings.ToLower(o.ClientName), strings.ToLower(f.ClientName)) {
			continue
		}
		if f.EquipmentName != "" && !strings.Contains(strings.ToLower(o.EquipmentName), strings.ToLower(f.EquipmentName)) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(*out[j].CompletedAt) })
	return out, nil
}

func (m *memOrderStore) Touch(_ context.Context, id uint64, at time.Time) error {
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.UpdatedAt = at
	return nil
}

// ── in-memory CommentStore ──

type memCommentStore struct {
	comments []model.Comment
	nextID   uint64
}

func newMemCommentStore() *memCommentStore { return &memCommentStore{nextID: 1} }

func (m *memCommentStore) Insert(_ context.Context, c *model.Comment) error {
	c.ID = m.nextID
	m.nextID++
	m.comments = append(m.comments, *c)
	return nil
}

// ── recording Broadcaster ──

type recordedEvent struct {
	name    string
	orderID uint64
}

type recordingBus struct {
	events []recordedEvent
}

func (b *recordingBus) OrderCreated(_ context.Context, o *model.ServiceOrder) {
	b.events = append(b.events, recordedEvent{"order:created", o.ID})
}
func (b *recordingBus) OrderUpdated(_ context.Context, o *model.ServiceOrder) {
	b.events = append(b.events, recordedEvent{"order:updated", o.ID})
}
func (b *recordingBus) OrderDeleted(_ context.Context, orderID uint64) {
	b.events = append(b.events, recordedEvent{"order:deleted", orderID})
}
func (b *recordingBus) CommentAdded(_ context.Context, _ *model.Comment, orderID uint64) {
	b.events = append(b.events, recordedEvent{"comment:added", orderID})
}

func (b *recordingBus) names() []string {
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.name
	}
	return out
}
