package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/hospmaint/os-manager/internal/model"
	"github.com/hospmaint/os-manager/internal/repository"
)

func newTestCommentService() (*CommentService, *OrderService, *memOrderStore, *recordingBus) {
	store := newMemOrderStore()
	bus := &recordingBus{}
	orders := NewOrderService(store, bus, zap.NewNop())
	comments := NewCommentService(newMemCommentStore(), store, bus, zap.NewNop())
	return comments, orders, store, bus
}

func TestAddCommentAppendsAndTouchesOrder(t *testing.T) {
	comments, orders, store, bus := newTestCommentService()
	o := mustCreate(t, orders, CreateOrderInput{OSNumber: "1", ClientName: "c", EquipmentName: "e"})
	before := o.UpdatedAt

	c, err := comments.Add(context.Background(), tech, o.ID, model.CommentDiagnosis, "conector solto, precisa ressolda")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if c.ID == 0 || c.ServiceOrderID != o.ID {
		t.Error("comment not persisted against the order")
	}
	if c.UserID == nil || *c.UserID != tech.UserID {
		t.Error("comment must record its author")
	}

	stored, err := store.GetByID(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.UpdatedAt.After(before) && !stored.UpdatedAt.Equal(before) {
		t.Error("parent order updatedAt must be bumped")
	}
	if got := bus.names(); got[len(got)-1] != "comment:added" {
		t.Errorf("last event = %s, want comment:added", got[len(got)-1])
	}
}

func TestAddCommentValidation(t *testing.T) {
	comments, orders, _, bus := newTestCommentService()
	o := mustCreate(t, orders, CreateOrderInput{OSNumber: "1", ClientName: "c", EquipmentName: "e"})
	emitted := len(bus.events)

	var ve *ValidationError
	if _, err := comments.Add(context.Background(), admin, o.ID, "GOSSIP", "x"); !errors.As(err, &ve) {
		t.Errorf("bad type err = %v, want ValidationError", err)
	}
	if _, err := comments.Add(context.Background(), admin, o.ID, model.CommentNote, "  "); !errors.As(err, &ve) {
		t.Errorf("blank content err = %v, want ValidationError", err)
	}
	if _, err := comments.Add(context.Background(), Actor{UserID: 9, Role: "visitor"}, o.ID, model.CommentNote, "x"); !errors.Is(err, ErrDenied) {
		t.Errorf("unknown role err = %v, want ErrDenied", err)
	}
	if _, err := comments.Add(context.Background(), admin, 999, model.CommentNote, "x"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing order err = %v, want ErrNotFound", err)
	}
	if len(bus.events) != emitted {
		t.Error("rejected comments must not broadcast")
	}
}
