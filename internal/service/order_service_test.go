package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hospmaint/os-manager/internal/model"
	"github.com/hospmaint/os-manager/internal/perm"
	"github.com/hospmaint/os-manager/internal/repository"
)

var (
	admin     = Actor{UserID: 1, Role: perm.RoleAdmin}
	reception = Actor{UserID: 2, Role: perm.RoleReception}
	tech      = Actor{UserID: 3, Role: perm.RoleTech}
)

func newTestOrderService() (*OrderService, *memOrderStore, *recordingBus) {
	store := newMemOrderStore()
	bus := &recordingBus{}
	svc := NewOrderService(store, bus, zap.NewNop())
	return svc, store, bus
}

func mustCreate(t *testing.T, svc *OrderService, in CreateOrderInput) *model.ServiceOrder {
	t.Helper()
	o, err := svc.Create(context.Background(), reception, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return o
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, _, bus := newTestOrderService()
	o := mustCreate(t, svc, CreateOrderInput{
		OSNumber: "01-02-2026-0001", ClientName: "UTI - Leito 03", EquipmentName: "Monitor",
	})
	if o.Priority != model.PriorityMedium {
		t.Errorf("priority = %s, want MEDIUM", o.Priority)
	}
	if o.CurrentStatus != model.StatusReceived {
		t.Errorf("status = %s, want RECEIVED", o.CurrentStatus)
	}
	if o.CompletedAt != nil {
		t.Error("completedAt must be nil on a fresh order")
	}
	if o.CreatedByUserID == nil || *o.CreatedByUserID != reception.UserID {
		t.Error("createdByUserId must record the actor")
	}
	if got := bus.names(); len(got) != 1 || got[0] != "order:created" {
		t.Errorf("events = %v, want [order:created]", got)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, bus := newTestOrderService()
	cases := []struct {
		name string
		in   CreateOrderInput
	}{
		{"missing osNumber", CreateOrderInput{ClientName: "c", EquipmentName: "e"}},
		{"missing clientName", CreateOrderInput{OSNumber: "1", EquipmentName: "e"}},
		{"missing equipmentName", CreateOrderInput{OSNumber: "1", ClientName: "c"}},
		{"defect without description", CreateOrderInput{
			OSNumber: "1", ClientName: "c", EquipmentName: "e", HasPreviousDefect: true,
		}},
		{"defect with blank description", CreateOrderInput{
			OSNumber: "1", ClientName: "c", EquipmentName: "e",
			HasPreviousDefect: true, PreviousDefectDescription: "   ",
		}},
		{"bad priority", CreateOrderInput{
			OSNumber: "1", ClientName: "c", EquipmentName: "e", Priority: "ASAP",
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), admin, c.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
	if len(bus.events) != 0 {
		t.Error("rejected creates must not broadcast")
	}
}

func TestCreatePermission(t *testing.T) {
	svc, _, _ := newTestOrderService()
	_, err := svc.Create(context.Background(), tech, CreateOrderInput{
		OSNumber: "1", ClientName: "c", EquipmentName: "e",
	})
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied (tech lacks CREATE_OS)", err)
	}
}

func TestUpdateStampsCompletion(t *testing.T) {
	svc, _, bus := newTestOrderService()
	o := mustCreate(t, svc, CreateOrderInput{OSNumber: "1", ClientName: "c", EquipmentName: "e"})

	status := model.StatusCompleted
	updated, err := svc.Update(context.Background(), tech, o.ID, model.OrderDelta{CurrentStatus: &status})
	if err != nil {
		t.Fatalf("update: %v (tech holds COMPLETE_OS)", err)
	}
	if updated.CurrentStatus != model.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", updated.CurrentStatus)
	}
	if updated.CompletedAt == nil {
		t.Fatal("completedAt must be stamped on completion")
	}
	if got := bus.names(); got[len(got)-1] != "order:updated" {
		t.Errorf("last event = %s, want order:updated", got[len(got)-1])
	}
}

func TestReopenClearsCompletionAndNeedsGrant(t *testing.T) {
	svc, _, _ := newTestOrderService()
	o := mustCreate(t, svc, CreateOrderInput{OSNumber: "1", ClientName: "c", EquipmentName: "e"})

	done := model.StatusCompleted
	if _, err := svc.Update(context.Background(), admin, o.ID, model.OrderDelta{CurrentStatus: &done}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	back := model.StatusInProgress
	if _, err := svc.Update(context.Background(), tech, o.ID, model.OrderDelta{CurrentStatus: &back}); !errors.Is(err, ErrDenied) {
		t.Fatalf("tech reopen err = %v, want ErrDenied", err)
	}

	reopened, err := svc.Update(context.Background(), admin, o.ID, model.OrderDelta{CurrentStatus: &back})
	if err != nil {
		t.Fatalf("admin reopen: %v", err)
	}
	if reopened.CurrentStatus != model.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", reopened.CurrentStatus)
	}
	if reopened.CompletedAt != nil {
		t.Error("completedAt must be cleared on reopen")
	}
}

func TestUpdateDefectInvariantOnMergedView(t *testing.T) {
	svc, _, _ := newTestOrderService()
	o := mustCreate(t, svc, CreateOrderInput{OSNumber: "1", ClientName: "c", EquipmentName: "e"})

	flag := true
	_, err := svc.Update(context.Background(), admin, o.ID, model.OrderDelta{HasPreviousDefect: &flag})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError (flag set, no description)", err)
	}

	desc := "known issue"
	if _, err := svc.Update(context.Background(), admin, o.ID, model.OrderDelta{
		HasPreviousDefect: &flag, PreviousDefectDescription: &desc,
	}); err != nil {
		t.Fatalf("update with description: %v", err)
	}

	// Blanking the description while the stored flag stays set must
	// also be rejected.
	blank := ""
	_, err = svc.Update(context.Background(), admin, o.ID, model.OrderDelta{PreviousDefectDescription: &blank})
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError (stored flag, blanked description)", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc, _, _ := newTestOrderService()
	_, err := svc.Update(context.Background(), admin, 999, model.OrderDelta{})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFinalizeSoftCompletes(t *testing.T) {
	svc, store, bus := newTestOrderService()
	o := mustCreate(t, svc, CreateOrderInput{OSNumber: "1", ClientName: "c", EquipmentName: "e"})

	if _, err := svc.Finalize(context.Background(), reception, o.ID); !errors.Is(err, ErrDenied) {
		t.Fatalf("reception finalize err = %v, want ErrDenied", err)
	}

	final, err := svc.Finalize(context.Background(), admin, o.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.CurrentStatus != model.StatusCompleted || final.CompletedAt == nil {
		t.Error("finalize must complete the order and stamp completedAt")
	}
	if _, err := store.GetByID(context.Background(), o.ID); err != nil {
		t.Error("finalize must keep the row (soft delete)")
	}
	if got := bus.names(); got[len(got)-1] != "order:deleted" {
		t.Errorf("last event = %s, want order:deleted", got[len(got)-1])
	}
}

func TestListOpenPriorityOrdering(t *testing.T) {
	svc, _, _ := newTestOrderService()
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	tick := base
	svc.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	// Created in deliberately shuffled priority order.
	mustCreate(t, svc, CreateOrderInput{OSNumber: "a", ClientName: "c", EquipmentName: "e", Priority: model.PriorityLow})
	mustCreate(t, svc, CreateOrderInput{OSNumber: "b", ClientName: "c", EquipmentName: "e", Priority: model.PriorityUrgent})
	mustCreate(t, svc, CreateOrderInput{OSNumber: "c", ClientName: "c", EquipmentName: "e", Priority: model.PriorityMedium})
	mustCreate(t, svc, CreateOrderInput{OSNumber: "d", ClientName: "c", EquipmentName: "e", Priority: model.PriorityHigh})
	mustCreate(t, svc, CreateOrderInput{OSNumber: "e", ClientName: "c", EquipmentName: "e", Priority: model.PriorityUrgent})

	orders, err := svc.ListOpen(context.Background(), model.OrderFilter{})
	if err != nil {
		t.Fatalf("listOpen: %v", err)
	}
	got := make([]string, len(orders))
	for i, o := range orders {
		got[i] = o.OSNumber
	}
	// URGENT first in creation order, then HIGH, MEDIUM, LOW.
	want := []string{"b", "e", "d", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestListHistoryAppliesBoundsAndFilters(t *testing.T) {
	svc, _, _ := newTestOrderService()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := base
	svc.now = func() time.Time {
		tick = tick.Add(time.Hour)
		return tick
	}

	done := model.StatusCompleted
	completedAt := make(map[string]time.Time)
	complete := func(osNumber string, p model.Priority) {
		t.Helper()
		o := mustCreate(t, svc, CreateOrderInput{
			OSNumber: osNumber, ClientName: "c", EquipmentName: "e", Priority: p,
		})
		u, err := svc.Update(context.Background(), admin, o.ID, model.OrderDelta{CurrentStatus: &done})
		if err != nil {
			t.Fatalf("complete %s: %v", osNumber, err)
		}
		completedAt[osNumber] = *u.CompletedAt
	}
	complete("h1", model.PriorityMedium)
	complete("h2", model.PriorityMedium)
	complete("h3", model.PriorityHigh)

	numbers := func(orders []model.ServiceOrder) []string {
		out := make([]string, len(orders))
		for i, o := range orders {
			out[i] = o.OSNumber
		}
		return out
	}

	// Start bound is inclusive and cuts off the older completion.
	start := completedAt["h2"]
	hist, err := svc.ListHistory(context.Background(), model.DateRange{Start: &start}, model.OrderFilter{})
	if err != nil {
		t.Fatalf("listHistory start: %v", err)
	}
	if got := numbers(hist); len(got) != 2 || got[0] != "h3" || got[1] != "h2" {
		t.Errorf("start-bounded history = %v, want [h3 h2] newest first", got)
	}

	// End bound is inclusive and cuts off the newer completion.
	end := completedAt["h2"]
	hist, err = svc.ListHistory(context.Background(), model.DateRange{End: &end}, model.OrderFilter{})
	if err != nil {
		t.Fatalf("listHistory end: %v", err)
	}
	if got := numbers(hist); len(got) != 2 || got[0] != "h2" || got[1] != "h1" {
		t.Errorf("end-bounded history = %v, want [h2 h1]", got)
	}

	// A specified priority filter constrains history like it does the
	// open board.
	hist, err = svc.ListHistory(context.Background(), model.DateRange{}, model.OrderFilter{Priority: model.PriorityHigh})
	if err != nil {
		t.Fatalf("listHistory priority: %v", err)
	}
	if got := numbers(hist); len(got) != 1 || got[0] != "h3" {
		t.Errorf("priority-filtered history = %v, want [h3]", got)
	}
}

func TestCompletedOrdersMoveToHistory(t *testing.T) {
	svc, _, _ := newTestOrderService()
	o := mustCreate(t, svc, CreateOrderInput{
		OSNumber: "01-02-2026-0001", ClientName: "UTI - Leito 03", EquipmentName: "Monitor",
		Priority: model.PriorityHigh, HasPreviousDefect: true, PreviousDefectDescription: "known issue",
	})
	if o.CurrentStatus != model.StatusReceived || o.CompletedAt != nil {
		t.Fatal("fresh order must start open")
	}

	done := model.StatusCompleted
	updated, err := svc.Update(context.Background(), admin, o.ID, model.OrderDelta{CurrentStatus: &done})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Fatal("completedAt must be set")
	}

	open, err := svc.ListOpen(context.Background(), model.OrderFilter{})
	if err != nil {
		t.Fatalf("listOpen: %v", err)
	}
	for _, oo := range open {
		if oo.ID == o.ID {
			t.Error("completed order must leave the open board")
		}
	}

	hist, err := svc.ListHistory(context.Background(), model.DateRange{}, model.OrderFilter{})
	if err != nil {
		t.Fatalf("listHistory: %v", err)
	}
	found := false
	for _, oo := range hist {
		if oo.ID == o.ID {
			found = true
		}
	}
	if !found {
		t.Error("completed order must appear in history")
	}
}
