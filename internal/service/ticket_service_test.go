package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/psds-microservice/triage-service/internal/errs"
	"github.com/psds-microservice/triage-service/internal/model"
	"gorm.io/gorm"
)

type recordedEvent struct {
	name    string
	payload map[string]any
}

type fakeProducer struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeProducer) ProduceTicketEvent(_ context.Context, event string, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{name: event, payload: payload})
}

func (f *fakeProducer) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.name)
	}
	return out
}

func TestNotConfigured(t *testing.T) {
	svc := NewTicketService(nil, nil)
	ctx := context.Background()

	calls := map[string]func() error{
		"list":     func() error { _, err := svc.ListActive(ctx); return err },
		"get":      func() error { _, err := svc.Get(ctx, "x"); return err },
		"history":  func() error { _, err := svc.History(ctx, "x"); return err },
		"status":   func() error { return svc.SetStatus(ctx, "x", model.StatusResolved) },
		"priority": func() error { return svc.SetPriority(ctx, "x", model.PriorityHigh) },
		"delete":   func() error { return svc.SoftDelete(ctx, "x") },
		"clear":    func() error { return svc.Clear(ctx) },
		"seed":     func() error { _, err := svc.Seed(ctx, nil); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			if errs.KindOf(err) != errs.KindNotConfigured {
				t.Fatalf("expected not_configured, got %v", err)
			}
			if !errors.Is(err, errs.ErrNotConfigured) {
				t.Fatalf("errors.Is(ErrNotConfigured) = false for %v", err)
			}
		})
	}
}

func TestNonUUIDIsNotFound(t *testing.T) {
	// Идентификаторы локальных демо-заявок не уходят в БД.
	svc := NewTicketService(&gorm.DB{}, nil)
	ctx := context.Background()
	if err := svc.SetStatus(ctx, "t-mock-1", model.StatusResolved); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := svc.Get(ctx, "t-mock-1"); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("Get: %v", err)
	}
	msgs, err := svc.History(ctx, "t-mock-1")
	if err != nil || len(msgs) != 0 {
		t.Fatalf("History: %v %v", msgs, err)
	}
}
