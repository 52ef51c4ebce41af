package controller

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/triage-service/internal/botrelay"
	"github.com/psds-microservice/triage-service/internal/errs"
	"github.com/psds-microservice/triage-service/internal/mapper"
	"github.com/psds-microservice/triage-service/internal/model"
	"github.com/psds-microservice/triage-service/internal/realtime"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const (
	idA = "11111111-1111-1111-1111-111111111111"
	idB = "22222222-2222-2222-2222-222222222222"
	idC = "33333333-3333-3333-3333-333333333333"
)

// fakeTickets: хранилище заявок в памяти.
type fakeTickets struct {
	mu        sync.Mutex
	rows      map[string]model.ComplaintRow
	messages  map[string][]model.MessageRow
	listErr   error
	deleteErr error
	// getHook вызывается после чтения строки, до возврата результата.
	getHook   func(id string)
	// writeHook вызывается перед записью статуса или приоритета.
	writeHook func(field string, value string) error
	seeded    int
	cleared   int
}

func newFakeTickets(rows ...model.ComplaintRow) *fakeTickets {
	f := &fakeTickets{rows: map[string]model.ComplaintRow{}, messages: map[string][]model.MessageRow{}}
	for _, r := range rows {
		f.rows[r.ID] = r
	}
	return f
}

func row(id string, status model.TicketStatus, age time.Duration) model.ComplaintRow {
	return model.ComplaintRow{
		ID: id, UserID: 42, Username: "@citizen", Category: "Дороги",
		Description: "Яма", Status: string(status), Priority: string(model.PriorityMedium),
		CreatedAt: testNow.Add(-age),
	}
}

func (f *fakeTickets) ListActive(context.Context) ([]model.ComplaintRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.ComplaintRow
	for _, r := range f.rows {
		if !r.IsDeleted {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTickets) Get(_ context.Context, id string) (*model.ComplaintRow, error) {
	f.mu.Lock()
	r, ok := f.rows[id]
	hook := f.getHook
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	if !ok {
		return nil, errs.ErrTicketNotFound
	}
	return &r, nil
}

func (f *fakeTickets) History(_ context.Context, id string) ([]model.MessageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id], nil
}

func (f *fakeTickets) update(field, id, value string) error {
	f.mu.Lock()
	hook := f.writeHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(field, value); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return errs.ErrTicketNotFound
	}
	if field == model.FieldStatus {
		r.Status = value
	} else {
		r.Priority = value
	}
	f.rows[id] = r
	return nil
}

func (f *fakeTickets) SetStatus(_ context.Context, id string, s model.TicketStatus) error {
	return f.update(model.FieldStatus, id, string(s))
}

func (f *fakeTickets) SetPriority(_ context.Context, id string, p model.Priority) error {
	return f.update(model.FieldPriority, id, string(p))
}

func (f *fakeTickets) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	r, ok := f.rows[id]
	if !ok {
		return errs.ErrTicketNotFound
	}
	r.IsDeleted = true
	f.rows[id] = r
	return nil
}

func (f *fakeTickets) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = map[string]model.ComplaintRow{}
	f.messages = map[string][]model.MessageRow{}
	f.cleared++
	return nil
}

func (f *fakeTickets) Seed(_ context.Context, tickets []model.Ticket) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = map[string]model.ComplaintRow{}
	var ids []string
	for _, t := range tickets {
		r := mapper.RowFromTicket(t)
		r.ID = uuid.NewString()
		f.rows[r.ID] = r
		ids = append(ids, r.ID)
	}
	f.seeded++
	return ids, nil
}

func (f *fakeTickets) setRow(r model.ComplaintRow) {
	f.mu.Lock()
	f.rows[r.ID] = r
	f.mu.Unlock()
}

type fakeFeed struct {
	mu     sync.Mutex
	cb     func(realtime.Change)
	err    error
	closed bool
}

func (f *fakeFeed) Subscribe(_ context.Context, cb func(realtime.Change)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cb = cb
	return nil
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeFeed) emit(t realtime.ChangeType, id string) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	cb(realtime.Change{Type: t, TicketID: id})
}

type fakeRelay struct {
	mu       sync.Mutex
	err      error
	requests []botrelay.ReplyRequest
}

func (r *fakeRelay) Reply(_ context.Context, req botrelay.ReplyRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.requests = append(r.requests, req)
	return "key", nil
}

type fakeArchive struct {
	names []string
}

func (a *fakeArchive) Put(_ context.Context, ticketID, name, _ string, _ []byte) (string, error) {
	a.names = append(a.names, ticketID+"/"+name)
	return "http://minio.test/replies/" + ticketID + "/" + name, nil
}

type fakeBotURL struct {
	mu  sync.Mutex
	url string
}

func (b *fakeBotURL) Get() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url
}

func (b *fakeBotURL) Set(_ context.Context, url string) error {
	b.mu.Lock()
	b.url = url
	b.mu.Unlock()
	return nil
}

type harness struct {
	c       *Controller
	tickets *fakeTickets
	feed    *fakeFeed
	relay   *fakeRelay
	archive *fakeArchive
	bot     *fakeBotURL
}

func newHarness(t *testing.T, rows ...model.ComplaintRow) *harness {
	t.Helper()
	h := &harness{
		tickets: newFakeTickets(rows...),
		feed:    &fakeFeed{},
		relay:   &fakeRelay{},
		archive: &fakeArchive{},
		bot:     &fakeBotURL{},
	}
	h.c = New(Options{
		Connector: func(context.Context) (*Backend, error) {
			return &Backend{Tickets: h.tickets, Changes: h.feed}, nil
		},
		Relay:   h.relay,
		Archive: h.archive,
		BotURL:  h.bot,
		Now:     func() time.Time { return testNow },
	})
	t.Cleanup(func() { _ = h.c.Close() })
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	if err := h.c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
