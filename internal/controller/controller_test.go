package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/triage-service/internal/botrelay"
	"github.com/psds-microservice/triage-service/internal/errs"
	"github.com/psds-microservice/triage-service/internal/model"
	"github.com/psds-microservice/triage-service/internal/realtime"
	"github.com/psds-microservice/triage-service/internal/seed"
	"github.com/psds-microservice/triage-service/internal/view"
)

var ctx = context.Background()

func status(t *testing.T, c *Controller, id string) model.TicketStatus {
	t.Helper()
	tk, err := c.Ticket(id)
	if err != nil {
		t.Fatalf("Ticket(%s): %v", id, err)
	}
	return tk.Status
}

func TestNewStartsOfflineWithDemo(t *testing.T) {
	h := newHarness(t)
	st := h.c.State()
	if st.State != StateDisconnected {
		t.Errorf("state = %s", st.State)
	}
	if got, want := len(h.c.Tickets()), len(seed.Demo(testNow)); got != want {
		t.Errorf("tickets = %d, want %d", got, want)
	}
}

func TestConnectMirrorsDatabase(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1), row(idB, model.StatusInWork, 2))
	h.connect(t)

	st := h.c.State()
	if st.State != StateConnected || st.Notice != "" {
		t.Fatalf("state = %+v", st)
	}
	ts := h.c.Tickets()
	if len(ts) != 2 || ts[0].ID != idA || ts[1].ID != idB {
		t.Fatalf("tickets = %+v", ts)
	}
	if h.feed.cb == nil {
		t.Error("realtime subscription not started")
	}
}

func TestConnectEmptyDatabase(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	if n := len(h.c.Tickets()); n != 0 {
		t.Errorf("connected to empty database, tickets = %d", n)
	}
}

func TestConnectFailures(t *testing.T) {
	schema := &errs.Error{Kind: errs.KindSchemaMismatch, Msg: errs.SchemaHint}
	tests := []struct {
		name       string
		connector  Connector
		wantNotice string
	}{
		{"nil connector", nil, ""},
		{"schema mismatch", func(context.Context) (*Backend, error) { return nil, schema }, NoticeSchemaOutdate},
		{"unreachable", func(context.Context) (*Backend, error) { return nil, errors.New("dial tcp: refused") }, "Ошибка подключения: dial tcp: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Options{Connector: tt.connector, Now: func() time.Time { return testNow }})
			defer c.Close()
			if err := c.Connect(ctx); err == nil {
				t.Fatal("Connect succeeded")
			}
			st := c.State()
			if st.State != StateDisconnected {
				t.Errorf("state = %s", st.State)
			}
			if tt.wantNotice != "" && st.Notice != tt.wantNotice {
				t.Errorf("notice = %q, want %q", st.Notice, tt.wantNotice)
			}
			if len(c.Tickets()) == 0 {
				t.Error("demo tickets dropped on failed connect")
			}
		})
	}
}

func TestConnectListFailureClosesBackend(t *testing.T) {
	h := newHarness(t)
	h.tickets.listErr = &errs.Error{Kind: errs.KindSchemaMismatch, Msg: errs.SchemaHint}
	if err := h.c.Connect(ctx); errs.KindOf(err) != errs.KindSchemaMismatch {
		t.Fatalf("err = %v", err)
	}
	if !h.feed.closed {
		t.Error("backend not closed after failed list")
	}
	if h.c.State().Notice != NoticeSchemaOutdate {
		t.Errorf("notice = %q", h.c.State().Notice)
	}
}

func TestConnectSubscribeFailureKeepsConnection(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1))
	h.feed.err = errors.New("listen: permission denied")
	h.connect(t)
	st := h.c.State()
	if st.State != StateConnected || st.Notice == "" {
		t.Errorf("state = %+v", st)
	}
}

func TestReconnectClosesPreviousBackend(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1))
	h.connect(t)
	first := h.feed
	h.feed = &fakeFeed{}
	h.connect(t)
	if !first.closed {
		t.Error("previous feed not closed")
	}
}

func TestSetStatusOffline(t *testing.T) {
	h := newHarness(t)
	tk, err := h.c.SetStatus(ctx, "t-mock-1", model.StatusResolved)
	if err != nil {
		t.Fatal(err)
	}
	if tk.Status != model.StatusResolved || len(tk.Pending) != 0 {
		t.Errorf("ticket = %+v", tk)
	}
	if _, err := h.c.SetStatus(ctx, "t-mock-1", "archived"); errs.KindOf(err) != errs.KindValidation {
		t.Errorf("unknown status err = %v", err)
	}
	if _, err := h.c.SetStatus(ctx, "missing", model.StatusNew); errs.KindOf(err) != errs.KindNotFound {
		t.Errorf("missing ticket err = %v", err)
	}
}

func TestSetStatusCommitsRemote(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1))
	h.connect(t)
	tk, err := h.c.SetStatus(ctx, idA, model.StatusResolved)
	if err != nil {
		t.Fatal(err)
	}
	if tk.Status != model.StatusResolved || tk.IsPending(model.FieldStatus) {
		t.Errorf("ticket = %+v", tk)
	}
	if got := h.tickets.rows[idA].Status; got != string(model.StatusResolved) {
		t.Errorf("remote status = %s", got)
	}
}

func TestSetPriorityRevertsOnFailure(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1))
	h.connect(t)
	h.tickets.writeHook = func(string, string) error { return errors.New("connection reset") }

	tk, err := h.c.SetPriority(ctx, idA, model.PriorityCritical)
	if err == nil {
		t.Fatal("expected error")
	}
	if tk.Priority != model.PriorityMedium || tk.IsPending(model.FieldPriority) {
		t.Errorf("ticket after failed write = %+v", tk)
	}
}

func TestNewerWriteWinsOverFailedOlder(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1))
	h.connect(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	h.tickets.writeHook = func(_, value string) error {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-release
			return errors.New("timeout")
		}
		return nil
	}

	errc := make(chan error, 1)
	go func() {
		_, err := h.c.SetStatus(ctx, idA, model.StatusResolved)
		errc <- err
	}()
	<-started
	tk, _ := h.c.Ticket(idA)
	if tk.Status != model.StatusResolved || !tk.IsPending(model.FieldStatus) {
		t.Fatalf("optimistic ticket = %+v", tk)
	}

	if _, err := h.c.SetStatus(ctx, idA, model.StatusRejected); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-errc; err == nil {
		t.Error("older write should report its error")
	}
	if got := status(t, h.c, idA); got != model.StatusRejected {
		t.Errorf("status = %s, want rejected", got)
	}
}

func TestMove(t *testing.T) {
	h := newHarness(t)
	tk, err := h.c.Move(ctx, "t-mock-1", view.GroupCategory, "Мусор")
	if err != nil {
		t.Fatal(err)
	}
	before := tk
	if tk, err = h.c.Move(ctx, "t-mock-1", view.GroupPriority, "low"); err != nil || tk.Priority != model.PriorityLow {
		t.Errorf("priority move = %+v, %v", tk, err)
	}
	if tk, err = h.c.Move(ctx, "t-mock-1", view.GroupStatus, "in_work"); err != nil || tk.Status != model.StatusInWork {
		t.Errorf("status move = %+v, %v", tk, err)
	}
	if before.Category != tk.Category {
		t.Error("category move changed the ticket")
	}
}

func TestSoftDelete(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1), row(idB, model.StatusNew, 2))
	h.connect(t)

	if err := h.c.SoftDelete(ctx, idA); err != nil {
		t.Fatal(err)
	}
	if _, err := h.c.Ticket(idA); errs.KindOf(err) != errs.KindNotFound {
		t.Errorf("deleted ticket still listed: %v", err)
	}
	if !h.tickets.rows[idA].IsDeleted {
		t.Error("remote row not soft-deleted")
	}

	h.tickets.deleteErr = errors.New("boom")
	if err := h.c.SoftDelete(ctx, idB); err == nil {
		t.Fatal("expected error")
	}
	tk, err := h.c.Ticket(idB)
	if err != nil || tk.IsPending(model.FieldIsDeleted) {
		t.Errorf("ticket after failed delete = %+v, %v", tk, err)
	}
}

func TestSoftDeleteOffline(t *testing.T) {
	h := newHarness(t)
	if err := h.c.SoftDelete(ctx, "t-mock-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.c.Ticket("t-mock-1"); err == nil {
		t.Error("ticket not removed")
	}
}

func TestChangeInsertUpdateDelete(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 2))
	h.connect(t)

	h.tickets.setRow(row(idB, model.StatusNew, 1))
	h.feed.emit(realtime.ChangeInsert, idB)
	eventually(t, "inserted ticket", func() bool { _, err := h.c.Ticket(idB); return err == nil })
	if h.c.State().Notice != NoticeNewTicket {
		t.Errorf("notice = %q", h.c.State().Notice)
	}
	if ts := h.c.Tickets(); ts[0].ID != idB {
		t.Errorf("newest ticket = %s", ts[0].ID)
	}

	r := row(idA, model.StatusInWork, 2)
	h.tickets.setRow(r)
	h.feed.emit(realtime.ChangeUpdate, idA)
	eventually(t, "updated status", func() bool { return status(t, h.c, idA) == model.StatusInWork })

	r.IsDeleted = true
	h.tickets.setRow(r)
	h.feed.emit(realtime.ChangeUpdate, idA)
	eventually(t, "soft-deleted ticket removed", func() bool { _, err := h.c.Ticket(idA); return err != nil })

	h.feed.emit(realtime.ChangeDelete, idB)
	if _, err := h.c.Ticket(idB); err == nil {
		t.Error("deleted ticket still listed")
	}
}

func TestStaleRowFetchDiscarded(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1))
	h.connect(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.tickets.getHook = func(string) {
		close(entered)
		<-release
	}
	h.feed.emit(realtime.ChangeUpdate, idA)
	<-entered
	h.tickets.getHook = nil

	h.tickets.setRow(row(idA, model.StatusInWork, 1))
	if err := h.c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	close(release)
	h.c.wg.Wait()

	if got := status(t, h.c, idA); got != model.StatusInWork {
		t.Errorf("status = %s, stale fetch overwrote newer list", got)
	}
}

func TestResyncRefreshesList(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1))
	h.connect(t)
	h.tickets.setRow(row(idC, model.StatusNew, 0))
	h.feed.emit(realtime.ChangeResync, "")
	eventually(t, "resync", func() bool { return len(h.c.Tickets()) == 2 })
}

func TestReplyValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		text string
		file *botrelay.File
	}{
		{"empty", "  ", nil},
		{"not an image", "", &botrelay.File{Name: "a.pdf", ContentType: "application/pdf"}},
	}
	for _, tt := range tests {
		if _, err := h.c.Reply(ctx, "t-mock-1", tt.text, tt.file); errs.KindOf(err) != errs.KindValidation {
			t.Errorf("%s: err = %v", tt.name, err)
		}
	}
}

func TestReplyLocalTicket(t *testing.T) {
	h := newHarness(t)
	before, _ := h.c.Ticket("t-mock-1")
	tk, err := h.c.Reply(ctx, "t-mock-1", "Принято", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tk.History) != len(before.History)+1 || tk.Status != before.Status {
		t.Errorf("ticket = %+v", tk)
	}
	if len(h.relay.requests) != 0 {
		t.Error("local ticket reply went to the bot")
	}
}

func TestReplyPersistedTicket(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1))
	h.connect(t)

	file := &botrelay.File{Name: "fix.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	tk, err := h.c.Reply(ctx, idA, "", file)
	if err != nil {
		t.Fatal(err)
	}
	if tk.Status != model.StatusInWork {
		t.Errorf("status = %s", tk.Status)
	}
	last := tk.History[len(tk.History)-1]
	if last.Text != "Отправлено фото" || last.Sender != model.SenderOperator {
		t.Errorf("message = %+v", last)
	}
	if len(last.Attachments) != 1 || last.Attachments[0].URL != "http://minio.test/replies/"+idA+"/fix.png" {
		t.Errorf("attachments = %+v", last.Attachments)
	}
	if len(h.relay.requests) != 1 || h.relay.requests[0].TicketID != idA || h.relay.requests[0].File != file {
		t.Errorf("relay requests = %+v", h.relay.requests)
	}

	h.relay.err = &errs.Error{Kind: errs.KindRelay, Msg: "chat not found"}
	if _, err := h.c.Reply(ctx, idA, "ещё", nil); errs.KindOf(err) != errs.KindRelay {
		t.Errorf("relay failure err = %v", err)
	}
	after, _ := h.c.Ticket(idA)
	if len(after.History) != len(tk.History) {
		t.Error("failed reply appended a message")
	}
}

func TestHistory(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusInWork, 1))
	local, err := h.c.History(ctx, "t-mock-2")
	if err != nil || len(local) == 0 {
		t.Fatalf("local history = %v, %v", local, err)
	}

	h.tickets.messages[idA] = []model.MessageRow{
		{ID: "m1", TicketID: idA, Sender: "user", MessageText: "Когда починят?", CreatedAt: testNow},
		{ID: "m2", TicketID: idA, Sender: "operator", MessageText: "Завтра", CreatedAt: testNow},
	}
	h.connect(t)
	msgs, err := h.c.History(ctx, idA)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[1].Sender != model.SenderOperator {
		t.Errorf("history = %+v", msgs)
	}
	tk, _ := h.c.Ticket(idA)
	if len(tk.History) != 2 {
		t.Error("history not kept on ticket")
	}
}

func TestSeedAndClearOffline(t *testing.T) {
	h := newHarness(t)
	if err := h.c.Seed(ctx, SeedGenerated); err != nil {
		t.Fatal(err)
	}
	if n := len(h.c.Tickets()); n != seed.DefaultGenerated {
		t.Errorf("generated = %d", n)
	}
	if err := h.c.Seed(ctx, "lots"); errs.KindOf(err) != errs.KindValidation {
		t.Errorf("unknown mode err = %v", err)
	}
	if err := h.c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(h.c.Tickets()); n != 0 {
		t.Errorf("after clear = %d", n)
	}
}

func TestSeedAndClearConnected(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, 1))
	h.connect(t)
	if err := h.c.Seed(ctx, SeedDemo); err != nil {
		t.Fatal(err)
	}
	if h.tickets.seeded != 1 {
		t.Error("remote seed not called")
	}
	if got, want := len(h.c.Tickets()), len(seed.Demo(testNow)); got != want {
		t.Errorf("tickets = %d, want %d", got, want)
	}
	if h.c.State().Notice != NoticeSeeded {
		t.Errorf("notice = %q", h.c.State().Notice)
	}
	if err := h.c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if h.tickets.cleared != 1 || len(h.c.Tickets()) != 0 {
		t.Errorf("cleared = %d, tickets = %d", h.tickets.cleared, len(h.c.Tickets()))
	}
}

func TestSimulate(t *testing.T) {
	h := newHarness(t)
	tk, err := h.c.Simulate()
	if err != nil {
		t.Fatal(err)
	}
	if ts := h.c.Tickets(); ts[0].ID != tk.ID || tk.Status != model.StatusNew {
		t.Errorf("simulated ticket not first: %+v", tk)
	}
	h.connect(t)
	if _, err := h.c.Simulate(); errs.KindOf(err) != errs.KindValidation {
		t.Errorf("connected simulate err = %v", err)
	}
}

func TestSetBotBaseURLReresolvesAttachments(t *testing.T) {
	r := row(idA, model.StatusNew, 1)
	r.Photos = []string{"AgACAgIAAxkBAAIB"}
	h := newHarness(t, r)
	h.connect(t)

	tk, _ := h.c.Ticket(idA)
	if tk.Attachments[0].URL != "https://placehold.co/600x400?text=No+image" {
		t.Fatalf("unresolved url = %s", tk.Attachments[0].URL)
	}
	if err := h.c.SetBotBaseURL(ctx, "bot.local:8080"); err != nil {
		t.Fatalf("url without scheme: %v", err)
	}
	tk, _ = h.c.Ticket(idA)
	if got := tk.Attachments[0].URL; got != "bot.local:8080/images/AgACAgIAAxkBAAIB" {
		t.Errorf("url without scheme resolved to %s", got)
	}
	if err := h.c.SetBotBaseURL(ctx, "http://bot.test:8080/"); err != nil {
		t.Fatal(err)
	}
	tk, _ = h.c.Ticket(idA)
	if got := tk.Attachments[0].URL; got != "http://bot.test:8080/images/AgACAgIAAxkBAAIB" {
		t.Errorf("resolved url = %s", got)
	}
	if h.c.State().BotBaseURL != "http://bot.test:8080/" {
		t.Errorf("bot url = %s", h.c.State().BotBaseURL)
	}
}

func TestEventsPublished(t *testing.T) {
	h := newHarness(t)
	sub := h.c.Hub().Subscribe()
	defer h.c.Hub().Unsubscribe(sub)

	if _, err := h.c.SetStatus(ctx, "t-mock-1", model.StatusInWork); err != nil {
		t.Fatal(err)
	}
	e := <-sub.C
	if e.Type != EventTicket {
		t.Errorf("event = %s", e.Type)
	}
	if err := h.c.SoftDelete(ctx, "t-mock-1"); err != nil {
		t.Fatal(err)
	}
	if e := <-sub.C; e.Type != EventTicketRemoved {
		t.Errorf("event = %s", e.Type)
	}
}

func TestWriteSucceedsWhenTicketDeletedMeanwhile(t *testing.T) {
	h := newHarness(t, row(idA, model.StatusNew, time.Hour))
	h.connect(t)

	var once sync.Once
	h.tickets.writeHook = func(string, string) error {
		once.Do(func() {
			if err := h.c.SoftDelete(ctx, idA); err != nil {
				t.Errorf("SoftDelete: %v", err)
			}
		})
		return nil
	}

	tk, err := h.c.SetStatus(ctx, idA, model.StatusResolved)
	if err != nil {
		t.Fatalf("SetStatus after concurrent delete: %v", err)
	}
	if tk.ID != idA || tk.Status != model.StatusResolved || tk.IsPending(model.FieldStatus) {
		t.Errorf("returned ticket = %+v", tk)
	}
	if _, err := h.c.Ticket(idA); errs.KindOf(err) != errs.KindNotFound {
		t.Errorf("deleted ticket is still on the board: %v", err)
	}
}
