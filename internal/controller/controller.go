// Package controller держит канонический список заявок дашборда, режим
// подключения к БД и применяет к списку действия оператора и изменения из БД.
package controller

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/triage-service/internal/botrelay"
	"github.com/psds-microservice/triage-service/internal/catalog"
	"github.com/psds-microservice/triage-service/internal/errs"
	"github.com/psds-microservice/triage-service/internal/mapper"
	"github.com/psds-microservice/triage-service/internal/metrics"
	"github.com/psds-microservice/triage-service/internal/model"
	"github.com/psds-microservice/triage-service/internal/realtime"
	"github.com/psds-microservice/triage-service/internal/seed"
	"github.com/psds-microservice/triage-service/internal/service"
	"github.com/psds-microservice/triage-service/internal/view"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Режимы заполнения тестовыми данными.
const (
	SeedDemo      = "demo"
	SeedGenerated = "generated"
)

// Тексты уведомлений оператору.
const (
	NoticeNewTicket     = "Новая заявка из Telegram!"
	NoticeCleared       = "База данных полностью очищена."
	NoticeSeeded        = "Тестовые данные загружены!"
	NoticeSchemaOutdate = "Требуется обновление БД! Запустите `triage-service migrate up`."
	defaultPhotoText    = "Отправлено фото"
)

// Таймаут дозагрузки строки по уведомлению из БД.
const changeFetchTimeout = 15 * time.Second

var ErrSuperseded = errors.New("connect superseded by a newer attempt")

// ChangeFeed: поток изменений таблицы заявок.
type ChangeFeed interface {
	Subscribe(ctx context.Context, cb func(realtime.Change)) error
	Close() error
}

// Backend: подключённое хранилище. Changes и Close могут быть nil.
type Backend struct {
	Tickets service.TicketServicer
	Changes ChangeFeed
	Close   func() error
}

// Connector открывает новое подключение к хранилищу.
type Connector func(ctx context.Context) (*Backend, error)

type Relay interface {
	Reply(ctx context.Context, r botrelay.ReplyRequest) (string, error)
}

type Archiver interface {
	Put(ctx context.Context, ticketID, name, contentType string, data []byte) (string, error)
}

type BotURLStore interface {
	Get() string
	Set(ctx context.Context, url string) error
}

type Options struct {
	Catalog   *catalog.Catalog
	Connector Connector
	Relay     Relay
	// Archive: необязательный архив вложений ответов.
	Archive Archiver
	BotURL  BotURLStore
	Hub     *Hub
	Now     func() time.Time
	Rand    *rand.Rand
	Logger  *slog.Logger
}

// Snapshot: состояние подключения для /admin/state и SSE.
type Snapshot struct {
	State      State  `json:"state"`
	Notice     string `json:"notice,omitempty"`
	Tickets    int    `json:"tickets"`
	BotBaseURL string `json:"bot_base_url"`
}

// rowMark: номер последней применённой выборки строки; removed: строка удалена.
type rowMark struct {
	seq     uint64
	removed bool
}

type Controller struct {
	cat     *catalog.Catalog
	connect Connector
	relay   Relay
	archive Archiver
	botURL  BotURLStore
	hub     *Hub
	now     func() time.Time
	logger  *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	// seq нумерует выборки и записи; более старые ответы отбрасываются.
	seq atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	notice  string
	backend *Backend
	gen     uint64
	tickets []model.Ticket
	listSeq uint64
	rows    map[string]rowMark
	writes  map[string]uint64
}

// New создаёт контроллер в офлайн-режиме с демонстрационным набором заявок.
func New(opts Options) *Controller {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cat:     opts.Catalog,
		connect: opts.Connector,
		relay:   opts.Relay,
		archive: opts.Archive,
		botURL:  opts.BotURL,
		hub:     opts.Hub,
		now:     opts.Now,
		logger:  opts.Logger.With("component", "controller"),
		rng:     opts.Rand,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateDisconnected,
		rows:    make(map[string]rowMark),
		writes:  make(map[string]uint64),
	}
	c.tickets = seed.Demo(c.now())
	return c
}

func (c *Controller) Hub() *Hub                  { return c.hub }
func (c *Controller) Catalog() *catalog.Catalog { return c.cat }

func (c *Controller) resolver() mapper.Resolver {
	if c.botURL == nil {
		return mapper.Resolver{}
	}
	return mapper.Resolver{BaseURL: c.botURL.Get()}
}

func (c *Controller) BotBaseURL() string {
	return c.resolver().BaseURL
}

func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{State: c.state, Notice: c.notice, Tickets: len(c.tickets), BotBaseURL: c.BotBaseURL()}
}

// Tickets возвращает копию списка, новые сверху.
func (c *Controller) Tickets() []model.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Ticket, len(c.tickets))
	for i, t := range c.tickets {
		out[i] = t.Clone()
	}
	return out
}

func (c *Controller) Ticket(id string) (model.Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return model.Ticket{}, notFound("get ticket")
	}
	return c.tickets[i].Clone(), nil
}

// Close отключает хранилище и дожидается фоновых выборок.
func (c *Controller) Close() error {
	c.cancel()
	c.mu.Lock()
	old := c.backend
	c.backend = nil
	c.gen++
	c.state = StateDisconnected
	c.mu.Unlock()
	err := closeBackend(old)
	c.wg.Wait()
	return err
}

// Connect (пере)подключается к хранилищу: закрывает прежнее подключение,
// загружает активные заявки и подписывается на изменения. Ошибка подписки
// не роняет подключение, а только показывается оператору.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	old := c.backend
	c.backend = nil
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.notice = ""
	c.publishStateLocked()
	c.mu.Unlock()

	if err := closeBackend(old); err != nil {
		c.logger.Warn("close previous backend", "error", err)
	}
	if c.connect == nil {
		err := errs.New(errs.KindNotConfigured, "connect", errs.ErrNotConfigured.Msg)
		c.fail(gen, err)
		return err
	}

	b, err := c.connect(ctx)
	if err != nil {
		c.fail(gen, err)
		return err
	}
	n := c.seq.Add(1)
	rows, err := b.Tickets.ListActive(ctx)
	if err != nil {
		_ = closeBackend(b)
		c.fail(gen, err)
		return err
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		_ = closeBackend(b)
		return ErrSuperseded
	}
	c.backend = b
	c.state = StateConnected
	c.applyListLocked(n, rows)
	c.publishStateLocked()
	c.mu.Unlock()
	c.logger.Info("connected", "tickets", len(rows))

	if b.Changes != nil {
		err := b.Changes.Subscribe(c.ctx, func(ch realtime.Change) { c.onChange(gen, ch) })
		if err != nil {
			c.logger.Warn("realtime subscribe failed", "error", err)
			c.setNotice(gen, "Realtime недоступен: "+err.Error())
		}
	}
	return nil
}

func (c *Controller) fail(gen uint64, err error) {
	c.logger.Error("connect failed", "error", err)
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.state = StateDisconnected
	c.notice = noticeFor(err)
	c.publishStateLocked()
}

func noticeFor(err error) string {
	if errs.KindOf(err) == errs.KindSchemaMismatch {
		return NoticeSchemaOutdate
	}
	return "Ошибка подключения: " + err.Error()
}

func (c *Controller) setNotice(gen uint64, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.notice = msg
	c.hub.Publish(Event{Type: EventNotice, Data: map[string]string{"message": msg}})
}

func closeBackend(b *Backend) error {
	if b == nil {
		return nil
	}
	var err error
	if b.Changes != nil {
		err = b.Changes.Close()
	}
	if b.Close != nil {
		err = errors.Join(err, b.Close())
	}
	return err
}

// live возвращает хранилище, если контроллер подключён.
func (c *Controller) live() (*Backend, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.backend == nil {
		return nil, c.gen, false
	}
	return c.backend, c.gen, true
}

// Refresh перечитывает активные заявки целиком. Офлайн ничего не делает.
func (c *Controller) Refresh(ctx context.Context) error {
	b, gen, ok := c.live()
	if !ok {
		return nil
	}
	n := c.seq.Add(1)
	rows, err := b.Tickets.ListActive(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.applyListLocked(n, rows)
	}
	return nil
}

// applyListLocked применяет полную выборку с номером n. Строки, для которых
// уже применено что-то новее n, остаются в локальном виде.
func (c *Controller) applyListLocked(n uint64, rows []model.ComplaintRow) {
	if n < c.listSeq {
		metrics.StaleFetch()
		return
	}
	c.listSeq = n
	local := make(map[string]model.Ticket, len(c.tickets))
	for _, t := range c.tickets {
		local[t.ID] = t
	}
	r := c.resolver()
	seen := make(map[string]bool, len(rows))
	out := make([]model.Ticket, 0, len(rows))
	for _, row := range rows {
		seen[row.ID] = true
		if mark, ok := c.rows[row.ID]; ok && mark.seq > n {
			if cur, ok := local[row.ID]; ok && !mark.removed {
				out = append(out, cur)
			}
			continue
		}
		t := mapper.TicketFromRow(row, r)
		if cur, ok := local[row.ID]; ok {
			t = mergeLocal(cur, t)
		}
		out = append(out, t)
	}
	// строки, пришедшие после начала выборки
	for _, t := range c.tickets {
		if seen[t.ID] {
			continue
		}
		if mark, ok := c.rows[t.ID]; ok && mark.seq > n && !mark.removed {
			out = append(out, t)
		}
	}
	for id, mark := range c.rows {
		if mark.seq <= n {
			delete(c.rows, id)
		}
	}
	sortNewestFirst(out)
	c.tickets = out
	c.publishTicketsLocked()
}

// applyRowLocked применяет выборку одной строки с номером n; row == nil: строка удалена.
func (c *Controller) applyRowLocked(n uint64, id string, row *model.ComplaintRow) bool {
	if n < c.listSeq || n < c.rows[id].seq {
		metrics.StaleFetch()
		return false
	}
	if row == nil || row.IsDeleted {
		c.rows[id] = rowMark{seq: n, removed: true}
		c.removeLocked(id)
		return true
	}
	c.rows[id] = rowMark{seq: n}
	t := mapper.TicketFromRow(*row, c.resolver())
	if i := c.indexLocked(id); i >= 0 {
		c.tickets[i] = mergeLocal(c.tickets[i], t)
		c.publishTicketLocked(c.tickets[i])
		return true
	}
	c.tickets = append(c.tickets, t)
	sortNewestFirst(c.tickets)
	c.publishTicketLocked(t)
	return true
}

// mergeLocal переносит в свежую строку поля, ждущие подтверждения записи,
// и загруженную историю переписки.
func mergeLocal(cur, fresh model.Ticket) model.Ticket {
	for _, f := range cur.Pending {
		switch f {
		case model.FieldStatus:
			fresh.Status = cur.Status
		case model.FieldPriority:
			fresh.Priority = cur.Priority
		}
	}
	fresh.Pending = append([]string(nil), cur.Pending...)
	if len(fresh.History) == 0 {
		fresh.History = cur.History
	}
	return fresh
}

func (c *Controller) onChange(gen uint64, ch realtime.Change) {
	metrics.RealtimeEvent(string(ch.Type))
	c.mu.Lock()
	if gen != c.gen || c.backend == nil {
		c.mu.Unlock()
		return
	}
	b := c.backend
	c.mu.Unlock()

	switch ch.Type {
	case realtime.ChangeResync:
		c.background(func(ctx context.Context) {
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("resync failed", "error", err)
			}
		})
	case realtime.ChangeDelete:
		n := c.seq.Add(1)
		c.mu.Lock()
		if gen == c.gen {
			c.applyRowLocked(n, ch.TicketID, nil)
		}
		c.mu.Unlock()
	case realtime.ChangeInsert, realtime.ChangeUpdate:
		n := c.seq.Add(1)
		c.background(func(ctx context.Context) {
			row, err := b.Tickets.Get(ctx, ch.TicketID)
			if err != nil && errs.KindOf(err) != errs.KindNotFound {
				c.logger.Warn("fetch changed ticket", "ticket_id", ch.TicketID, "error", err)
				return
			}
			if err != nil {
				row = nil
			}
			c.mu.Lock()
			defer c.mu.Unlock()
			if gen != c.gen {
				return
			}
			applied := c.applyRowLocked(n, ch.TicketID, row)
			if applied && ch.Type == realtime.ChangeInsert && row != nil && !row.IsDeleted {
				c.notice = NoticeNewTicket
				c.hub.Publish(Event{Type: EventNotice, Data: map[string]string{"message": NoticeNewTicket}})
			}
		})
	default:
		c.logger.Debug("unknown change type", "type", ch.Type)
	}
}

func (c *Controller) background(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, changeFetchTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (c *Controller) SetStatus(ctx context.Context, id string, status model.TicketStatus) (model.Ticket, error) {
	if !c.cat.ValidStatus(status) {
		return model.Ticket{}, errs.Validation("unknown status %q", status)
	}
	return c.writeField(ctx, id, model.FieldStatus,
		func(t *model.Ticket) func(*model.Ticket) {
			prev := t.Status
			t.Status = status
			return func(t *model.Ticket) { t.Status = prev }
		},
		func(ctx context.Context, s service.TicketServicer) error { return s.SetStatus(ctx, id, status) })
}

func (c *Controller) SetPriority(ctx context.Context, id string, priority model.Priority) (model.Ticket, error) {
	if !c.cat.ValidPriority(priority) {
		return model.Ticket{}, errs.Validation("unknown priority %q", priority)
	}
	return c.writeField(ctx, id, model.FieldPriority,
		func(t *model.Ticket) func(*model.Ticket) {
			prev := t.Priority
			t.Priority = priority
			return func(t *model.Ticket) { t.Priority = prev }
		},
		func(ctx context.Context, s service.TicketServicer) error { return s.SetPriority(ctx, id, priority) })
}

// Move применяет перенос карточки в колонку target при группировке g.
// В группировке по категории заявка не меняется.
func (c *Controller) Move(ctx context.Context, id string, g view.Grouping, target string) (model.Ticket, error) {
	field, ok := view.MoveTarget(g, target)
	if !ok {
		return c.Ticket(id)
	}
	if field == model.FieldPriority {
		return c.SetPriority(ctx, id, model.Priority(target))
	}
	return c.SetStatus(ctx, id, model.TicketStatus(target))
}

// writeField: оптимистичное изменение, удалённая запись, затем подтверждение
// или откат. Откат выполняется, только если после этой записи не начиналась
// более новая запись того же поля.
func (c *Controller) writeField(
	ctx context.Context,
	id, field string,
	mutate func(*model.Ticket) func(*model.Ticket),
	remote func(context.Context, service.TicketServicer) error,
) (model.Ticket, error) {
	const op = "update ticket"
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return model.Ticket{}, notFound(op)
	}
	revert := mutate(&c.tickets[i])
	if c.state != StateConnected || c.backend == nil {
		t := c.tickets[i].Clone()
		c.publishTicketLocked(t)
		c.mu.Unlock()
		return t, nil
	}
	b := c.backend
	key := id + "/" + field
	token := c.seq.Add(1)
	c.writes[key] = token
	addPending(&c.tickets[i], field)
	c.publishTicketLocked(c.tickets[i])
	last := c.tickets[i].Clone()
	c.mu.Unlock()

	err := remote(ctx, b.Tickets)

	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.writes[key] == token
	if current {
		delete(c.writes, key)
	}
	i = c.indexLocked(id)
	if i < 0 {
		// заявку удалили, пока шла запись: запись прошла, возвращаем последнее известное состояние
		if err != nil {
			return model.Ticket{}, err
		}
		removePending(&last, field)
		return last, nil
	}
	if current {
		removePending(&c.tickets[i], field)
		if err != nil {
			revert(&c.tickets[i])
		} else {
			c.commitRowLocked(id)
		}
		c.publishTicketLocked(c.tickets[i])
	}
	if err != nil {
		c.logger.Warn("remote write failed", "ticket_id", id, "field", field, "error", err)
		return c.tickets[i].Clone(), err
	}
	return c.tickets[i].Clone(), nil
}

// commitRowLocked отмечает подтверждённую запись: выборки, начатые раньше,
// больше не перезапишут строку.
func (c *Controller) commitRowLocked(id string) {
	c.rows[id] = rowMark{seq: c.seq.Add(1)}
}

// SoftDelete помечает заявку удалённой. Подключённым контроллер убирает
// заявку только после подтверждения записи.
func (c *Controller) SoftDelete(ctx context.Context, id string) error {
	const op = "delete ticket"
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return notFound(op)
	}
	if c.state != StateConnected || c.backend == nil {
		c.removeLocked(id)
		c.mu.Unlock()
		return nil
	}
	b := c.backend
	key := id + "/" + model.FieldIsDeleted
	token := c.seq.Add(1)
	c.writes[key] = token
	addPending(&c.tickets[i], model.FieldIsDeleted)
	c.publishTicketLocked(c.tickets[i])
	c.mu.Unlock()

	err := b.Tickets.SoftDelete(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writes[key] != token {
		return err
	}
	delete(c.writes, key)
	if err != nil {
		if i := c.indexLocked(id); i >= 0 {
			removePending(&c.tickets[i], model.FieldIsDeleted)
			c.publishTicketLocked(c.tickets[i])
		}
		c.logger.Warn("remote delete failed", "ticket_id", id, "error", err)
		return err
	}
	c.rows[id] = rowMark{seq: c.seq.Add(1), removed: true}
	c.removeLocked(id)
	return nil
}

// Reply отправляет ответ гражданину через бота. Для заявок, которых нет в БД
// (демо-набор или офлайн), сообщение только добавляется в локальную историю.
func (c *Controller) Reply(ctx context.Context, id, text string, file *botrelay.File) (model.Ticket, error) {
	const op = "reply"
	text = strings.TrimSpace(text)
	if text == "" && file == nil {
		return model.Ticket{}, errs.Validation("reply needs text or a file")
	}
	if file != nil {
		if !strings.HasPrefix(file.ContentType, "image/") {
			return model.Ticket{}, errs.Validation("only images can be attached, got %q", file.ContentType)
		}
		if text == "" {
			text = defaultPhotoText
		}
	}
	if _, err := c.Ticket(id); err != nil {
		return model.Ticket{}, err
	}
	_, _, connected := c.live()
	persisted := connected && isPersistedID(id)

	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    model.SenderOperator,
		Text:      text,
		Timestamp: c.now(),
	}
	var attachmentURL string
	if persisted {
		if c.relay == nil {
			return model.Ticket{}, errs.New(errs.KindNotConfigured, op, "bot relay not configured")
		}
		if file != nil && c.archive != nil {
			u, err := c.archive.Put(ctx, id, file.Name, file.ContentType, file.Data)
			if err != nil {
				c.logger.Warn("archive reply attachment", "ticket_id", id, "error", err)
			} else {
				attachmentURL = u
			}
		}
		if _, err := c.relay.Reply(ctx, botrelay.ReplyRequest{TicketID: id, Text: text, File: file}); err != nil {
			return model.Ticket{}, err
		}
	}
	if file != nil {
		if attachmentURL == "" {
			attachmentURL = "data:" + file.ContentType + ";base64," + base64.StdEncoding.EncodeToString(file.Data)
		}
		msg.Attachments = []model.Attachment{{
			ID: "att-0", Type: model.AttachmentImage, URL: attachmentURL, Name: file.Name,
		}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return model.Ticket{}, notFound(op)
	}
	c.tickets[i].History = append(c.tickets[i].History, msg)
	if persisted {
		c.tickets[i].Status = model.StatusInWork
	}
	c.publishTicketLocked(c.tickets[i])
	return c.tickets[i].Clone(), nil
}

// History возвращает переписку по заявке: из БД, если заявка сохранена и
// контроллер подключён, иначе локальную.
func (c *Controller) History(ctx context.Context, id string) ([]model.ChatMessage, error) {
	t, err := c.Ticket(id)
	if err != nil {
		return nil, err
	}
	local := t.History
	if local == nil {
		local = []model.ChatMessage{}
	}
	b, gen, ok := c.live()
	if !ok || !isPersistedID(id) {
		return local, nil
	}
	rows, err := b.Tickets.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return local, nil
	}
	r := c.resolver()
	msgs := make([]model.ChatMessage, len(rows))
	for i, row := range rows {
		msgs[i] = mapper.MessageFromRow(row, r)
	}
	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 && gen == c.gen {
		c.tickets[i].History = msgs
	}
	c.mu.Unlock()
	return msgs, nil
}

// Seed заполняет хранилище (или локальный список офлайн) тестовыми данными.
func (c *Controller) Seed(ctx context.Context, mode string) error {
	var tickets []model.Ticket
	switch mode {
	case "", SeedDemo:
		tickets = seed.Demo(c.now())
	case SeedGenerated:
		c.rngMu.Lock()
		tickets = seed.Generate(c.rng, c.now(), c.cat, seed.DefaultGenerated)
		c.rngMu.Unlock()
	default:
		return errs.Validation("unknown seed mode %q", mode)
	}

	b, gen, ok := c.live()
	if ok {
		if _, err := b.Tickets.Seed(ctx, tickets); err != nil {
			return err
		}
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		c.setNotice(gen, NoticeSeeded)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(tickets)
	return nil
}

// Clear удаляет все заявки.
func (c *Controller) Clear(ctx context.Context) error {
	b, gen, ok := c.live()
	if ok {
		if err := b.Tickets.Clear(ctx); err != nil {
			return err
		}
	}
	c.mu.Lock()
	if !ok || gen == c.gen {
		c.resetLocked(nil)
	}
	c.mu.Unlock()
	if ok {
		c.setNotice(gen, NoticeCleared)
	}
	return nil
}

// resetLocked заменяет список; выборки, начатые раньше, отбрасываются.
func (c *Controller) resetLocked(tickets []model.Ticket) {
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	sortNewestFirst(tickets)
	c.tickets = tickets
	c.listSeq = c.seq.Add(1)
	c.rows = make(map[string]rowMark)
	c.publishTicketsLocked()
}

// Simulate добавляет синтетическую входящую заявку. Только офлайн.
func (c *Controller) Simulate() (model.Ticket, error) {
	now := c.now()
	t := seed.Simulated(fmt.Sprintf("t-%d", now.UnixMilli()), now)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnected {
		return model.Ticket{}, errs.Validation("simulation is only available in offline mode")
	}
	c.tickets = append([]model.Ticket{t}, c.tickets...)
	c.publishTicketLocked(t)
	return t.Clone(), nil
}

// SetBotBaseURL сохраняет адрес бота и пересчитывает ссылки на вложения.
// Адрес не проверяется: с неверным адресом фото уходят в заглушку,
// а ответы бота завершаются ошибкой relay при отправке.
func (c *Controller) SetBotBaseURL(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if c.botURL == nil {
		return errs.New(errs.KindNotConfigured, "set bot url", "settings store not configured")
	}
	if err := c.botURL.Set(ctx, raw); err != nil {
		return err
	}
	r := c.resolver()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.tickets {
		mapper.Reresolve(&c.tickets[i], r)
	}
	c.publishTicketsLocked()
	c.publishStateLocked()
	return nil
}

func (c *Controller) indexLocked(id string) int {
	for i := range c.tickets {
		if c.tickets[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) removeLocked(id string) {
	i := c.indexLocked(id)
	if i < 0 {
		return
	}
	c.tickets = append(c.tickets[:i], c.tickets[i+1:]...)
	c.hub.Publish(Event{Type: EventTicketRemoved, Data: map[string]string{"id": id}})
}

func (c *Controller) publishTicketLocked(t model.Ticket) {
	c.hub.Publish(Event{Type: EventTicket, Data: t.Clone()})
}

func (c *Controller) publishTicketsLocked() {
	c.hub.Publish(Event{Type: EventTickets, Data: map[string]int{"count": len(c.tickets)}})
}

func (c *Controller) publishStateLocked() {
	c.hub.Publish(Event{Type: EventState, Data: c.snapshotLocked()})
}

func addPending(t *model.Ticket, field string) {
	if !t.IsPending(field) {
		t.Pending = append(t.Pending, field)
	}
}

func removePending(t *model.Ticket, field string) {
	out := t.Pending[:0]
	for _, f := range t.Pending {
		if f != field {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		out = nil
	}
	t.Pending = out
}

func sortNewestFirst(ts []model.Ticket) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].CreatedAt.After(ts[j].CreatedAt) })
}

// isPersistedID: заявки из БД имеют UUID, локальные: нет.
func isPersistedID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFound(op string) error {
	return &errs.Error{Kind: errs.KindNotFound, Op: op, Msg: errs.ErrTicketNotFound.Msg}
}
