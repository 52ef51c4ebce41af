package controller

import (
	"sync"
	"sync/atomic"
)

// Типы событий для подписчиков (SSE).
const (
	EventState         = "state"
	EventNotice        = "notice"
	EventTicket        = "ticket"
	EventTicketRemoved = "ticket_removed"
	EventTickets       = "tickets"
	EventResync        = "resync"
)

// subscriberChannelSize: буфер на подписчика; при переполнении событие
// отбрасывается, а подписчик помечается на resync.
const subscriberChannelSize = 256

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Subscription: один подключённый поток событий.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	resync atomic.Bool
	done   chan struct{}
	once   sync.Once
}

// TakeResync сообщает, терялись ли события с прошлого вызова, и сбрасывает флаг.
func (s *Subscription) TakeResync() bool {
	return s.resync.Swap(false)
}

// Done закрывается при Unsubscribe.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Hub раздаёт события контроллера всем подписчикам.
type Hub struct {
	mu          sync.Mutex
	subscribers []*Subscription
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, subscriberChannelSize)
	s := &Subscription{C: ch, ch: ch, done: make(chan struct{})}
	h.mu.Lock()
	h.subscribers = append(h.subscribers, s)
	h.mu.Unlock()
	return s
}

func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	for i, existing := range h.subscribers {
		if existing == s {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}

// Publish не блокируется: медленный подписчик теряет событие и получает resync.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subscribers {
		select {
		case s.ch <- e:
		default:
			s.resync.Store(true)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
