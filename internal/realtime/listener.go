// Package realtime доставляет изменения таблицы complaints через
// PostgreSQL LISTEN/NOTIFY.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/psds-microservice/triage-service/internal/errs"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	// ChangeResync: соединение переподключилось, часть уведомлений могла потеряться.
	ChangeResync ChangeType = "RESYNC"
)

type Change struct {
	Type     ChangeType `json:"type"`
	TicketID string     `json:"id"`
}

var ErrAlreadySubscribed = errors.New("realtime: subscription already active")

const (
	minReconnect = time.Second
	maxReconnect = 30 * time.Second
	pingInterval = 90 * time.Second
)

// Listener держит одну подписку на канал уведомлений.
type Listener struct {
	dsn     string
	channel string

	mu     sync.Mutex
	pql    *pq.Listener
	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener(dsn, channel string) *Listener {
	return &Listener{dsn: dsn, channel: channel}
}

// Subscribe начинает слушать канал и вызывает cb на каждое изменение, пока
// не отменён ctx или не вызван Close. Колбэк выполняется в горутине слушателя.
func (l *Listener) Subscribe(ctx context.Context, cb func(Change)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pql != nil {
		return ErrAlreadySubscribed
	}

	pql := pq.NewListener(l.dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			slog.Warn("realtime: connection attempt failed", "channel", l.channel, "error", err)
		case pq.ListenerEventDisconnected:
			slog.Warn("realtime: disconnected", "channel", l.channel, "error", err)
		case pq.ListenerEventReconnected:
			slog.Info("realtime: reconnected", "channel", l.channel)
		}
	})
	if err := pql.Listen(l.channel); err != nil {
		_ = pql.Close()
		return errs.Wrap(errs.KindRemote, "realtime listen "+l.channel, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.pql = pql
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.loop(runCtx, pql, cb, l.done)
	slog.Info("realtime: subscribed", "channel", l.channel)
	return nil
}

func (l *Listener) loop(ctx context.Context, pql *pq.Listener, cb func(Change), done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = pql.Close()
			return
		case n, ok := <-pql.Notify:
			if !ok {
				return
			}
			if n == nil {
				cb(Change{Type: ChangeResync})
				continue
			}
			ch, err := ParsePayload(n.Extra)
			if err != nil {
				slog.Warn("realtime: bad payload", "channel", n.Channel, "payload", n.Extra, "error", err)
				continue
			}
			cb(ch)
		case <-ticker.C:
			go func() {
				if err := pql.Ping(); err != nil {
					slog.Debug("realtime: ping", "error", err)
				}
			}()
		}
	}
}

// Close останавливает подписку и ждёт завершения горутины слушателя.
func (l *Listener) Close() error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.pql, l.cancel, l.done = nil, nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// ParsePayload разбирает JSON, который пишет триггер complaints_notify.
func ParsePayload(payload string) (Change, error) {
	var ch Change
	if err := json.Unmarshal([]byte(payload), &ch); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	ch.Type = ChangeType(strings.ToUpper(string(ch.Type)))
	switch ch.Type {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
	default:
		return Change{}, fmt.Errorf("unknown change type %q", ch.Type)
	}
	if ch.TicketID == "" {
		return Change{}, errors.New("change without id")
	}
	return ch, nil
}
