package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// События изменения заявок.
const (
	EventStatusChanged   = "ticket.status_changed"
	EventPriorityChanged = "ticket.priority_changed"
	EventDeleted         = "ticket.deleted"
	EventRepublished     = "ticket.snapshot"
	EventCleared         = "tickets.cleared"
	EventSeeded          = "tickets.seeded"
)

const writeTimeout = 5 * time.Second

// TicketEventProducer: интерфейс для отправки событий заявки в Kafka (для подмены в тестах).
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, payload map[string]any)
}

// Producer пишет события заявок в топик Kafka (best-effort, не блокирует API).
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer создаёт продюсер. Если brokers пустой или topic пустой: методы no-op.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Enabled() bool { return p != nil && p.writer != nil }

// ProduceTicketEvent отправляет событие в фоне с таймаутом writeTimeout.
// Ключ сообщения: ticket_id, чтобы события одной заявки шли в одну партицию.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, payload map[string]any) {
	if !p.Enabled() {
		return
	}
	msg, err := encodeEvent(event, payload, time.Now())
	if err != nil {
		slog.Warn("kafka: marshal ticket event", "event", event, "error", err)
		return
	}
	go func() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		if err := p.writer.WriteMessages(wctx, msg); err != nil {
			slog.Warn("kafka: write ticket event", "event", event, "topic", p.topic, "error", err)
		}
	}()
}

// ProduceTicketEventSync пишет событие и ждёт подтверждения (для CLI republish).
func (p *Producer) ProduceTicketEventSync(ctx context.Context, event string, payload map[string]any) error {
	if !p.Enabled() {
		return nil
	}
	msg, err := encodeEvent(event, payload, time.Now())
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func encodeEvent(event string, payload map[string]any, at time.Time) (kafka.Message, error) {
	body := map[string]any{"event": event, "occurred_at": at.UTC().Format(time.RFC3339)}
	for k, v := range payload {
		body[k] = v
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{Value: raw}
	if id, ok := payload["ticket_id"].(string); ok && id != "" {
		msg.Key = []byte(id)
	}
	return msg, nil
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}

// ParseBrokers разбивает строку брокеров "host1:9092,host2:9092" на слайс.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
