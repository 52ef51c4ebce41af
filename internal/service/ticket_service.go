package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/psds-microservice/triage-service/internal/errs"
	"github.com/psds-microservice/triage-service/internal/kafka"
	"github.com/psds-microservice/triage-service/internal/mapper"
	"github.com/psds-microservice/triage-service/internal/model"
	"gorm.io/gorm"
)

// TicketServicer: доступ к заявкам, который нужен контроллеру (Dependency Inversion).
type TicketServicer interface {
	ListActive(ctx context.Context) ([]model.ComplaintRow, error)
	Get(ctx context.Context, id string) (*model.ComplaintRow, error)
	History(ctx context.Context, ticketID string) ([]model.MessageRow, error)
	SetStatus(ctx context.Context, id string, status model.TicketStatus) error
	SetPriority(ctx context.Context, id string, priority model.Priority) error
	SoftDelete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Seed(ctx context.Context, tickets []model.Ticket) ([]string, error)
}

// TicketService работает с таблицами complaints и ticket_messages.
// Хэндл БД передаётся явно; без него каждый вызов возвращает errs.KindNotConfigured.
type TicketService struct {
	db     *gorm.DB
	events kafka.TicketEventProducer
}

func NewTicketService(db *gorm.DB, events kafka.TicketEventProducer) *TicketService {
	return &TicketService{db: db, events: events}
}

func (s *TicketService) ready(op string) error {
	if s == nil || s.db == nil {
		return &errs.Error{Kind: errs.KindNotConfigured, Op: op, Msg: errs.ErrNotConfigured.Msg}
	}
	return nil
}

func (s *TicketService) publish(ctx context.Context, event string, payload map[string]any) {
	if s.events == nil {
		return
	}
	s.events.ProduceTicketEvent(ctx, event, payload)
}

// ListActive возвращает неудалённые заявки, новые сверху. Без пагинации.
func (s *TicketService) ListActive(ctx context.Context) ([]model.ComplaintRow, error) {
	const op = "list tickets"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	var rows []model.ComplaintRow
	err := s.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errs.FromDB(op, err)
	}
	return rows, nil
}

// Get возвращает строку независимо от флага удаления.
func (s *TicketService) Get(ctx context.Context, id string) (*model.ComplaintRow, error) {
	const op = "get ticket"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if !isUUID(id) {
		return nil, notFound(op)
	}
	var row model.ComplaintRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, errs.FromDB(op, err)
	}
	return &row, nil
}

func (s *TicketService) History(ctx context.Context, ticketID string) ([]model.MessageRow, error) {
	const op = "ticket history"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if !isUUID(ticketID) {
		return []model.MessageRow{}, nil
	}
	var rows []model.MessageRow
	err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errs.FromDB(op, err)
	}
	return rows, nil
}

func (s *TicketService) SetStatus(ctx context.Context, id string, status model.TicketStatus) error {
	if err := s.updateColumn(ctx, "set status", id, model.FieldStatus, string(status)); err != nil {
		return err
	}
	s.publish(ctx, kafka.EventStatusChanged, map[string]any{"ticket_id": id, "status": status})
	return nil
}

func (s *TicketService) SetPriority(ctx context.Context, id string, priority model.Priority) error {
	if err := s.updateColumn(ctx, "set priority", id, model.FieldPriority, string(priority)); err != nil {
		return err
	}
	s.publish(ctx, kafka.EventPriorityChanged, map[string]any{"ticket_id": id, "priority": priority})
	return nil
}

// SoftDelete помечает заявку удалённой; переписка остаётся.
func (s *TicketService) SoftDelete(ctx context.Context, id string) error {
	if err := s.updateColumn(ctx, "delete ticket", id, model.FieldIsDeleted, true); err != nil {
		return err
	}
	s.publish(ctx, kafka.EventDeleted, map[string]any{"ticket_id": id})
	return nil
}

// updateColumn пишет ровно одну колонку; остальные поля строки не трогаются.
func (s *TicketService) updateColumn(ctx context.Context, op, id, column string, value any) error {
	if err := s.ready(op); err != nil {
		return err
	}
	if !isUUID(id) {
		return notFound(op)
	}
	res := s.db.WithContext(ctx).
		Model(&model.ComplaintRow{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return errs.FromDB(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(op)
	}
	return nil
}

// Clear удаляет всю переписку и все заявки одной транзакцией.
func (s *TicketService) Clear(ctx context.Context) error {
	const op = "clear tickets"
	if err := s.ready(op); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Transaction(clearTx); err != nil {
		return errs.FromDB(op, err)
	}
	s.publish(ctx, kafka.EventCleared, nil)
	return nil
}

func clearTx(tx *gorm.DB) error {
	if err := tx.Where("1 = 1").Delete(&model.MessageRow{}).Error; err != nil {
		return err
	}
	return tx.Where("1 = 1").Delete(&model.ComplaintRow{}).Error
}

// Seed заменяет содержимое БД переданным набором (вместе с перепиской)
// и возвращает id созданных заявок в порядке набора.
func (s *TicketService) Seed(ctx context.Context, tickets []model.Ticket) ([]string, error) {
	const op = "seed tickets"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tickets))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearTx(tx); err != nil {
			return err
		}
		for _, t := range tickets {
			row := mapper.RowFromTicket(t)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			ids = append(ids, row.ID)
			for _, m := range t.History {
				msg := mapper.MessageRowFromChat(row.ID, m)
				if err := tx.Create(&msg).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, errs.FromDB(op, err)
	}
	s.publish(ctx, kafka.EventSeeded, map[string]any{"count": len(ids)})
	return ids, nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFound(op string) error {
	return &errs.Error{Kind: errs.KindNotFound, Op: op, Msg: errs.ErrTicketNotFound.Msg}
}
