package model

import "time"

type TicketStatus string

const (
	StatusNew                 TicketStatus = "new"
	StatusInWork              TicketStatus = "in_work"
	StatusClarificationNeeded TicketStatus = "clarification_needed"
	StatusResolved            TicketStatus = "resolved"
	StatusMeasuresTaken       TicketStatus = "measures_taken"
	StatusNotConfirmed        TicketStatus = "not_confirmed"
	StatusRejected            TicketStatus = "rejected"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type Sender string

const (
	SenderUser     Sender = "user"
	SenderBot      Sender = "bot"
	SenderOperator Sender = "operator"
)

const (
	AttachmentImage    = "image"
	AttachmentDocument = "document"
)

// Поля тикета, которые оператор меняет точечно.
const (
	FieldStatus    = "status"
	FieldPriority  = "priority"
	FieldIsDeleted = "is_deleted"
)

type Attachment struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name"`
	// Ref: ссылка в том виде, в каком она лежит в БД (URL или file_id мессенджера).
	Ref string `json:"ref,omitempty"`
}

type ChatMessage struct {
	ID          string       `json:"id"`
	Sender      Sender       `json:"sender"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Ticket: обращение гражданина в том виде, в каком его видит оператор.
type Ticket struct {
	ID               string `json:"id"`
	TelegramUserID   string `json:"telegram_user_id"`
	TelegramUsername string `json:"telegram_username"`
	ContactPhone     string `json:"contact_phone,omitempty"`

	Category    string         `json:"category"`
	SubCategory string         `json:"sub_category,omitempty"`
	ExtraData   map[string]any `json:"extra_data,omitempty"`

	Location    string       `json:"location,omitempty"`
	Description string       `json:"description"`
	Attachments []Attachment `json:"attachments"`

	Status    TicketStatus `json:"status"`
	Priority  Priority     `json:"priority"`
	IsDeleted bool         `json:"is_deleted,omitempty"`
	CreatedAt time.Time    `json:"created_at"`

	History []ChatMessage `json:"history,omitempty"`

	// Pending: поля с неподтверждённой удалённой записью.
	Pending []string `json:"pending,omitempty"`
}

// Clone возвращает копию, не разделяющую срезы и карты с оригиналом.
func (t Ticket) Clone() Ticket {
	out := t
	if t.Attachments != nil {
		out.Attachments = append([]Attachment(nil), t.Attachments...)
	}
	if t.History != nil {
		out.History = make([]ChatMessage, len(t.History))
		for i, m := range t.History {
			m.Attachments = append([]Attachment(nil), m.Attachments...)
			out.History[i] = m
		}
	}
	if t.Pending != nil {
		out.Pending = append([]string(nil), t.Pending...)
	}
	if t.ExtraData != nil {
		out.ExtraData = make(map[string]any, len(t.ExtraData))
		for k, v := range t.ExtraData {
			out.ExtraData[k] = v
		}
	}
	return out
}

// IsPending сообщает, ждёт ли поле подтверждения.
func (t Ticket) IsPending(field string) bool {
	for _, f := range t.Pending {
		if f == field {
			return true
		}
	}
	return false
}
