package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// ComplaintRow: строка таблицы complaints. Заполняется ботом; дашборд меняет
// только status, priority и is_deleted.
type ComplaintRow struct {
	ID           string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID       int64          `gorm:"not null" json:"user_id"`
	Username     string         `gorm:"type:text" json:"username"`
	ContactPhone string         `gorm:"type:text" json:"contact_phone"`
	Category     string         `gorm:"type:text" json:"category"`
	SubCategory  string         `gorm:"type:text" json:"sub_category"`
	Location     string         `gorm:"type:text" json:"location"`
	Description  string         `gorm:"type:text" json:"description"`
	ExtraData    datatypes.JSON `gorm:"type:jsonb" json:"extra_data"`
	Photos       pq.StringArray `gorm:"type:text[]" json:"photos"`
	Status       string         `gorm:"type:text;default:new" json:"status"`
	Priority     string         `gorm:"type:text;default:medium" json:"priority"`
	IsDeleted    bool           `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt    time.Time      `gorm:"default:now()" json:"created_at"`
}

func (ComplaintRow) TableName() string { return "complaints" }

// MessageRow: строка ticket_messages; ticket_id ссылается на complaints(id).
type MessageRow struct {
	ID               string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TicketID         string         `gorm:"type:uuid;index;not null" json:"ticket_id"`
	Sender           string         `gorm:"type:text;not null" json:"sender"`
	MessageText      string         `gorm:"type:text;not null" json:"message_text"`
	Attachments      pq.StringArray `gorm:"type:text[]" json:"attachments"`
	IsSentToTelegram bool           `gorm:"default:false" json:"is_sent_to_telegram"`
	CreatedAt        time.Time      `gorm:"default:now()" json:"created_at"`
}

func (MessageRow) TableName() string { return "ticket_messages" }
