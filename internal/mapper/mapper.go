// Package mapper переводит строки БД в тикеты дашборда и обратно.
package mapper

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/psds-microservice/triage-service/internal/model"
	"gorm.io/datatypes"
)

// PlaceholderImageURL показывается, когда адрес бота не задан.
const PlaceholderImageURL = "https://placehold.co/600x400?text=No+image"

const (
	DefaultUserID      = "Unknown"
	DefaultUsername    = "Anonymous"
	DefaultCategory    = "Прочее"
	DefaultSubCategory = "Общее"

	// fallbackSeedUserID подставляется, если id пользователя не число.
	fallbackSeedUserID int64 = 12345
)

var absolutePrefixes = []string{"http://", "https://", "data:", "blob:"}

// Resolver превращает ссылку на фото в URL. Ссылки, которые не являются
// абсолютными URL, проксируются через HTTP-эндпоинт бота.
type Resolver struct {
	BaseURL string
}

func IsAbsoluteRef(ref string) bool {
	for _, p := range absolutePrefixes {
		if strings.HasPrefix(ref, p) {
			return true
		}
	}
	return false
}

func (r Resolver) ResolvePhoto(ref string) string {
	if IsAbsoluteRef(ref) {
		return ref
	}
	base := strings.TrimSpace(r.BaseURL)
	if base == "" {
		return PlaceholderImageURL
	}
	return strings.TrimRight(base, "/") + "/images/" + ref
}

func TicketFromRow(row model.ComplaintRow, r Resolver) model.Ticket {
	t := model.Ticket{
		ID:               row.ID,
		TelegramUserID:   DefaultUserID,
		TelegramUsername: or(row.Username, DefaultUsername),
		ContactPhone:     row.ContactPhone,
		Category:         or(row.Category, DefaultCategory),
		SubCategory:      or(row.SubCategory, DefaultSubCategory),
		ExtraData:        decodeExtra(row.ExtraData),
		Location:         row.Location,
		Description:      row.Description,
		Status:           model.TicketStatus(or(row.Status, string(model.StatusNew))),
		Priority:         model.Priority(or(row.Priority, string(model.PriorityMedium))),
		IsDeleted:        row.IsDeleted,
		CreatedAt:        row.CreatedAt,
		Attachments:      make([]model.Attachment, 0, len(row.Photos)),
	}
	if row.UserID != 0 {
		t.TelegramUserID = strconv.FormatInt(row.UserID, 10)
	}
	for i, ref := range row.Photos {
		t.Attachments = append(t.Attachments, model.Attachment{
			ID:   fmt.Sprintf("ph-%d", i),
			Type: model.AttachmentImage,
			URL:  r.ResolvePhoto(ref),
			Name: fmt.Sprintf("Фото %d", i+1),
			Ref:  ref,
		})
	}
	return t
}

func MessageFromRow(row model.MessageRow, r Resolver) model.ChatMessage {
	m := model.ChatMessage{
		ID:        row.ID,
		Sender:    model.Sender(row.Sender),
		Text:      row.MessageText,
		Timestamp: row.CreatedAt,
	}
	for i, ref := range row.Attachments {
		m.Attachments = append(m.Attachments, model.Attachment{
			ID:   fmt.Sprintf("att-%d", i),
			Type: model.AttachmentImage,
			URL:  r.ResolvePhoto(ref),
			Name: "Вложение",
			Ref:  ref,
		})
	}
	return m
}

// RowFromTicket: обратное преобразование для заливки тестовых данных.
// ID не переносится: его выдаёт БД.
func RowFromTicket(t model.Ticket) model.ComplaintRow {
	userID, err := strconv.ParseInt(strings.TrimSpace(t.TelegramUserID), 10, 64)
	if err != nil || userID == 0 {
		userID = fallbackSeedUserID
	}
	row := model.ComplaintRow{
		UserID:       userID,
		Username:     t.TelegramUsername,
		ContactPhone: t.ContactPhone,
		Category:     t.Category,
		SubCategory:  t.SubCategory,
		Location:     t.Location,
		Description:  t.Description,
		ExtraData:    encodeExtra(t.ExtraData),
		Photos:       attachmentRefs(t.Attachments),
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		IsDeleted:    t.IsDeleted,
		CreatedAt:    t.CreatedAt,
	}
	return row
}

func MessageRowFromChat(ticketID string, m model.ChatMessage) model.MessageRow {
	return model.MessageRow{
		TicketID:    ticketID,
		Sender:      string(m.Sender),
		MessageText: m.Text,
		Attachments: attachmentRefs(m.Attachments),
		CreatedAt:   m.Timestamp,
	}
}

// Reresolve пересчитывает URL вложений после смены адреса бота.
func Reresolve(t *model.Ticket, r Resolver) {
	for i := range t.Attachments {
		reresolveAttachment(&t.Attachments[i], r)
	}
	for i := range t.History {
		for j := range t.History[i].Attachments {
			reresolveAttachment(&t.History[i].Attachments[j], r)
		}
	}
}

func reresolveAttachment(a *model.Attachment, r Resolver) {
	if a.Ref == "" {
		return
	}
	a.URL = r.ResolvePhoto(a.Ref)
}

var coordinateRe = regexp.MustCompile(`^\d+(\.\d+)?,\s*\d+(\.\d+)?$`)

// IsCoordinate сообщает, записано ли местоположение как "lat,lon".
func IsCoordinate(loc string) bool {
	return coordinateRe.MatchString(loc)
}

func ParseCoordinate(loc string) (lat, lon float64, ok bool) {
	if !IsCoordinate(loc) {
		return 0, 0, false
	}
	parts := strings.SplitN(loc, ",", 2)
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func attachmentRefs(atts []model.Attachment) pq.StringArray {
	out := make(pq.StringArray, 0, len(atts))
	for _, a := range atts {
		if a.Ref != "" {
			out = append(out, a.Ref)
			continue
		}
		out = append(out, a.URL)
	}
	return out
}

func decodeExtra(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		// не объект (null, строка): для оператора это просто отсутствие данных
		return nil
	}
	return out
}

func encodeExtra(extra map[string]any) datatypes.JSON {
	if len(extra) == 0 {
		return nil
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
