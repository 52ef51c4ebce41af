package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/psds-microservice/triage-service/internal/catalog"
	"github.com/psds-microservice/triage-service/internal/model"
)

const DefaultGenerated = 50

// Область генерации координат (Энгельс).
const (
	minLat, maxLat = 51.45, 51.55
	minLon, maxLon = 46.05, 46.20

	generatedWindow = 30 * 24 * time.Hour
)

var operatorReplies = []string{
	"Заявка принята в работу.",
	"Передано в профильную службу.",
	"Уточните, пожалуйста, адрес.",
	"Выезд бригады запланирован.",
	"Работы выполнены, спасибо за обращение.",
}

var descriptions = []string{
	"Прошу принять меры как можно скорее.",
	"Проблема повторяется уже не первую неделю.",
	"Жители дома обращаются не в первый раз.",
	"Опасно для детей и пожилых людей.",
	"Фото прилагаю.",
}

// Generate создаёт n случайных заявок по справочнику. Источник случайности
// передаётся явно, чтобы наборы можно было воспроизводить.
func Generate(rng *rand.Rand, now time.Time, cat *catalog.Catalog, n int) []model.Ticket {
	if n <= 0 {
		n = DefaultGenerated
	}
	out := make([]model.Ticket, 0, n)
	for i := 0; i < n; i++ {
		c := cat.Categories[rng.Intn(len(cat.Categories))]
		sub := ""
		if len(c.Subs) > 0 {
			sub = c.Subs[rng.Intn(len(c.Subs))]
		}
		status := cat.Statuses[rng.Intn(len(cat.Statuses))].ID
		priority := cat.Priorities[rng.Intn(len(cat.Priorities))].ID
		created := now.Add(-time.Duration(rng.Int63n(int64(generatedWindow))))

		lat := minLat + rng.Float64()*(maxLat-minLat)
		lon := minLon + rng.Float64()*(maxLon-minLon)

		t := model.Ticket{
			ID:               fmt.Sprintf("t-gen-%03d", i+1),
			TelegramUserID:   fmt.Sprintf("%d", 100000+rng.Intn(900000)),
			TelegramUsername: fmt.Sprintf("@user_%d", 1+rng.Intn(20)),
			Category:         c.Name,
			SubCategory:      sub,
			Location:         fmt.Sprintf("%.6f,%.6f", lat, lon),
			Description:      sub + ". " + descriptions[rng.Intn(len(descriptions))],
			Status:           status,
			Priority:         priority,
			CreatedAt:        created,
			Attachments:      []model.Attachment{},
		}
		if c.ReqExtra {
			t.ExtraData = map[string]any{"routeNumber": fmt.Sprintf("%d", 1+rng.Intn(300))}
		}
		if status != model.StatusNew {
			replies := 1 + rng.Intn(2)
			for j := 0; j < replies; j++ {
				t.History = append(t.History, model.ChatMessage{
					ID:        fmt.Sprintf("%s-h%d", t.ID, j+1),
					Sender:    model.SenderOperator,
					Text:      operatorReplies[rng.Intn(len(operatorReplies))],
					Timestamp: created.Add(time.Duration(j+1) * time.Hour),
				})
			}
		}
		out = append(out, t)
	}
	return out
}
