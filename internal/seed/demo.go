// Package seed содержит тестовые наборы обращений: фиксированный демо-набор
// и генератор случайных заявок по справочнику.
package seed

import (
	"time"

	"github.com/psds-microservice/triage-service/internal/model"
)

// Demo возвращает демо-набор, время создания отсчитывается от now.
func Demo(now time.Time) []model.Ticket {
	ago := func(d time.Duration) time.Time { return now.Add(-d) }
	photo := func(id, seed, name string) []model.Attachment {
		return []model.Attachment{{
			ID:   id,
			Type: model.AttachmentImage,
			URL:  "https://picsum.photos/seed/" + seed + "/800/600",
			Name: name,
		}}
	}
	operator := func(id, text string, at time.Time) model.ChatMessage {
		return model.ChatMessage{ID: id, Sender: model.SenderOperator, Text: text, Timestamp: at}
	}

	return []model.Ticket{
		{
			ID: "t-mock-1", TelegramUserID: "445566", TelegramUsername: "@citizen_one", ContactPhone: "+79001234567",
			Category: "Дороги", SubCategory: "Яма на дороге", Location: "ул. Тельмана, д. 45",
			Description: "Глубокая яма прямо на пешеходном переходе. Можно ноги переломать! Асфальт провалился после дождя.",
			Status:      model.StatusNew, Priority: model.PriorityHigh, CreatedAt: ago(45 * time.Minute),
			Attachments: photo("m1", "road", "construction.jpg"),
		},
		{
			ID: "t-mock-2", TelegramUserID: "998877", TelegramUsername: "@bus_rider", ContactPhone: "+79051112233",
			Category: "Транспорт", SubCategory: "Нарушение графика", Location: `Остановка "Ярмарка"`,
			Description: "Автобус 284 не пришел по расписанию в 8:15. Следующий был битком, не влезть. Люди мерзнут!",
			ExtraData:   map[string]any{"routeNumber": "284", "vehicleNumber": "?"},
			Status:      model.StatusInWork, Priority: model.PriorityMedium, CreatedAt: ago(3 * time.Hour),
			Attachments: photo("m2", "bus", "bus.jpg"),
			History: []model.ChatMessage{
				operator("h1", `Запрос отправлен диспетчеру МУП "Энгельсэлектротранс".`, ago(30*time.Minute)),
			},
		},
		{
			ID: "t-mock-3", TelegramUserID: "112233", TelegramUsername: "@eco_guard", ContactPhone: "+79990001122",
			Category: "Мусор", SubCategory: "Свалка", Location: "За гаражами на Степной",
			Description: "Стихийная свалка строительного мусора. Кто-то вывалил целую газель старых окон и кирпичей.",
			Status:      model.StatusNew, Priority: model.PriorityCritical, CreatedAt: ago(15 * time.Minute),
			Attachments: photo("m3", "trash", "trash.jpg"),
		},
		{
			ID: "t-mock-4", TelegramUserID: "334455", TelegramUsername: "@warm_home", ContactPhone: "89170000000",
			Category: "Отопление", SubCategory: "Холодно в квартире", Location: "Полтавская 32, кв 15",
			Description: "Батареи чуть теплые, дома +18. УК заявку игнорирует уже третий день.",
			Status:      model.StatusClarificationNeeded, Priority: model.PriorityHigh, CreatedAt: ago(24 * time.Hour),
			Attachments: []model.Attachment{},
			History: []model.ChatMessage{
				operator("h2", "Укажите, пожалуйста, проводили ли вы замеры температуры воздуха в помещении?", ago(20*time.Hour)),
			},
		},
		{
			ID: "t-mock-5", TelegramUserID: "777111", TelegramUsername: "@driver_pro",
			Category: "ЖКХ", SubCategory: "Открытый люк", Location: "Перекресток Тельмана и Волоха",
			Description: "Открытый колодец прямо на проезжей части! Воткнул ветку, но ночью не видно. Срочно примите меры!",
			Status:      model.StatusResolved, Priority: model.PriorityCritical, CreatedAt: ago(48 * time.Hour),
			Attachments: photo("m5", "hole", "manhole.jpg"),
			History: []model.ChatMessage{
				operator("h3", "Передано аварийной бригаде Водоканала.", ago(47*time.Hour)),
				operator("h4", "Люк закрыт. Спасибо за обращение.", ago(40*time.Hour)),
			},
		},
		{
			ID: "t-mock-6", TelegramUserID: "555000", TelegramUsername: "@dog_lover",
			Category: "Животные", SubCategory: "Стая бездомных собак", Location: "Детская площадка во дворе школы №1",
			Description: "Агрессивные собаки (5-6 штук) пугают детей. Одна с биркой, остальные без.",
			Status:      model.StatusMeasuresTaken, Priority: model.PriorityMedium, CreatedAt: ago(5 * time.Hour),
			Attachments: photo("m6", "dogs", "dog.jpg"),
		},
		{
			ID: "t-mock-7", TelegramUserID: "888000", TelegramUsername: "@angry_citizen", ContactPhone: "+79270009988",
			Category: "Фасады и крыши", SubCategory: "Сосульки/Снег на крыше", Location: "ул. Горького, 14",
			Description: "Огромные сосульки висят прямо над входом в подъезд! Ждем беды?",
			Status:      model.StatusNew, Priority: model.PriorityHigh, CreatedAt: ago(10 * time.Minute),
			Attachments: photo("m7", "snow", "snow.jpg"),
		},
		{
			ID: "t-mock-9", TelegramUserID: "121212", TelegramUsername: "@night_walker",
			Category: "Освещение", SubCategory: "Не горит фонарь", Location: "Аллея Героев",
			Description: "Половина фонарей не работает уже неделю. Темно ходить.",
			Status:      model.StatusNew, Priority: model.PriorityMedium, CreatedAt: ago(30 * time.Minute),
			Attachments: photo("m9", "light", "light.jpg"),
		},
		{
			ID: "t-mock-10", TelegramUserID: "333999", TelegramUsername: "@water_leak", ContactPhone: "+79033334444",
			Category: "Водоснабжение", SubCategory: "Прорыв трубы", Location: "Коломенская, 5",
			Description: "Из под земли бьет фонтан воды! Заливает двор.",
			Status:      model.StatusNew, Priority: model.PriorityCritical, CreatedAt: ago(5 * time.Minute),
			Attachments: photo("m10", "leak", "leak.jpg"),
		},
		{
			ID: "t-mock-11", TelegramUserID: "424242", TelegramUsername: "@grateful_user",
			Category: "Благодарность", SubCategory: "✅ Благодарность",
			Description: "Хочу сказать спасибо бригаде, которая вчера быстро починила свет на Ленина! Очень оперативно.",
			Status:      model.StatusResolved, Priority: model.PriorityLow, CreatedAt: ago(120 * time.Minute),
			Attachments: []model.Attachment{},
		},
	}
}

// Simulated: синтетическая входящая заявка для офлайн-режима.
func Simulated(id string, now time.Time) model.Ticket {
	return model.Ticket{
		ID:               id,
		TelegramUserID:   "12345",
		TelegramUsername: "@demo_user",
		ContactPhone:     "+79990000000",
		Category:         "Дороги",
		SubCategory:      "Яма",
		Description:      "Тестовая заявка (Демо)",
		Status:           model.StatusNew,
		Priority:         model.PriorityMedium,
		CreatedAt:        now,
		Attachments:      []model.Attachment{},
	}
}
