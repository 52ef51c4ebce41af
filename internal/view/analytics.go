package view

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/psds-microservice/triage-service/internal/catalog"
	"github.com/psds-microservice/triage-service/internal/errs"
	"github.com/psds-microservice/triage-service/internal/model"
)

type TimeRange string

const (
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeYear  TimeRange = "year"
	RangeAll   TimeRange = "all"
)

var rangeDays = map[TimeRange]int{RangeWeek: 7, RangeMonth: 30, RangeYear: 365}

var weekdayLabels = [7]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

const topN = 5

type AnalyticsQuery struct {
	Range    TimeRange
	Category string
	Status   string
}

type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
	Color string `json:"color,omitempty"`
}

type HourBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type Analytics struct {
	Range          TimeRange    `json:"range"`
	Total          int          `json:"total"`
	Resolved       int          `json:"resolved"`
	ResolutionRate int          `json:"resolution_rate"`
	Critical       int          `json:"critical"`
	ByStatus       []Bucket     `json:"by_status"`
	ByPriority     []Bucket     `json:"by_priority"`
	TopCategories  []Bucket     `json:"top_categories"`
	ByHour         []HourBucket `json:"by_hour"`
	ByWeekday      []Bucket     `json:"by_weekday"`
	TopReporters   []Bucket     `json:"top_reporters"`
}

func (q AnalyticsQuery) Normalize() (AnalyticsQuery, error) {
	if q.Range == "" {
		q.Range = RangeAll
	}
	if _, ok := rangeDays[q.Range]; !ok && q.Range != RangeAll {
		return q, errs.Validation("unknown range %q", q.Range)
	}
	return q, nil
}

// inRange: возраст заявки в днях округляется вверх, как на дашборде.
func inRange(created, now time.Time, r TimeRange) bool {
	limit, ok := rangeDays[r]
	if !ok {
		return true
	}
	age := now.Sub(created)
	if age < 0 {
		age = -age
	}
	days := int(math.Ceil(age.Hours() / 24))
	return days <= limit
}

// BuildAnalytics считает сводку по отфильтрованным заявкам. Часы и дни
// недели берутся в зоне loc.
func BuildAnalytics(tickets []model.Ticket, cat *catalog.Catalog, q AnalyticsQuery, now time.Time, loc *time.Location) (Analytics, error) {
	q, err := q.Normalize()
	if err != nil {
		return Analytics{}, err
	}
	if loc == nil {
		loc = time.Local
	}

	var filtered []model.Ticket
	for _, t := range tickets {
		if !inRange(t.CreatedAt, now, q.Range) {
			continue
		}
		if !matchFilter(q.Category, t.Category) || !matchFilter(q.Status, string(t.Status)) {
			continue
		}
		filtered = append(filtered, t)
	}

	a := Analytics{Range: q.Range, Total: len(filtered)}
	statusCount := map[model.TicketStatus]int{}
	priorityCount := map[model.Priority]int{}
	categoryCount := map[string]int{}
	reporterCount := map[string]int{}
	var hours [24]int
	var weekdays [7]int
	for _, t := range filtered {
		statusCount[t.Status]++
		priorityCount[t.Priority]++
		categoryCount[t.Category]++
		reporterCount[t.TelegramUsername]++
		if t.Status == model.StatusResolved || t.Status == model.StatusMeasuresTaken {
			a.Resolved++
		}
		if t.Priority == model.PriorityCritical {
			a.Critical++
		}
		local := t.CreatedAt.In(loc)
		hours[local.Hour()]++
		weekdays[int(local.Weekday())]++
	}
	if a.Total > 0 {
		a.ResolutionRate = int(math.Round(float64(a.Resolved) / float64(a.Total) * 100))
	}

	for _, s := range cat.Statuses {
		a.ByStatus = append(a.ByStatus, Bucket{Key: string(s.ID), Label: s.Label, Count: statusCount[s.ID], Color: s.Color})
	}
	ps := append([]catalog.Priority(nil), cat.Priorities...)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Rank < ps[j].Rank })
	for _, p := range ps {
		a.ByPriority = append(a.ByPriority, Bucket{Key: string(p.ID), Label: p.Label, Count: priorityCount[p.ID], Color: p.Color})
	}

	var cats []Bucket
	for _, c := range cat.Categories {
		cats = append(cats, Bucket{Key: c.Name, Label: c.Name, Count: categoryCount[c.Name]})
	}
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Count > cats[j].Count })
	a.TopCategories = head(cats, topN)

	for h, n := range hours {
		a.ByHour = append(a.ByHour, HourBucket{Hour: h, Count: n})
	}
	for d, n := range weekdays {
		a.ByWeekday = append(a.ByWeekday, Bucket{Key: strconv.Itoa(d), Label: weekdayLabels[d], Count: n})
	}

	var users []Bucket
	for name, n := range reporterCount {
		users = append(users, Bucket{Key: name, Label: name, Count: n})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Count != users[j].Count {
			return users[i].Count > users[j].Count
		}
		return users[i].Key < users[j].Key
	})
	a.TopReporters = head(users, topN)
	return a, nil
}

func head(b []Bucket, n int) []Bucket {
	if b == nil {
		return []Bucket{}
	}
	if len(b) > n {
		return b[:n]
	}
	return b
}
