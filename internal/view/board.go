// Package view строит представления списка заявок: канбан-доску, карту и аналитику.
// Функции чистые: на вход снимок списка, на выход готовая к отдаче структура.
package view

import (
	"sort"
	"strings"

	"github.com/psds-microservice/triage-service/internal/catalog"
	"github.com/psds-microservice/triage-service/internal/errs"
	"github.com/psds-microservice/triage-service/internal/model"
)

type Grouping string

const (
	GroupStatus   Grouping = "status"
	GroupPriority Grouping = "priority"
	GroupCategory Grouping = "category"
)

type SortOrder string

const (
	SortDateDesc SortOrder = "date_desc"
	SortDateAsc  SortOrder = "date_asc"
	SortPriority SortOrder = "priority"
)

type BoardQuery struct {
	Grouping Grouping
	Sort     SortOrder
	// Columns: видимые колонки; пусто: все.
	Columns []string
}

type Column struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Color   string         `json:"color,omitempty"`
	Raw     bool           `json:"raw,omitempty"`
	Tickets []model.Ticket `json:"tickets"`
}

type Board struct {
	Grouping Grouping `json:"grouping"`
	Sort     SortOrder `json:"sort"`
	Columns  []Column `json:"columns"`
	Total    int      `json:"total"`
}

// Normalize подставляет значения по умолчанию и проверяет параметры.
func (q BoardQuery) Normalize() (BoardQuery, error) {
	if q.Grouping == "" {
		q.Grouping = GroupStatus
	}
	if q.Sort == "" {
		q.Sort = SortDateDesc
	}
	switch q.Grouping {
	case GroupStatus, GroupPriority, GroupCategory:
	default:
		return q, errs.Validation("unknown grouping %q", q.Grouping)
	}
	switch q.Sort {
	case SortDateDesc, SortDateAsc, SortPriority:
	default:
		return q, errs.Validation("unknown sort %q", q.Sort)
	}
	return q, nil
}

// BuildBoard раскладывает заявки по колонкам. Значения вне справочника
// попадают в отдельные колонки с сырым значением в подписи.
func BuildBoard(tickets []model.Ticket, cat *catalog.Catalog, q BoardQuery) (Board, error) {
	q, err := q.Normalize()
	if err != nil {
		return Board{}, err
	}
	sorted := SortTickets(tickets, cat, q.Sort)

	columns := catalogColumns(cat, q.Grouping)
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c.ID] = i
	}
	for _, t := range sorted {
		key := groupKey(t, q.Grouping)
		i, ok := index[key]
		if !ok {
			columns = append(columns, Column{ID: key, Label: key, Raw: true})
			i = len(columns) - 1
			index[key] = i
		}
		columns[i].Tickets = append(columns[i].Tickets, t)
	}

	visible := columns
	if len(q.Columns) > 0 {
		want := make(map[string]bool, len(q.Columns))
		for _, id := range q.Columns {
			want[id] = true
		}
		visible = visible[:0:0]
		for _, c := range columns {
			if want[c.ID] {
				visible = append(visible, c)
			}
		}
	}
	total := 0
	for i := range visible {
		if visible[i].Tickets == nil {
			visible[i].Tickets = []model.Ticket{}
		}
		total += len(visible[i].Tickets)
	}
	return Board{Grouping: q.Grouping, Sort: q.Sort, Columns: visible, Total: total}, nil
}

func catalogColumns(cat *catalog.Catalog, g Grouping) []Column {
	var out []Column
	switch g {
	case GroupStatus:
		for _, s := range cat.Statuses {
			out = append(out, Column{ID: string(s.ID), Label: s.Label, Color: s.Color})
		}
	case GroupPriority:
		// от критического к низкому
		ps := append([]catalog.Priority(nil), cat.Priorities...)
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Rank > ps[j].Rank })
		for _, p := range ps {
			out = append(out, Column{ID: string(p.ID), Label: p.Label, Color: p.Color})
		}
	case GroupCategory:
		for _, c := range cat.Categories {
			out = append(out, Column{ID: c.Name, Label: strings.TrimSpace(c.Emoji + " " + c.Name)})
		}
	}
	return out
}

func groupKey(t model.Ticket, g Grouping) string {
	switch g {
	case GroupPriority:
		return string(t.Priority)
	case GroupCategory:
		return t.Category
	default:
		return string(t.Status)
	}
}

// SortTickets возвращает отсортированную копию. Сортировка по приоритету
// стабильна: внутри приоритета сохраняется исходный порядок.
func SortTickets(tickets []model.Ticket, cat *catalog.Catalog, order SortOrder) []model.Ticket {
	out := append([]model.Ticket(nil), tickets...)
	switch order {
	case SortDateAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool {
			return cat.PriorityRank(out[i].Priority) > cat.PriorityRank(out[j].Priority)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out
}

// MoveTarget переводит перенос карточки в колонку target в изменение поля.
// В группировке по категории перенос ничего не меняет.
func MoveTarget(g Grouping, target string) (field string, ok bool) {
	switch g {
	case GroupStatus:
		return model.FieldStatus, target != ""
	case GroupPriority:
		return model.FieldPriority, target != ""
	default:
		return "", false
	}
}
