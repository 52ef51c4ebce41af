package view

import (
	"fmt"
	"strings"

	"github.com/psds-microservice/triage-service/internal/mapper"
	"github.com/psds-microservice/triage-service/internal/model"
)

// MaxMarkers: ограничение длины URL статической карты.
const MaxMarkers = 20

type MapQuery struct {
	Category string
	Status   string
}

type Marker struct {
	N        int     `json:"n"`
	TicketID string  `json:"ticket_id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Color    string  `json:"color"`
}

type Map struct {
	URL     string         `json:"url,omitempty"`
	Markers []Marker       `json:"markers"`
	Tickets []model.Ticket `json:"tickets"`
}

func matchFilter(filter, value string) bool {
	return filter == "" || filter == "all" || filter == value
}

// BuildMap отбирает заявки с координатами "lat,lon" и строит URL статической
// карты для первых MaxMarkers из них.
func BuildMap(tickets []model.Ticket, q MapQuery, staticURL string) Map {
	out := Map{Markers: []Marker{}, Tickets: []model.Ticket{}}
	for _, t := range tickets {
		if !mapper.IsCoordinate(t.Location) {
			continue
		}
		if !matchFilter(q.Category, t.Category) || !matchFilter(q.Status, string(t.Status)) {
			continue
		}
		out.Tickets = append(out.Tickets, t)
	}
	if len(out.Tickets) == 0 {
		return out
	}

	points := make([]string, 0, MaxMarkers)
	for i, t := range out.Tickets {
		if i == MaxMarkers {
			break
		}
		lat, lon, _ := mapper.ParseCoordinate(t.Location)
		parts := strings.SplitN(t.Location, ",", 2)
		color := MarkerColor(t)
		out.Markers = append(out.Markers, Marker{N: i + 1, TicketID: t.ID, Lat: lat, Lon: lon, Color: color})
		// сервис карт ждёт lon,lat
		points = append(points, fmt.Sprintf("%s,%s,pm2%sm%d",
			strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0]), color, i+1))
	}
	out.URL = fmt.Sprintf("%s?l=map&pt=%s&z=11&size=600,400", staticURL, strings.Join(points, "~"))
	return out
}

// MarkerColor: красный для высокого и критического приоритета, но статус
// важнее: решённые зелёные, новые жёлтые.
func MarkerColor(t model.Ticket) string {
	color := "bl"
	if t.Priority == model.PriorityCritical || t.Priority == model.PriorityHigh {
		color = "rd"
	}
	if t.Status == model.StatusResolved {
		color = "gn"
	}
	if t.Status == model.StatusNew {
		color = "yw"
	}
	return color
}
