package seed

import (
	"math/rand"
	"testing"
	"time"

	"github.com/psds-microservice/triage-service/internal/catalog"
	"github.com/psds-microservice/triage-service/internal/mapper"
	"github.com/psds-microservice/triage-service/internal/model"
)

func TestDemo(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	tickets := Demo(now)
	if len(tickets) != 10 {
		t.Fatalf("expected 10 demo tickets, got %d", len(tickets))
	}
	ids := map[string]bool{}
	withHistory := 0
	for _, tk := range tickets {
		if ids[tk.ID] {
			t.Fatalf("duplicate id %s", tk.ID)
		}
		ids[tk.ID] = true
		if !tk.CreatedAt.Before(now) {
			t.Errorf("%s created in the future", tk.ID)
		}
		if len(tk.History) > 0 {
			withHistory++
		}
	}
	if withHistory != 3 {
		t.Fatalf("expected 3 tickets with history, got %d", withHistory)
	}
	if tickets[1].ExtraData["routeNumber"] != "284" {
		t.Fatalf("transport ticket lost extra data: %v", tickets[1].ExtraData)
	}
}

func TestGenerate(t *testing.T) {
	cat := catalog.Default()
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	tickets := Generate(rand.New(rand.NewSource(7)), now, cat, 0)
	if len(tickets) != DefaultGenerated {
		t.Fatalf("expected %d tickets, got %d", DefaultGenerated, len(tickets))
	}
	for _, tk := range tickets {
		lat, lon, ok := mapper.ParseCoordinate(tk.Location)
		if !ok {
			t.Fatalf("%s: location %q is not a coordinate", tk.ID, tk.Location)
		}
		if lat < minLat || lat > maxLat || lon < minLon || lon > maxLon {
			t.Fatalf("%s: %v,%v outside bounding box", tk.ID, lat, lon)
		}
		if tk.CreatedAt.After(now) || now.Sub(tk.CreatedAt) > generatedWindow {
			t.Fatalf("%s: created_at %v outside window", tk.ID, tk.CreatedAt)
		}
		if _, ok := cat.Category(tk.Category); !ok {
			t.Fatalf("%s: category %q not in catalog", tk.ID, tk.Category)
		}
		if !cat.ValidStatus(tk.Status) || !cat.ValidPriority(tk.Priority) {
			t.Fatalf("%s: invalid workflow %s/%s", tk.ID, tk.Status, tk.Priority)
		}
		switch {
		case tk.Status == model.StatusNew && len(tk.History) != 0:
			t.Fatalf("%s: new ticket has history", tk.ID)
		case tk.Status != model.StatusNew && (len(tk.History) < 1 || len(tk.History) > 2):
			t.Fatalf("%s: expected 1-2 operator messages, got %d", tk.ID, len(tk.History))
		}
	}
}

func TestGenerateIsReproducible(t *testing.T) {
	cat := catalog.Default()
	now := time.Now()
	a := Generate(rand.New(rand.NewSource(42)), now, cat, 5)
	b := Generate(rand.New(rand.NewSource(42)), now, cat, 5)
	for i := range a {
		if a[i].Location != b[i].Location || a[i].Category != b[i].Category {
			t.Fatalf("ticket %d differs between runs with the same seed", i)
		}
	}
}
