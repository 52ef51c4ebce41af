// Package catalog хранит справочники категорий, статусов и приоритетов.
// Справочник читается из YAML при старте, а не зашивается в код.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/psds-microservice/triage-service/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Category struct {
	Key      string   `yaml:"key" json:"key"`
	Name     string   `yaml:"name" json:"name"`
	Emoji    string   `yaml:"emoji" json:"emoji"`
	Subs     []string `yaml:"subs" json:"subs"`
	ReqGeo   bool     `yaml:"req_geo" json:"req_geo,omitempty"`
	ReqExtra bool     `yaml:"req_extra" json:"req_extra,omitempty"`
}

type Status struct {
	ID    model.TicketStatus `yaml:"id" json:"id"`
	Label string             `yaml:"label" json:"label"`
	Color string             `yaml:"color" json:"color"`
}

type Priority struct {
	ID    model.Priority `yaml:"id" json:"id"`
	Label string         `yaml:"label" json:"label"`
	Rank  int            `yaml:"rank" json:"rank"`
	Color string         `yaml:"color" json:"color"`
}

type Catalog struct {
	Categories []Category `yaml:"categories" json:"categories"`
	Statuses   []Status   `yaml:"statuses" json:"statuses"`
	Priorities []Priority `yaml:"priorities" json:"priorities"`

	byCategory map[string]int
	byStatus   map[model.TicketStatus]int
	byPriority map[model.Priority]int
}

// Load читает справочник из path; пустой path: встроенный справочник по умолчанию.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultYAML)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(raw)
}

// Default возвращает встроенный справочник; встроенный YAML обязан быть валидным.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic("catalog: embedded default is invalid: " + err.Error())
	}
	return c
}

func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	if len(c.Categories) == 0 || len(c.Statuses) == 0 || len(c.Priorities) == 0 {
		return errors.New("catalog: categories, statuses and priorities must not be empty")
	}
	c.byCategory = make(map[string]int, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("catalog: category %d has no name", i)
		}
		if _, dup := c.byCategory[cat.Name]; dup {
			return fmt.Errorf("catalog: duplicate category %q", cat.Name)
		}
		c.byCategory[cat.Name] = i
	}
	c.byStatus = make(map[model.TicketStatus]int, len(c.Statuses))
	for i, s := range c.Statuses {
		if _, dup := c.byStatus[s.ID]; dup {
			return fmt.Errorf("catalog: duplicate status %q", s.ID)
		}
		c.byStatus[s.ID] = i
	}
	c.byPriority = make(map[model.Priority]int, len(c.Priorities))
	for i, p := range c.Priorities {
		if _, dup := c.byPriority[p.ID]; dup {
			return fmt.Errorf("catalog: duplicate priority %q", p.ID)
		}
		c.byPriority[p.ID] = i
	}
	return nil
}

func (c *Catalog) Category(name string) (Category, bool) {
	i, ok := c.byCategory[name]
	if !ok {
		return Category{}, false
	}
	return c.Categories[i], true
}

func (c *Catalog) Status(id model.TicketStatus) (Status, bool) {
	i, ok := c.byStatus[id]
	if !ok {
		return Status{}, false
	}
	return c.Statuses[i], true
}

func (c *Catalog) Priority(id model.Priority) (Priority, bool) {
	i, ok := c.byPriority[id]
	if !ok {
		return Priority{}, false
	}
	return c.Priorities[i], true
}

func (c *Catalog) ValidStatus(id model.TicketStatus) bool {
	_, ok := c.byStatus[id]
	return ok
}

func (c *Catalog) ValidPriority(id model.Priority) bool {
	_, ok := c.byPriority[id]
	return ok
}

// StatusLabel возвращает подпись статуса; неизвестное значение показывается как есть.
func (c *Catalog) StatusLabel(id model.TicketStatus) string {
	if s, ok := c.Status(id); ok {
		return s.Label
	}
	return string(id)
}

func (c *Catalog) PriorityLabel(id model.Priority) string {
	if p, ok := c.Priority(id); ok {
		return p.Label
	}
	return string(id)
}

// PriorityRank: вес для сортировки; неизвестные приоритеты ниже всех.
func (c *Catalog) PriorityRank(id model.Priority) int {
	if p, ok := c.Priority(id); ok {
		return p.Rank
	}
	return -1
}
