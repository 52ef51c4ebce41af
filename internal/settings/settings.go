// Package settings хранит изменяемые оператором настройки дашборда
// (адрес бота). С REDIS_URL значения переживают рестарт и общие для реплик.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const KeyBotBaseURL = "triage:bot_base_url"

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Connect создаёт клиент Redis из URL (redis://) или host:port.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// BotURL: адрес бота с кэшем в памяти: чтение не ходит в хранилище,
// запись сначала сохраняется в хранилище.
type BotURL struct {
	store Store

	mu      sync.RWMutex
	current string
}

// LoadBotURL читает сохранённый адрес; если его нет, используется fallback (BOT_BASE_URL).
func LoadBotURL(ctx context.Context, store Store, fallback string) (*BotURL, error) {
	b := &BotURL{store: store, current: strings.TrimSpace(fallback)}
	v, ok, err := store.Get(ctx, KeyBotBaseURL)
	if err != nil {
		return b, fmt.Errorf("load bot url: %w", err)
	}
	if ok {
		b.current = v
	}
	return b, nil
}

func (b *BotURL) Get() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

func (b *BotURL) Set(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if err := b.store.Set(ctx, KeyBotBaseURL, url); err != nil {
		return fmt.Errorf("save bot url: %w", err)
	}
	b.mu.Lock()
	b.current = url
	b.mu.Unlock()
	return nil
}
