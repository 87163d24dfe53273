package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduper reclama ids de evento para ignorar los reenvios del webhook.
// Release devuelve el id cuando el procesamiento fallo y conviene reintentar.
type EventDeduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

const memoryDedupPruneAt = 10000

type memoryEventDeduper struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]time.Time
	now   func() time.Time
}

func NewMemoryEventDeduper(ttl time.Duration) EventDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &memoryEventDeduper{
		ttl:   ttl,
		items: make(map[string]time.Time),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (d *memoryEventDeduper) Claim(_ context.Context, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if exp, ok := d.items[eventID]; ok && now.Before(exp) {
		return false, nil
	}
	if len(d.items) >= memoryDedupPruneAt {
		for id, exp := range d.items {
			if !now.Before(exp) {
				delete(d.items, id)
			}
		}
	}
	d.items[eventID] = now.Add(d.ttl)
	return true, nil
}

func (d *memoryEventDeduper) Release(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.items, eventID)
	return nil
}

type redisDedupClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisEventDeduper struct {
	client redisDedupClient
	ttl    time.Duration
	prefix string
}

func NewRedisEventDeduper(client *redis.Client, ttl time.Duration) EventDeduper {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisEventDeduper{
		client: client,
		ttl:    ttl,
		prefix: "webhook:event:",
	}
}

func (d *redisEventDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return d.client.SetNX(ctx, d.prefix+eventID, 1, d.ttl).Result()
}

func (d *redisEventDeduper) Release(ctx context.Context, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return d.client.Del(ctx, d.prefix+eventID).Err()
}
