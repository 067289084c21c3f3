package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper marks keys as taken for a bounded time.
type Deduper interface {
	// Acquire reports true when the key was free and is now held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisDeduper struct {
	client *redis.Client
	prefix string
}

func (d *redisDeduper) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+":"+key, "1", ttl).Result()
}

func (d *redisDeduper) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, d.prefix+":"+key).Err()
}

type memoryDeduper struct {
	mu     sync.Mutex
	held   map[string]time.Time
	nextGC time.Time
	now    func() time.Time
}

// NewMemoryDeduper keeps keys in process memory.
func NewMemoryDeduper() Deduper {
	return newMemoryDeduper(time.Now)
}

func newMemoryDeduper(now func() time.Time) *memoryDeduper {
	return &memoryDeduper{
		held:   make(map[string]time.Time),
		nextGC: now().Add(10 * time.Minute),
		now:    now,
	}
}

func (d *memoryDeduper) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.held[key]; ok && exp.After(now) {
		return false, nil
	}

	d.held[key] = now.Add(ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.held {
			if !exp.After(now) {
				delete(d.held, k)
			}
		}
		d.nextGC = now.Add(10 * time.Minute)
	}

	return true, nil
}

func (d *memoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.held, key)
	d.mu.Unlock()
	return nil
}

// NewDeduper uses Redis when the client answers a ping and falls back to
// in-memory otherwise. The ping error is returned alongside the fallback.
func NewDeduper(ctx context.Context, client *redis.Client, prefix string) (Deduper, error) {
	if client == nil {
		return NewMemoryDeduper(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return NewMemoryDeduper(), err
	}

	return &redisDeduper{client: client, prefix: prefix}, nil
}
