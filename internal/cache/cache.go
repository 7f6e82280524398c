package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store holds JSON payloads under string keys.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
	// ClaimJSON stores v only when key is absent and reports whether it did.
	ClaimJSON(ctx context.Context, key string, v any) (bool, error)
}

// KeyQuote returns the cache key of a composed quote.
func KeyQuote(orderID string) string {
	return "quote:" + orderID
}

// KeyConfirm returns the cache key claimed by the first confirmation of an order.
func KeyConfirm(orderID string) string {
	return "confirm:" + orderID
}

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client makes every call a miss.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// ClaimJSON stores v with SET NX. A nil client claims every key.
func (c *Cache) ClaimJSON(ctx context.Context, key string, v any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return true, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, key, data, c.ttl).Result()
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Store for single-instance deployments and tests.
type Memory struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemory returns an empty in-process cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{TTL: ttl, entries: map[string]memoryEntry{}}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// GetJSON implements Store. Expired entries are dropped on read.
func (m *Memory) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON implements Store.
func (m *Memory) SetJSON(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := memoryEntry{data: data}
	if m.TTL > 0 {
		e.expires = m.now().Add(m.TTL)
	}
	m.mu.Lock()
	if m.entries == nil {
		m.entries = map[string]memoryEntry{}
	}
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// ClaimJSON implements Store. An expired entry counts as absent.
func (m *Memory) ClaimJSON(_ context.Context, key string, v any) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	now := m.now()
	e := memoryEntry{data: data}
	if m.TTL > 0 {
		e.expires = now.Add(m.TTL)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string]memoryEntry{}
	}
	if cur, ok := m.entries[key]; ok && (cur.expires.IsZero() || now.Before(cur.expires)) {
		return false, nil
	}
	m.entries[key] = e
	return true, nil
}
