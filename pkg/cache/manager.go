package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager stores entries in Redis.
type Manager struct {
	redis  *redis.Client
	retain time.Duration
}

// NewManager creates a manager that keeps revalidatable entries for retain
// after they become stale.
func NewManager(redisClient *redis.Client, retain time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if retain < 0 {
		retain = 0
	}
	return &Manager{
		redis:  redisClient,
		retain: retain,
	}
}

// Get retrieves an entry, fresh or stale. Returns ErrCacheMiss if the key
// does not exist.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		_ = m.Delete(ctx, key)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	state := "fresh"
	if entry.IsExpired() {
		state = "stale"
	}
	cacheHits.WithLabelValues(state).Inc()
	return &entry, nil
}

// Set stores an entry until it is stale, plus the retain window when it can
// be revalidated. An entry that is already stale and carries no validator
// is not stored.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if entry.Revalidatable() {
		ttl += m.retain
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes an entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Revalidated renews a stale entry after a 304 Not Modified response with
// header, and stores it again.
func (m *Manager) Revalidated(ctx context.Context, key Key, entry *Entry, header http.Header, now time.Time) error {
	notModified.Inc()
	entry.Expires = ExpiresFrom(header, now)
	if etag := header.Get("ETag"); etag != "" {
		entry.ETag = etag
	}
	return m.Set(ctx, key, entry)
}
