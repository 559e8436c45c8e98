package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips the test without one.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, time.Hour)
}

func TestManager_SetGet(t *testing.T) {
	client := setupTestRedis(t)
	m := NewManager(client, time.Hour)
	ctx := context.Background()
	key := Key{Endpoint: "/breweries/1"}

	if _, err := m.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() on empty cache = %v, want ErrCacheMiss", err)
	}

	entry := &Entry{Data: []byte(`{"id":"1"}`), Expires: time.Now().Add(time.Minute), CachedAt: time.Now()}
	if err := m.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Data) != `{"id":"1"}` {
		t.Errorf("Data = %s", got.Data)
	}
	if got.IsExpired() {
		t.Error("entry should be fresh")
	}

	ttl := client.TTL(ctx, key.String()).Val()
	if ttl > time.Minute {
		t.Errorf("entry without validators kept for %v, want <= 1m", ttl)
	}
}

func TestManager_StaleEntriesKeptForRevalidation(t *testing.T) {
	client := setupTestRedis(t)
	m := NewManager(client, time.Hour)
	ctx := context.Background()

	stale := Key{Endpoint: "/breweries/stale"}
	if err := m.Set(ctx, stale, &Entry{Data: []byte(`{}`), ETag: `"v1"`, Expires: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := m.Get(ctx, stale)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.IsExpired() {
		t.Error("entry should be stale")
	}

	plain := Key{Endpoint: "/breweries/plain"}
	if err := m.Set(ctx, plain, &Entry{Data: []byte(`{}`), Expires: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := m.Get(ctx, plain); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("stale entry without validators should not be stored, got %v", err)
	}
}

func TestManager_Revalidated(t *testing.T) {
	client := setupTestRedis(t)
	m := NewManager(client, time.Hour)
	ctx := context.Background()
	key := Key{Endpoint: "/breweries/1"}

	entry := &Entry{Data: []byte(`{"id":"1"}`), ETag: `"v1"`, Expires: time.Now().Add(-time.Minute)}
	now := time.Now()
	if err := m.Revalidated(ctx, key, entry, http.Header{"Cache-Control": {"max-age=600"}, "Etag": {`"v2"`}}, now); err != nil {
		t.Fatalf("Revalidated() error = %v", err)
	}

	got, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.IsExpired() {
		t.Error("revalidated entry should be fresh")
	}
	if got.ETag != `"v2"` {
		t.Errorf("ETag = %q, want updated validator", got.ETag)
	}
}

func TestManager_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	m := NewManager(client, time.Hour)
	ctx := context.Background()
	key := Key{Endpoint: "/breweries/bad"}

	client.Set(ctx, key.String(), "not json", time.Minute)

	if _, err := m.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() = %v, want ErrInvalidEntry", err)
	}
	if n := client.Exists(ctx, key.String()).Val(); n != 0 {
		t.Error("corrupt entry should be deleted")
	}
}
