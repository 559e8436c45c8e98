package runstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
)

// setupTestRedis creates a test Redis client.
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

func result(name stage.Name, runID string, status stage.Status) stage.Result {
	return stage.Result{
		Stage:     name,
		RunID:     runID,
		Status:    status,
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Duration:  1500 * time.Millisecond,
		RowsIn:    10,
		RowsOut:   8,
		Counters:  map[string]int64{"dedup_id": 2},
	}
}

func TestRecordAndLast(t *testing.T) {
	store := New(setupTestRedis(t), zerolog.Nop())
	ctx := context.Background()

	if _, err := store.Last(ctx, stage.Clean); !errors.Is(err, ErrNoResult) {
		t.Fatalf("Last() on empty ledger error = %v, want ErrNoResult", err)
	}

	want := result(stage.Clean, "run-1", stage.StatusSuccess)
	if err := store.Record(ctx, want); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := store.Last(ctx, stage.Clean)
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	if got.RunID != want.RunID || got.Status != want.Status || got.RowsOut != want.RowsOut {
		t.Errorf("Last() = %+v, want %+v", got, want)
	}
	if !got.StartedAt.Equal(want.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, want.StartedAt)
	}
	if got.Counters["dedup_id"] != 2 {
		t.Errorf("Counters = %v", got.Counters)
	}
}

func TestHistory_NewestFirstAndCapped(t *testing.T) {
	store := New(setupTestRedis(t), zerolog.Nop())
	store.historyLen = 3
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		if err := store.Record(ctx, result(stage.Extract, id, stage.StatusSuccess)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	hist, err := store.History(ctx, stage.Extract, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("History() len = %d, want 3", len(hist))
	}
	if hist[0].RunID != "r4" || hist[2].RunID != "r2" {
		t.Errorf("History order = %s..%s, want r4..r2", hist[0].RunID, hist[2].RunID)
	}
}

func TestAcquire(t *testing.T) {
	store := New(setupTestRedis(t), zerolog.Nop())
	ctx := context.Background()

	release, err := store.Acquire(ctx, stage.Convert, time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := store.Acquire(ctx, stage.Convert, time.Minute); !errors.Is(err, ErrLocked) {
		t.Errorf("Second Acquire() error = %v, want ErrLocked", err)
	}

	// Other stages are independent.
	otherRelease, err := store.Acquire(ctx, stage.Clean, time.Minute)
	if err != nil {
		t.Fatalf("Acquire(clean) error = %v", err)
	}
	defer otherRelease(ctx)

	if err := release(ctx); err != nil {
		t.Fatalf("release() error = %v", err)
	}
	again, err := store.Acquire(ctx, stage.Convert, time.Minute)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	again(ctx)
}

func TestAcquire_StaleReleaseKeepsNewOwner(t *testing.T) {
	rdb := setupTestRedis(t)
	store := New(rdb, zerolog.Nop())
	ctx := context.Background()

	staleRelease, err := store.Acquire(ctx, stage.Aggregate, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if _, err := store.Acquire(ctx, stage.Aggregate, time.Minute); err != nil {
		t.Fatalf("Acquire() after expiry error = %v", err)
	}

	if err := staleRelease(ctx); err != nil {
		t.Fatalf("stale release error = %v", err)
	}
	if n, _ := rdb.Exists(ctx, lockKey(stage.Aggregate)).Result(); n != 1 {
		t.Error("Stale release must not delete the new owner's lock")
	}
}
