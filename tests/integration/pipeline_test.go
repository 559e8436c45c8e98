//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lucasllimati/Projeto-AB-InBev/internal/testutil"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/config"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/pipeline"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/runstate"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/schedule"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newPipeline(t *testing.T, apiURL string, ledger pipeline.Ledger) *pipeline.Pipeline {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.API.BaseURL = apiURL
	cfg.API.RequestsPerSecond = 0

	p, err := pipeline.New(cfg, pipeline.WithLedger(ledger), pipeline.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	return p
}

func TestIntegration_RunAllRecordsLedger(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockBreweryAPI(testutil.Breweries(75))
	defer mock.Close()

	store := runstate.New(redisClient, zerolog.Nop())
	p := newPipeline(t, mock.URL(), store)

	ctx := context.Background()
	results := p.RunAll(ctx)
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Status != stage.StatusSuccess {
			t.Fatalf("Stage %s: expected success, got %s (%v)", res.Stage, res.Status, res.Err())
		}

		last, err := store.Last(ctx, res.Stage)
		if err != nil {
			t.Fatalf("Failed to read ledger for %s: %v", res.Stage, err)
		}
		if last.RunID != res.RunID {
			t.Errorf("Stage %s: ledger run ID %s, want %s", res.Stage, last.RunID, res.RunID)
		}
	}

	rows, err := p.ReadAggregate(ctx)
	if err != nil {
		t.Fatalf("Failed to read aggregate: %v", err)
	}
	var total int64
	for _, r := range rows {
		total += r.Count
	}
	if total != 75 {
		t.Errorf("Expected 75 breweries in aggregate, got %d", total)
	}

	// Every stage lock is released.
	keys, err := redisClient.Keys(ctx, runstate.KeyPrefix+"*:lock").Result()
	if err != nil {
		t.Fatalf("Failed to list lock keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no lock keys, got %v", keys)
	}
}

func TestIntegration_ConcurrentRunsAreSerialized(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockBreweryAPI(testutil.Breweries(10))
	defer mock.Close()

	store := runstate.New(redisClient, zerolog.Nop())
	a := newPipeline(t, mock.URL(), store)
	b := newPipeline(t, mock.URL(), store)

	// Hold the extract lock as if another process were running.
	release, err := store.Acquire(context.Background(), stage.Extract, time.Minute)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]stage.Result, 2)
	for i, p := range []*pipeline.Pipeline{a, b} {
		wg.Add(1)
		go func(i int, p *pipeline.Pipeline) {
			defer wg.Done()
			results[i] = p.Extract(context.Background())
		}(i, p)
	}
	wg.Wait()

	for _, res := range results {
		if !errors.Is(res.Err(), runstate.ErrLocked) {
			t.Errorf("Expected ErrLocked while lock is held, got %v", res.Err())
		}
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("Expected no API requests while locked, got %d", mock.GetRequestCount())
	}

	if err := release(context.Background()); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
	if res := a.Extract(context.Background()); res.Status != stage.StatusSuccess {
		t.Errorf("Expected success after release, got %s (%v)", res.Status, res.Err())
	}

	history, err := store.History(context.Background(), stage.Extract, 10)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("Expected 3 recorded extract results, got %d", len(history))
	}
}

func TestIntegration_ScheduledRunRetriesTransientFailure(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockBreweryAPI(testutil.Breweries(10))
	defer mock.Close()
	mock.FailPageTimes(1, 1, testutil.NewRateLimitResponse())

	store := runstate.New(redisClient, zerolog.Nop())
	p := newPipeline(t, mock.URL(), store)

	sched, err := schedule.New(p, schedule.Config{
		Cron:          "@daily",
		Retries:       2,
		RetryDelay:    50 * time.Millisecond,
		MaxRetryDelay: 100 * time.Millisecond,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	results, err := sched.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if len(results) != 4 || !results[3].OK() {
		t.Fatalf("Expected all stages to finish, got %+v", results)
	}

	history, err := store.History(context.Background(), stage.Extract, 10)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) < 2 || history[len(history)-1].Status != stage.StatusFailed {
		t.Errorf("Expected a failed extract followed by a retry, got %d results", len(history))
	}
}
