// Package runstate keeps a Redis ledger of stage results and a per-stage
// lock so that two runs of the same stage never overlap.
//
// Keys:
//
//	brewery:stage:<name>:last     JSON of the latest Result
//	brewery:stage:<name>:history  list of recent Results, newest first
//	brewery:stage:<name>:lock     lock token, expires after its TTL
package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
)

// Prometheus metrics for the run ledger.
var (
	lockContentionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewery_runstate_lock_contention_total",
		Help: "Stage lock acquisitions refused because another run holds the lock",
	}, []string{"stage"})

	ledgerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewery_runstate_errors_total",
		Help: "Run ledger operation errors",
	}, []string{"operation"})
)

// KeyPrefix prefixes every key written by the store.
const KeyPrefix = "brewery:stage:"

// DefaultHistoryLen is the number of results kept per stage.
const DefaultHistoryLen = 50

var (
	// ErrLocked is returned when another run holds the stage lock.
	ErrLocked = errors.New("stage is locked by another run")

	// ErrNoResult is returned when a stage has no recorded result.
	ErrNoResult = errors.New("no recorded result")
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Store is a Redis-backed run ledger.
type Store struct {
	redis      *redis.Client
	historyLen int64
	logger     zerolog.Logger
}

// New creates a store on an existing Redis client.
func New(redisClient *redis.Client, logger zerolog.Logger) *Store {
	return &Store{
		redis:      redisClient,
		historyLen: DefaultHistoryLen,
		logger:     logger,
	}
}

func lastKey(name stage.Name) string    { return KeyPrefix + string(name) + ":last" }
func historyKey(name stage.Name) string { return KeyPrefix + string(name) + ":history" }
func lockKey(name stage.Name) string    { return KeyPrefix + string(name) + ":lock" }

// Record stores res as the latest result of its stage and prepends it to
// the stage history.
func (s *Store) Record(ctx context.Context, res stage.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lastKey(res.Stage), data, 0)
		pipe.LPush(ctx, historyKey(res.Stage), data)
		pipe.LTrim(ctx, historyKey(res.Stage), 0, s.historyLen-1)
		return nil
	})
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("record").Inc()
		return fmt.Errorf("record %s result: %w", res.Stage, err)
	}

	s.logger.Debug().
		Str("stage", string(res.Stage)).
		Str("run_id", res.RunID).
		Str("status", string(res.Status)).
		Msg("Recorded stage result")
	return nil
}

// Last returns the latest recorded result of a stage.
func (s *Store) Last(ctx context.Context, name stage.Name) (stage.Result, error) {
	data, err := s.redis.Get(ctx, lastKey(name)).Bytes()
	if err == redis.Nil {
		return stage.Result{}, fmt.Errorf("%s: %w", name, ErrNoResult)
	}
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("last").Inc()
		return stage.Result{}, fmt.Errorf("get %s result: %w", name, err)
	}

	var res stage.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return stage.Result{}, fmt.Errorf("decode %s result: %w", name, err)
	}
	return res, nil
}

// History returns up to n recent results of a stage, newest first.
func (s *Store) History(ctx context.Context, name stage.Name, n int64) ([]stage.Result, error) {
	if n <= 0 {
		return nil, nil
	}
	items, err := s.redis.LRange(ctx, historyKey(name), 0, n-1).Result()
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("history").Inc()
		return nil, fmt.Errorf("get %s history: %w", name, err)
	}

	out := make([]stage.Result, 0, len(items))
	for _, item := range items {
		var res stage.Result
		if err := json.Unmarshal([]byte(item), &res); err != nil {
			return nil, fmt.Errorf("decode %s history: %w", name, err)
		}
		out = append(out, res)
	}
	return out, nil
}
