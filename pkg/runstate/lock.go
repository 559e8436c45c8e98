package runstate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
)

// ReleaseFunc releases a lock taken by Acquire.
type ReleaseFunc func(ctx context.Context) error

// Acquire takes the lock of a stage for at most ttl. It fails with ErrLocked
// when another run holds it. The returned release only deletes the lock if
// it has not expired and been taken by someone else in the meantime.
func (s *Store) Acquire(ctx context.Context, name stage.Name, ttl time.Duration) (ReleaseFunc, error) {
	token := uuid.NewString()
	ok, err := s.redis.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("acquire").Inc()
		return nil, fmt.Errorf("acquire %s lock: %w", name, err)
	}
	if !ok {
		lockContentionTotal.WithLabelValues(string(name)).Inc()
		s.logger.Warn().Str("stage", string(name)).Msg("Stage lock held by another run")
		return nil, fmt.Errorf("%s: %w", name, ErrLocked)
	}

	s.logger.Debug().
		Str("stage", string(name)).
		Dur("ttl", ttl).
		Msg("Acquired stage lock")

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, s.redis, []string{lockKey(name)}, token).Err(); err != nil {
			ledgerErrorsTotal.WithLabelValues("release").Inc()
			return fmt.Errorf("release %s lock: %w", name, err)
		}
		return nil
	}, nil
}
