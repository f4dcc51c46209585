package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"replayhub/internal/pkg/clock"
)

// Pruner deletes rows created before a unix millis cutoff.
type Pruner interface {
	Prune(ctx context.Context, before int64) (int64, error)
}

// AuditRetention removes audit entries older than Retention.
type AuditRetention struct {
	Pruner    Pruner
	Clock     clock.Clock
	Retention time.Duration
}

// RunOnce prunes a single time and returns the number of removed entries.
func (a *AuditRetention) RunOnce(ctx context.Context) (int64, error) {
	if a.Retention <= 0 {
		return 0, nil
	}
	cutoff := a.Clock.Now().Add(-a.Retention).UnixMilli()
	return a.Pruner.Prune(ctx, cutoff)
}

// Every runs job immediately and then on each tick until ctx is done.
// Errors are logged and do not stop the loop.
func Every(ctx context.Context, name string, interval time.Duration, job func(context.Context) (int64, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		n, err := job(ctx)
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("worker job failed")
		} else {
			log.Info().Str("job", name).Int64("affected", n).Dur("duration", time.Since(start)).Msg("worker job finished")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
