package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically purges expired receipts from a Store.
type Janitor struct {
	store    Store
	interval time.Duration
	batch    int
	clock    func() time.Time
	logger   *zap.Logger
}

// NewJanitor builds a janitor; a nil logger discards output.
func NewJanitor(store Store, interval time.Duration, batch int, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		store:    store,
		interval: interval,
		batch:    batch,
		clock:    time.Now,
		logger:   logger.Named("idempotency-janitor"),
	}
}

// Sweep removes expired receipts in batches until a short batch is returned.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	total := 0
	for {
		removed, err := j.store.CleanupExpired(ctx, j.clock().UTC(), j.batch)
		total += removed
		if err != nil {
			return total, err
		}
		if j.batch <= 0 || removed < j.batch {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	if j == nil || j.store == nil || j.interval <= 0 {
		return
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := j.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				j.logger.Warn("receipt cleanup failed", zap.Error(err), zap.Int("removed", removed))
				continue
			}
			if removed > 0 {
				j.logger.Info("receipt cleanup", zap.Int("removed", removed))
			}
		}
	}
}
