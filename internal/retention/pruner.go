// Package retention deletes recommendation history older than a configured
// age.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/bookwise/internal/metrics"
	"go.uber.org/zap"
)

// DefaultInterval is how often Run prunes when no interval is given.
const DefaultInterval = time.Hour

// HistoryPruner deletes history rows created before cutoff.
type HistoryPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner periodically removes history older than maxAge.
type Pruner struct {
	store    HistoryPruner
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewPruner returns a Pruner. If interval is <= 0, it defaults to
// DefaultInterval.
func NewPruner(store HistoryPruner, maxAge, interval time.Duration) *Pruner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pruner{store: store, maxAge: maxAge, interval: interval, now: time.Now}
}

// Run prunes once immediately and then every interval until ctx is
// cancelled. A non-positive maxAge makes Run return at once.
func (p *Pruner) Run(ctx context.Context) {
	if p.maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			zap.L().Error("history pruning failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce deletes rows older than maxAge and returns how many were removed.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	if p.maxAge <= 0 {
		return 0, nil
	}
	cutoff := p.now().Add(-p.maxAge)
	n, err := p.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning history before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		metrics.HistoryPruned.Add(float64(n))
		zap.L().Info("history pruned", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
