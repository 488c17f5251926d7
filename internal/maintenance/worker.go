package maintenance

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Consolidator represents the dedupe behavior needed by the worker.
type Consolidator interface {
	Consolidate(ctx context.Context, threshold float64) (int, error)
}

// Start launches a periodic consolidation worker. It is the time-based
// counterpart to the explicit memory_consolidate tool; passing threshold 0
// uses the manager's configured default.
func Start(ctx context.Context, logger *log.Logger, interval time.Duration, c Consolidator) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Consolidate(ctx, 0)
			if err != nil {
				logger.Warn("scheduled consolidation failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("scheduled consolidation merged duplicates", "count", n)
			}
		}
	}
}
