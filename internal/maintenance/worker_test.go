package maintenance

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type countingConsolidator struct {
	calls atomic.Int64
}

func (c *countingConsolidator) Consolidate(_ context.Context, _ float64) (int, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestStart_TicksAndStopsOnCancel(t *testing.T) {
	t.Parallel()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	c := &countingConsolidator{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Start(ctx, logger, 5*time.Millisecond, c)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for c.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("worker did not tick in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
