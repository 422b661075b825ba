package dedup

import (
	"context"
	"time"
)

// Sweep calls gate.CleanupExpired every interval until ctx is done.
// Concurrent sweepers are harmless since deletion is idempotent.
func Sweep(ctx context.Context, gate *Gate, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			gate.CleanupExpired(ctx)
		}
	}
}
