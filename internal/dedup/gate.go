package dedup

import (
	"context"
	"log/slog"
	"time"

	"audit-trail/internal/metrics"
)

// Gate is the idempotency check in front of record creation.
//
// It fails open: store errors are logged and counted, never returned, so an
// unavailable store cannot block ingestion. Two concurrent calls for the same
// event id can both pass IsDuplicate; the store's key uniqueness is the only
// guard against that.
type Gate struct {
	store   Store
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewGate(store Store, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{store: store, ttl: ttl, logger: logger, metrics: m, now: time.Now}
}

// IsDuplicate reports whether eventID was already processed. An empty id is
// never a duplicate.
func (g *Gate) IsDuplicate(ctx context.Context, eventID, sourceService string) bool {
	if eventID == "" {
		return false
	}
	ok, err := g.store.Exists(ctx, eventID, g.now().UTC())
	if err != nil {
		g.logger.ErrorContext(ctx, "dedup check failed; treating as new",
			"event_id", eventID,
			"source_service", sourceService,
			"error", err,
		)
		g.metrics.IncDedupError("exists")
		return false
	}
	if ok {
		g.logger.InfoContext(ctx, "duplicate event", "event_id", eventID, "source_service", sourceService)
	}
	return ok
}

// MarkAsProcessed remembers eventID for the gate's TTL. Empty ids are ignored.
func (g *Gate) MarkAsProcessed(ctx context.Context, eventID, sourceService string) {
	if eventID == "" {
		return
	}
	now := g.now().UTC()
	err := g.store.Insert(ctx, Entry{
		EventID:       eventID,
		SourceService: sourceService,
		CreatedAt:     now,
		ExpiresAt:     now.Add(g.ttl),
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "dedup mark failed",
			"event_id", eventID,
			"source_service", sourceService,
			"error", err,
		)
		g.metrics.IncDedupError("insert")
	}
}

// CleanupExpired deletes entries past their expiry and returns how many were
// removed, or 0 if the store failed.
func (g *Gate) CleanupExpired(ctx context.Context) int64 {
	n, err := g.store.DeleteExpired(ctx, g.now().UTC())
	if err != nil {
		g.logger.ErrorContext(ctx, "dedup cleanup failed", "error", err)
		g.metrics.IncDedupError("cleanup")
		return 0
	}
	g.logger.InfoContext(ctx, "dedup cleanup", "removed", n)
	g.metrics.AddDedupRemoved(n)
	return n
}
