package dedup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"audit-trail/internal/dedup"
	"audit-trail/internal/dedup/mocks"
	"audit-trail/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestGate_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := dedup.NewMemoryStore()
	gate := dedup.NewGate(store, time.Hour, nil, nil)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	dedup.SetClock(gate, func() time.Time { return now })

	assert.False(t, gate.IsDuplicate(ctx, "evt-1", "billing"))

	gate.MarkAsProcessed(ctx, "evt-1", "billing")
	assert.True(t, gate.IsDuplicate(ctx, "evt-1", "billing"))
	assert.False(t, gate.IsDuplicate(ctx, "evt-2", "billing"))

	// Not yet expired: nothing to sweep.
	assert.Zero(t, gate.CleanupExpired(ctx))

	now = now.Add(time.Hour + time.Second)
	assert.Equal(t, int64(1), gate.CleanupExpired(ctx))
	assert.False(t, gate.IsDuplicate(ctx, "evt-1", "billing"))
	assert.Zero(t, store.Len())
}

func TestGate_ExpiredEntryIsNotDuplicateBeforeSweep(t *testing.T) {
	ctx := context.Background()
	gate := dedup.NewGate(dedup.NewMemoryStore(), time.Minute, nil, nil)
	now := time.Now()
	dedup.SetClock(gate, func() time.Time { return now })

	gate.MarkAsProcessed(ctx, "evt", "svc")
	now = now.Add(2 * time.Minute)
	assert.False(t, gate.IsDuplicate(ctx, "evt", "svc"))
}

func TestGate_EmptyEventIDIsIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	gate := dedup.NewGate(store, time.Hour, nil, nil)

	// No store calls expected.
	assert.False(t, gate.IsDuplicate(context.Background(), "", "svc"))
	gate.MarkAsProcessed(context.Background(), "", "svc")
}

func TestGate_FailsOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	m := metrics.New(prometheus.NewRegistry())
	gate := dedup.NewGate(store, time.Hour, nil, m)
	boom := errors.New("connection refused")

	store.EXPECT().Exists(gomock.Any(), "evt", gomock.Any()).Return(false, boom)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(boom)
	store.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).Return(int64(5), boom)

	ctx := context.Background()
	assert.False(t, gate.IsDuplicate(ctx, "evt", "svc"))
	gate.MarkAsProcessed(ctx, "evt", "svc")
	assert.Zero(t, gate.CleanupExpired(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DedupErrors.WithLabelValues("exists")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DedupErrors.WithLabelValues("insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DedupErrors.WithLabelValues("cleanup")))
}

func TestGate_MarkUsesTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	gate := dedup.NewGate(store, 0, nil, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dedup.SetClock(gate, func() time.Time { return now })

	store.EXPECT().Insert(gomock.Any(), dedup.Entry{
		EventID:       "evt",
		SourceService: "orders",
		CreatedAt:     now,
		ExpiresAt:     now.Add(dedup.DefaultTTL),
	}).Return(nil)

	gate.MarkAsProcessed(context.Background(), "evt", "orders")
}

func TestSweep_RunsUntilCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	gate := dedup.NewGate(store, time.Hour, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	called := make(chan struct{}, 8)
	store.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, time.Time) (int64, error) {
		select {
		case called <- struct{}{}:
		default:
		}
		return 0, nil
	}).MinTimes(1)

	done := make(chan struct{})
	go func() {
		dedup.Sweep(ctx, gate, 5*time.Millisecond)
		close(done)
	}()

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not stop")
	}
}
