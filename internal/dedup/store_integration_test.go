//go:build integration

package dedup_test

import (
	"context"
	"testing"
	"time"

	"audit-trail/internal/dedup"
	"audit-trail/pkg/testutil/containers"

	"github.com/stretchr/testify/suite"
)

// storeSuite runs the same contract against every Store implementation.
type storeSuite struct {
	suite.Suite
	newStore func() dedup.Store
	reset    func()
}

func TestPostgresStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	suite.Run(t, &storeSuite{
		newStore: func() dedup.Store { return dedup.NewPostgresStore(pg.DB) },
		reset:    func() { _ = pg.Truncate(context.Background()) },
	})
}

func TestRedisStore(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	suite.Run(t, &storeSuite{
		newStore: func() dedup.Store { return dedup.NewRedisStore(rc.Client) },
		reset:    func() { _ = rc.Client.FlushAll(context.Background()).Err() },
	})
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storeSuite{
		newStore: func() dedup.Store { return dedup.NewMemoryStore() },
		reset:    func() {},
	})
}

func (s *storeSuite) SetupTest() { s.reset() }

func (s *storeSuite) TestExistsInsertDelete() {
	ctx := context.Background()
	store := s.newStore()
	now := time.Now().UTC().Truncate(time.Millisecond)

	ok, err := store.Exists(ctx, "evt-1", now)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(store.Insert(ctx, dedup.Entry{EventID: "evt-1", SourceService: "billing", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	s.Require().NoError(store.Insert(ctx, dedup.Entry{EventID: "evt-2", SourceService: "billing", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))

	ok, err = store.Exists(ctx, "evt-1", now)
	s.Require().NoError(err)
	s.True(ok)

	later := now.Add(2 * time.Minute)
	ok, err = store.Exists(ctx, "evt-2", later)
	s.Require().NoError(err)
	s.False(ok)

	n, err := store.DeleteExpired(ctx, later)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	n, err = store.DeleteExpired(ctx, later)
	s.Require().NoError(err)
	s.Zero(n)

	ok, err = store.Exists(ctx, "evt-1", later)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *storeSuite) TestReinsertRefreshesExpiry() {
	ctx := context.Background()
	store := s.newStore()
	now := time.Now().UTC().Truncate(time.Millisecond)

	s.Require().NoError(store.Insert(ctx, dedup.Entry{EventID: "evt", SourceService: "a", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))
	s.Require().NoError(store.Insert(ctx, dedup.Entry{EventID: "evt", SourceService: "a", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	n, err := store.DeleteExpired(ctx, now.Add(10*time.Minute))
	s.Require().NoError(err)
	s.Zero(n)
}
