package audit

import (
	"context"
	"fmt"
)

// VersionSource reports the highest version recorded for an entity key, or 0.
type VersionSource interface {
	MaxVersion(ctx context.Context, entityType, entityID string) (int, error)
}

// VersionResolver computes the next per-entity version. It reads the current
// maximum without locking; uniqueness is enforced by the repository and the
// write path retries on ErrVersionConflict.
type VersionResolver struct {
	src VersionSource
}

func NewVersionResolver(src VersionSource) VersionResolver {
	return VersionResolver{src: src}
}

func (v VersionResolver) Next(ctx context.Context, entityType, entityID string) (int, error) {
	max, err := v.src.MaxVersion(ctx, entityType, entityID)
	if err != nil {
		return 0, fmt.Errorf("resolve version: %w", err)
	}
	return max + 1, nil
}
