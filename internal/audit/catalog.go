package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ActionTypeSource lists the persisted catalog.
type ActionTypeSource interface {
	ListActionTypes(ctx context.Context) ([]ActionType, error)
}

// ActionTypeWriter upserts catalog entries by code.
type ActionTypeWriter interface {
	UpsertActionTypes(ctx context.Context, types []ActionType) error
}

// Catalog is a read-only code/id lookup over action types, loaded at startup
// and handed to the services that need it.
type Catalog struct {
	src ActionTypeSource

	mu     sync.RWMutex
	byCode map[string]ActionType
	byID   map[int64]ActionType
}

func LoadCatalog(ctx context.Context, src ActionTypeSource) (*Catalog, error) {
	c := &Catalog{src: src}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload replaces the in-memory view. Used after seeding within the same process.
func (c *Catalog) Reload(ctx context.Context) error {
	types, err := c.src.ListActionTypes(ctx)
	if err != nil {
		return fmt.Errorf("load action types: %w", err)
	}
	byCode := make(map[string]ActionType, len(types))
	byID := make(map[int64]ActionType, len(types))
	for _, t := range types {
		byCode[strings.ToUpper(t.Code)] = t
		byID[t.ID] = t
	}

	c.mu.Lock()
	c.byCode, c.byID = byCode, byID
	c.mu.Unlock()
	return nil
}

// Lookup resolves a code case-insensitively.
func (c *Catalog) Lookup(code string) (ActionType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return t, ok
}

func (c *Catalog) ByID(id int64) (ActionType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byID[id]
	return t, ok
}

// All returns the catalog ordered by id.
func (c *Catalog) All() []ActionType {
	c.mu.RLock()
	out := make([]ActionType, 0, len(c.byID))
	for _, t := range c.byID {
		out = append(out, t)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type seedFile struct {
	ActionTypes []ActionType `yaml:"action_types"`
}

// ParseActionTypes decodes a YAML seed document. Codes are upper-cased and
// must be unique.
func ParseActionTypes(data []byte) ([]ActionType, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse action types: %w", err)
	}
	seen := make(map[string]struct{}, len(f.ActionTypes))
	out := make([]ActionType, 0, len(f.ActionTypes))
	for _, t := range f.ActionTypes {
		t.Code = strings.ToUpper(strings.TrimSpace(t.Code))
		if t.Code == "" {
			return nil, fmt.Errorf("parse action types: empty code")
		}
		if _, dup := seen[t.Code]; dup {
			return nil, fmt.Errorf("parse action types: duplicate code %q", t.Code)
		}
		seen[t.Code] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// SeedActionTypes upserts the given catalog entries.
func SeedActionTypes(ctx context.Context, w ActionTypeWriter, types []ActionType) error {
	if len(types) == 0 {
		return nil
	}
	if err := w.UpsertActionTypes(ctx, types); err != nil {
		return fmt.Errorf("seed action types: %w", err)
	}
	return nil
}
