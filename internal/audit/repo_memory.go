package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"audit-trail/internal/rbac"
)

// MemoryRepo is an in-memory Repository useful for tests and local runs.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	types   []ActionType
	records []Record
	nextID  int64
	nextTID int64
	now     func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{now: time.Now}
}

func (r *MemoryRepo) ListActionTypes(ctx context.Context) ([]ActionType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActionType, len(r.types))
	copy(out, r.types)
	return out, nil
}

func (r *MemoryRepo) UpsertActionTypes(ctx context.Context, types []ActionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
next:
	for _, t := range types {
		for i := range r.types {
			if r.types[i].Code == t.Code {
				r.types[i].Description = t.Description
				r.types[i].IsActive = t.IsActive
				continue next
			}
		}
		r.nextTID++
		t.ID = r.nextTID
		r.types = append(r.types, t)
	}
	return nil
}

func (r *MemoryRepo) MaxVersion(ctx context.Context, entityType, entityID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := 0
	for _, rec := range r.records {
		if rec.EntityType == entityType && rec.EntityID == entityID && rec.Version > v {
			v = rec.Version
		}
	}
	return v, nil
}

func (r *MemoryRepo) Insert(ctx context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ex := range r.records {
		if ex.EntityType == rec.EntityType && ex.EntityID == rec.EntityID && ex.Version == rec.Version {
			return Record{}, ErrVersionConflict
		}
	}
	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = r.now().UTC()
	if t, ok := r.typeByID(rec.ActionTypeID); ok {
		rec.ActionType = t.Ref()
	}
	r.records = append(r.records, rec)
	return rec, nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id int64, scope rbac.Scope) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id && scope.Allows(rec.ActionBy) {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (r *MemoryRepo) Find(ctx context.Context, q Query) ([]Record, error) {
	r.mu.Lock()
	out := r.match(q)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		c := compareColumn(out[i], out[j], q.Sort.Column)
		if c == 0 {
			c = cmpInt64(out[i].ID, out[j].ID)
		}
		if q.Sort.Desc {
			return c > 0
		}
		return c < 0
	})

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []Record{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) Count(ctx context.Context, q Query) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.match(q))), nil
}

func (r *MemoryRepo) CountByActionType(ctx context.Context, scope rbac.Scope) ([]ActionCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[int64]int64{}
	for _, rec := range r.match(Query{Scope: scope}) {
		counts[rec.ActionTypeID]++
	}
	out := make([]ActionCount, 0, len(counts))
	for id, n := range counts {
		ref := ActionTypeRef{ID: id}
		if t, ok := r.typeByID(id); ok {
			ref = t.Ref()
		}
		out = append(out, ActionCount{ActionType: ref, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ActionType.Code < out[j].ActionType.Code
	})
	return out, nil
}

func (r *MemoryRepo) CountByEntityType(ctx context.Context, scope rbac.Scope) ([]EntityCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{}
	for _, rec := range r.match(Query{Scope: scope}) {
		counts[rec.EntityType]++
	}
	out := make([]EntityCount, 0, len(counts))
	for et, n := range counts {
		out = append(out, EntityCount{EntityType: et, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].EntityType < out[j].EntityType
	})
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.records {
		if rec.ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Records returns a copy of everything stored, in insertion order.
func (r *MemoryRepo) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

func (r *MemoryRepo) typeByID(id int64) (ActionType, bool) {
	for _, t := range r.types {
		if t.ID == id {
			return t, true
		}
	}
	return ActionType{}, false
}

// match must be called with r.mu held.
func (r *MemoryRepo) match(q Query) []Record {
	search := strings.ToLower(q.Search)
	out := []Record{}
	for _, rec := range r.records {
		if !q.Scope.Allows(rec.ActionBy) {
			continue
		}
		if q.EntityType != "" && rec.EntityType != q.EntityType {
			continue
		}
		if q.EntityID != "" && rec.EntityID != q.EntityID {
			continue
		}
		if q.ActionTypeID != nil && rec.ActionTypeID != *q.ActionTypeID {
			continue
		}
		if q.ActionBy != "" && (rec.ActionBy == nil || *rec.ActionBy != q.ActionBy) {
			continue
		}
		if q.From != nil && rec.ActionAt.Before(*q.From) {
			continue
		}
		if q.To != nil && rec.ActionAt.After(*q.To) {
			continue
		}
		if search != "" && !matchesSearch(rec, search) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func matchesSearch(rec Record, lowered string) bool {
	if strings.Contains(strings.ToLower(rec.EntityType), lowered) ||
		strings.Contains(strings.ToLower(rec.EntityID), lowered) {
		return true
	}
	return rec.ActionBy != nil && strings.Contains(strings.ToLower(*rec.ActionBy), lowered)
}

// compareColumn orders two records by a sortable column. Missing optional
// values sort after present ones, as NULLs do in Postgres ascending order.
func compareColumn(a, b Record, col string) int {
	switch col {
	case "id":
		return cmpInt64(a.ID, b.ID)
	case "entity_type":
		return strings.Compare(a.EntityType, b.EntityType)
	case "entity_id":
		return strings.Compare(a.EntityID, b.EntityID)
	case "action_type_id":
		return cmpInt64(a.ActionTypeID, b.ActionTypeID)
	case "action_by":
		return cmpOptional(a.ActionBy, b.ActionBy)
	case "version":
		return cmpInt64(int64(a.Version), int64(b.Version))
	case "ip_address":
		return cmpOptional(a.IPAddress, b.IPAddress)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return a.ActionAt.Compare(b.ActionAt)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpOptional(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return strings.Compare(*a, *b)
	}
}
