package audit

import (
	"strings"
	"time"

	"audit-trail/internal/rbac"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Query is the repository-level predicate. Scope is always applied; empty
// string criteria and nil pointers mean "no restriction".
type Query struct {
	Scope rbac.Scope

	EntityType   string
	EntityID     string
	ActionTypeID *int64
	ActionBy     string
	From         *time.Time
	To           *time.Time

	// Search is a case-insensitive substring matched against entity_type,
	// entity_id and action_by, OR-combined.
	Search string

	Sort   Sort
	Offset int
	// Limit of zero returns every matching row.
	Limit int
}

type Sort struct {
	Column string
	Desc   bool
}

// sortableColumns whitelists audit_log columns accepted as sortBy.
var sortableColumns = map[string]struct{}{
	"id":             {},
	"entity_type":    {},
	"entity_id":      {},
	"action_type_id": {},
	"action_by":      {},
	"action_at":      {},
	"version":        {},
	"ip_address":     {},
	"created_at":     {},
}

var (
	sortNewestFirst = Sort{Column: "action_at", Desc: true}
	sortByVersion   = Sort{Column: "version"}
)

func parseSort(sortBy, sortOrder string) (Sort, error) {
	s := sortNewestFirst
	if sortBy = strings.TrimSpace(sortBy); sortBy != "" {
		if _, ok := sortableColumns[sortBy]; !ok {
			return Sort{}, validationErr("sortBy %q is not a sortable column", sortBy)
		}
		s.Column = sortBy
	}
	switch strings.ToLower(strings.TrimSpace(sortOrder)) {
	case "", "desc":
		s.Desc = true
	case "asc":
		s.Desc = false
	default:
		return Sort{}, validationErr("sortOrder must be asc or desc, got %q", sortOrder)
	}
	return s, nil
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

const dateOnly = "2006-01-02"

// parseDateBound accepts YYYY-MM-DD or RFC3339. Date-only lower bounds start
// the UTC day; date-only upper bounds end it at the last millisecond.
func parseDateBound(field, v string, upper bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if d, err := time.ParseInLocation(dateOnly, v, time.UTC); err == nil {
		if upper {
			d = d.Add(24*time.Hour - time.Millisecond)
		}
		return &d, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, validationErr("%s must be YYYY-MM-DD or RFC3339, got %q", field, v)
	}
	t = t.UTC()
	return &t, nil
}
