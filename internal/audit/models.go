package audit

import (
	"encoding/json"
	"time"
)

// ActionType is a catalog entry. Codes are upper-case and unique; entries are
// deactivated, never deleted.
type ActionType struct {
	ID          int64  `json:"id" yaml:"-"`
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
	IsActive    bool   `json:"is_active" yaml:"is_active"`
}

// ActionTypeRef is the resolved action type embedded in read results.
type ActionTypeRef struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

func (t ActionType) Ref() ActionTypeRef {
	return ActionTypeRef{ID: t.ID, Code: t.Code, Description: t.Description}
}

// Record is an immutable audit entry about one action on one entity.
//
// Guarantees:
//   - records are append-only; only the administrative delete removes them
//   - Version is 1-based and increases by one per (EntityType, EntityID)
//   - PreviousData/NewData are stored verbatim; nil means absent
type Record struct {
	ID           int64           `json:"id"`
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	ActionTypeID int64           `json:"action_type_id"`
	ActionType   ActionTypeRef   `json:"action_type"`
	ActionBy     *string         `json:"action_by"`
	ActionAt     time.Time       `json:"action_at"`
	PreviousData json.RawMessage `json:"previous_data"`
	NewData      json.RawMessage `json:"new_data"`
	Version      int             `json:"version"`
	IPAddress    *string         `json:"ip_address"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CreateInput is the write-path request. Optional fields are nil when absent.
type CreateInput struct {
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	ActionTypeCode string          `json:"action_type_code"`
	ActionBy       *string         `json:"action_by,omitempty"`
	PreviousData   json.RawMessage `json:"previous_data,omitempty"`
	NewData        json.RawMessage `json:"new_data,omitempty"`
	ActionAt       *time.Time      `json:"action_at,omitempty"`
	IPAddress      *string         `json:"ip_address,omitempty"`
}

// ListFilter carries caller-supplied list criteria as received from the request layer.
type ListFilter struct {
	EntityType     string
	EntityID       string
	ActionTypeCode string
	ActionBy       string
	DateFrom       string
	DateTo         string
	Page           int
	Limit          int
	SortBy         string
	SortOrder      string
}

// Page is a paginated slice of records.
type Page struct {
	Records []Record `json:"records"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
}

type ActionCount struct {
	ActionType ActionTypeRef `json:"action_type"`
	Count      int64         `json:"count"`
}

type EntityCount struct {
	EntityType string `json:"entity_type"`
	Count      int64  `json:"count"`
}

// Stats summarizes the records visible to one caller.
type Stats struct {
	TotalRecords    int64         `json:"totalRecords"`
	RecentActivity  int64         `json:"recentActivity"`
	ActionBreakdown []ActionCount `json:"actionBreakdown"`
	EntityBreakdown []EntityCount `json:"entityBreakdown"`
}
