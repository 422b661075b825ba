package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"audit-trail/internal/rbac"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Repository is the persistence contract for audit records and the action-type catalog.
//
// No update method exists; records are append-only. Delete is administrative.
type Repository interface {
	ActionTypeSource
	ActionTypeWriter
	VersionSource

	// Insert stores r and returns it with ID and CreatedAt assigned.
	// Returns ErrVersionConflict if (EntityType, EntityID, Version) is taken.
	Insert(ctx context.Context, r Record) (Record, error)
	// FindByID returns ErrNotFound if the id is absent or outside scope.
	FindByID(ctx context.Context, id int64, scope rbac.Scope) (Record, error)
	Find(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context, q Query) (int64, error)
	CountByActionType(ctx context.Context, scope rbac.Scope) ([]ActionCount, error)
	// CountByEntityType returns counts ordered by descending frequency.
	CountByEntityType(ctx context.Context, scope rbac.Scope) ([]EntityCount, error)
	// Delete returns ErrNotFound if no row was removed.
	Delete(ctx context.Context, id int64) error
}

// versionAttempts bounds retries when concurrent writers race on one entity key.
const versionAttempts = 3

// recentWindow is the look-back used for Stats.RecentActivity.
const recentWindow = 24 * time.Hour

// Service is the audit record store: it composes the catalog, the version
// resolver and the access filter over a Repository.
type Service struct {
	repo     Repository
	catalog  *Catalog
	versions VersionResolver
	tracer   trace.Tracer
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, catalog *Catalog) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		versions: NewVersionResolver(repo),
		tracer:   otel.Tracer("audit-trail/internal/audit"),
		clock:    time.Now,
	}
}

// Catalog exposes the action-type lookup the service was built with.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Create records one action. It resolves the action type, assigns the next
// version for the entity key and persists the record.
func (s *Service) Create(ctx context.Context, in CreateInput) (rec Record, err error) {
	ctx, span := s.tracer.Start(ctx, "audit.Create", trace.WithAttributes(
		attribute.String("audit.entity_type", in.EntityType),
		attribute.String("audit.action_type", in.ActionTypeCode),
	))
	defer func() { endSpan(span, err) }()

	in.EntityType = strings.TrimSpace(in.EntityType)
	if in.EntityType == "" {
		return Record{}, validationErr("entity_type is required")
	}
	if strings.TrimSpace(in.ActionTypeCode) == "" {
		return Record{}, validationErr("action_type_code is required")
	}
	prev, err := normalizePayload("previous_data", in.PreviousData)
	if err != nil {
		return Record{}, err
	}
	next, err := normalizePayload("new_data", in.NewData)
	if err != nil {
		return Record{}, err
	}

	at, ok := s.catalog.Lookup(in.ActionTypeCode)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownActionType, in.ActionTypeCode)
	}

	actionAt := s.clock().UTC()
	if in.ActionAt != nil && !in.ActionAt.IsZero() {
		actionAt = in.ActionAt.UTC()
	}

	r := Record{
		EntityType:   in.EntityType,
		EntityID:     in.EntityID,
		ActionTypeID: at.ID,
		ActionType:   at.Ref(),
		ActionBy:     nonEmpty(in.ActionBy),
		ActionAt:     actionAt,
		PreviousData: prev,
		NewData:      next,
		IPAddress:    nonEmpty(in.IPAddress),
	}

	for attempt := 1; ; attempt++ {
		r.Version, err = s.versions.Next(ctx, r.EntityType, r.EntityID)
		if err != nil {
			return Record{}, err
		}
		stored, err := s.repo.Insert(ctx, r)
		if err == nil {
			stored.ActionType = at.Ref()
			span.SetAttributes(attribute.Int("audit.version", stored.Version))
			return stored, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt == versionAttempts {
			return Record{}, fmt.Errorf("insert audit record: %w", err)
		}
	}
}

// List returns one page of records visible to caller that match f.
// An action type code missing from the catalog yields an empty page.
func (s *Service) List(ctx context.Context, f ListFilter, caller rbac.Caller) (out Page, err error) {
	ctx, span := s.tracer.Start(ctx, "audit.List")
	defer func() { endSpan(span, err) }()

	page, limit := normalizePaging(f.Page, f.Limit)
	out = Page{Records: []Record{}, Page: page, Limit: limit}

	sort, err := parseSort(f.SortBy, f.SortOrder)
	if err != nil {
		return Page{}, err
	}
	from, err := parseDateBound("dateFrom", f.DateFrom, false)
	if err != nil {
		return Page{}, err
	}
	to, err := parseDateBound("dateTo", f.DateTo, true)
	if err != nil {
		return Page{}, err
	}
	if from != nil && to != nil && from.After(*to) {
		return Page{}, validationErr("dateFrom must not be after dateTo")
	}

	q := Query{
		Scope:      rbac.ScopeFor(caller),
		EntityType: strings.TrimSpace(f.EntityType),
		EntityID:   strings.TrimSpace(f.EntityID),
		ActionBy:   strings.TrimSpace(f.ActionBy),
		From:       from,
		To:         to,
		Sort:       sort,
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}
	if code := strings.TrimSpace(f.ActionTypeCode); code != "" {
		at, ok := s.catalog.Lookup(code)
		if !ok {
			return out, nil
		}
		q.ActionTypeID = &at.ID
	}

	return s.page(ctx, q, page, limit)
}

// Get returns a single record if caller may see it.
func (s *Service) Get(ctx context.Context, id int64, caller rbac.Caller) (rec Record, err error) {
	ctx, span := s.tracer.Start(ctx, "audit.Get", trace.WithAttributes(attribute.Int64("audit.record_id", id)))
	defer func() { endSpan(span, err) }()

	return s.repo.FindByID(ctx, id, rbac.ScopeFor(caller))
}

// History returns the visible timeline of one entity, ordered by version ascending.
func (s *Service) History(ctx context.Context, entityType, entityID string, caller rbac.Caller) (out []Record, err error) {
	ctx, span := s.tracer.Start(ctx, "audit.History", trace.WithAttributes(
		attribute.String("audit.entity_type", entityType),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(entityType) == "" || strings.TrimSpace(entityID) == "" {
		return nil, validationErr("entity_type and entity_id are required")
	}
	out, err = s.repo.Find(ctx, Query{
		Scope:      rbac.ScopeFor(caller),
		EntityType: entityType,
		EntityID:   entityID,
		Sort:       sortByVersion,
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

// Search matches term case-insensitively against entity_type, entity_id and
// action_by, newest first.
func (s *Service) Search(ctx context.Context, term string, caller rbac.Caller, page, limit int) (out Page, err error) {
	ctx, span := s.tracer.Start(ctx, "audit.Search")
	defer func() { endSpan(span, err) }()

	term = strings.TrimSpace(term)
	if term == "" {
		return Page{}, validationErr("search term is required")
	}
	page, limit = normalizePaging(page, limit)
	return s.page(ctx, Query{
		Scope:  rbac.ScopeFor(caller),
		Search: term,
		Sort:   sortNewestFirst,
		Offset: (page - 1) * limit,
		Limit:  limit,
	}, page, limit)
}

// Stats aggregates the records visible to caller. The four queries run concurrently.
func (s *Service) Stats(ctx context.Context, caller rbac.Caller) (out Stats, err error) {
	ctx, span := s.tracer.Start(ctx, "audit.Stats")
	defer func() { endSpan(span, err) }()

	scope := rbac.ScopeFor(caller)
	since := s.clock().UTC().Add(-recentWindow)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.Count(gctx, Query{Scope: scope})
		out.TotalRecords = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.Count(gctx, Query{Scope: scope, From: &since})
		out.RecentActivity = n
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.CountByActionType(gctx, scope)
		out.ActionBreakdown = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.CountByEntityType(gctx, scope)
		out.EntityBreakdown = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	if out.ActionBreakdown == nil {
		out.ActionBreakdown = []ActionCount{}
	}
	if out.EntityBreakdown == nil {
		out.EntityBreakdown = []EntityCount{}
	}
	return out, nil
}

// Delete hard-deletes one record. Callers must be authorized upstream; sibling
// versions are left untouched.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "audit.Delete", trace.WithAttributes(attribute.Int64("audit.record_id", id)))
	defer func() { endSpan(span, err) }()

	return s.repo.Delete(ctx, id)
}

func (s *Service) page(ctx context.Context, q Query, page, limit int) (Page, error) {
	total, err := s.repo.Count(ctx, q)
	if err != nil {
		return Page{}, err
	}
	rows, err := s.repo.Find(ctx, q)
	if err != nil {
		return Page{}, err
	}
	if rows == nil {
		rows = []Record{}
	}
	return Page{Records: rows, Total: total, Page: page, Limit: limit}, nil
}

// normalizePayload validates a JSON snapshot and maps empty or null to absent.
// Valid payloads are kept byte-for-byte.
func normalizePayload(field string, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, validationErr("%s must be valid JSON", field)
	}
	return raw, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
