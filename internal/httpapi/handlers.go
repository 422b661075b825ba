package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"audit-trail/internal/audit"
	"audit-trail/internal/auth"
	"audit-trail/internal/ingest"
	"audit-trail/internal/narrative"
	"audit-trail/internal/rbac"
	"audit-trail/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Audit     *audit.Service
	Ingest    *ingest.Processor
	Narrative *narrative.Builder
}

// envelope is the response body for every /api endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// recordView is a stored record plus its narrative.
type recordView struct {
	audit.Record
	Details string `json:"details"`
}

type pageView struct {
	Records    []recordView `json:"records"`
	Pagination pagination   `json:"pagination"`
}

type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func ok(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, envelope{Success: true, Message: msg, Data: data})
}

func fail(c *gin.Context, status int, msg string, err error) {
	body := envelope{Success: false, Message: msg}
	if err != nil {
		body.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

// readFailure maps read-path errors. Anything unexpected is a 500 with a fixed message.
func readFailure(c *gin.Context, what string, err error) {
	switch {
	case errors.Is(err, audit.ErrValidation), errors.Is(err, audit.ErrUnknownActionType):
		fail(c, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, audit.ErrNotFound):
		fail(c, http.StatusNotFound, "Audit log not found", nil)
	default:
		logger.FromGin(c).ErrorContext(c.Request.Context(), "read failed", "what", what, "error", err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve "+what, nil)
	}
}

func (h Handlers) caller(c *gin.Context) (rbac.Caller, bool) {
	caller, err := rbac.CallerFromContext(c.Request.Context())
	if err != nil {
		fail(c, http.StatusUnauthorized, "Unauthorized", nil)
		return rbac.Caller{}, false
	}
	return caller, true
}

func (h Handlers) view(r audit.Record) recordView {
	return recordView{Record: r, Details: h.Narrative.Build(r)}
}

func (h Handlers) pageView(p audit.Page) pageView {
	out := pageView{
		Records:    make([]recordView, 0, len(p.Records)),
		Pagination: pagination{Page: p.Page, Limit: p.Limit, Total: p.Total},
	}
	if p.Limit > 0 {
		out.Pagination.TotalPages = (p.Total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	for _, r := range p.Records {
		out.Records = append(out.Records, h.view(r))
	}
	return out
}

// CreateAuditLog ingests one event through the dedup gate.
// A missing ip_address defaults to the request's client IP.
func (h Handlers) CreateAuditLog(c *gin.Context) {
	var ev ingest.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", errors.New("invalid json"))
		return
	}
	ev.EventID = strings.TrimSpace(ev.EventID)
	ev.SourceService = strings.TrimSpace(ev.SourceService)
	if ev.IPAddress == nil {
		if ip := auth.ClientIP(c.Request.Context()); ip != "" {
			ev.IPAddress = &ip
		}
	}

	res, err := h.Ingest.Process(c.Request.Context(), ev)
	switch {
	case err == nil && res.Outcome == ingest.OutcomeDuplicate:
		ok(c, http.StatusOK, "Duplicate event ignored", gin.H{"duplicate": true, "event_id": ev.EventID})
	case err == nil:
		ok(c, http.StatusCreated, "Audit log created successfully", h.view(*res.Record))
	case res.Outcome == ingest.OutcomeRejected:
		fail(c, http.StatusBadRequest, "Invalid request", err)
	default:
		logger.FromGin(c).ErrorContext(c.Request.Context(), "create failed", "event_id", ev.EventID, "error", err)
		fail(c, http.StatusInternalServerError, "Failed to create audit log", nil)
	}
}

// ListAuditLogs returns one page filtered by query parameters and the caller's scope.
func (h Handlers) ListAuditLogs(c *gin.Context) {
	caller, okCaller := h.caller(c)
	if !okCaller {
		return
	}
	page, err := intQuery(c, "page")
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	p, err := h.Audit.List(c.Request.Context(), audit.ListFilter{
		EntityType:     c.Query("entity_type"),
		EntityID:       c.Query("entity_id"),
		ActionTypeCode: c.Query("action_type_code"),
		ActionBy:       c.Query("action_by"),
		DateFrom:       c.Query("dateFrom"),
		DateTo:         c.Query("dateTo"),
		Page:           page,
		Limit:          limit,
		SortBy:         c.Query("sortBy"),
		SortOrder:      c.Query("sortOrder"),
	}, caller)
	if err != nil {
		readFailure(c, "audit logs", err)
		return
	}
	ok(c, http.StatusOK, "Audit logs retrieved successfully", h.pageView(p))
}

func (h Handlers) SearchAuditLogs(c *gin.Context) {
	caller, okCaller := h.caller(c)
	if !okCaller {
		return
	}
	page, err := intQuery(c, "page")
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	p, err := h.Audit.Search(c.Request.Context(), c.Query("q"), caller, page, limit)
	if err != nil {
		readFailure(c, "audit logs", err)
		return
	}
	ok(c, http.StatusOK, "Search completed successfully", h.pageView(p))
}

func (h Handlers) AuditStats(c *gin.Context) {
	caller, okCaller := h.caller(c)
	if !okCaller {
		return
	}
	st, err := h.Audit.Stats(c.Request.Context(), caller)
	if err != nil {
		readFailure(c, "audit statistics", err)
		return
	}
	ok(c, http.StatusOK, "Audit statistics retrieved successfully", st)
}

func (h Handlers) EntityHistory(c *gin.Context) {
	caller, okCaller := h.caller(c)
	if !okCaller {
		return
	}
	recs, err := h.Audit.History(c.Request.Context(), c.Param("entity_type"), c.Param("entity_id"), caller)
	if err != nil {
		readFailure(c, "entity history", err)
		return
	}
	out := make([]recordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, h.view(r))
	}
	ok(c, http.StatusOK, "Entity history retrieved successfully", out)
}

func (h Handlers) GetAuditLog(c *gin.Context) {
	rec, found := h.lookup(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, "Audit log retrieved successfully", h.view(rec))
}

// GetAuditLogDetails returns only the narrative for one record.
func (h Handlers) GetAuditLogDetails(c *gin.Context) {
	rec, found := h.lookup(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, "Audit log details retrieved successfully", gin.H{
		"id":      rec.ID,
		"details": h.Narrative.Build(rec),
	})
}

// DeleteAuditLog is an administrative hard delete. Route must be SuperAdmin-only.
func (h Handlers) DeleteAuditLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid request", errors.New("id must be a positive integer"))
		return
	}
	if err := h.Audit.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			fail(c, http.StatusNotFound, "Audit log not found", nil)
			return
		}
		logger.FromGin(c).ErrorContext(c.Request.Context(), "delete failed", "record_id", id, "error", err)
		fail(c, http.StatusInternalServerError, "Failed to delete audit log", nil)
		return
	}
	logger.FromGin(c).InfoContext(c.Request.Context(), "audit log deleted", "record_id", id)
	ok(c, http.StatusOK, "Audit log deleted successfully", nil)
}

func (h Handlers) lookup(c *gin.Context) (audit.Record, bool) {
	caller, okCaller := h.caller(c)
	if !okCaller {
		return audit.Record{}, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid request", errors.New("id must be a positive integer"))
		return audit.Record{}, false
	}
	rec, err := h.Audit.Get(c.Request.Context(), id, caller)
	if err != nil {
		readFailure(c, "audit log", err)
		return audit.Record{}, false
	}
	return rec, true
}

func intQuery(c *gin.Context, name string) (int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}
