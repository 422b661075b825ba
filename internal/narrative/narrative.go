// Package narrative renders audit records as human-readable sentences.
//
// Build is total: a record that breaks a per-action precondition yields a
// generic fallback sentence instead of an error.
package narrative

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"audit-trail/internal/audit"
)

// Action is the closed set of action codes with a dedicated sentence.
type Action string

const (
	ActionCreate    Action = "CREATE"
	ActionUpdate    Action = "UPDATE"
	ActionDelete    Action = "DELETE"
	ActionArchive   Action = "ARCHIVE"
	ActionUnarchive Action = "UNARCHIVE"
	ActionExport    Action = "EXPORT"
	ActionImport    Action = "IMPORT"
	ActionLogin     Action = "LOGIN"
	ActionLogout    Action = "LOGOUT"

	// ActionUnrecognized covers codes added to the catalog after this build.
	ActionUnrecognized Action = ""
)

// Classify maps a catalog code onto Action, case-insensitively.
func Classify(code string) Action {
	a := Action(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := handlers[a]; ok {
		return a
	}
	return ActionUnrecognized
}

// ErrMissingReference is raised when EXPORT or IMPORT has no entity_id to cite.
var ErrMissingReference = errors.New("narrative: missing reference identifier")

// TimeLayout renders action_at, e.g. "January 5, 2026, 10:15 AM".
const TimeLayout = "January 2, 2006, 3:04 PM"

const systemActor = "System"

// subject is the per-record input every handler receives.
type subject struct {
	rec   audit.Record
	code  string
	actor string
	when  string
}

type handler func(s subject) (string, error)

var handlers = map[Action]handler{
	ActionCreate:    createSentence,
	ActionUpdate:    updateSentence,
	ActionDelete:    verbSentence("deleted"),
	ActionArchive:   verbSentence("archived"),
	ActionUnarchive: verbSentence("unarchived"),
	ActionExport:    exportSentence,
	ActionImport:    importSentence,
	ActionLogin:     sessionSentence("logged in"),
	ActionLogout:    sessionSentence("logged out"),
}

// Builder holds rendering settings. The zero value renders in UTC and does not log.
type Builder struct {
	Location *time.Location
	Logger   *slog.Logger
	// OnFallback, when set, is called each time a record degrades to the fallback sentence.
	OnFallback func(code string, err error)
}

func NewBuilder(loc *time.Location, logger *slog.Logger) *Builder {
	return &Builder{Location: loc, Logger: logger}
}

// Build describes one record. It never fails and is deterministic for a given record.
func (b *Builder) Build(r audit.Record) string {
	s := subject{
		rec:   r,
		code:  strings.ToUpper(strings.TrimSpace(r.ActionType.Code)),
		actor: systemActor,
		when:  r.ActionAt.In(b.location()).Format(TimeLayout),
	}
	if r.ActionBy != nil && *r.ActionBy != "" {
		s.actor = *r.ActionBy
	}

	h, ok := handlers[Classify(s.code)]
	if !ok {
		h = unrecognizedSentence
	}
	out, err := h(s)
	if err != nil {
		if b.Logger != nil {
			b.Logger.Warn("narrative fallback",
				"record_id", r.ID,
				"action_type", s.code,
				"error", err.Error(),
			)
		}
		if b.OnFallback != nil {
			b.OnFallback(s.code, err)
		}
		return fmt.Sprintf("Audit log entry for %s (ID: %s).", r.EntityType, r.EntityID)
	}
	return out
}

// Brief describes an action from its summary fields alone, without payloads.
func (b *Builder) Brief(entityType, entityID, code string, actionBy *string, actionAt time.Time, ip *string) string {
	return b.Build(audit.Record{
		EntityType: entityType,
		EntityID:   entityID,
		ActionType: audit.ActionTypeRef{Code: code},
		ActionBy:   actionBy,
		ActionAt:   actionAt,
		IPAddress:  ip,
		CreatedAt:  actionAt,
	})
}

func (b *Builder) location() *time.Location {
	if b == nil || b.Location == nil {
		return time.UTC
	}
	return b.Location
}

func createSentence(s subject) (string, error) {
	out := fmt.Sprintf("User %s created a new %s record (ID: %s) at %s.", s.actor, s.rec.EntityType, s.rec.EntityID, s.when)
	if v, err := decode(s.rec.NewData); err == nil {
		if obj, ok := v.(*object); ok && len(obj.keys) > 0 {
			out += " Initial values were set for: " + strings.Join(obj.keys, ", ") + "."
		}
	}
	return out, nil
}

func updateSentence(s subject) (string, error) {
	out := fmt.Sprintf("User %s updated the %s record (ID: %s) at %s.", s.actor, s.rec.EntityType, s.rec.EntityID, s.when)
	changes, known := diff(s.rec.PreviousData, s.rec.NewData)
	switch {
	case !known:
		return out + " unknown fields.", nil
	case len(changes) == 0:
		return out + " no changes detected.", nil
	default:
		return out + "\n\nChanges:\n" + strings.Join(changes, "; "), nil
	}
}

// diff lists "field: old → new" for every key whose values differ, keys of
// prev first, then keys only in next. known is false unless both sides are objects.
func diff(prevRaw, nextRaw []byte) (changes []string, known bool) {
	pv, err := decode(prevRaw)
	if err != nil {
		return nil, false
	}
	nv, err := decode(nextRaw)
	if err != nil {
		return nil, false
	}
	prev, ok := pv.(*object)
	if !ok {
		return nil, false
	}
	next, ok := nv.(*object)
	if !ok {
		return nil, false
	}

	fields := make([]string, 0, len(prev.keys)+len(next.keys))
	fields = append(fields, prev.keys...)
	for _, k := range next.keys {
		if _, seen := prev.vals[k]; !seen {
			fields = append(fields, k)
		}
	}

	changes = []string{}
	for _, f := range fields {
		// Absent reads as null.
		a, _ := prev.get(f)
		b, _ := next.get(f)
		if equal(a, b) {
			continue
		}
		changes = append(changes, fmt.Sprintf("%s: %s → %s", f, display(a), display(b)))
	}
	return changes, true
}

func verbSentence(verb string) handler {
	return func(s subject) (string, error) {
		return fmt.Sprintf("User %s %s the %s record (ID: %s) at %s.", s.actor, verb, s.rec.EntityType, s.rec.EntityID, s.when), nil
	}
}

func exportSentence(s subject) (string, error) {
	if strings.TrimSpace(s.rec.EntityID) == "" {
		return "", fmt.Errorf("%w: EXPORT", ErrMissingReference)
	}
	return fmt.Sprintf("User %s exported %s data at %s. Export reference ID: %s.", s.actor, s.rec.EntityType, s.when, s.rec.EntityID), nil
}

func importSentence(s subject) (string, error) {
	if strings.TrimSpace(s.rec.EntityID) == "" {
		return "", fmt.Errorf("%w: IMPORT", ErrMissingReference)
	}
	return fmt.Sprintf("User %s imported data into %s at %s. Import reference ID: %s.", s.actor, s.rec.EntityType, s.when, s.rec.EntityID), nil
}

func sessionSentence(verb string) handler {
	return func(s subject) (string, error) {
		out := fmt.Sprintf("User %s %s at %s", s.actor, verb, s.when)
		if s.rec.IPAddress != nil && *s.rec.IPAddress != "" {
			out += " from IP address " + *s.rec.IPAddress
		}
		return out + ".", nil
	}
}

func unrecognizedSentence(s subject) (string, error) {
	return fmt.Sprintf("User %s performed action '%s' on %s (ID: %s) at %s.", s.actor, s.code, s.rec.EntityType, s.rec.EntityID, s.when), nil
}
