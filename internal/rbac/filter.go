package rbac

import (
	"context"
	"errors"
	"strings"

	"audit-trail/internal/auth"
)

// Caller is the authenticated identity a read is performed for.
type Caller struct {
	ID   string
	Role string
}

// CallerFromContext builds a Caller from the identity injected by auth.RequireAccessToken.
func CallerFromContext(ctx context.Context) (Caller, error) {
	uid, err := auth.UserID(ctx)
	if err != nil {
		return Caller{}, err
	}
	role, err := auth.Role(ctx)
	if err != nil {
		return Caller{}, err
	}
	return Caller{ID: uid, Role: role}, nil
}

type ScopeKind int

const (
	// ScopeAll places no restriction on visible records.
	ScopeAll ScopeKind = iota
	// ScopeActorPrefix restricts to records whose action_by starts with Value.
	ScopeActorPrefix
	// ScopeActor restricts to records whose action_by equals Value.
	ScopeActor
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeAll:
		return "all"
	case ScopeActorPrefix:
		return "actor_prefix"
	case ScopeActor:
		return "actor"
	default:
		return "unknown"
	}
}

// Scope is the read predicate derived from a caller's role. It only ever
// narrows; repositories AND it with every other criterion.
type Scope struct {
	Kind  ScopeKind
	Value string
}

var ErrUnknownScope = errors.New("rbac: unknown scope kind")

// ScopeFor returns the visibility predicate for c:
//   - SuperAdmin sees everything
//   - "<Department> Admin" sees records whose actor starts with the department code
//   - everyone else, including admins of unknown departments, sees only their own records
func ScopeFor(c Caller) Scope {
	if IsSuperAdmin(c.Role) {
		return Scope{Kind: ScopeAll}
	}
	if code, ok := DepartmentCode(c.Role); ok {
		return Scope{Kind: ScopeActorPrefix, Value: code}
	}
	return Scope{Kind: ScopeActor, Value: c.ID}
}

// Allows evaluates the predicate against a record's action_by (nil means System).
// Records without an actor are only visible under ScopeAll.
func (s Scope) Allows(actionBy *string) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeActorPrefix:
		return actionBy != nil && strings.HasPrefix(*actionBy, s.Value)
	case ScopeActor:
		return actionBy != nil && s.Value != "" && *actionBy == s.Value
	default:
		return false
	}
}
