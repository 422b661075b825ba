package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestScopeFor(t *testing.T) {
	tests := []struct {
		name   string
		caller Caller
		want   Scope
	}{
		{"super admin", Caller{ID: "root", Role: "SuperAdmin"}, Scope{Kind: ScopeAll}},
		{"finance admin", Caller{ID: "a", Role: "Finance Admin"}, Scope{Kind: ScopeActorPrefix, Value: "FIN"}},
		{"hr admin", Caller{ID: "a", Role: "HR Admin"}, Scope{Kind: ScopeActorPrefix, Value: "HR"}},
		{"inventory admin", Caller{ID: "a", Role: "Inventory Admin"}, Scope{Kind: ScopeActorPrefix, Value: "INV"}},
		{"operations admin", Caller{ID: "a", Role: "Operations Admin"}, Scope{Kind: ScopeActorPrefix, Value: "OPS"}},
		{"unknown department falls back to self", Caller{ID: "mkt-1", Role: "Marketing Admin"}, Scope{Kind: ScopeActor, Value: "mkt-1"}},
		{"plain user", Caller{ID: "FIN-007", Role: "Employee"}, Scope{Kind: ScopeActor, Value: "FIN-007"}},
		{"lowercase superadmin is not super", Caller{ID: "x", Role: "superadmin"}, Scope{Kind: ScopeActor, Value: "x"}},
		{"bare Admin", Caller{ID: "x", Role: "Admin"}, Scope{Kind: ScopeActor, Value: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScopeFor(tt.caller))
		})
	}
}

func TestScope_Allows(t *testing.T) {
	all := Scope{Kind: ScopeAll}
	fin := Scope{Kind: ScopeActorPrefix, Value: "FIN"}
	self := Scope{Kind: ScopeActor, Value: "FIN-007"}

	assert.True(t, all.Allows(nil))
	assert.True(t, all.Allows(strPtr("anyone")))

	assert.True(t, fin.Allows(strPtr("FIN-001")))
	assert.False(t, fin.Allows(strPtr("HR-001")))
	assert.False(t, fin.Allows(strPtr("fin-001")))
	assert.False(t, fin.Allows(nil))

	assert.True(t, self.Allows(strPtr("FIN-007")))
	assert.False(t, self.Allows(strPtr("FIN-0071")))
	assert.False(t, self.Allows(nil))

	assert.False(t, Scope{Kind: ScopeActor}.Allows(strPtr("")))
	assert.False(t, Scope{Kind: ScopeKind(42)}.Allows(strPtr("x")))
}
