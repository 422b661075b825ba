package narrative

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"audit-trail/internal/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 1, 5, 10, 15, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func rec(code string, mutate func(*audit.Record)) audit.Record {
	r := audit.Record{
		ID:         7,
		EntityType: "Invoice",
		EntityID:   "INV-42",
		ActionType: audit.ActionTypeRef{Code: code},
		ActionBy:   strp("FIN001"),
		ActionAt:   at,
	}
	if mutate != nil {
		mutate(&r)
	}
	return r
}

func TestBuild_Sentences(t *testing.T) {
	b := &Builder{}
	cases := []struct {
		name string
		rec  audit.Record
		want string
	}{
		{
			name: "create lists initial fields in document order",
			rec:  rec("CREATE", func(r *audit.Record) { r.NewData = json.RawMessage(`{"status":"draft","amount":10}`) }),
			want: "User FIN001 created a new Invoice record (ID: INV-42) at January 5, 2026, 10:15 AM. Initial values were set for: status, amount.",
		},
		{
			name: "create without payload",
			rec:  rec("create", func(r *audit.Record) { r.ActionBy = nil }),
			want: "User System created a new Invoice record (ID: INV-42) at January 5, 2026, 10:15 AM.",
		},
		{
			name: "create with empty object or array",
			rec:  rec("CREATE", func(r *audit.Record) { r.NewData = json.RawMessage(`[1,2]`) }),
			want: "User FIN001 created a new Invoice record (ID: INV-42) at January 5, 2026, 10:15 AM.",
		},
		{
			name: "update without snapshots",
			rec:  rec("UPDATE", nil),
			want: "User FIN001 updated the Invoice record (ID: INV-42) at January 5, 2026, 10:15 AM. unknown fields.",
		},
		{
			name: "update with identical snapshots",
			rec: rec("UPDATE", func(r *audit.Record) {
				r.PreviousData = json.RawMessage(`{"a":1,"b":{"x":[1,2]}}`)
				r.NewData = json.RawMessage(`{"b":{"x":[1.0,2]},"a":1}`)
			}),
			want: "User FIN001 updated the Invoice record (ID: INV-42) at January 5, 2026, 10:15 AM. no changes detected.",
		},
		{
			name: "delete",
			rec:  rec("DELETE", nil),
			want: "User FIN001 deleted the Invoice record (ID: INV-42) at January 5, 2026, 10:15 AM.",
		},
		{
			name: "archive",
			rec:  rec("ARCHIVE", nil),
			want: "User FIN001 archived the Invoice record (ID: INV-42) at January 5, 2026, 10:15 AM.",
		},
		{
			name: "unarchive",
			rec:  rec("UNARCHIVE", nil),
			want: "User FIN001 unarchived the Invoice record (ID: INV-42) at January 5, 2026, 10:15 AM.",
		},
		{
			name: "export",
			rec:  rec("EXPORT", func(r *audit.Record) { r.EntityID = "EXP-1" }),
			want: "User FIN001 exported Invoice data at January 5, 2026, 10:15 AM. Export reference ID: EXP-1.",
		},
		{
			name: "import",
			rec:  rec("IMPORT", func(r *audit.Record) { r.EntityID = "IMP-1" }),
			want: "User FIN001 imported data into Invoice at January 5, 2026, 10:15 AM. Import reference ID: IMP-1.",
		},
		{
			name: "login with ip",
			rec:  rec("LOGIN", func(r *audit.Record) { r.IPAddress = strp("10.0.0.1") }),
			want: "User FIN001 logged in at January 5, 2026, 10:15 AM from IP address 10.0.0.1.",
		},
		{
			name: "logout without ip",
			rec:  rec("LOGOUT", nil),
			want: "User FIN001 logged out at January 5, 2026, 10:15 AM.",
		},
		{
			name: "unrecognized code",
			rec:  rec("approve", nil),
			want: "User FIN001 performed action 'APPROVE' on Invoice (ID: INV-42) at January 5, 2026, 10:15 AM.",
		},
		{
			name: "export with blank reference falls back",
			rec:  rec("EXPORT", func(r *audit.Record) { r.EntityID = "  " }),
			want: "Audit log entry for Invoice (ID:   ).",
		},
		{
			name: "import with empty reference falls back",
			rec:  rec("IMPORT", func(r *audit.Record) { r.EntityID = "" }),
			want: "Audit log entry for Invoice (ID: ).",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, b.Build(tc.rec))
		})
	}
}

func TestBuild_UpdateListsExactlyChangedKeys(t *testing.T) {
	b := &Builder{}
	r := rec("UPDATE", func(r *audit.Record) {
		r.PreviousData = json.RawMessage(`{"amount":1500,"status":"pending","approvedBy":null,"currency":"USD"}`)
		r.NewData = json.RawMessage(`{"amount":1800,"status":"approved","approvedBy":"jane.smith@company.com","currency":"USD"}`)
	})

	got := b.Build(r)
	head, body, ok := strings.Cut(got, "\n\nChanges:\n")
	require.True(t, ok, got)
	assert.Equal(t, "User FIN001 updated the Invoice record (ID: INV-42) at January 5, 2026, 10:15 AM.", head)

	lines := strings.Split(body, "; ")
	assert.Equal(t, []string{
		`amount: 1500 → 1800`,
		`status: "pending" → "approved"`,
		`approvedBy: null → "jane.smith@company.com"`,
	}, lines)
}

func TestBuild_UpdateRendersValueKinds(t *testing.T) {
	b := &Builder{}
	r := rec("UPDATE", func(r *audit.Record) {
		r.PreviousData = json.RawMessage(`{"flag":true,"tags":["a"],"meta":{"k":1},"gone":"x","n":0.5}`)
		r.NewData = json.RawMessage(`{"flag":false,"tags":["a","<b>"],"meta":{"k":2,"j":null},"n":1e21,"added":1e-7}`)
	})
	_, body, ok := strings.Cut(b.Build(r), "\n\nChanges:\n")
	require.True(t, ok)
	assert.Equal(t, []string{
		`flag: true → false`,
		`tags: ["a"] → ["a","<b>"]`,
		`meta: {"k":1} → {"k":2,"j":null}`,
		`gone: "x" → null`,
		`n: 0.5 → 1e+21`,
		`added: null → 1e-7`,
	}, strings.Split(body, "; "))
}

func TestBuild_UpdateNonObjectSnapshotIsUnknown(t *testing.T) {
	b := &Builder{}
	for _, pair := range [][2]string{
		{`{"a":1}`, `[1]`},
		{`"text"`, `{"a":1}`},
		{`{"a":1}`, ``},
		{`{"a":`, `{"a":1}`},
	} {
		r := rec("UPDATE", func(r *audit.Record) {
			r.PreviousData = json.RawMessage(pair[0])
			r.NewData = json.RawMessage(pair[1])
		})
		assert.True(t, strings.HasSuffix(b.Build(r), " unknown fields."), pair)
	}
}

func TestBuild_FallbackIsObserved(t *testing.T) {
	var gotCode string
	var gotErr error
	b := &Builder{OnFallback: func(code string, err error) { gotCode, gotErr = code, err }}

	b.Build(rec("export", func(r *audit.Record) { r.EntityID = "" }))
	assert.Equal(t, "EXPORT", gotCode)
	assert.True(t, errors.Is(gotErr, ErrMissingReference))
}

func TestBuild_UsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	b := NewBuilder(loc, nil)

	got := b.Build(rec("DELETE", nil))
	assert.Contains(t, got, "January 5, 2026, 5:15 AM")
}

func TestBuild_IsDeterministic(t *testing.T) {
	b := &Builder{}
	r := rec("UPDATE", func(r *audit.Record) {
		r.PreviousData = json.RawMessage(`{"z":1,"y":2,"x":3,"w":4}`)
		r.NewData = json.RawMessage(`{"w":5,"x":6,"y":7,"z":8}`)
	})
	first := b.Build(r)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, b.Build(r))
	}
}

func TestBrief(t *testing.T) {
	b := &Builder{}
	assert.Equal(t,
		"User HR001 logged in at January 5, 2026, 10:15 AM from IP address 1.2.3.4.",
		b.Brief("Session", "s1", "login", strp("HR001"), at, strp("1.2.3.4")),
	)
	assert.Equal(t,
		"User System deleted the Order record (ID: 9) at January 5, 2026, 10:15 AM.",
		b.Brief("Order", "9", "DELETE", nil, at, nil),
	)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ActionUpdate, Classify(" update "))
	assert.Equal(t, ActionUnrecognized, Classify("APPROVE"))
	assert.Equal(t, ActionUnrecognized, Classify(""))
}
