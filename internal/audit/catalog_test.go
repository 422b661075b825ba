package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionTypes(t *testing.T) {
	doc := []byte(`
action_types:
  - code: create
    description: Create a new record
    is_active: true
  - code: " Login "
    description: User login
`)
	types, err := ParseActionTypes(doc)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "CREATE", types[0].Code)
	assert.Equal(t, "LOGIN", types[1].Code)
	assert.False(t, types[1].IsActive)
}

func TestParseActionTypes_RejectsBadEntries(t *testing.T) {
	_, err := ParseActionTypes([]byte("action_types:\n  - code: ''\n"))
	require.Error(t, err)

	_, err = ParseActionTypes([]byte("action_types:\n  - code: UPDATE\n  - code: update\n"))
	require.Error(t, err)

	_, err = ParseActionTypes([]byte("action_types: [\n"))
	require.Error(t, err)
}

func TestCatalog_LookupAndReload(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, SeedActionTypes(ctx, repo, []ActionType{{Code: "CREATE", IsActive: true}}))

	cat, err := LoadCatalog(ctx, repo)
	require.NoError(t, err)

	at, ok := cat.Lookup(" create ")
	require.True(t, ok)
	byID, ok := cat.ByID(at.ID)
	require.True(t, ok)
	assert.Equal(t, "CREATE", byID.Code)

	_, ok = cat.Lookup("EXPORT")
	assert.False(t, ok)

	// Upsert keeps ids stable and only touches description/is_active.
	require.NoError(t, SeedActionTypes(ctx, repo, []ActionType{
		{Code: "CREATE", Description: "Create a new record", IsActive: false},
		{Code: "EXPORT", Description: "Export data", IsActive: true},
	}))
	require.NoError(t, cat.Reload(ctx))

	again, ok := cat.Lookup("CREATE")
	require.True(t, ok)
	assert.Equal(t, at.ID, again.ID)
	assert.False(t, again.IsActive)
	assert.Len(t, cat.All(), 2)
}

func TestVersionResolver_Next(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	v := NewVersionResolver(repo)

	n, err := v.Next(ctx, "Invoice", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.Insert(ctx, Record{EntityType: "Invoice", EntityID: "1", Version: 4})
	require.NoError(t, err)
	n, err = v.Next(ctx, "Invoice", "1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestParseSortAndDates(t *testing.T) {
	s, err := parseSort("", "")
	require.NoError(t, err)
	assert.Equal(t, sortNewestFirst, s)

	s, err = parseSort("version", "ASC")
	require.NoError(t, err)
	assert.Equal(t, Sort{Column: "version"}, s)

	to, err := parseDateBound("dateTo", "2024-03-15", true)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15T23:59:59.999Z", to.Format("2006-01-02T15:04:05.000Z07:00"))

	from, err := parseDateBound("dateFrom", "2024-03-15T10:00:00+02:00", false)
	require.NoError(t, err)
	assert.Equal(t, 8, from.Hour())
}
