package db

import (
	"testing"

	"audit-trail/internal/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionTypesYAML_ParsesFullCatalog(t *testing.T) {
	types, err := audit.ParseActionTypes(ActionTypesYAML())
	require.NoError(t, err)

	var codes []string
	for _, at := range types {
		codes = append(codes, at.Code)
		assert.True(t, at.IsActive, at.Code)
		assert.NotEmpty(t, at.Description, at.Code)
	}
	assert.Equal(t, []string{"CREATE", "UPDATE", "DELETE", "EXPORT", "IMPORT", "LOGIN", "LOGOUT", "ARCHIVE", "UNARCHIVE"}, codes)
}

func TestMigrations_AreEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
