package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"audit-trail/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "issuer",
		JWTAudience:    "aud",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.Issue(now, "FIN-001", "Finance Admin")
	require.NoError(t, err)

	claims, err := m.Verify(tok, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "FIN-001", claims.UserID)
	assert.Equal(t, "Finance Admin", claims.Role)
}

func TestVerify_RejectsExpired(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.Issue(now, "u", "Employee")
	require.NoError(t, err)

	_, err = m.Verify(tok, now.Add(time.Hour))
	require.Error(t, err)
}

func TestVerify_RejectsForeignSecret(t *testing.T) {
	other, err := NewManager(config.AuthConfig{JWTSecret: "other", JWTIssuer: "issuer", JWTAudience: "aud"})
	require.NoError(t, err)
	now := time.Now()

	tok, err := other.Issue(now, "u", "Employee")
	require.NoError(t, err)

	_, err = newManager(t).Verify(tok, now)
	require.Error(t, err)
}

func TestIssue_RequiresIdentity(t *testing.T) {
	_, err := newManager(t).Issue(time.Now(), "", "Employee")
	require.Error(t, err)
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)

	r := gin.New()
	r.GET("/me", RequireAccessToken(m), func(c *gin.Context) {
		uid, _ := UserID(c.Request.Context())
		role, _ := Role(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := m.Issue(time.Now(), "HR-9", "HR Admin")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"HR-9","role":"HR Admin"}`, w.Body.String())
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	_, err := UserID(ctx)
	assert.ErrorIs(t, err, ErrNoUserID)

	ctx = WithClientIP(WithIdentity(ctx, "u", "r"), "10.0.0.1")
	uid, _ := UserID(ctx)
	assert.Equal(t, "u", uid)
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "", ClientIP(context.Background()))
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := bearerToken(tc.header)
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.want, got, tc.header)
	}
}
