package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncRecordCreated("CREATE")
	m.IncIngestOutcome("svc", "accepted")
	m.IncDedupError("exists")
	m.AddDedupRemoved(3)
	m.NarrativeFallback("EXPORT", errors.New("x"))
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncRecordCreated("CREATE")
	m.IncRecordCreated("CREATE")
	m.IncIngestOutcome("billing", "duplicate")
	m.AddDedupRemoved(4)
	m.AddDedupRemoved(0)
	m.NarrativeFallback("IMPORT", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsCreated.WithLabelValues("CREATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestOutcome.WithLabelValues("billing", "duplicate")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DedupRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NarrativeFallbacks.WithLabelValues("IMPORT")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(Handler(reg)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/9", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `audit_http_request_duration_seconds_count{method="GET",route="/items/:id",status="204"} 1`), body)
}
