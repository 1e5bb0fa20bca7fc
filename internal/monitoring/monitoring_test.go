package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHelpers(t *testing.T) {
	hits := testutil.ToFloat64(CacheRequests.WithLabelValues("hit"))
	RecordCacheLookup(true)
	assert.Equal(t, hits+1, testutil.ToFloat64(CacheRequests.WithLabelValues("hit")))

	unavailable := testutil.ToFloat64(PreferredPath.WithLabelValues("get_team_leaderboard", "unavailable"))
	RecordPreferredPath("get_team_leaderboard", false)
	assert.Equal(t, unavailable+1, testutil.ToFloat64(PreferredPath.WithLabelValues("get_team_leaderboard", "unavailable")))

	SetBreakerState("get_emails_stats", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(BreakerState.WithLabelValues("get_emails_stats")))

	failures := testutil.ToFloat64(StoreErrors.WithLabelValues("personal counts"))
	RecordStoreError("personal counts")
	assert.Equal(t, failures+1, testutil.ToFloat64(StoreErrors.WithLabelValues("personal counts")))
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.StoreLogger(context.Background(), "get_emails_stats", errors.New("function does not exist"))
	logger.CacheLogger("get", "week-team", true)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "debug cache lines are filtered at info")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "get_emails_stats", entry["procedure"])
	assert.Contains(t, entry, "timestamp")
	_, err := time.Parse(time.RFC3339, entry["timestamp"].(string))
	assert.NoError(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestMonitoringMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer

	r := gin.New()
	r.Use(MonitoringMiddleware(NewLogger(&buf, slog.LevelInfo)))
	r.GET("/items/:id", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetHeader(RequestIDHeader))
	})

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/items/:id", "200"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/7", nil))
	require.Equal(t, http.StatusOK, w.Code)
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/items/8", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "given-id", w.Header().Get(RequestIDHeader))

	assert.Equal(t, before+2, testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/items/:id", "200")))
	assert.Contains(t, buf.String(), `"path":"/items/8"`)
}
