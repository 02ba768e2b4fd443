package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sdko-org/flathub-stats/internal/config"
	"github.com/sdko-org/flathub-stats/internal/models"
	"github.com/sdko-org/flathub-stats/internal/stats"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appRef = "app/org.foo/x86_64/stable"

func newRouter(t *testing.T) (*mux.Router, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)

	agg := stats.NewAggregator()
	agg.Add(models.DownloadEvent{
		Checksum:      "c0ffee",
		Date:          time.Date(2018, time.June, 5, 0, 0, 0, 0, time.UTC),
		Ref:           appRef,
		OSTreeVersion: "2018.5",
		IsUpdate:      true,
		Country:       "IT",
	})

	r := mux.NewRouter()
	r.Use(LoggingMiddleware(logger))
	RegisterRoutes(r, NewStatsHandler(logger, agg))
	return r, &logs
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	r, logs := newRouter(t)

	rec := get(r, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(r, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"days":["2018/06/05"]}`, rec.Body.String())

	rec = get(r, "/stats/2018/06/05")
	require.Equal(t, http.StatusOK, rec.Code)
	var day stats.DayStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.Equal(t, stats.Counts{Downloads: 1, Updates: 1}, day.Totals)

	assert.Equal(t, http.StatusNotFound, get(r, "/stats/2018/06/06").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/stats/2018/13/40").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/stats/18/6/5").Code)

	rec = get(r, "/refs/"+appRef)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ref":"`+appRef+`","days":{"2018/06/05":{"downloads":1,"updates":1,"deltas":0}}}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get(r, "/refs/runtime/org.foo.Locale/x86_64/1.0").Code)

	assert.Contains(t, logs.String(), "Request processed")
}

func TestRateLimiter(t *testing.T) {
	cfg := &config.Config{RateLimit: 2, RateLimitWindow: time.Minute}
	rl := NewRateLimiter(cfg)
	now := time.Now()

	assert.True(t, rl.Allow("10.0.0.1", now))
	assert.True(t, rl.Allow("10.0.0.1", now))
	assert.False(t, rl.Allow("10.0.0.1", now))
	assert.True(t, rl.Allow("10.0.0.2", now))

	rl.Cleanup(now.Add(clientIdleTimeout + time.Second))
	assert.Empty(t, rl.clients)
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(&config.Config{RateLimit: 1, RateLimitWindow: time.Hour})
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	_, tracked := rl.clients["192.0.2.1"]
	assert.True(t, tracked)
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(&config.Config{})
	now := time.Now()
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("10.0.0.1", now))
	}
}
