// ABOUTME: Tests for the timer helper and registered collectors.
// ABOUTME: Uses prometheus testutil to read counter values.
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())
	assert.Less(t, time.Since(timer.start), time.Second)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDuration(histogram)

	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_vec_duration_seconds",
		Help: "Test duration histogram vector",
	}, []string{"route"})

	NewTimer().ObserveDurationVec(vec, "/health/status")
	assert.Equal(t, 1, testutil.CollectAndCount(vec))
}

func TestWritesTotalCounts(t *testing.T) {
	before := testutil.ToFloat64(WritesTotal.WithLabelValues("metric", "fallback"))
	WritesTotal.WithLabelValues("metric", "fallback").Inc()
	after := testutil.ToFloat64(WritesTotal.WithLabelValues("metric", "fallback"))
	assert.Equal(t, before+1, after)
}

func TestHandlerExposesCollectors(t *testing.T) {
	FallbackPending.Set(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "healthhub_fallback_pending 3"))
}
