package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceExposesGreetingCounters(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordGreeting(true)
	metrics.RecordGreeting(true)
	metrics.RecordGreeting(false)
	metrics.RecordGreetingRun(TriggerManual)
	metrics.SetBirthdaysToday(3)
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/employees/birthdays", http.StatusOK, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.greetingsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.greetingsFailed))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `greeting_runs_total{trigger="manual"} 1`)
	assert.Contains(t, body, "birthdays_today 3")
	assert.Contains(t, body, "http_requests_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.RecordGreeting(true)
		metrics.RecordCacheOperation(true, time.Millisecond)
		metrics.ObserveCardRender(time.Millisecond)
		metrics.SetBirthdaysToday(1)
	})
}
