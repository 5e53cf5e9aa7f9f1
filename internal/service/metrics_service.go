package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	greetingsSent   prometheus.Counter
	greetingsFailed prometheus.Counter
	greetingRuns    *prometheus.CounterVec
	cardRender      prometheus.Observer
	birthdaysToday  prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	greetingsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "greetings_sent_total",
		Help: "Birthday cards delivered successfully",
	})

	greetingsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "greetings_failed_total",
		Help: "Birthday cards that exhausted their delivery attempts",
	})

	greetingRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "greeting_runs_total",
		Help: "Greeting dispatch runs by trigger",
	}, []string{"trigger"})

	cardRender := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "greeting_card_render_seconds",
		Help:    "Time spent rendering one greeting card",
		Buckets: prometheus.DefBuckets,
	})

	birthdaysToday := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birthdays_today",
		Help: "Employees whose birthday is observed today, as of the last roster evaluation",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		greetingsSent, greetingsFailed, greetingRuns, cardRender, birthdaysToday, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		greetingsSent:   greetingsSent,
		greetingsFailed: greetingsFailed,
		greetingRuns:    greetingRuns,
		cardRender:      cardRender,
		birthdaysToday:  birthdaysToday,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordGreeting counts a final delivery outcome.
func (m *MetricsService) RecordGreeting(success bool) {
	if m == nil {
		return
	}
	if success {
		m.greetingsSent.Inc()
	} else {
		m.greetingsFailed.Inc()
	}
}

// RecordGreetingRun counts a dispatch run; trigger is "scheduler" or "manual".
func (m *MetricsService) RecordGreetingRun(trigger string) {
	if m == nil {
		return
	}
	m.greetingRuns.WithLabelValues(trigger).Inc()
}

// ObserveCardRender records card rendering time.
func (m *MetricsService) ObserveCardRender(duration time.Duration) {
	if m == nil {
		return
	}
	m.cardRender.Observe(duration.Seconds())
}

// SetBirthdaysToday publishes how many birthdays are observed today.
func (m *MetricsService) SetBirthdaysToday(count int) {
	if m == nil {
		return
	}
	m.birthdaysToday.Set(float64(count))
}
