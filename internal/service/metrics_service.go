package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the admin API
// and the governance engines behind it.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	quarantinedTotal  *prometheus.CounterVec
	purgedTotal       *prometheus.CounterVec
	purgeFailures     *prometheus.CounterVec
	reclaimedBytes    prometheus.Counter
	purgeDuration     prometheus.Histogram
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
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

	quarantinedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_quarantined_total",
		Help: "Media records whose quarantine flag was set, by trigger",
	}, []string{"trigger"})

	purgedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_purged_total",
		Help: "Media items fully deleted (record and bytes), by kind",
	}, []string{"kind"})

	purgeFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_purge_failures_total",
		Help: "Per-item purge failures left for retry, by kind",
	}, []string{"kind"})

	reclaimedBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_reclaimed_bytes_total",
		Help: "Bytes of media content reclaimed by purges",
	})

	purgeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "media_purge_duration_seconds",
		Help:    "Duration of purge batches",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "room_media_cache_hits_total",
		Help: "Room media resolution cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "room_media_cache_misses_total",
		Help: "Room media resolution cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, quarantinedTotal, purgedTotal,
		purgeFailures, reclaimedBytes, purgeDuration, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		quarantinedTotal: quarantinedTotal,
		purgedTotal:      purgedTotal,
		purgeFailures:    purgeFailures,
		reclaimedBytes:   reclaimedBytes,
		purgeDuration:    purgeDuration,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
	}
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

// RecordQuarantined counts media records whose flag changed.
func (m *MetricsService) RecordQuarantined(trigger string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.quarantinedTotal.WithLabelValues(trigger).Add(float64(count))
}

// RecordPurged counts fully deleted media items.
func (m *MetricsService) RecordPurged(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.purgedTotal.WithLabelValues(kind).Add(float64(count))
}

// RecordPurgeFailures counts per-item purge failures.
func (m *MetricsService) RecordPurgeFailures(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.purgeFailures.WithLabelValues(kind).Add(float64(count))
}

// RecordReclaimedBytes adds reclaimed content bytes.
func (m *MetricsService) RecordReclaimedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.reclaimedBytes.Add(float64(n))
}

// ObservePurgeBatch records the duration of one purge batch.
func (m *MetricsService) ObservePurgeBatch(duration time.Duration) {
	if m == nil {
		return
	}
	m.purgeDuration.Observe(duration.Seconds())
}

// RecordCacheLookup counts a room media cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
