package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects request counters for the front end.
type Metrics struct {
	requestTotal  atomic.Int64
	requestFailed atomic.Int64
	rateLimited   atomic.Int64

	mu     sync.Mutex
	routes map[string]*RouteMetrics
}

// RouteMetrics holds counters for a single route.
type RouteMetrics struct {
	count         atomic.Int64
	errorCount    atomic.Int64
	totalDuration atomic.Int64 // milliseconds
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{routes: make(map[string]*RouteMetrics)}
}

// RecordRequest records one finished request. Statuses of 500 and above count as failures.
func (m *Metrics) RecordRequest(route string, status int, duration time.Duration) {
	m.requestTotal.Add(1)
	rm := m.route(route)
	rm.count.Add(1)
	rm.totalDuration.Add(duration.Milliseconds())
	if status >= 500 {
		m.requestFailed.Add(1)
		rm.errorCount.Add(1)
	}
}

// RecordRateLimited records a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Add(1)
}

func (m *Metrics) route(route string) *RouteMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.routes[route]
	if !ok {
		rm = &RouteMetrics{}
		m.routes[route] = rm
	}
	return rm
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.rateLimited.Store(0)

	m.mu.Lock()
	m.routes = make(map[string]*RouteMetrics)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	routes := make(map[string]*RouteMetricsSnapshot, len(m.routes))
	for name, rm := range m.routes {
		count := rm.count.Load()
		snap := &RouteMetricsSnapshot{
			Count:      count,
			ErrorCount: rm.errorCount.Load(),
		}
		if count > 0 {
			snap.AverageMs = rm.totalDuration.Load() / count
		}
		routes[name] = snap
	}

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		RateLimited:   m.rateLimited.Load(),
		Routes:        routes,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                            `json:"request_total"`
	RequestFailed int64                            `json:"request_failed"`
	RateLimited   int64                            `json:"rate_limited"`
	Routes        map[string]*RouteMetricsSnapshot `json:"routes"`
}

// RouteNames returns the recorded routes in sorted order.
func (s *MetricsSnapshot) RouteNames() []string {
	names := make([]string, 0, len(s.Routes))
	for name := range s.Routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RouteMetricsSnapshot represents metrics for a specific route.
type RouteMetricsSnapshot struct {
	Count      int64 `json:"count"`
	ErrorCount int64 `json:"error_count"`
	AverageMs  int64 `json:"average_ms"`
}
