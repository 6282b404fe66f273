package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AnalysesCreated    uint64
	AnalysesCompleted  uint64
	StartTime          time.Time

	mu    sync.Mutex
	steps map[string]*stepCounter
}

type stepCounter struct {
	running   int64
	succeeded uint64
	failed    uint64
	nanos     int64
}

// StepStats is the JSON view of one step's counters
type StepStats struct {
	Running    int64   `json:"running"`
	Succeeded  uint64  `json:"succeeded"`
	Failed     uint64  `json:"failed"`
	AvgSeconds float64 `json:"avg_seconds"`
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
	steps:     map[string]*stepCounter{},
}

func (m *Metrics) step(name string) *stepCounter {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.steps[name]
	if !ok {
		c = &stepCounter{}
		m.steps[name] = c
	}
	return c
}

// TrackStep marks a step as running and returns the func that records its outcome.
func TrackStep(name string) func(err error) {
	c := globalMetrics.step(name)
	atomic.AddInt64(&c.running, 1)
	start := time.Now()
	return func(err error) {
		atomic.AddInt64(&c.running, -1)
		if err != nil {
			atomic.AddUint64(&c.failed, 1)
			return
		}
		atomic.AddUint64(&c.succeeded, 1)
		atomic.AddInt64(&c.nanos, int64(time.Since(start)))
	}
}

// AnalysisCreated counts sessions created through the API
func AnalysisCreated() {
	atomic.AddUint64(&globalMetrics.AnalysesCreated, 1)
}

// AnalysisCompleted counts sessions that reached the completed status
func AnalysisCompleted() {
	atomic.AddUint64(&globalMetrics.AnalysesCompleted, 1)
}

// Steps returns a snapshot of the per-step counters.
func Steps() map[string]StepStats {
	globalMetrics.mu.Lock()
	names := make([]string, 0, len(globalMetrics.steps))
	for name := range globalMetrics.steps {
		names = append(names, name)
	}
	globalMetrics.mu.Unlock()
	sort.Strings(names)

	out := make(map[string]StepStats, len(names))
	for _, name := range names {
		c := globalMetrics.step(name)
		s := StepStats{
			Running:   atomic.LoadInt64(&c.running),
			Succeeded: atomic.LoadUint64(&c.succeeded),
			Failed:    atomic.LoadUint64(&c.failed),
		}
		if s.Succeeded > 0 {
			s.AvgSeconds = time.Duration(atomic.LoadInt64(&c.nanos) / int64(s.Succeeded)).Seconds()
		}
		out[name] = s
	}
	return out
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"analyses_created":     atomic.LoadUint64(&globalMetrics.AnalysesCreated),
		"analyses_completed":   atomic.LoadUint64(&globalMetrics.AnalysesCompleted),
		"steps":                Steps(),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
		atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
		defer atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < http.StatusBadRequest {
			atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetMetrics())
}
