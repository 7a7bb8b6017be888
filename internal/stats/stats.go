// Package stats accumulates BatchItems into a BatchSummary, the same
// atomic-counters-plus-HDR-histogram approach the teacher's Monitor used
// for HTTP load test results, re-keyed from status codes/latency-per-
// request to rollout outcomes/elapsed-per-job.
package stats

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/acr9/corral/pkg/models"
)

// Monitor collects BatchItems as a batch run progresses.
type Monitor struct {
	total     int64
	success   int64
	timeouts  int64
	cancelled int64
	failures  int64

	mu         sync.Mutex
	histogram  *hdrhistogram.Histogram
	errorKinds sync.Map // map[string]int
}

// NewMonitor builds an empty Monitor, its histogram sized for
// microsecond resolution between 1µs and 5 minutes.
func NewMonitor() *Monitor {
	return &Monitor{histogram: hdrhistogram.New(1, 5*60*1000000, 3)}
}

// Add folds one terminal BatchItem into the running totals. Safe for
// concurrent use, though its callers (the CLI's console drain and the
// dashboard's MainModel) each call it from a single goroutine.
func (m *Monitor) Add(item models.BatchItem) {
	atomic.AddInt64(&m.total, 1)

	if item.Success {
		atomic.AddInt64(&m.success, 1)
	} else {
		atomic.AddInt64(&m.failures, 1)
		switch {
		case strings.HasPrefix(item.Error, "Timeout"):
			atomic.AddInt64(&m.timeouts, 1)
		case strings.Contains(item.Error, "cancelled"):
			atomic.AddInt64(&m.cancelled, 1)
		}
		kind := sanitizeError(item.Error)
		m.mu.Lock()
		count, _ := m.errorKinds.LoadOrStore(kind, 0)
		m.errorKinds.Store(kind, count.(int)+1)
		m.mu.Unlock()
	}

	if item.Elapsed > 0 {
		m.mu.Lock()
		_ = m.histogram.RecordValue(item.Elapsed.Microseconds())
		m.mu.Unlock()
	}
}

// GetStats returns the running completed/failure counts. The batch
// engine's circuit breaker does not read these; it checks the engine's
// own counters.
func (m *Monitor) GetStats() (completed, failures int64) {
	return atomic.LoadInt64(&m.total), atomic.LoadInt64(&m.failures)
}

// Snapshot produces the final BatchSummary. Safe to call mid-run for a
// live view, or once at the end.
func (m *Monitor) Snapshot() models.BatchSummary {
	total := atomic.LoadInt64(&m.total)
	success := atomic.LoadInt64(&m.success)

	successRate := 0.0
	if total > 0 {
		successRate = float64(success) / float64(total) * 100
	}

	m.mu.Lock()
	h := m.histogram
	p50 := time.Duration(h.ValueAtQuantile(50)) * time.Microsecond
	p75 := time.Duration(h.ValueAtQuantile(75)) * time.Microsecond
	p90 := time.Duration(h.ValueAtQuantile(90)) * time.Microsecond
	p95 := time.Duration(h.ValueAtQuantile(95)) * time.Microsecond
	p99 := time.Duration(h.ValueAtQuantile(99)) * time.Microsecond
	max := time.Duration(h.Max()) * time.Microsecond
	min := time.Duration(h.Min()) * time.Microsecond
	m.mu.Unlock()

	errorKinds := make(map[string]int)
	m.errorKinds.Range(func(key, value interface{}) bool {
		errorKinds[key.(string)] = value.(int)
		return true
	})

	return models.BatchSummary{
		Total:       int(total),
		Success:     int(success),
		Failures:    int(atomic.LoadInt64(&m.failures)),
		Timeouts:    int(atomic.LoadInt64(&m.timeouts)),
		Cancelled:   int(atomic.LoadInt64(&m.cancelled)),
		SuccessRate: successRate,
		P50:         p50,
		P75:         p75,
		P90:         p90,
		P95:         p95,
		P99:         p99,
		Max:         max,
		Min:         min,
		ErrorKinds:  errorKinds,
	}
}
