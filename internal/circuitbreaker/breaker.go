// Package circuitbreaker gates a batch's Fill phase on an error-rate
// threshold, re-keyed from the teacher's HTTP-status breaker to the
// batch engine's success/failure outcome counts. It never touches
// already-active futures — tripping only stops new submissions.
package circuitbreaker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/acr9/corral/pkg/models"
)

// Breaker monitors a batch's running success/failure counts and trips
// once its stop_if condition is met.
type Breaker struct {
	config  *models.CircuitBreaker
	tripped int32
	reason  string
	mu      sync.Mutex
}

// NewBreaker builds a Breaker from cfg. A nil cfg yields a nil Breaker
// whose methods are all safe no-ops, so callers can wire one
// unconditionally.
func NewBreaker(cfg *models.CircuitBreaker) (*Breaker, error) {
	if cfg == nil {
		return nil, nil
	}
	if err := ParseCondition(cfg); err != nil {
		return nil, err
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 20
	}
	return &Breaker{config: cfg}, nil
}

// conditionPattern matches expressions like "errors > 10%" or "error_rate > 0.1".
var conditionPattern = regexp.MustCompile(`(?i)(errors?|error_rate|failures?)\s*([><=]+)\s*([\d.]+)(%)?`)

// ParseCondition parses cfg.StopIf and populates the remaining fields.
func ParseCondition(cfg *models.CircuitBreaker) error {
	expr := strings.TrimSpace(cfg.StopIf)
	if expr == "" {
		return fmt.Errorf("circuitbreaker: empty stop_if condition")
	}

	matches := conditionPattern.FindStringSubmatch(expr)
	if matches == nil {
		return fmt.Errorf("circuitbreaker: invalid condition %q, expected e.g. 'errors > 10%%' or 'error_rate > 0.1'", expr)
	}

	cfg.Metric = strings.ToLower(matches[1])
	cfg.Operator = matches[2]

	threshold, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return fmt.Errorf("circuitbreaker: invalid threshold %q: %w", matches[3], err)
	}
	cfg.Threshold = threshold
	cfg.IsPercent = matches[4] == "%"

	switch cfg.Metric {
	case "error", "errors":
		cfg.Metric = "errors"
	case "failure", "failures":
		cfg.Metric = "failures"
	case "error_rate":
		cfg.Metric = "error_rate"
	}

	return nil
}

// Check evaluates the condition against a batch's running totals.
// Returns true once tripped (including on every call thereafter).
func (b *Breaker) Check(completed, failures int64) bool {
	if b == nil || b.config == nil {
		return false
	}
	if atomic.LoadInt32(&b.tripped) == 1 {
		return true
	}
	if completed < b.config.MinSamples {
		return false
	}

	var currentValue float64
	switch b.config.Metric {
	case "errors", "error_rate":
		if completed == 0 {
			return false
		}
		currentValue = float64(failures) / float64(completed)
		if b.config.IsPercent {
			currentValue *= 100
		}
	case "failures":
		currentValue = float64(failures)
	default:
		return false
	}

	shouldTrip := false
	switch b.config.Operator {
	case ">":
		shouldTrip = currentValue > b.config.Threshold
	case ">=":
		shouldTrip = currentValue >= b.config.Threshold
	case "<":
		shouldTrip = currentValue < b.config.Threshold
	case "<=":
		shouldTrip = currentValue <= b.config.Threshold
	}

	if shouldTrip {
		b.mu.Lock()
		if atomic.CompareAndSwapInt32(&b.tripped, 0, 1) {
			if b.config.IsPercent {
				b.reason = fmt.Sprintf("circuit breaker tripped: %s (%.1f%%) exceeded threshold (%.1f%%)",
					b.config.Metric, currentValue, b.config.Threshold)
			} else {
				b.reason = fmt.Sprintf("circuit breaker tripped: %s (%.3f) exceeded threshold (%.3f)",
					b.config.Metric, currentValue, b.config.Threshold)
			}
		}
		b.mu.Unlock()
		return true
	}

	return false
}

// IsTripped reports whether Check has ever returned true.
func (b *Breaker) IsTripped() bool {
	if b == nil {
		return false
	}
	return atomic.LoadInt32(&b.tripped) == 1
}

// Reason returns the trip message, empty if not tripped.
func (b *Breaker) Reason() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reason
}
