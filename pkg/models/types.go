// Package models holds the data types shared across corral's packages:
// the wire-level rollout config, the batch spec read from YAML, and the
// result types the batch engine yields.
package models

import (
	"regexp"
	"time"
)

// RolloutConfig is embedded into every submitted payload under the
// "_rollout" key. The remote runtime uses ExpID/InputID/SessionID to
// compute the result object key.
type RolloutConfig struct {
	ExpID     string                 `json:"exp_id"`
	SessionID string                 `json:"session_id"`
	InputID   string                 `json:"input_id"`
	S3Bucket  string                 `json:"s3_bucket"`
	BaseURL   string                 `json:"base_url,omitempty"`
	ModelID   string                 `json:"model_id,omitempty"`
	Extra     map[string]interface{} `json:"-"`
}

// SubmitResponse is the parsed reply from RuntimeTransport.Submit.
// ResultKey/Bucket are absent when the caller's payload had no
// "_rollout" config attached (fire-and-forget mode).
type SubmitResponse struct {
	Status    string `json:"status"`
	S3Bucket  string `json:"s3_bucket,omitempty"`
	ResultKey string `json:"result_key,omitempty"`
}

// BatchItem is one terminal outcome yielded by the batch engine. Index
// preserves the caller's original payload-list position; items
// themselves arrive in completion order, not index order.
type BatchItem struct {
	Success bool
	Result  map[string]interface{}
	Error   string
	Index   int
	Elapsed time.Duration
}

// BackoffConfig holds the per-future exponential backoff parameters.
type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	BackoffFactor   float64
}

// DefaultBackoff returns the tunables named in the spec's defaults table.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		BackoffFactor:   1.5,
	}
}

// ClientConfig configures a Client.
type ClientConfig struct {
	AgentRuntimeARN  string
	S3Bucket         string
	ExpID            string
	TPSLimit         int
	MaxRetryAttempts int
	BaseURL          string
	ModelID          string
	ExtraConfig      map[string]interface{}
}

// DefaultClientConfig fills in the tunables the spec names as defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		TPSLimit:         25,
		MaxRetryAttempts: 5,
	}
}

// BatchOptions configures a single BatchEngine run.
type BatchOptions struct {
	MaxConcurrentSessions int
	Backoff               BackoffConfig
	Timeout               time.Duration // 0 means "no per-job timeout"
}

// AssertionType names the kind of post-fetch result check.
type AssertionType string

const (
	AssertContains AssertionType = "contains"
	AssertRegex    AssertionType = "regex"
	AssertJSONPath AssertionType = "json_path"
)

// Assertion is a single post-fetch check run against a rollout result's
// raw JSON bytes before it's surfaced as a successful BatchItem.
type Assertion struct {
	Type    AssertionType
	Path    string
	Value   string
	Message string
	Regex   *regexp.Regexp // pre-compiled at config load time when Type == AssertRegex
}

// CircuitBreaker configures an optional stop_if gate on a batch's Fill
// phase: once tripped, the engine stops submitting new jobs but leaves
// already-active futures alone.
type CircuitBreaker struct {
	StopIf     string
	MinSamples int64
	Metric     string
	Operator   string
	Threshold  float64
	IsPercent  bool
}

// BatchSummary aggregates the outcomes of a completed batch run, used by
// internal/stats and internal/report.
type BatchSummary struct {
	Total       int            `json:"total"`
	Success     int            `json:"success"`
	Failures    int            `json:"failures"`
	Timeouts    int            `json:"timeouts"`
	Cancelled   int            `json:"cancelled"`
	SuccessRate float64        `json:"success_rate"`
	P50              time.Duration  `json:"p50"`
	P75              time.Duration  `json:"p75"`
	P90              time.Duration  `json:"p90"`
	P95              time.Duration  `json:"p95"`
	P99              time.Duration  `json:"p99"`
	Max              time.Duration  `json:"max"`
	Min              time.Duration  `json:"min"`
	ErrorKinds       map[string]int `json:"error_kinds"`
}
