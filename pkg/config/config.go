// Package config loads a corral batch spec from YAML into the internal
// models types the rollout client, batch engine, circuit breaker, and
// result checker consume, and can save one back out the same way the
// teacher's setup wizard persisted a finished config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/acr9/corral/internal/circuitbreaker"
	"github.com/acr9/corral/internal/payload"
	"github.com/acr9/corral/internal/resultcheck"
	"github.com/acr9/corral/pkg/models"
	"gopkg.in/yaml.v3"
)

// YAMLAssertion mirrors models.Assertion in its YAML wire shape.
type YAMLAssertion struct {
	Type    string `yaml:"type"`              // contains, regex, json_path
	Value   string `yaml:"value"`             // expected value or pattern
	Path    string `yaml:"path,omitempty"`    // JSON path (for json_path type)
	Message string `yaml:"message,omitempty"` // custom error message
}

// YAMLBackoff mirrors models.BackoffConfig in its YAML wire shape.
type YAMLBackoff struct {
	InitialInterval string  `yaml:"initial_interval,omitempty"`
	MaxInterval     string  `yaml:"max_interval,omitempty"`
	BackoffFactor   float64 `yaml:"backoff_factor,omitempty"`
}

// YAMLConfig is the on-disk shape of a batch spec file.
type YAMLConfig struct {
	Runtime struct {
		ARN              string                 `yaml:"arn"`
		Bucket           string                 `yaml:"bucket"`
		ExpID            string                 `yaml:"exp_id"`
		BaseURL          string                 `yaml:"base_url,omitempty"`
		ModelID          string                 `yaml:"model_id,omitempty"`
		ExtraConfig      map[string]interface{} `yaml:"extra_config,omitempty"`
		TPSLimit         int                    `yaml:"tps_limit,omitempty"`
		MaxRetryAttempts int                    `yaml:"max_retry_attempts,omitempty"`
	} `yaml:"runtime"`

	Payloads struct {
		Count int               `yaml:"count,omitempty"` // 0 means "derive from data source length"
		Data  string            `yaml:"data,omitempty"`  // path to a CSV data source, optional
		Spec  map[string]string `yaml:"spec"`
	} `yaml:"payloads"`

	Batch struct {
		MaxConcurrentSessions int         `yaml:"max_concurrent_sessions,omitempty"`
		Timeout               string      `yaml:"timeout,omitempty"`
		Backoff               YAMLBackoff `yaml:"backoff,omitempty"`
		StopIf                string      `yaml:"stop_if,omitempty"`
		MinSamples            int64       `yaml:"min_samples,omitempty"`
	} `yaml:"batch"`

	Assertions []YAMLAssertion `yaml:"assertions,omitempty"`
}

// BatchSpec is the fully resolved, ready-to-run form of a YAML config:
// a client config, a payload builder, batch options, an optional
// breaker config, and pre-compiled assertions.
type BatchSpec struct {
	ClientConfig models.ClientConfig
	Builder      *payload.Builder
	Count        int
	BatchOptions models.BatchOptions
	Breaker      *models.CircuitBreaker
	Assertions   []models.Assertion
}

// Load reads path and resolves it into a BatchSpec.
func Load(path string) (*BatchSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	return Resolve(yamlCfg)
}

// Resolve turns an already-parsed YAMLConfig into a runnable BatchSpec.
// Load calls it after parsing; the init wizard does not, it only writes
// its YAMLConfig out with Save.
func Resolve(yamlCfg YAMLConfig) (*BatchSpec, error) {
	spec := &BatchSpec{
		ClientConfig: models.ClientConfig{
			AgentRuntimeARN:  yamlCfg.Runtime.ARN,
			S3Bucket:         yamlCfg.Runtime.Bucket,
			ExpID:            yamlCfg.Runtime.ExpID,
			TPSLimit:         yamlCfg.Runtime.TPSLimit,
			MaxRetryAttempts: yamlCfg.Runtime.MaxRetryAttempts,
			BaseURL:          yamlCfg.Runtime.BaseURL,
			ModelID:          yamlCfg.Runtime.ModelID,
			ExtraConfig:      yamlCfg.Runtime.ExtraConfig,
		},
	}

	var feeder payload.Feeder
	if yamlCfg.Payloads.Data != "" {
		f, err := payload.NewCSVFeeder(yamlCfg.Payloads.Data)
		if err != nil {
			return nil, fmt.Errorf("config: payloads.data: %w", err)
		}
		feeder = f
	}
	builder := payload.NewBuilder(payload.Spec(yamlCfg.Payloads.Spec), feeder)
	spec.Builder = builder
	spec.Count = builder.Count(yamlCfg.Payloads.Count)
	if spec.Count <= 0 {
		return nil, fmt.Errorf("config: payloads.count must be set when no payloads.data source is given")
	}

	opts := models.BatchOptions{MaxConcurrentSessions: yamlCfg.Batch.MaxConcurrentSessions}
	if yamlCfg.Batch.Timeout != "" {
		d, err := time.ParseDuration(yamlCfg.Batch.Timeout)
		if err != nil {
			return nil, fmt.Errorf("config: batch.timeout: %w", err)
		}
		opts.Timeout = d
	}
	opts.Backoff = models.DefaultBackoff()
	if yamlCfg.Batch.Backoff.InitialInterval != "" {
		d, err := time.ParseDuration(yamlCfg.Batch.Backoff.InitialInterval)
		if err != nil {
			return nil, fmt.Errorf("config: batch.backoff.initial_interval: %w", err)
		}
		opts.Backoff.InitialInterval = d
	}
	if yamlCfg.Batch.Backoff.MaxInterval != "" {
		d, err := time.ParseDuration(yamlCfg.Batch.Backoff.MaxInterval)
		if err != nil {
			return nil, fmt.Errorf("config: batch.backoff.max_interval: %w", err)
		}
		opts.Backoff.MaxInterval = d
	}
	if yamlCfg.Batch.Backoff.BackoffFactor > 0 {
		opts.Backoff.BackoffFactor = yamlCfg.Batch.Backoff.BackoffFactor
	}
	spec.BatchOptions = opts

	if yamlCfg.Batch.StopIf != "" {
		breakerCfg := &models.CircuitBreaker{
			StopIf:     yamlCfg.Batch.StopIf,
			MinSamples: yamlCfg.Batch.MinSamples,
		}
		if err := circuitbreaker.ParseCondition(breakerCfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if breakerCfg.MinSamples <= 0 {
			breakerCfg.MinSamples = 20
		}
		spec.Breaker = breakerCfg
	}

	for _, a := range yamlCfg.Assertions {
		assertion := models.Assertion{
			Type:    models.AssertionType(a.Type),
			Value:   a.Value,
			Path:    a.Path,
			Message: a.Message,
		}
		if assertion.Type == "" {
			assertion.Type = models.AssertContains
		}
		spec.Assertions = append(spec.Assertions, assertion)
	}
	if len(spec.Assertions) > 0 {
		if err := resultcheck.CompileAssertions(spec.Assertions); err != nil {
			return nil, fmt.Errorf("config: assertions: %w", err)
		}
	}

	return spec, nil
}

// Validate checks a YAMLConfig for the fields a run absolutely needs
// before submitting a single job, with the same field/hint/suggestion
// shape the teacher's validator used for HTTP target configs.
func Validate(cfg *YAMLConfig) error {
	result := &ValidationResult{}

	if cfg.Runtime.ARN == "" {
		result.Add(ValidationError{
			Field:   "runtime.arn",
			Message: "missing required field",
			Hint:    GetHint("runtime.arn"),
		})
	}
	if cfg.Runtime.Bucket == "" {
		result.Add(ValidationError{
			Field:   "runtime.bucket",
			Message: "missing required field",
			Hint:    GetHint("runtime.bucket"),
		})
	}
	if cfg.Runtime.ExpID == "" {
		result.Add(ValidationError{
			Field:   "runtime.exp_id",
			Message: "missing required field",
			Hint:    GetHint("runtime.exp_id"),
		})
	}
	if len(cfg.Payloads.Spec) == 0 {
		result.Add(ValidationError{
			Field:   "payloads.spec",
			Message: "at least one payload field template is required",
			Hint:    GetHint("payloads.spec"),
		})
	}
	if cfg.Payloads.Count <= 0 && cfg.Payloads.Data == "" {
		result.Add(ValidationError{
			Field:   "payloads.count",
			Message: "must be set when payloads.data is not provided",
			Hint:    "Either set payloads.count to a fixed job count, or point payloads.data at a CSV feeder",
		})
	}
	if cfg.Batch.MaxConcurrentSessions < 0 {
		result.Add(ValidationError{
			Field:    "batch.max_concurrent_sessions",
			Value:    fmt.Sprintf("%d", cfg.Batch.MaxConcurrentSessions),
			Message:  "cannot be negative",
			Expected: "positive integer (e.g., 10)",
		})
	}
	if cfg.Batch.StopIf != "" {
		breakerCfg := &models.CircuitBreaker{StopIf: cfg.Batch.StopIf}
		if err := circuitbreaker.ParseCondition(breakerCfg); err != nil {
			result.Add(ValidationError{
				Field:   "batch.stop_if",
				Value:   cfg.Batch.StopIf,
				Message: err.Error(),
				Hint:    `Use an expression like "errors > 10%" or "error_rate > 0.1"`,
			})
		}
	}

	if result.HasErrors() {
		return fmt.Errorf("%s", result.FormatErrors())
	}
	return nil
}

// Save writes cfg to path as YAML, appending a run hint comment the way
// the teacher's setup wizard did.
func Save(path string, cfg YAMLConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	comment := fmt.Sprintf("\n# Run this configuration:\n# corral run -config %s\n", filepath.Base(path))
	data = append(data, []byte(comment)...)
	return os.WriteFile(path, data, 0644)
}
