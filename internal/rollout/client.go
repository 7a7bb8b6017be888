package rollout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/acr9/corral/internal/arn"
	"github.com/acr9/corral/internal/objectstore"
	"github.com/acr9/corral/internal/ratelimiter"
	"github.com/acr9/corral/internal/transport"
	"github.com/acr9/corral/pkg/models"
)

// Client translates a user payload into a submission and a Future. It
// owns a transport handle, a store handle, and a rate limiter — it is
// NOT thread-safe; one owner per instance, same contract as the Python
// RolloutClient it mirrors.
type Client struct {
	cfg     models.ClientConfig
	region  string
	rt      transport.Runtime
	store   objectstore.Store
	limiter *ratelimiter.Limiter
	backoff models.BackoffConfig
}

// New validates cfg (parsing the region out of the ARN) and wires up a
// Client around the given transport/store handles.
func New(cfg models.ClientConfig, rt transport.Runtime, store objectstore.Store) (*Client, error) {
	region, err := arn.ParseRegion(cfg.AgentRuntimeARN)
	if err != nil {
		return nil, fmt.Errorf("rollout: %w", err)
	}
	if cfg.TPSLimit <= 0 {
		cfg.TPSLimit = models.DefaultClientConfig().TPSLimit
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = models.DefaultClientConfig().MaxRetryAttempts
	}
	return &Client{
		cfg:     cfg,
		region:  region,
		rt:      rt,
		store:   store,
		limiter: ratelimiter.New(cfg.TPSLimit),
		backoff: models.DefaultBackoff(),
	}, nil
}

// Region returns the region parsed from the runtime ARN at construction.
func (c *Client) Region() string { return c.region }

// Invoke submits payload to the runtime, filling in a fresh session/input
// id where the caller left one blank, and returns a Future for the
// eventual result. Transport errors propagate unchanged; Invoke never
// retries them itself beyond the transport's own adaptive retry.
func (c *Client) Invoke(ctx context.Context, payload map[string]interface{}, sessionID, inputID string) (*Future, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if inputID == "" {
		inputID = uuid.NewString()
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("rollout: rate limiter: %w", err)
	}

	full := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		full[k] = v
	}
	full["_rollout"] = c.rolloutConfig(sessionID, inputID)

	resp, err := c.rt.Submit(ctx, c.cfg.AgentRuntimeARN, sessionID, full)
	if err != nil {
		return nil, err
	}

	return NewFuture(c.store, resp.S3Bucket, resp.ResultKey, c.rt, c.cfg.AgentRuntimeARN, sessionID, c.backoff), nil
}

func (c *Client) rolloutConfig(sessionID, inputID string) map[string]interface{} {
	cfg := map[string]interface{}{
		"exp_id":     c.cfg.ExpID,
		"session_id": sessionID,
		"input_id":   inputID,
		"s3_bucket":  c.cfg.S3Bucket,
	}
	for k, v := range c.cfg.ExtraConfig {
		cfg[k] = v
	}
	if c.cfg.BaseURL != "" {
		cfg["base_url"] = c.cfg.BaseURL
	}
	if c.cfg.ModelID != "" {
		cfg["model_id"] = c.cfg.ModelID
	}
	return cfg
}
