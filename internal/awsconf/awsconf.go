// Package awsconf builds the region-scoped aws.Config corral's
// transport and object-store clients share, with adaptive retry mode —
// the Go SDK v2 equivalent of the Python client's
// boto3's Config(retries={"max_attempts": N, "mode": "adaptive"}).
package awsconf

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/acr9/corral/internal/transport"
)

// Options controls how the shared aws.Config is built.
type Options struct {
	Region           string
	MaxRetryAttempts int
	HTTPClient       transport.HTTPClientOptions
}

// Load resolves an aws.Config scoped to Region, with an adaptive
// retryer capped at MaxRetryAttempts and the tuned http.Client from
// internal/transport wired in as the HTTP client both the runtime and
// S3 clients end up using.
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	maxAttempts := opts.MaxRetryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	httpClient := transport.NewHTTPClient(opts.HTTPClient)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewAdaptiveMode(func(o *retry.AdaptiveModeOptions) {
				o.StandardOptions = append(o.StandardOptions, func(so *retry.StandardOptions) {
					so.MaxAttempts = maxAttempts
				})
			})
		}),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("awsconf: load config for region %s: %w", opts.Region, err)
	}
	return cfg, nil
}
