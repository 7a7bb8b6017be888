// Package transport abstracts submission to, and cancellation of, the
// remote agent runtime, so RolloutFuture and Client never depend on the
// AWS SDK directly.
package transport

import (
	"context"

	"github.com/acr9/corral/pkg/models"
)

// Runtime is the narrow surface Client and RolloutFuture need against
// the remote agent runtime.
type Runtime interface {
	// Submit invokes the runtime with payload and returns its parsed
	// reply. The transport is responsible for its own adaptive retry on
	// throttling/server-busy responses, up to its configured attempt
	// cap — Client MUST NOT retry submit itself.
	Submit(ctx context.Context, runtimeARN, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error)
	// StopSession asks the runtime to tear down a session. Best effort:
	// callers treat any error as "couldn't cancel" and swallow it.
	StopSession(ctx context.Context, runtimeARN, sessionID string) error
}
