package rollout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/acr9/corral/internal/objectstore"
	"github.com/acr9/corral/internal/transport"
	"github.com/acr9/corral/pkg/models"
)

// Infinite is the value TimeUntilNextPoll returns once a future is done
// or cancelled — there's nothing left to wait for.
const Infinite = time.Duration(math.MaxInt64)

// ErrCancelled is returned by Result once the future has been cancelled.
var ErrCancelled = errors.New("rollout: future was cancelled")

// ErrTimeout is returned by Result when the deadline elapses first.
var ErrTimeout = errors.New("rollout: timed out waiting for result")

// Future tracks one outstanding rollout: its object-store identity, an
// optional cancellation handle, and its own exponential-backoff poll
// clock. Zero value is not usable — construct with NewFuture.
type Future struct {
	store objectstore.Store
	rt    transport.Runtime // nil when this future cannot be cancelled

	bucket    string
	resultKey string

	runtimeARN string
	sessionID  string

	backoffFactor float64
	maxInterval   time.Duration

	mu           sync.Mutex
	pollInterval time.Duration
	lastPollTime time.Time
	done         bool
	cancelled    bool
	result       map[string]interface{}
}

// NewFuture constructs a Future bound to (bucket, resultKey). rt/runtimeARN
// may be zero-valued (nil/empty) when the future cannot be cancelled —
// Cancel then always reports failure.
func NewFuture(store objectstore.Store, bucket, resultKey string, rt transport.Runtime, runtimeARN, sessionID string, backoff models.BackoffConfig) *Future {
	return &Future{
		store:         store,
		rt:            rt,
		bucket:        bucket,
		resultKey:     resultKey,
		runtimeARN:    runtimeARN,
		sessionID:     sessionID,
		backoffFactor: backoff.BackoffFactor,
		maxInterval:   backoff.MaxInterval,
		pollInterval:  backoff.InitialInterval,
	}
}

// Bucket returns the future's bucket identity.
func (f *Future) Bucket() string { return f.bucket }

// ResultKey returns the future's result-key identity. BatchEngine keys
// its active set on this.
func (f *Future) ResultKey() string { return f.resultKey }

// SessionID returns the bound session id (used for logging/reporting).
func (f *Future) SessionID() string { return f.sessionID }

// OverrideBackoff lets BatchEngine impose its own backoff parameters on
// a freshly-submitted future, overriding whatever the Client used.
func (f *Future) OverrideBackoff(backoff models.BackoffConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollInterval = backoff.InitialInterval
	f.backoffFactor = backoff.BackoffFactor
	f.maxInterval = backoff.MaxInterval
}

// Done reports whether the result is ready. If already done or
// cancelled, returns true without any I/O. Otherwise issues a HEAD; on
// not-found it advances the backoff clock and returns false. Any other
// store error propagates unchanged.
func (f *Future) Done(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return true, nil
	}
	f.mu.Unlock()

	err := f.store.Head(ctx, f.bucket, f.resultKey)
	if err == nil {
		f.mu.Lock()
		f.done = true
		f.mu.Unlock()
		return true, nil
	}
	if errors.Is(err, objectstore.ErrNotFound) {
		f.mu.Lock()
		f.lastPollTime = time.Now()
		next := time.Duration(float64(f.pollInterval) * f.backoffFactor)
		if next > f.maxInterval {
			next = f.maxInterval
		}
		f.pollInterval = next
		f.mu.Unlock()
		return false, nil
	}
	return false, err
}

// TimeUntilNextPoll returns how long to wait before the next HEAD is
// worth attempting. Infinite once the future is done.
func (f *Future) TimeUntilNextPoll() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return Infinite
	}
	if f.lastPollTime.IsZero() {
		return 0
	}
	remaining := f.pollInterval - time.Since(f.lastPollTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ReadyToPoll reports whether enough time has passed since the last HEAD.
func (f *Future) ReadyToPoll() bool {
	return f.TimeUntilNextPoll() <= 0
}

// Result blocks until the rollout result is ready, polling with the
// future's own backoff clock. A zero timeout means "wait forever".
func (f *Future) Result(ctx context.Context, timeout time.Duration) (map[string]interface{}, error) {
	f.mu.Lock()
	if f.result != nil {
		r := f.result
		f.mu.Unlock()
		return r, nil
	}
	cancelled := f.cancelled
	f.mu.Unlock()
	if cancelled {
		return nil, ErrCancelled
	}

	start := time.Now()
	for {
		done, err := f.Done(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			f.mu.Lock()
			if f.cancelled {
				f.mu.Unlock()
				return nil, ErrCancelled
			}
			f.mu.Unlock()

			raw, err := f.store.Get(ctx, f.bucket, f.resultKey)
			if err != nil {
				return nil, fmt.Errorf("rollout: fetch result: %w", err)
			}
			var parsed map[string]interface{}
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return nil, fmt.Errorf("rollout: parse result json: %w", err)
			}
			f.mu.Lock()
			f.result = parsed
			f.mu.Unlock()
			return parsed, nil
		}

		if timeout > 0 && time.Since(start) > timeout {
			return nil, ErrTimeout
		}

		f.mu.Lock()
		sleepFor := f.pollInterval
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepFor):
		}
	}
}

// Cancel is idempotent: the first call marks the future cancelled and,
// if a transport handle is bound, issues a best-effort StopSession.
// Returns true only when that call both fired and succeeded; a second
// call, or one with no bound handle, returns false.
func (f *Future) Cancel(ctx context.Context) bool {
	f.mu.Lock()
	if f.cancelled {
		f.mu.Unlock()
		return false
	}
	f.cancelled = true
	f.done = true
	rt := f.rt
	runtimeARN := f.runtimeARN
	sessionID := f.sessionID
	f.mu.Unlock()

	if rt == nil || sessionID == "" {
		return false
	}
	if err := rt.StopSession(ctx, runtimeARN, sessionID); err != nil {
		return false
	}
	return true
}

// Cancelled reports whether Cancel has already been called.
func (f *Future) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}
