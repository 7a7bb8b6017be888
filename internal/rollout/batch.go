package rollout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acr9/corral/internal/circuitbreaker"
	"github.com/acr9/corral/internal/resultcheck"
	"github.com/acr9/corral/pkg/models"
)

// pendingJob is one not-yet-submitted payload, index preserving the
// caller's original ordering.
type pendingJob struct {
	index   int
	payload map[string]interface{}
}

// activeJob is one outstanding future, keyed by its result key in the
// engine's active set.
type activeJob struct {
	index      int
	future     *Future
	submitTime time.Time
}

// BatchEngine drives a payload list through submission, adaptive
// polling, timeout and cancellation, yielding BatchItems in completion
// order. It is single-threaded cooperative: Run's loop goroutine is the
// only thing that ever touches the pending queue or active set, so there
// are no locks inside the engine itself.
type BatchEngine struct {
	client     *Client
	payloads   []map[string]interface{}
	opts       models.BatchOptions
	breaker    *circuitbreaker.Breaker
	assertions []models.Assertion
}

// NewBatchEngine builds an engine for one run over payloads. opts.Backoff
// overrides whatever backoff the Client would otherwise hand a fresh
// Future, and opts.Timeout of zero means "no per-job timeout".
func NewBatchEngine(client *Client, payloads []map[string]interface{}, opts models.BatchOptions) *BatchEngine {
	if opts.MaxConcurrentSessions <= 0 {
		opts.MaxConcurrentSessions = 1
	}
	if opts.Backoff.BackoffFactor == 0 {
		opts.Backoff = models.DefaultBackoff()
	}
	return &BatchEngine{client: client, payloads: payloads, opts: opts}
}

// WithCircuitBreaker attaches a Fill-phase gate: once it trips, the
// engine stops submitting new jobs but leaves already-active futures to
// run to their own completion/timeout. Returns the engine for chaining.
func (e *BatchEngine) WithCircuitBreaker(b *circuitbreaker.Breaker) *BatchEngine {
	e.breaker = b
	return e
}

// WithAssertions attaches post-fetch checks: a successful result that
// fails one becomes a failure BatchItem instead, with the assertion
// error as its message. Returns the engine for chaining.
func (e *BatchEngine) WithAssertions(assertions []models.Assertion) *BatchEngine {
	e.assertions = assertions
	return e
}

// Run drives the batch to completion on its own goroutine and returns a
// channel yielding exactly len(payloads) BatchItems. The channel closes
// once the pending queue and active set are both empty, or ctx is
// cancelled.
func (e *BatchEngine) Run(ctx context.Context) <-chan models.BatchItem {
	out := make(chan models.BatchItem)
	go e.loop(ctx, out)
	return out
}

func (e *BatchEngine) loop(ctx context.Context, out chan<- models.BatchItem) {
	defer close(out)

	pending := make([]pendingJob, len(e.payloads))
	for i, p := range e.payloads {
		pending[i] = pendingJob{index: i, payload: p}
	}
	active := make(map[string]*activeJob)
	var completedCount, failureCount int64

	for len(pending) > 0 || len(active) > 0 {
		if ctx.Err() != nil {
			return
		}

		// record emits item and folds it into the running totals the
		// circuit breaker checks against.
		record := func(item models.BatchItem) bool {
			completedCount++
			if !item.Success {
				failureCount++
			}
			return emit(ctx, out, item)
		}

		// Fill phase: submit until the concurrency cap, the pending
		// queue runs dry, or the circuit breaker trips. A tripped
		// breaker only stops new submissions — it never cancels
		// futures already in flight.
		for len(pending) > 0 && len(active) < e.opts.MaxConcurrentSessions && !e.breaker.IsTripped() {
			job := pending[0]
			pending = pending[1:]

			sessionID, inputID := uuid.NewString(), uuid.NewString()
			fut, err := e.client.Invoke(ctx, job.payload, sessionID, inputID)
			if err != nil {
				if !record(models.BatchItem{Success: false, Index: job.index, Error: err.Error()}) {
					return
				}
				continue
			}
			fut.OverrideBackoff(e.opts.Backoff)
			active[fut.ResultKey()] = &activeJob{index: job.index, future: fut, submitTime: time.Now()}
		}

		// A tripped breaker with nothing left active would otherwise
		// spin forever waiting on a pending queue the Fill guard will
		// never drain again: surface the rest as failures and stop.
		if e.breaker.IsTripped() && len(active) == 0 && len(pending) > 0 {
			reason := e.breaker.Reason()
			for _, job := range pending {
				if !record(models.BatchItem{Success: false, Index: job.index, Error: reason}) {
					return
				}
			}
			pending = nil
			continue
		}

		completed := make(map[string]struct{})

		// Poll phase: service every future that's ready.
		for key, aj := range active {
			if !aj.future.ReadyToPoll() {
				continue
			}
			done, err := aj.future.Done(ctx)
			if err != nil {
				completed[key] = struct{}{}
				if !record(models.BatchItem{Success: false, Index: aj.index, Error: err.Error(), Elapsed: time.Since(aj.submitTime)}) {
					return
				}
				continue
			}
			if !done {
				continue
			}

			result, err := aj.future.Result(ctx, 0)
			completed[key] = struct{}{}
			if err != nil {
				if !record(models.BatchItem{Success: false, Index: aj.index, Error: err.Error(), Elapsed: time.Since(aj.submitTime)}) {
					return
				}
				continue
			}
			item := models.BatchItem{Success: true, Result: result, Index: aj.index, Elapsed: time.Since(aj.submitTime)}
			if len(e.assertions) > 0 {
				if raw, marshalErr := json.Marshal(result); marshalErr == nil {
					if assertErr := resultcheck.Validate(raw, e.assertions); assertErr != nil {
						item.Success = false
						item.Error = assertErr.Error()
					}
				}
			}
			if !record(item) {
				return
			}
		}

		// Timeout phase.
		if e.opts.Timeout > 0 {
			for key, aj := range active {
				if _, done := completed[key]; done {
					continue
				}
				elapsed := time.Since(aj.submitTime)
				if elapsed <= e.opts.Timeout {
					continue
				}
				aj.future.Cancel(ctx)
				completed[key] = struct{}{}
				item := models.BatchItem{
					Success: false,
					Index:   aj.index,
					Error:   fmt.Sprintf("Timeout after %gs", e.opts.Timeout.Seconds()),
					Elapsed: elapsed,
				}
				if !record(item) {
					return
				}
			}
		}

		// Reap.
		for key := range completed {
			delete(active, key)
		}
		e.breaker.Check(completedCount, failureCount)

		// Sleep phase: only when nothing completed this round, wait
		// just long enough for the next poll or timeout to matter.
		if len(active) > 0 && len(completed) == 0 {
			wait := e.nextWakeup(active)
			if wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
	}
}

// nextWakeup returns how long the loop should sleep before its next
// iteration: the soonest of any future's next poll deadline, or the
// soonest per-job timeout.
func (e *BatchEngine) nextWakeup(active map[string]*activeJob) time.Duration {
	wait := Infinite
	for _, aj := range active {
		if w := aj.future.TimeUntilNextPoll(); w < wait {
			wait = w
		}
		if e.opts.Timeout > 0 {
			if remaining := e.opts.Timeout - time.Since(aj.submitTime); remaining < wait {
				wait = remaining
			}
		}
	}
	if wait == Infinite {
		return 0
	}
	if wait < 0 {
		return 0
	}
	return wait
}

// emit sends item on out, returning false if ctx was cancelled first so
// the loop can unwind instead of blocking forever on a channel nobody
// drains.
func emit(ctx context.Context, out chan<- models.BatchItem, item models.BatchItem) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
