package rollout_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/acr9/corral/internal/circuitbreaker"
	"github.com/acr9/corral/internal/rollout"
	"github.com/acr9/corral/pkg/models"
)

func drain(ch <-chan models.BatchItem) []models.BatchItem {
	var items []models.BatchItem
	for item := range ch {
		items = append(items, item)
	}
	return items
}

func TestBatchHappyPathThreeJobs(t *testing.T) {
	cfg := validClientConfig()
	cfg.TPSLimit = 1000
	store := newFakeStore()

	rt := newFakeRuntime(func(idx int, arnStr, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
		key := fmt.Sprintf("job-%d.json", idx)
		store.setReadyAfter(cfg.S3Bucket, key, 0, []byte(fmt.Sprintf(`{"result":%d}`, idx+1)))
		return models.SubmitResponse{S3Bucket: cfg.S3Bucket, ResultKey: key}, nil
	})
	c, err := rollout.New(cfg, rt, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payloads := []map[string]interface{}{
		{"p": "q1"}, {"p": "q2"}, {"p": "q3"},
	}
	engine := rollout.NewBatchEngine(c, payloads, models.BatchOptions{MaxConcurrentSessions: 10})

	items := drain(engine.Run(context.Background()))
	if len(items) != 3 {
		t.Fatalf("want 3 items, got %d", len(items))
	}

	seen := map[int]float64{}
	for _, item := range items {
		if !item.Success {
			t.Fatalf("unexpected failure: %+v", item)
		}
		if item.Elapsed < 0 {
			t.Fatalf("elapsed must be non-negative, got %v", item.Elapsed)
		}
		seen[item.Index] = item.Result["result"].(float64)
	}
	want := map[int]float64{0: 1, 1: 2, 2: 3}
	for idx, v := range want {
		if seen[idx] != v {
			t.Fatalf("index %d: want result %v, got %v", idx, v, seen[idx])
		}
	}
}

func TestBatchFailureIsolation(t *testing.T) {
	cfg := validClientConfig()
	cfg.TPSLimit = 1000
	store := newFakeStore()

	rt := newFakeRuntime(func(idx int, arnStr, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
		if idx == 1 {
			return models.SubmitResponse{}, fmt.Errorf("ACR invocation failed")
		}
		key := fmt.Sprintf("job-%d.json", idx)
		store.setReadyAfter(cfg.S3Bucket, key, 0, []byte(`{"ok":true}`))
		return models.SubmitResponse{S3Bucket: cfg.S3Bucket, ResultKey: key}, nil
	})
	c, _ := rollout.New(cfg, rt, store)

	payloads := []map[string]interface{}{{"p": 1}, {"p": 2}, {"p": 3}}
	engine := rollout.NewBatchEngine(c, payloads, models.BatchOptions{MaxConcurrentSessions: 10})

	items := drain(engine.Run(context.Background()))
	if len(items) != 3 {
		t.Fatalf("want 3 items, got %d", len(items))
	}

	successes, failures := 0, 0
	for _, item := range items {
		if item.Success {
			successes++
			continue
		}
		failures++
		if item.Index != 1 {
			t.Fatalf("expected the failure at index 1, got index %d", item.Index)
		}
		if !strings.Contains(item.Error, "ACR invocation failed") {
			t.Fatalf("unexpected error message: %q", item.Error)
		}
		if item.Elapsed != 0 {
			t.Fatalf("a submission failure must report elapsed=0, got %v", item.Elapsed)
		}
	}
	if successes != 2 || failures != 1 {
		t.Fatalf("want 2 successes and 1 failure, got %d/%d", successes, failures)
	}
}

func TestBatchTimeoutCancelsAndReportsFailure(t *testing.T) {
	cfg := validClientConfig()
	cfg.TPSLimit = 1000
	store := newFakeStore()
	store.setReadyAfter(cfg.S3Bucket, "stuck.json", 1<<30, nil) // permanent 404

	rt := newFakeRuntime(func(idx int, arnStr, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
		return models.SubmitResponse{S3Bucket: cfg.S3Bucket, ResultKey: "stuck.json"}, nil
	})
	c, _ := rollout.New(cfg, rt, store)

	payloads := []map[string]interface{}{{"p": 1}}
	opts := models.BatchOptions{
		MaxConcurrentSessions: 1,
		Backoff:               models.BackoffConfig{InitialInterval: 5 * time.Millisecond, MaxInterval: 5 * time.Millisecond, BackoffFactor: 1},
		Timeout:                100 * time.Millisecond,
	}
	engine := rollout.NewBatchEngine(c, payloads, opts)

	start := time.Now()
	items := drain(engine.Run(context.Background()))
	elapsedWall := time.Since(start)

	if len(items) != 1 {
		t.Fatalf("want 1 item, got %d", len(items))
	}
	item := items[0]
	if item.Success {
		t.Fatal("expected a timeout failure")
	}
	if !strings.HasPrefix(item.Error, "Timeout") {
		t.Fatalf("want error starting with Timeout, got %q", item.Error)
	}
	if item.Index != 0 {
		t.Fatalf("want index 0, got %d", item.Index)
	}
	if item.Elapsed < opts.Timeout {
		t.Fatalf("want elapsed >= timeout (%v), got %v", opts.Timeout, item.Elapsed)
	}
	if elapsedWall < opts.Timeout {
		t.Fatalf("batch must not finish before the timeout elapses")
	}
	if rt.stopCallCount() != 1 {
		t.Fatalf("want exactly 1 StopSession call, got %d", rt.stopCallCount())
	}
}

func TestBatchCircuitBreakerStopsSubmittingButKeepsFailureIsolation(t *testing.T) {
	cfg := validClientConfig()
	cfg.TPSLimit = 1000
	store := newFakeStore()
	store.setHeadErr(cfg.S3Bucket, "job.json", errBoom) // every poll fails, not just a 404

	rt := newFakeRuntime(func(idx int, arnStr, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
		return models.SubmitResponse{S3Bucket: cfg.S3Bucket, ResultKey: "job.json"}, nil
	})
	c, _ := rollout.New(cfg, rt, store)

	breaker, err := circuitbreaker.NewBreaker(&models.CircuitBreaker{StopIf: "errors > 0.5", MinSamples: 1})
	if err != nil {
		t.Fatalf("unexpected error building breaker: %v", err)
	}

	payloads := []map[string]interface{}{{"p": 1}, {"p": 2}, {"p": 3}, {"p": 4}, {"p": 5}}
	engine := rollout.NewBatchEngine(c, payloads, models.BatchOptions{MaxConcurrentSessions: 1}).WithCircuitBreaker(breaker)

	items := drain(engine.Run(context.Background()))
	if len(items) != 5 {
		t.Fatalf("every payload must still surface exactly one terminal item, got %d", len(items))
	}
	for _, item := range items {
		if item.Success {
			t.Fatalf("no submission can succeed in this scenario, got %+v", item)
		}
	}
	if !breaker.IsTripped() {
		t.Fatal("breaker should have tripped after the first failing poll")
	}
	if rt.submitCallCount() != 1 {
		t.Fatalf("a tripped breaker must stop new submissions, got %d Submit calls", rt.submitCallCount())
	}
}

func TestBatchEmptyPayloadListYieldsNothing(t *testing.T) {
	cfg := validClientConfig()
	c, _ := rollout.New(cfg, newFakeRuntime(nil), newFakeStore())

	engine := rollout.NewBatchEngine(c, nil, models.BatchOptions{MaxConcurrentSessions: 5})
	items := drain(engine.Run(context.Background()))
	if len(items) != 0 {
		t.Fatalf("want 0 items for an empty payload list, got %d", len(items))
	}
}

// countingStore wraps fakeStore and tracks how many result keys are
// currently submitted-but-not-yet-fetched, so tests can observe the
// engine's actual concurrency rather than inferring it from call order.
type countingStore struct {
	*fakeStore
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

func (s *countingStore) markSubmitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
}

func (s *countingStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	body, err := s.fakeStore.Get(ctx, bucket, key)
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return body, err
}

func TestBatchSerializesAtConcurrencyOne(t *testing.T) {
	cfg := validClientConfig()
	cfg.TPSLimit = 1000
	store := &countingStore{fakeStore: newFakeStore()}

	rt := newFakeRuntime(func(idx int, arnStr, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
		key := fmt.Sprintf("job-%d.json", idx)
		store.setReadyAfter(cfg.S3Bucket, key, 0, []byte(`{"ok":true}`))
		store.markSubmitted()
		return models.SubmitResponse{S3Bucket: cfg.S3Bucket, ResultKey: key}, nil
	})
	c, _ := rollout.New(cfg, rt, store)

	payloads := []map[string]interface{}{{"p": 1}, {"p": 2}, {"p": 3}, {"p": 4}}
	engine := rollout.NewBatchEngine(c, payloads, models.BatchOptions{MaxConcurrentSessions: 1})

	items := drain(engine.Run(context.Background()))
	if len(items) != 4 {
		t.Fatalf("want 4 items, got %d", len(items))
	}
	if store.maxInFlight != 1 {
		t.Fatalf("max_concurrent_sessions=1 must serialize the batch, saw %d in flight", store.maxInFlight)
	}
}
