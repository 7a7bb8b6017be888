package rollout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acr9/corral/internal/rollout"
	"github.com/acr9/corral/pkg/models"
)

func TestFutureReadyToPollImmediately(t *testing.T) {
	store := newFakeStore()
	store.setReadyAfter("b", "k", 0, []byte(`{"ok":true}`))
	fut := rollout.NewFuture(store, "b", "k", nil, "", "", models.DefaultBackoff())

	if !fut.ReadyToPoll() {
		t.Fatal("a freshly constructed future must be ready to poll immediately")
	}
}

func TestFutureDoneSucceedsOnFirstHead(t *testing.T) {
	store := newFakeStore()
	store.setReadyAfter("bucket", "key", 0, []byte(`{"result":1}`))
	fut := rollout.NewFuture(store, "bucket", "key", nil, "", "", models.DefaultBackoff())

	done, err := fut.Done(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatal("expected done=true on first HEAD success")
	}
	if store.headCallCount("bucket", "key") != 1 {
		t.Fatalf("expected exactly 1 HEAD call, got %d", store.headCallCount("bucket", "key"))
	}
}

func TestFutureBackoffSchedule(t *testing.T) {
	store := newFakeStore()
	// 404 forever — we only care about the backoff sequence here.
	store.setReadyAfter("b", "k", 1<<30, nil)

	backoff := models.BackoffConfig{InitialInterval: time.Second, MaxInterval: 10 * time.Second, BackoffFactor: 2.0}
	fut := rollout.NewFuture(store, "b", "k", nil, "", "", backoff)

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	for i, w := range want {
		done, err := fut.Done(context.Background())
		if err != nil {
			t.Fatalf("poll %d: unexpected error: %v", i, err)
		}
		if done {
			t.Fatalf("poll %d: expected not-done", i)
		}
		// Done issues a HEAD whether or not the previous wait has
		// elapsed, so each iteration polls at once. Right after a 404
		// the remaining wait is just under the new interval, so the
		// Nth poll's interval bounds what we assert on.
		gotInterval := fut.TimeUntilNextPoll()
		if gotInterval <= 0 {
			t.Fatalf("poll %d: expected a positive wait after a fresh 404, got %v", i, gotInterval)
		}
		if gotInterval > w {
			t.Fatalf("poll %d: want interval <= %v, got %v", i, w, gotInterval)
		}
	}
}

func TestFutureResultCachesAndFetchesOnce(t *testing.T) {
	store := newFakeStore()
	store.setReadyAfter("b", "k", 0, []byte(`{"result":42}`))
	fut := rollout.NewFuture(store, "b", "k", nil, "", "", models.DefaultBackoff())

	result, err := fut.Result(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["result"].(float64) != 42 {
		t.Fatalf("unexpected result: %v", result)
	}

	// Second call must hit the cache, not the store.
	headsBefore := store.headCallCount("b", "k")
	result2, err := fut.Result(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error on cached call: %v", err)
	}
	if headsBefore != store.headCallCount("b", "k") {
		t.Fatal("Result must not re-poll once cached")
	}
	if result2["result"].(float64) != 42 {
		t.Fatalf("unexpected cached result: %v", result2)
	}
}

func TestFutureResultTimeout(t *testing.T) {
	store := newFakeStore()
	store.setReadyAfter("b", "k", 1<<30, nil) // never ready

	backoff := models.BackoffConfig{InitialInterval: 5 * time.Millisecond, MaxInterval: 5 * time.Millisecond, BackoffFactor: 1}
	fut := rollout.NewFuture(store, "b", "k", nil, "", "", backoff)

	_, err := fut.Result(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, rollout.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestFutureCancelIsIdempotent(t *testing.T) {
	store := newFakeStore()
	rt := newFakeRuntime(func(idx int, arnStr, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
		return models.SubmitResponse{}, nil
	})
	fut := rollout.NewFuture(store, "b", "k", rt, "arn:aws:bedrock-agentcore:us-west-2:1:agent/x", "sess-1", models.DefaultBackoff())

	first := fut.Cancel(context.Background())
	second := fut.Cancel(context.Background())

	if !first {
		t.Fatal("first cancel with a bound handle should report success")
	}
	if second {
		t.Fatal("second cancel must report false")
	}
	if rt.stopCallCount() != 1 {
		t.Fatalf("expected exactly 1 StopSession call, got %d", rt.stopCallCount())
	}
}

func TestFutureDoneAfterCancelSkipsIO(t *testing.T) {
	store := newFakeStore()
	store.setReadyAfter("b", "k", 1<<30, nil)
	fut := rollout.NewFuture(store, "b", "k", nil, "", "", models.DefaultBackoff())

	fut.Cancel(context.Background())

	done, err := fut.Done(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatal("a cancelled future must report done=true")
	}
	if store.headCallCount("b", "k") != 0 {
		t.Fatalf("Done after cancel must not issue HEAD, got %d calls", store.headCallCount("b", "k"))
	}
}

func TestFutureResultAfterCancelFails(t *testing.T) {
	store := newFakeStore()
	fut := rollout.NewFuture(store, "b", "k", nil, "", "", models.DefaultBackoff())
	fut.Cancel(context.Background())

	_, err := fut.Result(context.Background(), 0)
	if !errors.Is(err, rollout.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestFuturePropagatesNonNotFoundHeadError(t *testing.T) {
	store := newFakeStore()
	store.setHeadErr("b", "k", errBoom)
	fut := rollout.NewFuture(store, "b", "k", nil, "", "", models.DefaultBackoff())

	_, err := fut.Done(context.Background())
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected the underlying error to propagate, got %v", err)
	}
}
