package rollout_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/acr9/corral/internal/objectstore"
	"github.com/acr9/corral/pkg/models"
)

// fakeStore is an in-memory ObjectStore. Each key becomes "ready" (HEAD
// succeeds) only after readyAfter HEAD calls against it, letting tests
// exercise the backoff schedule deterministically.
type fakeStore struct {
	mu         sync.Mutex
	readyAfter map[string]int
	headCalls  map[string]int
	headErr    map[string]error
	data       map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		readyAfter: make(map[string]int),
		headCalls:  make(map[string]int),
		headErr:    make(map[string]error),
		data:       make(map[string][]byte),
	}
}

func objKey(bucket, key string) string { return bucket + "/" + key }

func (s *fakeStore) setReadyAfter(bucket, key string, calls int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyAfter[objKey(bucket, key)] = calls
	s.data[objKey(bucket, key)] = body
}

func (s *fakeStore) setHeadErr(bucket, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headErr[objKey(bucket, key)] = err
}

func (s *fakeStore) headCallCount(bucket, key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headCalls[objKey(bucket, key)]
}

func (s *fakeStore) Head(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := objKey(bucket, key)
	s.headCalls[k]++
	if err, ok := s.headErr[k]; ok {
		return err
	}
	if s.headCalls[k] > s.readyAfter[k] {
		return nil
	}
	return objectstore.ErrNotFound
}

func (s *fakeStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := objKey(bucket, key)
	body, ok := s.data[k]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return body, nil
}

// fakeRuntime is an in-memory RuntimeTransport. submitFn lets a test
// script per-call behavior (e.g. "fail on the second submission").
type fakeRuntime struct {
	mu          sync.Mutex
	submitFn    func(callIndex int, runtimeARN, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error)
	submitCalls int
	stopCalls   []stopCall
}

type stopCall struct {
	runtimeARN string
	sessionID  string
}

func newFakeRuntime(submitFn func(callIndex int, runtimeARN, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error)) *fakeRuntime {
	return &fakeRuntime{submitFn: submitFn}
}

func (r *fakeRuntime) Submit(ctx context.Context, runtimeARN, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
	r.mu.Lock()
	idx := r.submitCalls
	r.submitCalls++
	r.mu.Unlock()
	return r.submitFn(idx, runtimeARN, sessionID, payload)
}

func (r *fakeRuntime) StopSession(ctx context.Context, runtimeARN, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopCalls = append(r.stopCalls, stopCall{runtimeARN: runtimeARN, sessionID: sessionID})
	return nil
}

func (r *fakeRuntime) stopCallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stopCalls)
}

func (r *fakeRuntime) submitCallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submitCalls
}

var errBoom = errors.New("boom")

func sequentialResultKey(expID, inputID, sessionID string) string {
	return fmt.Sprintf("%s/%s_%s.json", expID, inputID, sessionID)
}
