package rollout_test

import (
	"context"
	"testing"

	"github.com/acr9/corral/internal/rollout"
	"github.com/acr9/corral/pkg/models"
)

func validClientConfig() models.ClientConfig {
	cfg := models.DefaultClientConfig()
	cfg.AgentRuntimeARN = "arn:aws:bedrock-agentcore:us-west-2:123456789012:agent/abc"
	cfg.S3Bucket = "rollouts"
	cfg.ExpID = "exp-1"
	return cfg
}

func TestNewRejectsARNWithoutRegion(t *testing.T) {
	cfg := validClientConfig()
	cfg.AgentRuntimeARN = "arn:aws:service::acct:res"

	_, err := rollout.New(cfg, newFakeRuntime(nil), newFakeStore())
	if err == nil {
		t.Fatal("expected a configuration error for an ARN with an empty region field")
	}
}

func TestNewParsesRegion(t *testing.T) {
	cfg := validClientConfig()
	c, err := rollout.New(cfg, newFakeRuntime(nil), newFakeStore())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Region() != "us-west-2" {
		t.Fatalf("want region us-west-2, got %q", c.Region())
	}
}

func TestInvokeBuildsRolloutConfigAndReturnsFuture(t *testing.T) {
	cfg := validClientConfig()
	store := newFakeStore()

	var capturedPayload map[string]interface{}
	rt := newFakeRuntime(func(idx int, arnStr, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
		capturedPayload = payload
		key := sequentialResultKey(cfg.ExpID, "input-1", sessionID)
		return models.SubmitResponse{Status: "processing", S3Bucket: cfg.S3Bucket, ResultKey: key}, nil
	})

	c, err := rollout.New(cfg, rt, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fut, err := c.Invoke(context.Background(), map[string]interface{}{"prompt": "hi"}, "sess-1", "input-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rolloutCfg, ok := capturedPayload["_rollout"].(map[string]interface{})
	if !ok {
		t.Fatal("expected _rollout key in submitted payload")
	}
	if rolloutCfg["exp_id"] != cfg.ExpID || rolloutCfg["session_id"] != "sess-1" || rolloutCfg["input_id"] != "input-1" {
		t.Fatalf("unexpected rollout config: %v", rolloutCfg)
	}
	if capturedPayload["prompt"] != "hi" {
		t.Fatalf("original payload fields must be preserved, got %v", capturedPayload)
	}

	wantKey := sequentialResultKey(cfg.ExpID, "input-1", "sess-1")
	if fut.ResultKey() != wantKey {
		t.Fatalf("want result key %q, got %q", wantKey, fut.ResultKey())
	}
}

func TestInvokeGeneratesIdsWhenBlank(t *testing.T) {
	cfg := validClientConfig()
	store := newFakeStore()

	seen := make(map[string]bool)
	rt := newFakeRuntime(func(idx int, arnStr, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
		seen[sessionID] = true
		return models.SubmitResponse{S3Bucket: cfg.S3Bucket, ResultKey: sessionID + ".json"}, nil
	})
	c, _ := rollout.New(cfg, rt, store)

	f1, err := c.Invoke(context.Background(), map[string]interface{}{}, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f2, err := c.Invoke(context.Background(), map[string]interface{}{}, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f1.ResultKey() == f2.ResultKey() {
		t.Fatal("two blank-id invocations must produce distinct result keys")
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 distinct generated session ids, got %d", len(seen))
	}
}

func TestInvokePropagatesTransportError(t *testing.T) {
	cfg := validClientConfig()
	rt := newFakeRuntime(func(idx int, arnStr, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
		return models.SubmitResponse{}, errBoom
	})
	c, _ := rollout.New(cfg, rt, newFakeStore())

	_, err := c.Invoke(context.Background(), map[string]interface{}{}, "s", "i")
	if err == nil {
		t.Fatal("expected the transport error to propagate")
	}
}
