package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcoreruntime"
	"github.com/acr9/corral/pkg/models"
)

// BedrockRuntime is the production Runtime, backed by the Bedrock
// AgentCore runtime client. Its adaptive retry comes entirely from the
// aws.Config it's constructed with (see internal/awsconf) — mirroring
// the Python client's boto3.client(..., config=Config(retries={"mode":
// "adaptive"})).
type BedrockRuntime struct {
	client *bedrockagentcoreruntime.Client
}

// NewBedrockRuntime wraps an already-configured client.
func NewBedrockRuntime(client *bedrockagentcoreruntime.Client) *BedrockRuntime {
	return &BedrockRuntime{client: client}
}

func (b *BedrockRuntime) Submit(ctx context.Context, runtimeARN, sessionID string, payload map[string]interface{}) (models.SubmitResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.SubmitResponse{}, fmt.Errorf("transport: marshal payload: %w", err)
	}

	out, err := b.client.InvokeAgentRuntime(ctx, &bedrockagentcoreruntime.InvokeAgentRuntimeInput{
		AgentRuntimeArn:  aws.String(runtimeARN),
		RuntimeSessionId: aws.String(sessionID),
		ContentType:      aws.String("application/json"),
		Payload:          body,
	})
	if err != nil {
		return models.SubmitResponse{}, fmt.Errorf("transport: invoke agent runtime: %w", err)
	}
	defer out.Response.Close()

	raw, err := io.ReadAll(out.Response)
	if err != nil {
		return models.SubmitResponse{}, fmt.Errorf("transport: read invoke response: %w", err)
	}

	var resp models.SubmitResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return models.SubmitResponse{}, fmt.Errorf("transport: parse invoke response: %w", err)
	}
	return resp, nil
}

func (b *BedrockRuntime) StopSession(ctx context.Context, runtimeARN, sessionID string) error {
	_, err := b.client.StopRuntimeSession(ctx, &bedrockagentcoreruntime.StopRuntimeSessionInput{
		AgentRuntimeArn:  aws.String(runtimeARN),
		RuntimeSessionId: aws.String(sessionID),
	})
	if err != nil {
		return fmt.Errorf("transport: stop session %s: %w", sessionID, err)
	}
	return nil
}
