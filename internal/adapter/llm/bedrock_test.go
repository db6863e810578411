package llm

import (
	"context"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"coursecraft/internal/domain"
)

type mockConverseClient struct {
	lastInput *bedrockruntime.ConverseInput
	output    *bedrockruntime.ConverseOutput
	err       error
}

func (m *mockConverseClient) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.lastInput = params
	return m.output, m.err
}

func (m *mockConverseClient) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, m.err
}

func TestBedrockChat(t *testing.T) {
	mock := &mockConverseClient{
		output: &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{
				Value: types.Message{
					Role: types.ConversationRoleAssistant,
					Content: []types.ContentBlock{
						&types.ContentBlockMemberText{Value: "bedrock says hi"},
					},
				},
			},
			Usage: &types.TokenUsage{
				InputTokens:  aws.Int32(7),
				OutputTokens: aws.Int32(3),
			},
		},
	}
	p := newBedrockProviderWithClient("bedrock", "anthropic.claude-3", mock, slog.Default())

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: "sys"},
			{Role: domain.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "bedrock says hi" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("tokens = %d", resp.Usage.TotalTokens)
	}

	if aws.ToString(mock.lastInput.ModelId) != "anthropic.claude-3" {
		t.Errorf("model = %q", aws.ToString(mock.lastInput.ModelId))
	}
	if len(mock.lastInput.System) != 1 {
		t.Errorf("system blocks = %d, want 1", len(mock.lastInput.System))
	}
	if len(mock.lastInput.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(mock.lastInput.Messages))
	}
}

func TestProcessBedrockStreamEvent(t *testing.T) {
	delta := processBedrockStreamEvent(&types.ConverseStreamOutputMemberContentBlockDelta{
		Value: types.ContentBlockDeltaEvent{
			Delta: &types.ContentBlockDeltaMemberText{Value: "chunk"},
		},
	})
	if delta == nil || delta.Content != "chunk" {
		t.Errorf("delta = %+v", delta)
	}

	stop := processBedrockStreamEvent(&types.ConverseStreamOutputMemberMessageStop{})
	if stop == nil || !stop.Done {
		t.Errorf("stop = %+v", stop)
	}
}
