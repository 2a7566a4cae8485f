package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wolfman30/patientsim/internal/errkind"
	"github.com/wolfman30/patientsim/pkg/logging"
)

const defaultAnthropicMaxTokens = 1024

type anthropicMessagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	messages anthropicMessagesAPI
	logger   *logging.Logger
}

func NewAnthropicClient(apiKey string, logger *logging.Logger) *AnthropicClient {
	if logger == nil {
		logger = logging.Default()
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{messages: &c.Messages, logger: logger}
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := int64(defaultAnthropicMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   maxTokens,
		Messages:    toAnthropicMessages(req.Messages),
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Seed != nil {
		c.logger.Debug("anthropic api has no seed parameter; ignoring", "model", req.Model)
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return Response{}, errkind.Provider(string(FamilyAnthropic), req.Model, err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return Response{
		Text:       out.String(),
		StopReason: string(resp.StopReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.InputTokens),
			OutputTokens: int32(resp.Usage.OutputTokens),
			TotalTokens:  int32(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func toAnthropicMessages(msgs []ChatMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case ChatRoleSystem:
			continue
		case ChatRoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}
