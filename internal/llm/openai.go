package llm

import (
	"context"
	"errors"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wolfman30/patientsim/internal/errkind"
)

type chatCompletionAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements Client over the OpenAI chat completions API. The
// same wire shape serves Azure-hosted deployments.
type OpenAIClient struct {
	api    chatCompletionAPI
	family Family
}

// NewOpenAIClient returns a client for api.openai.com.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{api: openai.NewClient(apiKey), family: FamilyOpenAI}
}

// NewAzureOpenAIClient returns a client for an Azure OpenAI resource. The
// model identifier is used as the deployment name.
func NewAzureOpenAIClient(apiKey, endpoint, apiVersion string) *OpenAIClient {
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	cfg.APIVersion = apiVersion
	return &OpenAIClient{api: openai.NewClientWithConfig(cfg), family: FamilyAzureOpenAI}
}

func newOpenAIClientWithAPI(api chatCompletionAPI, family Family) *OpenAIClient {
	if api == nil {
		panic("llm: openai chat client cannot be nil")
	}
	return &OpenAIClient{api: api, family: family}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case ChatRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	ccr := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: wireTemperature(req.Temperature),
	}
	if req.MaxTokens > 0 {
		ccr.MaxTokens = int(req.MaxTokens)
	}
	if req.Seed != nil {
		seed := int(*req.Seed)
		ccr.Seed = &seed
	}

	resp, err := c.api.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return Response{}, errkind.Provider(string(c.family), req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errkind.Provider(string(c.family), req.Model, errors.New("openai returned no choices"))
	}

	choice := resp.Choices[0]
	return Response{
		Text:       choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}

// wireTemperature keeps an explicit zero on the wire. The request field is
// omitempty, so 0 would otherwise fall back to the server default of 1.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
