package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/wolfman30/patientsim/internal/errkind"
	"github.com/wolfman30/patientsim/pkg/logging"
)

// GeminiClient implements Client using the Gemini developer API.
type GeminiClient struct {
	client *genai.Client
	logger *logging.Logger
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey string, logger *logging.Logger) (*GeminiClient, error) {
	if blank(apiKey) {
		return nil, fmt.Errorf("%w: gemini api key is required", ErrMissingCredential)
	}
	if logger == nil {
		logger = logging.Default()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errkind.Configf("llm: failed to create gemini client: %v", err)
	}
	return &GeminiClient{client: client, logger: logger}, nil
}

// Complete sends the conversation as a chat session whose last message is
// the new user prompt.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errkind.Provider(string(FamilyGemini), req.Model, errors.New("gemini requires at least one message"))
	}

	model := c.client.GenerativeModel(req.Model)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if strings.TrimSpace(req.System) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.Seed != nil {
		c.logger.Debug("gemini api has no seed parameter; ignoring", "model", req.Model)
	}

	cs := model.StartChat()
	cs.History = geminiHistory(req.Messages[:len(req.Messages)-1])

	last := req.Messages[len(req.Messages)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return Response{}, errkind.Provider(string(FamilyGemini), req.Model, err)
	}
	if len(resp.Candidates) == 0 {
		return Response{}, errkind.Provider(string(FamilyGemini), req.Model, errors.New("gemini returned no candidates"))
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return Response{}, errkind.Provider(string(FamilyGemini), req.Model, errors.New("gemini returned empty content"))
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	result := Response{
		Text:       text.String(),
		StopReason: candidate.FinishReason.String(),
	}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// geminiHistory maps prior messages to Gemini contents. Gemini calls the
// assistant role "model" and has no system role inside a chat.
func geminiHistory(msgs []ChatMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == ChatRoleSystem {
			continue
		}
		role := "user"
		if msg.Role == ChatRoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return out
}
