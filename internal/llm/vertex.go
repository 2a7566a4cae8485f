package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/auth/credentials"
	vertexai "google.golang.org/genai"

	"github.com/wolfman30/patientsim/internal/errkind"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

type vertexModelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*vertexai.Content, config *vertexai.GenerateContentConfig) (*vertexai.GenerateContentResponse, error)
}

// VertexConfig identifies the Google Cloud project hosting Gemini.
type VertexConfig struct {
	Project  string
	Location string
	// CredentialPath points at a service account JSON file. Empty means
	// application default credentials.
	CredentialPath string
}

// VertexClient implements Client using Gemini on Vertex AI.
type VertexClient struct {
	models vertexModelsAPI
}

// NewVertexClient creates a Vertex AI backed Gemini client.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if blank(cfg.Project) || blank(cfg.Location) {
		return nil, fmt.Errorf("%w: vertex requires project and location", ErrMissingCredential)
	}
	cc := &vertexai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  vertexai.BackendVertexAI,
	}
	if !blank(cfg.CredentialPath) {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{cloudPlatformScope},
			CredentialsFile: cfg.CredentialPath,
		})
		if err != nil {
			return nil, errkind.Configf("llm: load vertex credentials %s: %v", cfg.CredentialPath, err)
		}
		cc.Credentials = creds
	}
	client, err := vertexai.NewClient(ctx, cc)
	if err != nil {
		return nil, errkind.Configf("llm: failed to create vertex client: %v", err)
	}
	return &VertexClient{models: client.Models}, nil
}

func (c *VertexClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errkind.Provider(string(FamilyVertexGemini), req.Model, errors.New("vertex requires at least one message"))
	}

	temperature := req.Temperature
	gcc := &vertexai.GenerateContentConfig{Temperature: &temperature}
	if strings.TrimSpace(req.System) != "" {
		gcc.SystemInstruction = &vertexai.Content{Parts: []*vertexai.Part{{Text: req.System}}}
	}
	if req.Seed != nil {
		seed := int32(*req.Seed)
		gcc.Seed = &seed
	}

	resp, err := c.models.GenerateContent(ctx, req.Model, vertexContents(req.Messages), gcc)
	if err != nil {
		return Response{}, errkind.Provider(string(FamilyVertexGemini), req.Model, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, errkind.Provider(string(FamilyVertexGemini), req.Model, errors.New("vertex returned no candidates"))
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	return Response{
		Text:       text.String(),
		StopReason: string(candidate.FinishReason),
	}, nil
}

func vertexContents(msgs []ChatMessage) []*vertexai.Content {
	out := make([]*vertexai.Content, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == ChatRoleSystem {
			continue
		}
		role := "user"
		if msg.Role == ChatRoleAssistant {
			role = "model"
		}
		out = append(out, &vertexai.Content{
			Role:  role,
			Parts: []*vertexai.Part{{Text: msg.Content}},
		})
	}
	return out
}
