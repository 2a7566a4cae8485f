package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/wolfman30/patientsim/internal/errkind"
	"github.com/wolfman30/patientsim/pkg/logging"
)

// ErrMissingCredential is returned when a family's required credential or
// endpoint parameter is absent.
var ErrMissingCredential = fmt.Errorf("%w: missing credential", errkind.ErrConfiguration)

const defaultAzureAPIVersion = "2024-10-21"

// ProviderConfig carries explicit credentials for every family. The core
// never reads the environment; internal/config builds this for binaries.
type ProviderConfig struct {
	Routing

	OpenAIAPIKey    string
	AzureEndpoint   string
	AzureAPIVersion string

	GoogleAPIKey         string
	VertexProject        string
	VertexLocation       string
	VertexCredentialPath string

	AnthropicAPIKey string

	AWSRegion string
	// AWS, when set, is used as-is for Bedrock instead of loading the
	// default credential chain.
	AWS *aws.Config
}

// Validate checks the credentials required by family.
func (c ProviderConfig) Validate(family Family) error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s requires %s", ErrMissingCredential, family, name)
	}
	switch family {
	case FamilyOpenAI:
		if blank(c.OpenAIAPIKey) {
			return missing("an OpenAI API key")
		}
	case FamilyAzureOpenAI:
		if blank(c.OpenAIAPIKey) {
			return missing("an OpenAI API key")
		}
		if blank(c.AzureEndpoint) {
			return missing("an Azure endpoint")
		}
	case FamilyGemini:
		if blank(c.GoogleAPIKey) {
			return missing("a Google API key")
		}
	case FamilyVertexGemini:
		if blank(c.VertexProject) {
			return missing("a Google Cloud project id")
		}
		if blank(c.VertexLocation) {
			return missing("a Google Cloud location")
		}
	case FamilyAnthropic:
		if blank(c.AnthropicAPIKey) {
			return missing("an Anthropic API key")
		}
	case FamilyBedrock:
		if c.AWS == nil && blank(c.AWSRegion) {
			return missing("an AWS region")
		}
	default:
		return fmt.Errorf("%w %q", ErrUnsupportedModel, family)
	}
	return nil
}

// NewClient builds the vendor client for family. Credential problems are
// configuration errors; nothing is sent over the network here.
func NewClient(ctx context.Context, family Family, cfg ProviderConfig, logger *logging.Logger) (Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if err := cfg.Validate(family); err != nil {
		return nil, err
	}
	switch family {
	case FamilyOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey), nil
	case FamilyAzureOpenAI:
		version := cfg.AzureAPIVersion
		if blank(version) {
			version = defaultAzureAPIVersion
		}
		return NewAzureOpenAIClient(cfg.OpenAIAPIKey, cfg.AzureEndpoint, version), nil
	case FamilyGemini:
		return NewGeminiClient(ctx, cfg.GoogleAPIKey, logger)
	case FamilyVertexGemini:
		return NewVertexClient(ctx, VertexConfig{
			Project:        cfg.VertexProject,
			Location:       cfg.VertexLocation,
			CredentialPath: cfg.VertexCredentialPath,
		})
	case FamilyAnthropic:
		return NewAnthropicClient(cfg.AnthropicAPIKey, logger), nil
	case FamilyBedrock:
		return NewBedrockClientFromConfig(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedModel, family)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
