package llm

import (
	"fmt"
	"strings"

	"github.com/wolfman30/patientsim/internal/errkind"
)

// Family tags one provider wire shape.
type Family string

const (
	FamilyOpenAI       Family = "openai"
	FamilyAzureOpenAI  Family = "azure_openai"
	FamilyGemini       Family = "gemini"
	FamilyVertexGemini Family = "vertex_gemini"
	FamilyAnthropic    Family = "anthropic"
	FamilyBedrock      Family = "bedrock"
)

// Families lists every supported family.
var Families = []Family{
	FamilyOpenAI,
	FamilyAzureOpenAI,
	FamilyGemini,
	FamilyVertexGemini,
	FamilyAnthropic,
	FamilyBedrock,
}

// ErrUnsupportedModel is returned when no family claims a model identifier.
var ErrUnsupportedModel = fmt.Errorf("%w: unsupported model", errkind.ErrConfiguration)

// Routing picks between hosting variants of the same model family.
type Routing struct {
	UseAzure  bool
	UseVertex bool
}

type familyRule struct {
	prefixes []string
	direct   Family
	hosted   func(Routing) (Family, bool)
}

// Order matters: Bedrock ids such as "us.anthropic.claude-..." must not be
// claimed by the anthropic "claude-" rule, and they never start with it.
var familyRules = []familyRule{
	{
		prefixes: []string{"gpt-", "o1", "o3", "o4", "chatgpt-"},
		direct:   FamilyOpenAI,
		hosted: func(r Routing) (Family, bool) {
			return FamilyAzureOpenAI, r.UseAzure
		},
	},
	{
		prefixes: []string{"gemini-"},
		direct:   FamilyGemini,
		hosted: func(r Routing) (Family, bool) {
			return FamilyVertexGemini, r.UseVertex
		},
	},
	{
		prefixes: []string{"claude-"},
		direct:   FamilyAnthropic,
	},
	{
		prefixes: []string{
			"anthropic.", "amazon.", "meta.", "mistral.", "cohere.", "ai21.",
			"us.", "eu.", "apac.", "global.",
		},
		direct: FamilyBedrock,
	},
}

// ResolveFamily maps a model identifier to exactly one family. It is a pure
// function of its inputs.
func ResolveFamily(model string, routing Routing) (Family, error) {
	id := strings.ToLower(strings.TrimSpace(model))
	if id == "" {
		return "", fmt.Errorf("%w: empty model identifier", ErrUnsupportedModel)
	}
	for _, rule := range familyRules {
		for _, prefix := range rule.prefixes {
			if !strings.HasPrefix(id, prefix) {
				continue
			}
			if rule.hosted != nil {
				if fam, ok := rule.hosted(routing); ok {
					return fam, nil
				}
			}
			return rule.direct, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnsupportedModel, model)
}

// SupportsSeed reports whether the family accepts a sampling seed.
func (f Family) SupportsSeed() bool {
	switch f {
	case FamilyOpenAI, FamilyAzureOpenAI, FamilyVertexGemini:
		return true
	default:
		return false
	}
}
