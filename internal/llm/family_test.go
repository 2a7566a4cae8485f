package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/patientsim/internal/errkind"
)

func TestResolveFamily(t *testing.T) {
	tests := []struct {
		model   string
		routing Routing
		want    Family
	}{
		{"gpt-4o", Routing{}, FamilyOpenAI},
		{"GPT-4o-mini", Routing{}, FamilyOpenAI},
		{"o3-mini", Routing{}, FamilyOpenAI},
		{"gpt-4o", Routing{UseAzure: true}, FamilyAzureOpenAI},
		{"gpt-4o", Routing{UseVertex: true}, FamilyOpenAI},
		{"gemini-2.5-flash", Routing{}, FamilyGemini},
		{"gemini-2.5-flash", Routing{UseVertex: true}, FamilyVertexGemini},
		{"gemini-2.5-flash", Routing{UseAzure: true}, FamilyGemini},
		{"claude-sonnet-4-20250514", Routing{}, FamilyAnthropic},
		{"anthropic.claude-3-haiku-20240307-v1:0", Routing{}, FamilyBedrock},
		{"us.anthropic.claude-3-5-sonnet-20241022-v2:0", Routing{}, FamilyBedrock},
		{"meta.llama3-70b-instruct-v1:0", Routing{}, FamilyBedrock},
		{"  gemini-1.5-pro  ", Routing{}, FamilyGemini},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := ResolveFamily(tt.model, tt.routing)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveFamilyUnsupported(t *testing.T) {
	for _, model := range []string{"", "llama3", "mistral-large", "text-davinci-003"} {
		_, err := ResolveFamily(model, Routing{})
		require.Error(t, err, model)
		assert.ErrorIs(t, err, ErrUnsupportedModel)
		assert.True(t, errkind.IsConfiguration(err))
		assert.False(t, errkind.IsProvider(err))
	}
}

func TestResolveFamilyTotalOverFamilies(t *testing.T) {
	seen := map[Family]bool{}
	samples := []struct {
		model   string
		routing Routing
	}{
		{"gpt-4o", Routing{}},
		{"gpt-4o", Routing{UseAzure: true}},
		{"gemini-2.0-flash", Routing{}},
		{"gemini-2.0-flash", Routing{UseVertex: true}},
		{"claude-3-5-haiku-latest", Routing{}},
		{"amazon.nova-pro-v1:0", Routing{}},
	}
	for _, s := range samples {
		fam, err := ResolveFamily(s.model, s.routing)
		require.NoError(t, err)
		seen[fam] = true
	}
	for _, fam := range Families {
		assert.True(t, seen[fam], "family %s unreachable", fam)
	}
}

func TestSupportsSeed(t *testing.T) {
	assert.True(t, FamilyOpenAI.SupportsSeed())
	assert.True(t, FamilyVertexGemini.SupportsSeed())
	assert.False(t, FamilyGemini.SupportsSeed())
	assert.False(t, FamilyBedrock.SupportsSeed())
}
