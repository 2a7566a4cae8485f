package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/patientsim/internal/errkind"
	"github.com/wolfman30/patientsim/internal/llm"
	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/internal/transcript"
	"github.com/wolfman30/patientsim/pkg/logging"
)

type recordingClient struct {
	mu       sync.Mutex
	requests []llm.Request
	reply    func(req llm.Request) (llm.Response, error)
}

func (c *recordingClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.reply == nil {
		return llm.Response{Text: "ok"}, nil
	}
	return c.reply(req)
}

func (c *recordingClient) last() llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[len(c.requests)-1]
}

// echoClient is a deterministic stub whose output depends only on the
// request contents.
func echoClient() *recordingClient {
	return &recordingClient{reply: func(req llm.Request) (llm.Response, error) {
		seed := "none"
		if req.Seed != nil {
			seed = fmt.Sprint(*req.Seed)
		}
		last := req.Messages[len(req.Messages)-1].Content
		return llm.Response{Text: fmt.Sprintf("%s|%s|%s", last, req.Model, seed)}, nil
	}}
}

func baseConfig(model string, client llm.Client) Config {
	return Config{Model: model, Client: client, Logger: logging.Discard()}
}

func TestNewPatientAgentAllFamiliesAndVisits(t *testing.T) {
	models := []string{"gpt-4o", "gemini-2.5-flash", "claude-sonnet-4-5", "anthropic.claude-3-5-sonnet-20240620-v1:0"}
	for _, model := range models {
		for _, visit := range persona.VisitTypes() {
			t.Run(model+"/"+string(visit), func(t *testing.T) {
				a, err := NewPatientAgent(context.Background(), PatientConfig{
					Config:    baseConfig(model, &recordingClient{}),
					VisitType: string(visit),
					Profile:   persona.PatientProfile{ChiefComplaint: "abdominal pain"},
				})
				require.NoError(t, err)
				require.NotEmpty(t, a.SystemPrompt())

				desc, _ := visit.Describe()
				assert.Contains(t, a.SystemPrompt(), desc.Setting)
				assert.Equal(t, visit, a.VisitType())
				assert.Equal(t, transcript.RolePatient, a.Role())
			})
		}
	}
}

func TestNewAgentConfigurationErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewPatientAgent(ctx, PatientConfig{Config: baseConfig("llama-70b", &recordingClient{}), VisitType: "emergency_department"})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrUnsupportedModel)
	assert.True(t, errkind.IsConfiguration(err))
	assert.False(t, errkind.IsProvider(err))

	_, err = NewPatientAgent(ctx, PatientConfig{Config: baseConfig("gpt-4o", &recordingClient{}), VisitType: "dentist"})
	assert.ErrorIs(t, err, persona.ErrUnknownVisitType)
	assert.False(t, errkind.IsProvider(err))

	_, err = NewDoctorAgent(ctx, DoctorConfig{Config: baseConfig("", &recordingClient{})})
	assert.True(t, errkind.IsConfiguration(err))

	_, err = NewDoctorAgent(ctx, DoctorConfig{Config: baseConfig("gpt-4o", &recordingClient{}), MaxInferences: -2})
	assert.True(t, errkind.IsConfiguration(err))

	cfg := baseConfig("gpt-4o", &recordingClient{})
	cfg.Sampling.Temperature = Temperature(3)
	_, err = NewDoctorAgent(ctx, DoctorConfig{Config: cfg})
	assert.ErrorIs(t, err, ErrInvalidSampling)
}

func TestNewAgentMissingCredential(t *testing.T) {
	_, err := NewDoctorAgent(context.Background(), DoctorConfig{Config: Config{Model: "gpt-4o", Logger: logging.Discard()}})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrMissingCredential)
	assert.True(t, errkind.IsConfiguration(err))
}

func TestNewAgentBuildsVendorClient(t *testing.T) {
	a, err := NewDoctorAgent(context.Background(), DoctorConfig{Config: Config{
		Model:    "gpt-4o-mini",
		Provider: llm.ProviderConfig{OpenAIAPIKey: "sk-test"},
		Logger:   logging.Discard(),
	}})
	require.NoError(t, err)
	assert.Equal(t, llm.FamilyOpenAI, a.Family())

	a, err = NewDoctorAgent(context.Background(), DoctorConfig{Config: Config{
		Model:    "gpt-4o-mini",
		Provider: llm.ProviderConfig{Routing: llm.Routing{UseAzure: true}, OpenAIAPIKey: "k", AzureEndpoint: "https://example.openai.azure.com"},
		Logger:   logging.Discard(),
	}})
	require.NoError(t, err)
	assert.Equal(t, llm.FamilyAzureOpenAI, a.Family())
}

func TestRespondDeterministicWithSeed(t *testing.T) {
	client := echoClient()
	cfg := baseConfig("gpt-4o", client)
	cfg.Sampling = Sampling{Seed: 42}
	a, err := NewPatientAgent(context.Background(), PatientConfig{Config: cfg, VisitType: "emergency_department"})
	require.NoError(t, err)

	history := []transcript.Turn{
		{Role: transcript.RoleDoctor, Text: "Hello, how can I help you?", Ordinal: 0},
		{Role: transcript.RolePatient, Text: "My chest hurts.", Ordinal: 1},
	}
	out1, err := a.Respond(context.Background(), history, "When did it start?")
	require.NoError(t, err)
	out2, err := a.Respond(context.Background(), history, "When did it start?")
	require.NoError(t, err)
	assert.Equal(t, out1, out2)

	req := client.last()
	require.NotNil(t, req.Seed)
	assert.Equal(t, int64(42), *req.Seed)
	assert.Equal(t, DefaultPatientTemperature, req.Temperature)
}

func TestRespondOmitsSeedWhenRandomSampling(t *testing.T) {
	client := &recordingClient{}
	cfg := baseConfig("gemini-2.5-flash", client)
	cfg.Sampling = Sampling{Seed: 7, RandomSampling: true, Temperature: Temperature(0)}
	a, err := NewDoctorAgent(context.Background(), DoctorConfig{Config: cfg})
	require.NoError(t, err)

	_, err = a.Respond(context.Background(), nil, "")
	require.NoError(t, err)
	req := client.last()
	assert.Nil(t, req.Seed)
	assert.Equal(t, float32(0), req.Temperature)
}

func TestRespondMessageAssembly(t *testing.T) {
	client := &recordingClient{}
	a, err := NewDoctorAgent(context.Background(), DoctorConfig{Config: baseConfig("claude-sonnet-4-5", client)})
	require.NoError(t, err)

	history := []transcript.Turn{
		{Role: transcript.RoleDoctor, Text: "Hello, how can I help you?", Ordinal: 0},
		{Role: transcript.RolePatient, Text: "I fell off a ladder.", Ordinal: 1},
		{Role: transcript.RoleDoctor, Text: "Where does it hurt?", Ordinal: 2},
	}
	_, err = a.Respond(context.Background(), history, "My left wrist.")
	require.NoError(t, err)

	req := client.last()
	assert.Equal(t, a.SystemPrompt(), req.System)
	assert.Equal(t, []llm.ChatMessage{
		{Role: llm.ChatRoleUser, Content: a.OpeningCue()},
		{Role: llm.ChatRoleAssistant, Content: "Hello, how can I help you?"},
		{Role: llm.ChatRoleUser, Content: "I fell off a ladder."},
		{Role: llm.ChatRoleAssistant, Content: "Where does it hurt?"},
		{Role: llm.ChatRoleUser, Content: "My left wrist."},
	}, req.Messages)
	assert.Equal(t, DefaultDoctorTemperature, req.Temperature)
}

func TestRespondOpeningUsesCue(t *testing.T) {
	client := &recordingClient{}
	cfg := baseConfig("gpt-4o", client)
	cfg.OpeningCue = "Begin."
	a, err := NewDoctorAgent(context.Background(), DoctorConfig{Config: cfg})
	require.NoError(t, err)

	_, err = a.Respond(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: "Begin."}}, client.last().Messages)
}

func TestRespondReturnsTextVerbatim(t *testing.T) {
	client := &recordingClient{reply: func(llm.Request) (llm.Response, error) {
		return llm.Response{Text: "  It started yesterday.\n"}, nil
	}}
	a, err := NewPatientAgent(context.Background(), PatientConfig{Config: baseConfig("gpt-4o", client), VisitType: "outpatient"})
	require.NoError(t, err)

	out, err := a.Respond(context.Background(), nil, "When did it start?")
	require.NoError(t, err)
	assert.Equal(t, "  It started yesterday.\n", out)
}

func TestRespondProviderError(t *testing.T) {
	boom := errors.New("429 too many requests")
	client := &recordingClient{reply: func(llm.Request) (llm.Response, error) {
		return llm.Response{}, boom
	}}
	a, err := NewPatientAgent(context.Background(), PatientConfig{Config: baseConfig("gpt-4o", client), VisitType: "outpatient"})
	require.NoError(t, err)

	_, err = a.Respond(context.Background(), nil, "Hi")
	require.Error(t, err)
	assert.True(t, errkind.IsProvider(err))
	assert.False(t, errkind.IsConfiguration(err))
	assert.ErrorIs(t, err, boom)

	var pe *errkind.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, string(llm.FamilyOpenAI), pe.Provider)
	assert.Len(t, client.requests, 1)
}

func TestDoctorDefaults(t *testing.T) {
	a, err := NewDoctorAgent(context.Background(), DoctorConfig{Config: baseConfig("gpt-4o", &recordingClient{})})
	require.NoError(t, err)
	assert.Equal(t, DefaultGreeting, a.Greeting())
	assert.Equal(t, DefaultMaxInferences, a.MaxInferences())
	assert.Equal(t, DefaultTopKDiagnosis, a.TopKDiagnosis())
	assert.Contains(t, a.FinalTurnInstruction(), "top 5 differential")
	assert.Contains(t, a.SystemPrompt(), "at most 15 questions")
}

func TestWithMaxInferencesCopies(t *testing.T) {
	a, err := NewDoctorAgent(context.Background(), DoctorConfig{Config: baseConfig("gpt-4o", &recordingClient{}), MaxInferences: 10})
	require.NoError(t, err)

	b, err := a.WithMaxInferences(4)
	require.NoError(t, err)
	assert.Equal(t, 10, a.MaxInferences())
	assert.Equal(t, 4, b.MaxInferences())
	assert.Contains(t, a.SystemPrompt(), "at most 10 questions")
	assert.Contains(t, b.SystemPrompt(), "at most 4 questions")

	_, err = a.WithMaxInferences(0)
	assert.True(t, errkind.IsConfiguration(err))

	p, err := NewPatientAgent(context.Background(), PatientConfig{Config: baseConfig("gpt-4o", &recordingClient{}), VisitType: "outpatient"})
	require.NoError(t, err)
	_, err = p.WithMaxInferences(3)
	assert.True(t, errkind.IsConfiguration(err))
	assert.Empty(t, p.Greeting())
}

func TestStaffDefaults(t *testing.T) {
	a, err := NewStaffAgent(context.Background(), StaffConfig{Config: baseConfig("gemini-2.5-flash", &recordingClient{})})
	require.NoError(t, err)
	assert.Equal(t, transcript.RoleStaff, a.Role())
	assert.Equal(t, persona.VisitOutpatient, a.VisitType())
	assert.Equal(t, DefaultStaffGreeting, a.Greeting())
	assert.Equal(t, DefaultStaffMaxInferences, a.MaxInferences())
	assert.Equal(t, DefaultStaffFinalTurn, a.FinalTurnInstruction())
	assert.Contains(t, a.SystemPrompt(), "administrative staff")
	assert.Contains(t, a.SystemPrompt(), "at most 5 questions")

	b, err := a.WithMaxInferences(3)
	require.NoError(t, err)
	assert.Contains(t, b.SystemPrompt(), "administrative staff")
	assert.Contains(t, b.SystemPrompt(), "at most 3 questions")

	_, err = NewStaffAgent(context.Background(), StaffConfig{Config: baseConfig("gpt-4o", &recordingClient{}), MaxInferences: -1})
	assert.True(t, errkind.IsConfiguration(err))
}

func TestCompleteReturnsUsage(t *testing.T) {
	client := &recordingClient{reply: func(llm.Request) (llm.Response, error) {
		return llm.Response{Text: "hi", Usage: llm.TokenUsage{InputTokens: 7, OutputTokens: 2, TotalTokens: 9}}, nil
	}}
	a, err := NewStaffAgent(context.Background(), StaffConfig{Config: baseConfig("gpt-4o", client)})
	require.NoError(t, err)

	resp, err := a.Complete(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)
	assert.Equal(t, int32(9), resp.Usage.TotalTokens)
	assert.Equal(t, defaultStaffOpeningCue, client.last().Messages[0].Content)
}

func TestPatientTraitsFromProfile(t *testing.T) {
	profile := persona.PatientProfile{
		ChiefComplaint: "cough",
		Traits:         persona.Traits{Personality: persona.PersonalityImpatient},
	}
	a, err := NewPatientAgent(context.Background(), PatientConfig{
		Config:    baseConfig("gpt-4o", &recordingClient{}),
		VisitType: "emergency_department",
		Profile:   profile,
		Traits:    persona.Traits{Recall: persona.RecallLow},
	})
	require.NoError(t, err)

	want, err := persona.RenderPatientPrompt(persona.VisitEmergencyDepartment, profile,
		persona.Traits{Personality: persona.PersonalityImpatient, Recall: persona.RecallLow}, "")
	require.NoError(t, err)
	assert.Equal(t, want, a.SystemPrompt())
}
