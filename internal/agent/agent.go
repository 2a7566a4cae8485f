// Package agent binds a persona system prompt, a model and sampling
// parameters to a single Respond operation against an llm.Client. Agents
// hold no conversation state; the caller passes the transcript on every
// call.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/patientsim/internal/errkind"
	"github.com/wolfman30/patientsim/internal/llm"
	"github.com/wolfman30/patientsim/internal/observability/metrics"
	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/internal/transcript"
	"github.com/wolfman30/patientsim/pkg/logging"
)

const (
	DefaultDoctorTemperature  float32 = 0.2
	DefaultPatientTemperature float32 = 0.7

	maxTemperature float32 = 2
)

// ErrInvalidSampling is returned for out-of-range sampling parameters.
var ErrInvalidSampling = fmt.Errorf("%w: invalid sampling", errkind.ErrConfiguration)

// Sampling controls generation. Seed is sent only when RandomSampling is
// false. A nil Temperature selects the role default.
type Sampling struct {
	Temperature    *float32
	Seed           int64
	RandomSampling bool
}

// Temperature returns a pointer to v for use in Sampling.
func Temperature(v float32) *float32 {
	return &v
}

func (s Sampling) temperature(def float32) float32 {
	if s.Temperature == nil {
		return def
	}
	return *s.Temperature
}

func (s Sampling) validate() error {
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > maxTemperature) {
		return fmt.Errorf("%w: temperature %.2f outside [0, %.0f]", ErrInvalidSampling, *s.Temperature, maxTemperature)
	}
	return nil
}

// Config is shared by both agent kinds.
type Config struct {
	Model    string
	Sampling Sampling
	Provider llm.ProviderConfig
	// Client, when set, replaces the vendor client built from Provider.
	Client llm.Client
	// OpeningCue is the user message that asks the agent for the first
	// line of a conversation.
	OpeningCue string
	MaxTokens  int32
	Logger     *logging.Logger
	Metrics    *metrics.ProviderMetrics
}

// Agent is a Patient, Doctor or Staff agent. It is immutable after construction.
type Agent struct {
	role        transcript.Role
	model       string
	family      llm.Family
	temperature float32
	sampling    Sampling
	maxTokens   int32
	system      string
	openingCue  string
	client      llm.Client
	logger      *logging.Logger

	visitType persona.VisitType
	doctor    *doctorSettings
}

func newAgent(ctx context.Context, role transcript.Role, cfg Config, defaultTemp float32, system string) (*Agent, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errkind.Configf("agent: %s model is required", role)
	}
	family, err := llm.ResolveFamily(model, cfg.Provider.Routing)
	if err != nil {
		return nil, fmt.Errorf("agent: %s: %w", role, err)
	}
	if err := cfg.Sampling.validate(); err != nil {
		return nil, fmt.Errorf("agent: %s: %w", role, err)
	}

	client := cfg.Client
	if client == nil {
		client, err = llm.NewClient(ctx, family, cfg.Provider, logger)
		if err != nil {
			return nil, fmt.Errorf("agent: %s: %w", role, err)
		}
	}

	return &Agent{
		role:        role,
		model:       model,
		family:      family,
		temperature: cfg.Sampling.temperature(defaultTemp),
		sampling:    cfg.Sampling,
		maxTokens:   cfg.MaxTokens,
		system:      system,
		openingCue:  cfg.OpeningCue,
		client:      llm.Instrument(client, family, cfg.Metrics),
		logger:      logger.With("agent", string(role), "model", model),
	}, nil
}

// Respond asks the model for the agent's next utterance. history is the
// transcript so far, excluding prompt, which is the counterpart's latest
// line. With empty history and prompt the opening cue is used. The
// completion text is returned verbatim.
func (a *Agent) Respond(ctx context.Context, history []transcript.Turn, prompt string) (string, error) {
	resp, err := a.Complete(ctx, history, prompt)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Complete is Respond returning the whole provider response, token usage
// included.
func (a *Agent) Complete(ctx context.Context, history []transcript.Turn, prompt string) (llm.Response, error) {
	if len(history) == 0 && prompt == "" {
		prompt = a.openingCue
	}
	req := llm.Request{
		Model:       a.model,
		System:      a.system,
		Messages:    a.buildMessages(history, prompt),
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}
	if !a.sampling.RandomSampling {
		seed := a.sampling.Seed
		req.Seed = &seed
	}

	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return llm.Response{}, errkind.Provider(string(a.family), a.model, err)
	}
	a.logger.Debug("agent responded",
		"family", string(a.family),
		"history_turns", len(history),
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

func (a *Agent) buildMessages(history []transcript.Turn, prompt string) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, len(history)+2)
	for _, turn := range history {
		role := llm.ChatRoleUser
		if turn.Role == a.role {
			role = llm.ChatRoleAssistant
		}
		msgs = append(msgs, llm.ChatMessage{Role: role, Content: turn.Text})
	}
	if len(msgs) > 0 && msgs[0].Role == llm.ChatRoleAssistant {
		msgs = append([]llm.ChatMessage{{Role: llm.ChatRoleUser, Content: a.openingCue}}, msgs...)
	}
	return append(msgs, llm.ChatMessage{Role: llm.ChatRoleUser, Content: prompt})
}

func (a *Agent) Role() transcript.Role {
	return a.role
}

// SystemPrompt returns the rendered persona prompt.
func (a *Agent) SystemPrompt() string {
	return a.system
}

func (a *Agent) Model() string {
	return a.model
}

func (a *Agent) Family() llm.Family {
	return a.family
}

func (a *Agent) Sampling() Sampling {
	return a.sampling
}

func (a *Agent) OpeningCue() string {
	return a.openingCue
}

// VisitType is the visit the agent was rendered for.
func (a *Agent) VisitType() persona.VisitType {
	return a.visitType
}
