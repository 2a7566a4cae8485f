package simulation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfman30/patientsim/internal/errkind"
	"github.com/wolfman30/patientsim/internal/llm"
	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/internal/transcript"
)

// MatchMode selects how EndCondition.Marker is compared with a turn.
type MatchMode string

const (
	MatchSubstring MatchMode = "substring"
	MatchExact     MatchMode = "exact"
	MatchPrefix    MatchMode = "prefix"
	MatchRegexp    MatchMode = "regexp"
)

// ParseMatchMode validates a match mode name. Empty means substring.
func ParseMatchMode(s string) (MatchMode, error) {
	switch m := MatchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MatchSubstring, nil
	case MatchSubstring, MatchExact, MatchPrefix, MatchRegexp:
		return m, nil
	default:
		return "", errkind.Configf("simulation: unknown end marker match mode %q", s)
	}
}

// EndCondition ends a run when a turn matches Marker. An empty Marker
// disables it; empty Roles means any role. Exact and prefix matching
// ignore surrounding whitespace in the turn.
type EndCondition struct {
	Marker        string
	Match         MatchMode
	CaseSensitive bool
	Roles         []transcript.Role
}

type endMatcher struct {
	match func(text string) bool
	roles map[transcript.Role]bool
}

func (e EndCondition) compile() (*endMatcher, error) {
	if e.Marker == "" {
		return nil, nil
	}
	mode, err := ParseMatchMode(string(e.Match))
	if err != nil {
		return nil, err
	}
	roles := make(map[transcript.Role]bool, len(e.Roles))
	for _, r := range e.Roles {
		if !r.Valid() {
			return nil, errkind.Configf("simulation: end condition role %q", r)
		}
		roles[r] = true
	}

	fold := func(s string) string { return s }
	if !e.CaseSensitive {
		fold = strings.ToLower
	}
	marker := fold(e.Marker)

	m := &endMatcher{roles: roles}
	switch mode {
	case MatchSubstring:
		m.match = func(text string) bool { return strings.Contains(fold(text), marker) }
	case MatchExact:
		m.match = func(text string) bool { return fold(strings.TrimSpace(text)) == marker }
	case MatchPrefix:
		m.match = func(text string) bool { return strings.HasPrefix(fold(strings.TrimSpace(text)), marker) }
	case MatchRegexp:
		expr := e.Marker
		if !e.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, errkind.Configf("simulation: end marker regexp: %v", err)
		}
		m.match = re.MatchString
	}
	return m, nil
}

func (m *endMatcher) matches(turn transcript.Turn) bool {
	if m == nil {
		return false
	}
	if len(m.roles) > 0 && !m.roles[turn.Role] {
		return false
	}
	return m.match(turn.Text)
}

// TerminationChecker decides after a clinician turn whether the
// consultation is over.
type TerminationChecker interface {
	ShouldEnd(ctx context.Context, turn transcript.Turn) (bool, error)
}

// LLMChecker asks a model whether a clinician utterance ends the
// consultation. Only an answer of exactly "Y" ends the run.
type LLMChecker struct {
	client   llm.Client
	model    string
	visit    persona.VisitType
	template string
}

// NewLLMChecker validates the prompt template up front. An empty template
// selects the built-in one for visit.
func NewLLMChecker(client llm.Client, model string, visit persona.VisitType, promptTemplate string) (*LLMChecker, error) {
	if client == nil {
		return nil, errkind.Configf("simulation: termination checker client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errkind.Configf("simulation: termination checker model is required")
	}
	if _, err := persona.RenderTerminationPrompt(visit, "", promptTemplate); err != nil {
		return nil, fmt.Errorf("simulation: termination checker: %w", err)
	}
	return &LLMChecker{client: client, model: model, visit: visit, template: promptTemplate}, nil
}

func (c *LLMChecker) ShouldEnd(ctx context.Context, turn transcript.Turn) (bool, error) {
	prompt, err := persona.RenderTerminationPrompt(c.visit, turn.Text, c.template)
	if err != nil {
		return false, err
	}
	resp, err := c.client.Complete(ctx, llm.Request{
		Model:    c.model,
		Messages: []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: prompt}},
	})
	if err != nil {
		return false, errkind.Provider("termination_checker", c.model, err)
	}
	return strings.ToUpper(strings.TrimSpace(resp.Text)) == "Y", nil
}
