package agent

import (
	"context"
	"fmt"

	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/internal/transcript"
)

const defaultPatientOpeningCue = "The doctor is ready to see you. Tell them why you came in today."

// PatientConfig configures a patient agent.
type PatientConfig struct {
	Config
	VisitType string
	Profile   persona.PatientProfile
	// Traits left zero fall back to persona.DefaultTraits. When the
	// profile carries a persona, it is used for unset traits.
	Traits         persona.Traits
	PromptTemplate string
}

// NewPatientAgent validates the visit type, renders the persona and binds
// the provider. All failures are configuration errors.
func NewPatientAgent(ctx context.Context, cfg PatientConfig) (*Agent, error) {
	visit, err := persona.ParseVisitType(cfg.VisitType)
	if err != nil {
		return nil, fmt.Errorf("agent: patient: %w", err)
	}
	system, err := persona.RenderPatientPrompt(visit, cfg.Profile, mergeTraits(cfg.Traits, cfg.Profile.Traits), cfg.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("agent: patient: %w", err)
	}
	if cfg.OpeningCue == "" {
		cfg.OpeningCue = defaultPatientOpeningCue
	}

	a, err := newAgent(ctx, transcript.RolePatient, cfg.Config, DefaultPatientTemperature, system)
	if err != nil {
		return nil, err
	}
	a.visitType = visit
	a.logger.Info("patient agent initialized", "visit_type", string(visit), "family", string(a.family))
	return a, nil
}

func mergeTraits(explicit, fromProfile persona.Traits) persona.Traits {
	if explicit.Personality == "" {
		explicit.Personality = fromProfile.Personality
	}
	if explicit.Recall == "" {
		explicit.Recall = fromProfile.Recall
	}
	if explicit.Confusion == "" {
		explicit.Confusion = fromProfile.Confusion
	}
	if explicit.Proficiency == "" {
		explicit.Proficiency = fromProfile.Proficiency
	}
	return explicit
}
