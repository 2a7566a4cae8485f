package agent

import (
	"context"
	"fmt"

	"github.com/wolfman30/patientsim/internal/errkind"
	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/internal/transcript"
)

const (
	DefaultStaffMaxInferences = 5
	DefaultStaffGreeting      = "Hello, welcome to the outpatient clinic. How can I help you today?"
	DefaultStaffFinalTurn     = "This is the final turn. Now, you must tell the patient which department they should visit."

	DefaultStaffTemperature float32 = DefaultDoctorTemperature

	defaultStaffOpeningCue = "A patient has just arrived at the reception desk. Greet them and ask how you can help."
)

// StaffConfig configures the outpatient reception staff agent.
type StaffConfig struct {
	Config
	MaxInferences        int
	Greeting             string
	PromptTemplate       string
	FinalTurnInstruction string
}

// NewStaffAgent renders the outpatient staff persona for the inference
// budget and binds the provider. The staff agent plays the clinician role
// of an outpatient run.
func NewStaffAgent(ctx context.Context, cfg StaffConfig) (*Agent, error) {
	d := &doctorSettings{
		visit:         persona.VisitOutpatient,
		maxInferences: cfg.MaxInferences,
		topK:          1,
		greeting:      cfg.Greeting,
		template:      cfg.PromptTemplate,
		finalTurn:     cfg.FinalTurnInstruction,
	}
	if d.maxInferences == 0 {
		d.maxInferences = DefaultStaffMaxInferences
	}
	if d.maxInferences < 1 {
		return nil, errkind.Configf("agent: staff: max inferences must be positive, got %d", d.maxInferences)
	}
	if d.greeting == "" {
		d.greeting = DefaultStaffGreeting
	}
	if d.finalTurn == "" {
		d.finalTurn = DefaultStaffFinalTurn
	}

	system, err := d.render()
	if err != nil {
		return nil, fmt.Errorf("agent: staff: %w", err)
	}
	if cfg.OpeningCue == "" {
		cfg.OpeningCue = defaultStaffOpeningCue
	}

	a, err := newAgent(ctx, transcript.RoleStaff, cfg.Config, DefaultStaffTemperature, system)
	if err != nil {
		return nil, err
	}
	a.doctor = d
	a.visitType = persona.VisitOutpatient
	a.logger.Info("staff agent initialized", "max_inferences", d.maxInferences, "family", string(a.family))
	return a, nil
}
