package agent

import (
	"context"
	"fmt"

	"github.com/wolfman30/patientsim/internal/errkind"
	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/internal/transcript"
)

const (
	DefaultMaxInferences = 15
	DefaultTopKDiagnosis = 5
	DefaultGreeting      = "Hello, how can I help you?"

	defaultDoctorOpeningCue = "A new patient has just been brought in. Greet them and begin the consultation."
)

// DoctorConfig configures a doctor agent. Zero numeric fields take the
// package defaults.
type DoctorConfig struct {
	Config
	MaxInferences  int
	TopKDiagnosis  int
	Greeting       string
	Triage         persona.TriageInfo
	PromptTemplate string
	// FinalTurnInstruction is appended to the prompt of the doctor's last
	// turn. Empty selects the default for TopKDiagnosis.
	FinalTurnInstruction string
}

// doctorSettings holds the state of a clinician agent, doctor or staff,
// needed to re-render its prompt for a new budget.
type doctorSettings struct {
	visit         persona.VisitType
	maxInferences int
	topK          int
	greeting      string
	triage        persona.TriageInfo
	template      string
	finalTurn     string
}

func (d *doctorSettings) render() (string, error) {
	return persona.RenderClinicianPrompt(d.visit, persona.NewDoctorPromptData(d.maxInferences, 0, d.topK, d.triage), d.template)
}

// NewDoctorAgent renders the doctor persona for the inference budget and
// binds the provider.
func NewDoctorAgent(ctx context.Context, cfg DoctorConfig) (*Agent, error) {
	d := &doctorSettings{
		visit:         persona.VisitEmergencyDepartment,
		maxInferences: cfg.MaxInferences,
		topK:          cfg.TopKDiagnosis,
		greeting:      cfg.Greeting,
		triage:        cfg.Triage,
		template:      cfg.PromptTemplate,
		finalTurn:     cfg.FinalTurnInstruction,
	}
	if d.maxInferences == 0 {
		d.maxInferences = DefaultMaxInferences
	}
	if d.topK == 0 {
		d.topK = DefaultTopKDiagnosis
	}
	if d.maxInferences < 1 || d.topK < 1 {
		return nil, errkind.Configf("agent: doctor: max inferences (%d) and top-k diagnosis (%d) must be positive", d.maxInferences, d.topK)
	}
	if d.greeting == "" {
		d.greeting = DefaultGreeting
	}
	if d.finalTurn == "" {
		d.finalTurn = fmt.Sprintf("This is the final turn. Now, you must provide your top %d differential diagnoses.", d.topK)
	}

	system, err := d.render()
	if err != nil {
		return nil, fmt.Errorf("agent: doctor: %w", err)
	}
	if cfg.OpeningCue == "" {
		cfg.OpeningCue = defaultDoctorOpeningCue
	}

	a, err := newAgent(ctx, transcript.RoleDoctor, cfg.Config, DefaultDoctorTemperature, system)
	if err != nil {
		return nil, err
	}
	a.doctor = d
	a.visitType = persona.VisitEmergencyDepartment
	a.logger.Info("doctor agent initialized", "max_inferences", d.maxInferences, "family", string(a.family))
	return a, nil
}

// Greeting is the clinician's fixed opening line. Empty for patients.
func (a *Agent) Greeting() string {
	if a.doctor == nil {
		return ""
	}
	return a.doctor.greeting
}

// MaxInferences is the clinician's question budget. Zero for patients.
func (a *Agent) MaxInferences() int {
	if a.doctor == nil {
		return 0
	}
	return a.doctor.maxInferences
}

func (a *Agent) TopKDiagnosis() int {
	if a.doctor == nil {
		return 0
	}
	return a.doctor.topK
}

func (a *Agent) FinalTurnInstruction() string {
	if a.doctor == nil {
		return ""
	}
	return a.doctor.finalTurn
}

// WithMaxInferences returns a copy of a doctor or staff agent whose prompt
// is rendered for budget n. The receiver is unchanged.
func (a *Agent) WithMaxInferences(n int) (*Agent, error) {
	if a.doctor == nil {
		return nil, errkind.Configf("agent: %s agent has no inference budget", a.role)
	}
	if n < 1 {
		return nil, errkind.Configf("agent: %s: max inferences must be positive, got %d", a.role, n)
	}
	d := *a.doctor
	d.maxInferences = n
	system, err := d.render()
	if err != nil {
		return nil, fmt.Errorf("agent: %s: %w", a.role, err)
	}
	cp := *a
	cp.doctor = &d
	cp.system = system
	return &cp, nil
}
