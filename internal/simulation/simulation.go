// Package simulation drives a clinician agent, the emergency department
// doctor or the outpatient reception staff, and a patient agent through an
// alternating conversation and owns the resulting transcript.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/patientsim/internal/agent"
	"github.com/wolfman30/patientsim/internal/errkind"
	"github.com/wolfman30/patientsim/internal/llm"
	"github.com/wolfman30/patientsim/internal/observability/metrics"
	"github.com/wolfman30/patientsim/internal/transcript"
	"github.com/wolfman30/patientsim/pkg/logging"
)

// DefaultMaxTurns is a greeting plus fifteen question and answer rounds.
// When Config.MaxTurns is zero the limit is derived from the clinician's
// own budget instead, and equals this for a default doctor with a scripted
// greeting.
const DefaultMaxTurns = 2*agent.DefaultMaxInferences + 1

// ErrAlreadyStarted is returned when Simulate is called more than once.
var ErrAlreadyStarted = errors.New("simulation: already started")

var tracer = otel.Tracer("patientsim.internal.simulation")

type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome records why a run stopped.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeMaxTurns  Outcome = "max_turns"
	OutcomeEndMarker Outcome = "end_marker"
	OutcomeChecker   Outcome = "checker"
	OutcomeFailed    Outcome = "failed"
)

// ProgressReporter receives every appended turn and the integer percentage
// of MaxTurns reached.
type ProgressReporter interface {
	ReportTurn(turn transcript.Turn, percent int)
}

type ProgressReporterFunc func(turn transcript.Turn, percent int)

func (f ProgressReporterFunc) ReportTurn(turn transcript.Turn, percent int) {
	f(turn, percent)
}

// Config controls a simulation run. Zero values take defaults.
type Config struct {
	MaxTurns     int
	FirstSpeaker transcript.Role
	// OpeningLine, when set, is the first turn verbatim. Otherwise the first
	// speaker generates it from its opening cue.
	OpeningLine string
	End         EndCondition
	Checker     TerminationChecker
	// FinalTurnInstruction overrides the clinician's own instruction for its
	// last possible turn.
	FinalTurnInstruction        string
	DisableFinalTurnInstruction bool
	TurnDelay                   time.Duration
	Reporter                    ProgressReporter
	Logger                      *logging.Logger
	Metrics                     *metrics.SimulationMetrics
}

// Simulation is a single run. It is not safe for concurrent use.
type Simulation struct {
	patient *agent.Agent
	// doctor is the clinician: a doctor or staff agent.
	doctor *agent.Agent
	cfg    Config
	end    *endMatcher
	logger *logging.Logger

	transcript *transcript.Transcript
	state      State
	outcome    Outcome
	usage      map[transcript.Role]llm.TokenUsage
}

// New validates cfg and binds the two agents. doctor is the clinician, a
// doctor or staff agent. The clinician's inference budget is synchronised
// with the number of clinician turns MaxTurns leaves for the model.
func New(patient, doctor *agent.Agent, cfg Config) (*Simulation, error) {
	if patient == nil || doctor == nil {
		return nil, errkind.Configf("simulation: patient and clinician agents are required")
	}
	if patient.Role() != transcript.RolePatient || !doctor.Role().Clinician() {
		return nil, errkind.Configf("simulation: agents have roles %s/%s, want patient/doctor or patient/staff", patient.Role(), doctor.Role())
	}
	if cfg.FirstSpeaker == "" {
		cfg.FirstSpeaker = doctor.Role()
	}
	if cfg.FirstSpeaker != transcript.RolePatient && cfg.FirstSpeaker != doctor.Role() {
		return nil, errkind.Configf("simulation: first speaker %q is neither patient nor %s", cfg.FirstSpeaker, doctor.Role())
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = defaultMaxTurns(doctor.MaxInferences(), cfg.FirstSpeaker == doctor.Role(), cfg.OpeningLine != "")
	}
	if cfg.MaxTurns < 1 {
		return nil, errkind.Configf("simulation: max turns must be at least 1, got %d", cfg.MaxTurns)
	}
	if cfg.TurnDelay < 0 {
		return nil, errkind.Configf("simulation: turn delay must not be negative")
	}
	end, err := cfg.End.compile()
	if err != nil {
		return nil, err
	}
	if cfg.FinalTurnInstruction == "" {
		cfg.FinalTurnInstruction = doctor.FinalTurnInstruction()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	s := &Simulation{
		patient:    patient,
		doctor:     doctor,
		cfg:        cfg,
		end:        end,
		logger:     logger,
		transcript: transcript.New(),
		usage:      make(map[transcript.Role]llm.TokenUsage, 2),
	}
	if err := s.syncDoctorBudget(); err != nil {
		return nil, err
	}
	return s, nil
}

// defaultMaxTurns is the turn limit that gives a clinician with budget n
// exactly n generated turns.
func defaultMaxTurns(n int, clinicianFirst, scripted bool) int {
	switch {
	case !clinicianFirst:
		return 2 * n
	case scripted:
		return 2*n + 1
	default:
		return 2*n - 1
	}
}

// doctorBudget is the number of clinician turns the model generates. A
// scripted opening line is not one of them; a generated opener is.
func (s *Simulation) doctorBudget() int {
	if s.cfg.FirstSpeaker != s.doctor.Role() {
		return s.cfg.MaxTurns / 2
	}
	turns := (s.cfg.MaxTurns + 1) / 2
	if s.cfg.OpeningLine != "" {
		turns--
	}
	return turns
}

func (s *Simulation) syncDoctorBudget() error {
	budget := s.doctorBudget()
	if budget < 1 || budget == s.doctor.MaxInferences() {
		return nil
	}
	s.logger.Warn("clinician inference budget does not match simulation; using simulation value",
		"role", string(s.doctor.Role()),
		"clinician_max_inferences", s.doctor.MaxInferences(),
		"simulation_max_inferences", budget,
	)
	synced, err := s.doctor.WithMaxInferences(budget)
	if err != nil {
		return err
	}
	s.doctor = synced
	return nil
}

// Simulate runs the conversation until MaxTurns turns exist or a
// termination condition fires. On failure the transcript keeps every turn
// appended before the error.
func (s *Simulation) Simulate(ctx context.Context) (*transcript.Transcript, error) {
	if s.state != StateNotStarted {
		return nil, ErrAlreadyStarted
	}
	s.state = StateRunning

	ctx, span := tracer.Start(ctx, "simulation.simulate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("patientsim.simulation.max_turns", s.cfg.MaxTurns),
		attribute.String("patientsim.simulation.first_speaker", string(s.cfg.FirstSpeaker)),
		attribute.String("patientsim.simulation.clinician_role", string(s.doctor.Role())),
		attribute.String("patientsim.simulation.clinician_model", s.doctor.Model()),
		attribute.String("patientsim.simulation.patient_model", s.patient.Model()),
	)

	s.logger.Debug("simulation starting",
		"max_turns", s.cfg.MaxTurns,
		"patient_prompt", s.patient.SystemPrompt(),
		"clinician_prompt", s.doctor.SystemPrompt(),
	)

	outcome, err := s.run(ctx)
	if err != nil {
		s.state = StateFailed
		s.outcome = OutcomeFailed
		s.cfg.Metrics.ObserveRun(string(OutcomeFailed))
		span.RecordError(err)
		s.logger.Error("simulation failed", "turns", s.transcript.Len(), "error", err)
		return s.transcript, err
	}

	s.state = StateCompleted
	s.outcome = outcome
	s.cfg.Metrics.ObserveRun(string(outcome))
	span.SetAttributes(attribute.Int("patientsim.simulation.turns", s.transcript.Len()))
	s.logger.Info("simulation completed", "turns", s.transcript.Len(), "outcome", string(outcome))
	return s.transcript, nil
}

func (s *Simulation) run(ctx context.Context) (Outcome, error) {
	for s.transcript.Len() < s.cfg.MaxTurns {
		ordinal := s.transcript.Len()
		role := s.transcript.NextRoleWith(s.cfg.FirstSpeaker, s.doctor.Role())

		if ordinal > 0 && s.cfg.TurnDelay > 0 {
			if err := wait(ctx, s.cfg.TurnDelay); err != nil {
				return OutcomeNone, fmt.Errorf("simulation: turn %d: %w", ordinal, err)
			}
		}

		scripted := ordinal == 0 && s.cfg.OpeningLine != ""
		text := s.cfg.OpeningLine
		if !scripted {
			var err error
			text, err = s.respond(ctx, role, ordinal)
			if err != nil {
				return OutcomeNone, fmt.Errorf("simulation: turn %d (%s): %w", ordinal, role, err)
			}
		}

		turn, err := s.transcript.Append(role, text)
		if err != nil {
			return OutcomeNone, fmt.Errorf("simulation: turn %d: %w", ordinal, err)
		}
		s.cfg.Metrics.ObserveTurn(string(role))
		if s.cfg.Reporter != nil {
			s.cfg.Reporter.ReportTurn(turn, (turn.Ordinal+1)*100/s.cfg.MaxTurns)
		}

		if s.end.matches(turn) {
			s.logger.Info("end marker detected", "turn", turn.Ordinal, "role", string(role))
			return OutcomeEndMarker, nil
		}
		if s.cfg.Checker != nil && role == s.doctor.Role() && !scripted {
			done, err := s.cfg.Checker.ShouldEnd(ctx, turn)
			if err != nil {
				return OutcomeNone, fmt.Errorf("simulation: termination check after turn %d: %w", ordinal, err)
			}
			if done {
				s.logger.Warn("consultation termination detected by checker", "turn", turn.Ordinal)
				return OutcomeChecker, nil
			}
		}
	}
	return OutcomeMaxTurns, nil
}

func (s *Simulation) respond(ctx context.Context, role transcript.Role, ordinal int) (string, error) {
	turns := s.transcript.Turns()
	var (
		history []transcript.Turn
		prompt  string
	)
	if n := len(turns); n > 0 {
		history, prompt = turns[:n-1], turns[n-1].Text
	}

	speaker := s.patient
	if role == s.doctor.Role() {
		speaker = s.doctor
		if s.isFinalDoctorTurn(ordinal) && !s.cfg.DisableFinalTurnInstruction && s.cfg.FinalTurnInstruction != "" {
			if prompt == "" {
				prompt = speaker.OpeningCue()
			}
			prompt += "\n" + s.cfg.FinalTurnInstruction
		}
	}
	resp, err := speaker.Complete(ctx, history, prompt)
	if err != nil {
		return "", err
	}
	s.usage[role] = s.usage[role].Add(resp.Usage)
	return resp.Text, nil
}

// isFinalDoctorTurn reports whether no clinician turn can follow ordinal.
func (s *Simulation) isFinalDoctorTurn(ordinal int) bool {
	return ordinal+2 >= s.cfg.MaxTurns
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Transcript returns the run's transcript, including the partial one
// left by a failed run.
func (s *Simulation) Transcript() *transcript.Transcript {
	return s.transcript
}

func (s *Simulation) State() State {
	return s.state
}

func (s *Simulation) Outcome() Outcome {
	return s.outcome
}

// Doctor returns the clinician agent in use, doctor or staff, after budget
// synchronisation.
func (s *Simulation) Doctor() *agent.Agent {
	return s.doctor
}

func (s *Simulation) Patient() *agent.Agent {
	return s.patient
}

// Usage is the token usage summed over role's generated turns.
func (s *Simulation) Usage(role transcript.Role) llm.TokenUsage {
	return s.usage[role]
}

// MaxTurns returns the effective turn limit.
func (s *Simulation) MaxTurns() int {
	return s.cfg.MaxTurns
}
