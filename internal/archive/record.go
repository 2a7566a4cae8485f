package archive

import (
	"time"

	"github.com/wolfman30/patientsim/internal/llm"
	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/internal/transcript"
)

// RunInput is what a caller knows about a finished run.
type RunInput struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	PatientModel string
	DoctorModel  string
	// ClinicianRole defaults to doctor.
	ClinicianRole  transcript.Role
	VisitType      string
	Profile        persona.PatientProfile
	Traits         persona.Traits
	Seed           int64
	RandomSampling bool
	MaxTurns       int
	Outcome        string
	Err            error
	Turns          []transcript.Turn

	PatientUsage   llm.TokenUsage
	ClinicianUsage llm.TokenUsage
}

// NewRecord builds a SimulationRecord. Turns are copied.
func NewRecord(in RunInput) *SimulationRecord {
	turns := make([]transcript.Turn, len(in.Turns))
	copy(turns, in.Turns)

	r := &SimulationRecord{
		Version:        RecordVersion,
		RunID:          in.RunID,
		StartedAt:      in.StartedAt.UTC(),
		FinishedAt:     in.FinishedAt.UTC(),
		PatientModel:   in.PatientModel,
		DoctorModel:    in.DoctorModel,
		ClinicianRole:  in.ClinicianRole,
		VisitType:      in.VisitType,
		ProfileID:      in.Profile.ID,
		Diagnosis:      in.Profile.Diagnosis,
		Traits:         in.Traits,
		Seed:           in.Seed,
		RandomSampling: in.RandomSampling,
		MaxTurns:       in.MaxTurns,
		TurnCount:      len(turns),
		Outcome:        in.Outcome,
		Turns:          turns,

		PatientTokenUsage:   in.PatientUsage,
		ClinicianTokenUsage: in.ClinicianUsage,
	}
	if r.ClinicianRole == "" {
		r.ClinicianRole = transcript.RoleDoctor
	}
	if !in.StartedAt.IsZero() && !in.FinishedAt.IsZero() {
		r.DurationSeconds = in.FinishedAt.Sub(in.StartedAt).Seconds()
	}
	if in.Err != nil {
		r.Error = in.Err.Error()
	}
	return r
}
