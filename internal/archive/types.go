package archive

import (
	"time"

	"github.com/wolfman30/patientsim/internal/llm"
	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/internal/transcript"
)

// RecordVersion is the schema version written into every record.
const RecordVersion = "1.0"

// SimulationRecord is the archived form of one simulation run. DoctorModel
// names the clinician's model, staff included.
type SimulationRecord struct {
	Version             string            `json:"version"`
	RunID               string            `json:"run_id"`
	StartedAt           time.Time         `json:"started_at"`
	FinishedAt          time.Time         `json:"finished_at"`
	ArchivedAt          time.Time         `json:"archived_at"`
	DurationSeconds     float64           `json:"duration_seconds"`
	PatientModel        string            `json:"patient_model"`
	DoctorModel         string            `json:"doctor_model"`
	ClinicianRole       transcript.Role   `json:"clinician_role"`
	VisitType           string            `json:"visit_type"`
	ProfileID           string            `json:"profile_id,omitempty"`
	Diagnosis           string            `json:"diagnosis,omitempty"` // ground truth from the profile
	Traits              persona.Traits    `json:"persona"`
	Seed                int64             `json:"seed"`
	RandomSampling      bool              `json:"random_sampling"`
	MaxTurns            int               `json:"max_turns"`
	TurnCount           int               `json:"turn_count"`
	Outcome             string            `json:"outcome"` // max_turns|end_marker|checker|failed
	Error               string            `json:"error,omitempty"`
	PatientTokenUsage   llm.TokenUsage    `json:"patient_token_usage"`
	ClinicianTokenUsage llm.TokenUsage    `json:"clinician_token_usage"`
	Labels              *Labels           `json:"labels,omitempty"`
	Turns               []transcript.Turn `json:"turns"`
}

// Labels grades the doctor's final differential against the profile
// diagnosis.
type Labels struct {
	DiagnosisInDifferential bool   `json:"diagnosis_in_differential"`
	DiagnosisRank           int    `json:"diagnosis_rank"` // 1-based, 0 when absent
	AutoLabeled             bool   `json:"auto_labeled"`
	LabelModel              string `json:"label_model"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	RunID       string `json:"run_id"`
	Key         string `json:"key"`
	VisitType   string `json:"visit_type"`
	DoctorModel string `json:"doctor_model"`
	Outcome     string `json:"outcome"`
	TurnCount   int    `json:"turn_count"`
	ArchivedAt  string `json:"archived_at"`
}

func (r *SimulationRecord) manifestEntry(key string) ManifestEntry {
	return ManifestEntry{
		RunID:       r.RunID,
		Key:         key,
		VisitType:   r.VisitType,
		DoctorModel: r.DoctorModel,
		Outcome:     r.Outcome,
		TurnCount:   r.TurnCount,
		ArchivedAt:  r.ArchivedAt.Format(time.RFC3339),
	}
}

func recordKey(r *SimulationRecord) string {
	at := r.ArchivedAt
	return "simulations/v1/by-date/" + at.Format("2006/01/02") + "/" + r.RunID + ".json"
}

func manifestKey(at time.Time) string {
	return "simulations/v1/manifests/" + at.Format("2006-01") + ".jsonl"
}
