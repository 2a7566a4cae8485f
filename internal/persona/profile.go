package persona

import (
	"encoding/json"
	"fmt"
	"strings"
)

const notRecorded = "N/A"

// PatientProfile holds the demographic and clinical facts of a simulated
// patient. JSON tags match the patient_profile.json dataset records.
type PatientProfile struct {
	ID               string `json:"hadm_id"`
	Age              string `json:"age"`
	Gender           string `json:"gender"`
	Race             string `json:"race"`
	MaritalStatus    string `json:"marital_status"`
	Occupation       string `json:"occupation"`
	LivingSituation  string `json:"living_situation"`
	ArrivalTransport string `json:"arrival_transport"`
	ChiefComplaint   string `json:"chiefcomplaint"`
	PresentIllness   string `json:"present_illness"`
	MedicalHistory   string `json:"medical_history"`
	Medications      string `json:"medication"`
	Allergies        string `json:"allergies"`
	FamilyHistory    string `json:"family_medical_history"`
	SocialHistory    string `json:"social_history"`
	Diagnosis        string `json:"diagnosis"`
	Traits           Traits `json:"persona"`
}

// UnmarshalJSON accepts hadm_id and age as either strings or numbers.
func (p *PatientProfile) UnmarshalJSON(data []byte) error {
	type plain PatientProfile
	aux := struct {
		*plain
		ID  json.RawMessage `json:"hadm_id"`
		Age json.RawMessage `json:"age"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if p.ID, err = scalarString(aux.ID); err != nil {
		return fmt.Errorf("hadm_id: %w", err)
	}
	if p.Age, err = scalarString(aux.Age); err != nil {
		return fmt.Errorf("age: %w", err)
	}
	return nil
}

func scalarString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// WithDefaults replaces blank facts with "N/A" so templates never render
// empty bullets.
func (p PatientProfile) WithDefaults() PatientProfile {
	for _, f := range []*string{
		&p.Age, &p.Gender, &p.Race, &p.MaritalStatus, &p.Occupation,
		&p.LivingSituation, &p.ArrivalTransport, &p.ChiefComplaint,
		&p.PresentIllness, &p.MedicalHistory, &p.Medications, &p.Allergies,
		&p.FamilyHistory, &p.SocialHistory,
	} {
		if strings.TrimSpace(*f) == "" {
			*f = notRecorded
		}
	}
	return p
}

// TriageInfo is what the doctor knows before the first question.
type TriageInfo struct {
	Age              string
	Gender           string
	ArrivalTransport string
}

// Triage extracts the facts shared with the doctor from a profile.
func (p PatientProfile) Triage() TriageInfo {
	return TriageInfo{Age: p.Age, Gender: p.Gender, ArrivalTransport: p.ArrivalTransport}
}
