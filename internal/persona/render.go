package persona

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// PatientPromptData is the value patient templates are executed against.
type PatientPromptData struct {
	VisitType VisitType
	Visit     Visit
	Profile   PatientProfile
	Traits    TraitText
}

// DoctorPromptData is the value doctor and staff templates are executed
// against. Staff templates ignore the triage and top-k fields.
type DoctorPromptData struct {
	TotalTurns       int
	CurrentTurn      int
	RemainingTurns   int
	TopKDiagnosis    int
	Age              string
	Gender           string
	ArrivalTransport string
}

// NewDoctorPromptData fills the budget fields and defaults blank triage facts.
func NewDoctorPromptData(total, current, topK int, triage TriageInfo) DoctorPromptData {
	or := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return notRecorded
		}
		return s
	}
	return DoctorPromptData{
		TotalTurns:       total,
		CurrentTurn:      current,
		RemainingTurns:   total - current,
		TopKDiagnosis:    topK,
		Age:              or(triage.Age),
		Gender:           or(triage.Gender),
		ArrivalTransport: or(triage.ArrivalTransport),
	}
}

// RenderPatientPrompt builds the patient system prompt. custom, when
// non-empty, replaces the visit type's built-in template.
func RenderPatientPrompt(visit VisitType, profile PatientProfile, traits Traits, custom string) (string, error) {
	setting, ok := visitSettings[visit]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownVisitType, visit)
	}
	traits = traits.WithDefaults()
	if err := traits.Validate(); err != nil {
		return "", err
	}
	data := PatientPromptData{
		VisitType: visit,
		Visit:     setting.visit,
		Profile:   profile.WithDefaults(),
		Traits:    traits.describe(),
	}
	return render(setting.template, custom, data)
}

// RenderClinicianPrompt builds the system prompt of the clinician who
// receives patients for visit: the physician in the emergency department,
// reception staff in the outpatient clinic.
func RenderClinicianPrompt(visit VisitType, data DoctorPromptData, custom string) (string, error) {
	setting, ok := visitSettings[visit]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownVisitType, visit)
	}
	return render(setting.clinician, custom, data)
}

// RenderDoctorPrompt builds the emergency department physician prompt.
func RenderDoctorPrompt(data DoctorPromptData, custom string) (string, error) {
	return RenderClinicianPrompt(VisitEmergencyDepartment, data, custom)
}

// RenderStaffPrompt builds the outpatient reception staff prompt.
func RenderStaffPrompt(data DoctorPromptData, custom string) (string, error) {
	return RenderClinicianPrompt(VisitOutpatient, data, custom)
}

// RenderTerminationPrompt builds the question asked of a termination
// checker model about one clinician utterance in a visit.
func RenderTerminationPrompt(visit VisitType, response, custom string) (string, error) {
	setting, ok := visitSettings[visit]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownVisitType, visit)
	}
	return render(setting.termination, custom, struct{ Response string }{Response: response})
}

// LoadTemplateFile reads a custom prompt template from disk.
func LoadTemplateFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrTemplate, path, err)
	}
	return string(raw), nil
}

func render(builtin, custom string, data any) (string, error) {
	name := builtin
	text := custom
	if strings.TrimSpace(custom) == "" {
		raw, err := templateFS.ReadFile(builtin)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrTemplate, builtin, err)
		}
		text = string(raw)
	} else {
		name = "custom"
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", ErrTemplate, name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: render %s: %v", ErrTemplate, name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
