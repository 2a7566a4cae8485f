// Package persona renders the system prompts that condition the patient and
// doctor agents. Persona variation is data: embedded templates plus trait
// lookup tables, so prompts can be checked without any agent or provider.
package persona

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wolfman30/patientsim/internal/errkind"
)

var (
	ErrUnknownVisitType = fmt.Errorf("%w: unknown visit type", errkind.ErrConfiguration)
	ErrInvalidTrait     = fmt.Errorf("%w: invalid persona trait", errkind.ErrConfiguration)
	ErrTemplate         = fmt.Errorf("%w: persona template", errkind.ErrConfiguration)
)

// VisitType tags the clinical setting a patient presents to.
type VisitType string

const (
	VisitEmergencyDepartment VisitType = "emergency_department"
	VisitOutpatient          VisitType = "outpatient"
)

// Markers the built-in clinician templates ask for on the closing turn.
const (
	DiagnosisMarker  = "[DDX]"
	DepartmentMarker = "[DEPT]"
)

// Visit is the descriptive text a visit type contributes to a prompt.
type Visit struct {
	Label   string
	Setting string
}

type visitSetting struct {
	visit       Visit
	template    string
	clinician   string
	termination string
	endMarker   string
}

var visitSettings = map[VisitType]visitSetting{
	VisitEmergencyDepartment: {
		visit: Visit{
			Label:   "emergency department",
			Setting: "The department is busy, you were triaged at the front desk, and you are now in an examination bay waiting to be seen.",
		},
		template:    "templates/patient_emergency_department.tmpl",
		clinician:   "templates/doctor_emergency_department.tmpl",
		termination: "templates/termination_check_emergency_department.tmpl",
		endMarker:   DiagnosisMarker,
	},
	VisitOutpatient: {
		visit: Visit{
			Label:   "outpatient clinic",
			Setting: "You booked this visit yourself and are speaking with clinic staff who will decide which department should see you.",
		},
		template:    "templates/patient_outpatient.tmpl",
		clinician:   "templates/staff_outpatient.tmpl",
		termination: "templates/termination_check_outpatient.tmpl",
		endMarker:   DepartmentMarker,
	},
}

// ParseVisitType validates a visit-type tag.
func ParseVisitType(s string) (VisitType, error) {
	v := VisitType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := visitSettings[v]; !ok {
		return "", fmt.Errorf("%w %q (supported: %s)", ErrUnknownVisitType, s, strings.Join(visitTypeNames(), ", "))
	}
	return v, nil
}

// Describe returns the descriptive text for v.
func (v VisitType) Describe() (Visit, bool) {
	s, ok := visitSettings[v]
	return s.visit, ok
}

// EndMarker is the closing marker the visit's built-in clinician template
// asks for. Empty for unknown visit types.
func (v VisitType) EndMarker() string {
	return visitSettings[v].endMarker
}

// VisitTypes lists the supported visit types in a stable order.
func VisitTypes() []VisitType {
	names := visitTypeNames()
	out := make([]VisitType, len(names))
	for i, n := range names {
		out[i] = VisitType(n)
	}
	return out
}

func visitTypeNames() []string {
	names := make([]string, 0, len(visitSettings))
	for v := range visitSettings {
		names = append(names, string(v))
	}
	sort.Strings(names)
	return names
}
