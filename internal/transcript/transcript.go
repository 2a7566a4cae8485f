// Package transcript holds the append-only dialogue history shared by a
// simulation run and the agents it drives.
package transcript

import (
	"errors"
	"fmt"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RolePatient Role = "patient"
)

// Other returns the counterpart role. A patient's default counterpart is
// the doctor; use Counterpart when the clinician may be staff.
func (r Role) Other() Role {
	if r == RolePatient {
		return RoleDoctor
	}
	return RolePatient
}

// Counterpart returns the role that answers r when the clinician seat is
// held by clinician.
func (r Role) Counterpart(clinician Role) Role {
	if r == RolePatient {
		return clinician
	}
	return RolePatient
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RoleStaff || r == RolePatient
}

// Clinician reports whether r speaks for the care side of the dialogue.
func (r Role) Clinician() bool {
	return r == RoleDoctor || r == RoleStaff
}

var (
	// ErrOutOfTurn is returned when a role speaks twice in a row.
	ErrOutOfTurn = errors.New("transcript: role spoke out of turn")
	// ErrInvalidRole is returned for an unknown speaker role.
	ErrInvalidRole = errors.New("transcript: invalid role")
)

// Turn is one utterance at a fixed position in the transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Text    string `json:"content"`
	Ordinal int    `json:"ordinal"`
}

// Transcript is the ordered history of one simulation run. Turns are only
// ever appended; Turns returns copies so callers cannot edit history.
type Transcript struct {
	turns []Turn
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Append adds a turn for role. Patient and clinician turns must alternate,
// and a transcript holds a single clinician role.
func (t *Transcript) Append(role Role, text string) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if n := len(t.turns); n > 0 && t.turns[n-1].Role.Clinician() == role.Clinician() {
		return Turn{}, fmt.Errorf("%w: %s follows %s", ErrOutOfTurn, role, t.turns[n-1].Role)
	}
	if role.Clinician() {
		for _, prev := range t.turns {
			if prev.Role.Clinician() && prev.Role != role {
				return Turn{}, fmt.Errorf("%w: %s joins a dialogue held by %s", ErrOutOfTurn, role, prev.Role)
			}
		}
	}
	turn := Turn{Role: role, Text: text, Ordinal: len(t.turns)}
	t.turns = append(t.turns, turn)
	return turn, nil
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.turns)
}

// Turns returns a copy of all turns in order.
func (t *Transcript) Turns() []Turn {
	if t == nil {
		return nil
	}
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Last returns the most recent turn.
func (t *Transcript) Last() (Turn, bool) {
	if t.Len() == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// NextRole returns the role expected to speak next given the opener, in a
// dialogue with a doctor.
func (t *Transcript) NextRole(opener Role) Role {
	return t.NextRoleWith(opener, RoleDoctor)
}

// NextRoleWith is NextRole for a dialogue whose clinician is clinician.
func (t *Transcript) NextRoleWith(opener, clinician Role) Role {
	last, ok := t.Last()
	if !ok {
		return opener
	}
	return last.Role.Counterpart(clinician)
}
