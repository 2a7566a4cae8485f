// Package dataset loads patient profiles from the PhysioNet
// persona-patientsim release and downloads the release file.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"strings"

	"github.com/wolfman30/patientsim/internal/persona"
)

// ProfileFile is the release file holding every patient profile.
const ProfileFile = "patient_profile.json"

var (
	ErrEmptyDataset    = errors.New("dataset: no patient profiles")
	ErrProfileNotFound = errors.New("dataset: profile not found")
)

// Profiles is an ordered set of patient profiles.
type Profiles []persona.PatientProfile

// LoadProfiles reads a patient_profile.json file.
func LoadProfiles(path string) (Profiles, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()
	return ParseProfiles(f)
}

// ParseProfiles decodes either a JSON array of profiles or an object keyed
// by admission id.
func ParseProfiles(r io.Reader) (Profiles, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dataset: read profiles: %w", err)
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, ErrEmptyDataset
	}

	var profiles Profiles
	if strings.HasPrefix(trimmed, "{") {
		byID := map[string]persona.PatientProfile{}
		if err := json.Unmarshal(raw, &byID); err != nil {
			return nil, fmt.Errorf("dataset: decode profiles: %w", err)
		}
		for id, p := range byID {
			if p.ID == "" {
				p.ID = id
			}
			profiles = append(profiles, p)
		}
		slices.SortFunc(profiles, func(a, b persona.PatientProfile) int {
			return strings.Compare(a.ID, b.ID)
		})
	} else if err := json.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("dataset: decode profiles: %w", err)
	}

	if len(profiles) == 0 {
		return nil, ErrEmptyDataset
	}
	return profiles, nil
}

// ByID returns the profile with the given admission id.
func (p Profiles) ByID(id string) (persona.PatientProfile, error) {
	for _, profile := range p {
		if profile.ID == id {
			return profile, nil
		}
	}
	return persona.PatientProfile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
}

// Pick selects one profile deterministically from seed.
func (p Profiles) Pick(seed uint64) (persona.PatientProfile, error) {
	if len(p) == 0 {
		return persona.PatientProfile{}, ErrEmptyDataset
	}
	r := rand.New(rand.NewPCG(seed, seed>>1|1))
	return p[r.IntN(len(p))], nil
}
