package persona

import (
	"fmt"
	"math/rand/v2"
)

type Personality string

const (
	PersonalityPlain       Personality = "plain"
	PersonalityVerbose     Personality = "verbose"
	PersonalityPleasing    Personality = "pleasing"
	PersonalityImpatient   Personality = "impatient"
	PersonalityDistrust    Personality = "distrust"
	PersonalityOveranxious Personality = "overanxious"
)

type RecallLevel string

const (
	RecallNoHistory RecallLevel = "no_history"
	RecallLow       RecallLevel = "low"
	RecallHigh      RecallLevel = "high"
)

type ConfusionLevel string

const (
	ConfusionNormal   ConfusionLevel = "normal"
	ConfusionModerate ConfusionLevel = "moderate"
	ConfusionHigh     ConfusionLevel = "high"
)

// LanguageProficiency follows CEFR bands collapsed to A (basic), B
// (independent) and C (proficient).
type LanguageProficiency string

const (
	ProficiencyBasic       LanguageProficiency = "A"
	ProficiencyIndependent LanguageProficiency = "B"
	ProficiencyProficient  LanguageProficiency = "C"
)

var (
	personalities = []Personality{
		PersonalityPlain, PersonalityVerbose, PersonalityPleasing,
		PersonalityImpatient, PersonalityDistrust, PersonalityOveranxious,
	}
	recallLevels    = []RecallLevel{RecallNoHistory, RecallLow, RecallHigh}
	confusionLevels = []ConfusionLevel{ConfusionNormal, ConfusionModerate, ConfusionHigh}
	proficiencies   = []LanguageProficiency{ProficiencyBasic, ProficiencyIndependent, ProficiencyProficient}
)

var personalityText = map[Personality]string{
	PersonalityPlain:       "You speak in a neutral, cooperative way and answer questions directly.",
	PersonalityVerbose:     "You talk a lot, add tangents and personal stories, and often give more detail than asked.",
	PersonalityPleasing:    "You are eager to please the doctor, downplay your symptoms, and agree readily even when unsure.",
	PersonalityImpatient:   "You are irritated by the wait, want quick answers, and keep your replies short and curt.",
	PersonalityDistrust:    "You are skeptical of doctors, question why things are asked, and are reluctant to share details.",
	PersonalityOveranxious: "You are very worried, imagine the worst, and repeatedly ask whether your condition is serious.",
}

var recallText = map[RecallLevel]string{
	RecallNoHistory: "You have no significant past medical history to recall.",
	RecallLow:       "You often forget details of your medical history, medications, and allergies, and may answer with uncertainty.",
	RecallHigh:      "You remember your medical history, medications, and allergies accurately.",
}

var confusionText = map[ConfusionLevel]string{
	ConfusionNormal:   "You are alert and oriented and follow the conversation without difficulty.",
	ConfusionModerate: "You are somewhat confused, occasionally lose track of questions, and sometimes need them repeated.",
	ConfusionHigh:     "You are highly confused and disoriented; your answers are often fragmented or off-topic.",
}

var proficiencyText = map[LanguageProficiency]string{
	ProficiencyBasic:       "You use very simple words and short, sometimes ungrammatical sentences, and struggle with complex questions.",
	ProficiencyIndependent: "You communicate everyday matters comfortably but may misunderstand complex or technical phrasing.",
	ProficiencyProficient:  "You express yourself fluently and understand complex questions.",
}

// Traits is the behavioural style of a simulated patient.
type Traits struct {
	Personality Personality         `json:"personality"`
	Recall      RecallLevel         `json:"recall_level"`
	Confusion   ConfusionLevel      `json:"confusion_level"`
	Proficiency LanguageProficiency `json:"lang_proficiency_level"`
}

// DefaultTraits is a cooperative, lucid, fluent patient.
func DefaultTraits() Traits {
	return Traits{
		Personality: PersonalityPlain,
		Recall:      RecallHigh,
		Confusion:   ConfusionNormal,
		Proficiency: ProficiencyProficient,
	}
}

// WithDefaults fills unset fields from DefaultTraits.
func (t Traits) WithDefaults() Traits {
	d := DefaultTraits()
	if t.Personality == "" {
		t.Personality = d.Personality
	}
	if t.Recall == "" {
		t.Recall = d.Recall
	}
	if t.Confusion == "" {
		t.Confusion = d.Confusion
	}
	if t.Proficiency == "" {
		t.Proficiency = d.Proficiency
	}
	return t
}

// Validate rejects values missing from the trait tables.
func (t Traits) Validate() error {
	if _, ok := personalityText[t.Personality]; !ok {
		return fmt.Errorf("%w: personality %q", ErrInvalidTrait, t.Personality)
	}
	if _, ok := recallText[t.Recall]; !ok {
		return fmt.Errorf("%w: recall level %q", ErrInvalidTrait, t.Recall)
	}
	if _, ok := confusionText[t.Confusion]; !ok {
		return fmt.Errorf("%w: confusion level %q", ErrInvalidTrait, t.Confusion)
	}
	if _, ok := proficiencyText[t.Proficiency]; !ok {
		return fmt.Errorf("%w: language proficiency %q", ErrInvalidTrait, t.Proficiency)
	}
	return nil
}

// TraitText is the rendered description of each trait.
type TraitText struct {
	Personality string
	Recall      string
	Confusion   string
	Proficiency string
}

func (t Traits) describe() TraitText {
	return TraitText{
		Personality: personalityText[t.Personality],
		Recall:      recallText[t.Recall],
		Confusion:   confusionText[t.Confusion],
		Proficiency: proficiencyText[t.Proficiency],
	}
}

// RandomTraits draws a trait set from a PCG source seeded with seed. The
// draw order is fixed, so equal seeds give equal traits.
func RandomTraits(seed uint64) Traits {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return Traits{
		Personality: personalities[r.IntN(len(personalities))],
		Recall:      recallLevels[r.IntN(len(recallLevels))],
		Confusion:   confusionLevels[r.IntN(len(confusionLevels))],
		Proficiency: proficiencies[r.IntN(len(proficiencies))],
	}
}
