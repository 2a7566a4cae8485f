package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/patientsim/internal/llm"
	"github.com/wolfman30/patientsim/internal/transcript"
	"github.com/wolfman30/patientsim/pkg/logging"
)

// Labeler asks a model whether the doctor's final differential contains
// the ground-truth diagnosis.
type Labeler struct {
	client llm.Client
	model  string
	logger *logging.Logger
}

// NewLabeler creates a Labeler. A nil client yields unlabeled defaults.
func NewLabeler(client llm.Client, model string, logger *logging.Logger) *Labeler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Labeler{client: client, model: model, logger: logger}
}

// Label grades the last doctor turn in turns against diagnosis.
func (l *Labeler) Label(ctx context.Context, diagnosis string, turns []transcript.Turn) (*Labels, error) {
	final := lastDoctorTurn(turns)
	if l == nil || l.client == nil || strings.TrimSpace(diagnosis) == "" || final == "" {
		return defaultLabels(), nil
	}

	resp, err := l.client.Complete(ctx, llm.Request{
		Model:  l.model,
		System: labelSystemPrompt,
		Messages: []llm.ChatMessage{
			{Role: llm.ChatRoleUser, Content: labelPrompt(diagnosis, final)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("archive: label: %w", err)
	}
	labels := parseLabelsJSON(resp.Text)
	if labels.AutoLabeled {
		labels.LabelModel = l.model
	}
	return labels, nil
}

func lastDoctorTurn(turns []transcript.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == transcript.RoleDoctor {
			return turns[i].Text
		}
	}
	return ""
}

func parseLabelsJSON(text string) *Labels {
	// Find JSON in response (might be wrapped in markdown code blocks)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return defaultLabels()
	}

	var labels Labels
	if err := json.Unmarshal([]byte(text[start:end+1]), &labels); err != nil {
		return defaultLabels()
	}
	if !labels.DiagnosisInDifferential {
		labels.DiagnosisRank = 0
	}
	labels.AutoLabeled = true
	return &labels
}

func defaultLabels() *Labels {
	return &Labels{}
}

const labelSystemPrompt = `You grade simulated emergency department consultations. Compare a doctor's differential diagnosis with the confirmed diagnosis. Accept synonyms and more specific forms of the same condition. Be conservative.`

func labelPrompt(diagnosis, differential string) string {
	return fmt.Sprintf(`Return ONLY a JSON object with these fields:

{
  "diagnosis_in_differential": true/false,
  "diagnosis_rank": 1-based position of the matching item, or 0
}

Confirmed diagnosis: %s

Doctor's final statement:
%s`, diagnosis, differential)
}
