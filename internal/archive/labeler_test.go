package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/patientsim/internal/llm"
	"github.com/wolfman30/patientsim/internal/transcript"
	"github.com/wolfman30/patientsim/pkg/logging"
)

var gradedTurns = []transcript.Turn{
	{Role: transcript.RoleDoctor, Text: "Hello, how can I help you?", Ordinal: 0},
	{Role: transcript.RolePatient, Text: "Crushing chest pain.", Ordinal: 1},
	{Role: transcript.RoleDoctor, Text: "[DDX] 1. Unstable angina 2. NSTEMI 3. Pericarditis", Ordinal: 2},
	{Role: transcript.RolePatient, Text: "Okay.", Ordinal: 3},
}

func TestLabeler_LLMLabel(t *testing.T) {
	var got llm.Request
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
		got = req
		return llm.Response{Text: "```json\n{\"diagnosis_in_differential\": true, \"diagnosis_rank\": 2}\n```"}, nil
	})
	l := NewLabeler(client, "claude-haiku-4-5", logging.Discard())

	labels, err := l.Label(context.Background(), "NSTEMI", gradedTurns)
	require.NoError(t, err)
	assert.True(t, labels.DiagnosisInDifferential)
	assert.Equal(t, 2, labels.DiagnosisRank)
	assert.True(t, labels.AutoLabeled)
	assert.Equal(t, "claude-haiku-4-5", labels.LabelModel)
	assert.Contains(t, got.Messages[0].Content, "Pericarditis")
	assert.Contains(t, got.Messages[0].Content, "Confirmed diagnosis: NSTEMI")
}

func TestLabeler_Defaults(t *testing.T) {
	labels, err := NewLabeler(nil, "", logging.Discard()).Label(context.Background(), "NSTEMI", gradedTurns)
	require.NoError(t, err)
	assert.False(t, labels.AutoLabeled)

	called := false
	client := llm.ClientFunc(func(context.Context, llm.Request) (llm.Response, error) {
		called = true
		return llm.Response{}, nil
	})
	labels, err = NewLabeler(client, "m", logging.Discard()).Label(context.Background(), "", gradedTurns)
	require.NoError(t, err)
	assert.False(t, labels.AutoLabeled)
	assert.False(t, called)
}

func TestLabeler_Error(t *testing.T) {
	boom := errors.New("throttled")
	client := llm.ClientFunc(func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{}, boom
	})
	_, err := NewLabeler(client, "m", logging.Discard()).Label(context.Background(), "NSTEMI", gradedTurns)
	assert.ErrorIs(t, err, boom)
}

func TestParseLabelsJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		inDDX   bool
		rank    int
		labeled bool
	}{
		{"plain json", `{"diagnosis_in_differential":true,"diagnosis_rank":1}`, true, 1, true},
		{"absent clears rank", `{"diagnosis_in_differential":false,"diagnosis_rank":3}`, false, 0, true},
		{"garbage", "no json here", false, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := parseLabelsJSON(tt.input)
			assert.Equal(t, tt.inDDX, labels.DiagnosisInDifferential)
			assert.Equal(t, tt.rank, labels.DiagnosisRank)
			assert.Equal(t, tt.labeled, labels.AutoLabeled)
		})
	}
}
