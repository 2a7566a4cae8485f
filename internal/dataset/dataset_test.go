package dataset

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/pkg/logging"
)

const sampleArray = `[
  {"hadm_id": "20001", "age": "54", "gender": "M", "chiefcomplaint": "chest pain", "diagnosis": "NSTEMI",
   "persona": {"personality": "impatient", "recall_level": "low", "confusion_level": "normal", "lang_proficiency_level": "B"}},
  {"hadm_id": "20002", "age": "31", "gender": "F", "chiefcomplaint": "headache", "diagnosis": "Migraine"},
  {"hadm_id": "20003", "age": "77", "gender": "F", "chiefcomplaint": "fall", "diagnosis": "Hip fracture"}
]`

func TestParseProfilesArray(t *testing.T) {
	profiles, err := ParseProfiles(strings.NewReader(sampleArray))
	require.NoError(t, err)
	require.Len(t, profiles, 3)

	p, err := profiles.ByID("20001")
	require.NoError(t, err)
	assert.Equal(t, "chest pain", p.ChiefComplaint)
	assert.Equal(t, persona.PersonalityImpatient, p.Traits.Personality)
	assert.Equal(t, persona.ProficiencyIndependent, p.Traits.Proficiency)

	_, err = profiles.ByID("99999")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestParseProfilesObject(t *testing.T) {
	profiles, err := ParseProfiles(strings.NewReader(`{"b": {"age": "40"}, "a": {"age": "20"}}`))
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "a", profiles[0].ID)
	assert.Equal(t, "b", profiles[1].ID)
}

func TestParseProfilesErrors(t *testing.T) {
	_, err := ParseProfiles(strings.NewReader("  "))
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = ParseProfiles(strings.NewReader("[]"))
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = ParseProfiles(strings.NewReader("[{"))
	assert.Error(t, err)
}

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProfileFile)
	require.NoError(t, os.WriteFile(path, []byte(sampleArray), 0o600))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)

	_, err = LoadProfiles(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPickDeterministic(t *testing.T) {
	profiles, err := ParseProfiles(strings.NewReader(sampleArray))
	require.NoError(t, err)

	for seed := uint64(0); seed < 20; seed++ {
		a, err := profiles.Pick(seed)
		require.NoError(t, err)
		b, err := profiles.Pick(seed)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}

	_, err = Profiles(nil).Pick(1)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestDownloadProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/1.0.0/patient_profile.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleArray))
	}))
	defer srv.Close()

	d := NewDownloader("alice", "secret", WithBaseURL(srv.URL+"/"), WithLogger(logging.Discard()))
	var buf bytes.Buffer
	n, err := d.DownloadProfile(context.Background(), "", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(sampleArray)), n)
	assert.Equal(t, sampleArray, buf.String())

	_, err = d.DownloadProfile(context.Background(), "2.0.0", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	bad := NewDownloader("alice", "wrong", WithBaseURL(srv.URL), WithLogger(logging.Discard()))
	_, err = bad.DownloadProfile(context.Background(), "1.0.0", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrAuthentication)

	anon := NewDownloader("", "", WithBaseURL(srv.URL), WithLogger(logging.Discard()))
	_, err = anon.DownloadProfile(context.Background(), "1.0.0", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestDownloadProfileForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewDownloader("alice", "secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithLogger(logging.Discard()))
	_, err := d.DownloadProfile(context.Background(), "1.0.0", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestDownloadProfileTo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleArray))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "data")
	d := NewDownloader("alice", "secret", WithBaseURL(srv.URL), WithLogger(logging.Discard()))
	path, err := d.DownloadProfileTo(context.Background(), "1.0.0", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ProfileFile), path)

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
