package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/wolfman30/patientsim/cmd/mainconfig"
	"github.com/wolfman30/patientsim/internal/agent"
	"github.com/wolfman30/patientsim/internal/archive"
	appconfig "github.com/wolfman30/patientsim/internal/config"
	"github.com/wolfman30/patientsim/internal/dataset"
	"github.com/wolfman30/patientsim/internal/llm"
	"github.com/wolfman30/patientsim/internal/observability/metrics"
	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/internal/simulation"
	"github.com/wolfman30/patientsim/internal/transcript"
	"github.com/wolfman30/patientsim/pkg/logging"
)

// applyFlags overrides environment settings with explicitly set flags.
func applyFlags(cmd *cli.Command, cfg *appconfig.Config) {
	if cmd.IsSet("visit-type") {
		cfg.VisitType = cmd.String("visit-type")
	}
	if cmd.IsSet("patient-model") {
		cfg.PatientModel = cmd.String("patient-model")
	}
	if cmd.IsSet("doctor-model") {
		cfg.DoctorModel = cmd.String("doctor-model")
	}
	if cmd.IsSet("profile-id") {
		cfg.ProfileID = cmd.String("profile-id")
	}
	if cmd.IsSet("dataset") {
		cfg.DatasetPath = cmd.String("dataset")
	}
	if cmd.IsSet("max-turns") {
		cfg.MaxTurns = cmd.Int("max-turns")
	}
	if cmd.IsSet("seed") {
		cfg.Seed = cmd.Int64("seed")
	}
	if cmd.IsSet("random-persona") {
		cfg.RandomPersona = cmd.Bool("random-persona")
	}
	if cmd.IsSet("random-sampling") {
		cfg.RandomSampling = cmd.Bool("random-sampling")
	}
	if cmd.IsSet("turn-delay") {
		cfg.TurnDelay = cmd.Duration("turn-delay")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
}

func datasetPath(cfg *appconfig.Config) string {
	if cfg.DatasetPath != "" {
		return cfg.DatasetPath
	}
	return filepath.Join(cfg.DatasetDir, dataset.ProfileFile)
}

// selectProfile returns the configured profile, or one picked by seed.
func selectProfile(profiles dataset.Profiles, cfg *appconfig.Config) (persona.PatientProfile, error) {
	if cfg.ProfileID != "" {
		return profiles.ByID(cfg.ProfileID)
	}
	return profiles.Pick(uint64(cfg.Seed))
}

func selectTraits(profile persona.PatientProfile, cfg *appconfig.Config) persona.Traits {
	if cfg.RandomPersona {
		return persona.RandomTraits(uint64(cfg.Seed))
	}
	return profile.Traits.WithDefaults()
}

func loadOptionalTemplate(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return persona.LoadTemplateFile(path)
}

// needsAWS reports whether any configured model or the archive bucket
// requires an AWS SDK config.
func needsAWS(cfg *appconfig.Config) bool {
	if cfg.ArchiveBucket != "" {
		return true
	}
	for _, model := range []string{cfg.PatientModel, cfg.DoctorModel, cfg.TerminationCheckerModel, cfg.LabelModel} {
		if model == "" {
			continue
		}
		if family, err := llm.ResolveFamily(model, cfg.Routing()); err == nil && family == llm.FamilyBedrock {
			return true
		}
	}
	return false
}

// newAuxClient builds an instrumented client for the termination checker
// or the labeler.
func newAuxClient(ctx context.Context, model string, provider llm.ProviderConfig, logger *logging.Logger, m *metrics.ProviderMetrics) (llm.Client, error) {
	family, err := llm.ResolveFamily(model, provider.Routing)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(ctx, family, provider, logger)
	if err != nil {
		return nil, err
	}
	return llm.Instrument(client, family, m), nil
}

type recordArchiver interface {
	archive.Archiver
	Enabled() bool
}

func newArchiver(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) recordArchiver {
	if cfg.ArchiveBucket != "" && awsCfg != nil {
		return archive.NewStore(mainconfig.NewS3Client(*awsCfg, cfg), cfg.ArchiveBucket, logger)
	}
	return archive.NewFileStore(cfg.ArchiveDir, logger)
}

func cmdRun(ctx context.Context, cmd *cli.Command) error {
	cfg := appconfig.Load()
	applyFlags(cmd, cfg)
	logger := logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	profiles, err := dataset.LoadProfiles(datasetPath(cfg))
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	profile, err := selectProfile(profiles, cfg)
	if err != nil {
		return err
	}
	traits := selectTraits(profile, cfg)

	patientTmpl, err := loadOptionalTemplate(cfg.PatientPromptPath)
	if err != nil {
		return err
	}
	terminationTmpl, err := loadOptionalTemplate(cfg.TerminationPromptPath)
	if err != nil {
		return err
	}

	provider := cfg.ProviderConfig()
	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		awsCfg = &loaded
		provider.AWS = awsCfg
	}

	registry := prometheus.NewRegistry()
	providerMetrics := metrics.NewProviderMetrics(registry)
	simMetrics := metrics.NewSimulationMetrics(registry)

	sampling := func(temp float64) agent.Sampling {
		return agent.Sampling{
			Temperature:    agent.Temperature(float32(temp)),
			Seed:           cfg.Seed,
			RandomSampling: cfg.RandomSampling,
		}
	}

	patient, err := agent.NewPatientAgent(ctx, agent.PatientConfig{
		Config: agent.Config{
			Model:    cfg.PatientModel,
			Sampling: sampling(cfg.PatientTemperature),
			Provider: provider,
			Logger:   logger,
			Metrics:  providerMetrics,
		},
		VisitType:      cfg.VisitType,
		Profile:        profile,
		Traits:         traits,
		PromptTemplate: patientTmpl,
	})
	if err != nil {
		return err
	}

	doctor, err := newClinicianAgent(ctx, cfg, patient.VisitType(), agent.Config{
		Model:    cfg.DoctorModel,
		Sampling: sampling(cfg.DoctorTemperature),
		Provider: provider,
		Logger:   logger,
		Metrics:  providerMetrics,
	}, profile)
	if err != nil {
		return err
	}

	var checker simulation.TerminationChecker
	if cfg.EnableLLMTerminationCheck {
		client, err := newAuxClient(ctx, cfg.TerminationCheckerModel, provider, logger, providerMetrics)
		if err != nil {
			return fmt.Errorf("termination checker: %w", err)
		}
		if checker, err = simulation.NewLLMChecker(client, cfg.TerminationCheckerModel, patient.VisitType(), terminationTmpl); err != nil {
			return err
		}
	}

	match, err := simulation.ParseMatchMode(cfg.EndMarkerMatch)
	if err != nil {
		return err
	}

	plain := cmd.Bool("plain")
	sim, err := simulation.New(patient, doctor, simulation.Config{
		MaxTurns:    cfg.MaxTurns,
		OpeningLine: doctor.Greeting(),
		End:         endCondition(cfg, doctor, match),
		Checker:     checker,
		TurnDelay:   cfg.TurnDelay,
		Reporter:    newTurnPrinter(os.Stdout, plain),
		Logger:      logger,
		Metrics:     simMetrics,
	})
	if err != nil {
		return err
	}

	logger.Info("simulation configured",
		"profile_id", profile.ID,
		"visit_type", string(patient.VisitType()),
		"patient_model", patient.Model(),
		"clinician", string(doctor.Role()),
		"doctor_model", doctor.Model(),
		"max_turns", sim.MaxTurns(),
		"clinician_max_inferences", sim.Doctor().MaxInferences(),
	)

	started := time.Now()
	tr, simErr := sim.Simulate(ctx)
	finished := time.Now()
	turns := tr.Turns()

	if path := cmd.String("output"); path != "" {
		if err := writeTranscript(path, turns); err != nil {
			logger.Error("failed to write transcript", "path", path, "error", err)
		}
	}

	archiver := newArchiver(cfg, awsCfg, logger)
	if archiver.Enabled() {
		// A separate context so an interrupted run is still archived.
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()

		record := archive.NewRecord(archive.RunInput{
			RunID:          runID,
			StartedAt:      started,
			FinishedAt:     finished,
			PatientModel:   patient.Model(),
			DoctorModel:    doctor.Model(),
			ClinicianRole:  doctor.Role(),
			VisitType:      string(patient.VisitType()),
			Profile:        profile,
			Traits:         traits,
			Seed:           cfg.Seed,
			RandomSampling: cfg.RandomSampling,
			MaxTurns:       sim.MaxTurns(),
			Outcome:        string(sim.Outcome()),
			Err:            simErr,
			Turns:          turns,
			PatientUsage:   sim.Usage(transcript.RolePatient),
			ClinicianUsage: sim.Usage(doctor.Role()),
		})
		// Only a doctor's differential can be graded against the diagnosis.
		if cfg.LabelModel != "" && simErr == nil && doctor.Role() == transcript.RoleDoctor {
			record.Labels = labelRun(archiveCtx, cfg.LabelModel, provider, logger, providerMetrics, profile.Diagnosis, turns)
		}
		if key, err := archiver.Archive(archiveCtx, record); err != nil {
			logger.Error("failed to archive simulation", "error", err)
		} else {
			logger.Info("simulation archived", "key", key)
		}
	}

	logMetrics(logger, registry)

	if simErr != nil {
		if errors.Is(simErr, context.Canceled) {
			return fmt.Errorf("interrupted after %d turns: %w", len(turns), simErr)
		}
		return simErr
	}
	return nil
}

// newClinicianAgent builds the agent that receives the patient: the
// physician for emergency department visits, reception staff for
// outpatient ones.
func newClinicianAgent(ctx context.Context, cfg *appconfig.Config, visit persona.VisitType, base agent.Config, profile persona.PatientProfile) (*agent.Agent, error) {
	if visit == persona.VisitOutpatient {
		tmpl, err := loadOptionalTemplate(cfg.StaffPromptPath)
		if err != nil {
			return nil, err
		}
		return agent.NewStaffAgent(ctx, agent.StaffConfig{
			Config:         base,
			MaxInferences:  cfg.StaffMaxInference,
			Greeting:       cfg.StaffGreeting,
			PromptTemplate: tmpl,
		})
	}
	tmpl, err := loadOptionalTemplate(cfg.DoctorPromptPath)
	if err != nil {
		return nil, err
	}
	return agent.NewDoctorAgent(ctx, agent.DoctorConfig{
		Config:         base,
		MaxInferences:  cfg.DoctorMaxInference,
		TopKDiagnosis:  cfg.TopKDiagnosis,
		Greeting:       cfg.DoctorGreeting,
		Triage:         profile.Triage(),
		PromptTemplate: tmpl,
	})
}

// endCondition matches the clinician's turns against the configured
// marker, or the visit's own marker when none is configured.
func endCondition(cfg *appconfig.Config, clinician *agent.Agent, match simulation.MatchMode) simulation.EndCondition {
	marker := cfg.EndMarker
	if marker == "" {
		marker = clinician.VisitType().EndMarker()
	}
	return simulation.EndCondition{
		Marker:        marker,
		Match:         match,
		CaseSensitive: cfg.EndMarkerCaseSensitive,
		Roles:         []transcript.Role{clinician.Role()},
	}
}

func labelRun(ctx context.Context, model string, provider llm.ProviderConfig, logger *logging.Logger, m *metrics.ProviderMetrics, diagnosis string, turns []transcript.Turn) *archive.Labels {
	client, err := newAuxClient(ctx, model, provider, logger, m)
	if err != nil {
		logger.Warn("labeler unavailable", "model", model, "error", err)
		return nil
	}
	labels, err := archive.NewLabeler(client, model, logger).Label(ctx, diagnosis, turns)
	if err != nil {
		logger.Warn("labeling failed", "model", model, "error", err)
		return nil
	}
	return labels
}

func writeTranscript(path string, turns []transcript.Turn) error {
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// logMetrics writes a debug summary of every counter and histogram the run
// recorded.
func logMetrics(logger *logging.Logger, registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs := []any{"metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				attrs = append(attrs, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				attrs = append(attrs, "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			}
			logger.Debug("run metric", attrs...)
		}
	}
}
