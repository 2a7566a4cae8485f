package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/patientsim/internal/llm"
)

// Config holds application configuration
type Config struct {
	LogLevel  string
	LogFormat string

	// Models and sampling
	PatientModel       string
	DoctorModel        string
	PatientTemperature float64
	DoctorTemperature  float64
	Seed               int64
	RandomSampling     bool

	// Persona
	VisitType          string
	ProfileID          string
	RandomPersona      bool
	PatientPromptPath  string
	DoctorPromptPath   string
	DoctorGreeting     string
	TopKDiagnosis      int
	DoctorMaxInference int
	StaffPromptPath    string
	StaffGreeting      string
	StaffMaxInference  int

	// Simulation
	// MaxTurns of zero derives the limit from the clinician's budget.
	MaxTurns  int
	TurnDelay time.Duration
	// EndMarker empty selects the visit type's marker.
	EndMarker                 string
	EndMarkerMatch            string
	EndMarkerCaseSensitive    bool
	EnableLLMTerminationCheck bool
	TerminationCheckerModel   string
	TerminationPromptPath     string
	LabelModel                string

	// Provider credentials and routing
	OpenAIAPIKey          string
	AzureOpenAIEndpoint   string
	AzureOpenAIAPIVersion string
	UseAzure              bool
	GoogleAPIKey          string
	GenAIProjectID        string
	GenAIProjectLocation  string
	GenAICredentialPath   string
	UseVertex             bool
	AnthropicAPIKey       string
	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string

	// Dataset
	DatasetPath       string
	DatasetDir        string
	DatasetVersion    string
	PhysioNetUsername string
	PhysioNetPassword string

	// Archive
	ArchiveBucket string
	ArchiveDir    string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		PatientModel:       getEnv("PATIENT_MODEL", "gemini-2.5-flash"),
		DoctorModel:        getEnv("DOCTOR_MODEL", "gemini-2.5-flash"),
		PatientTemperature: getEnvAsFloat("PATIENT_TEMPERATURE", 0.7),
		DoctorTemperature:  getEnvAsFloat("DOCTOR_TEMPERATURE", 0.2),
		Seed:               getEnvAsInt64("RANDOM_SEED", 42),
		RandomSampling:     getEnvAsBool("RANDOM_SAMPLING", false),

		VisitType:          strings.ToLower(strings.TrimSpace(getEnv("VISIT_TYPE", "emergency_department"))),
		ProfileID:          getEnv("PROFILE_ID", ""),
		RandomPersona:      getEnvAsBool("RANDOM_PERSONA", false),
		PatientPromptPath:  getEnv("PATIENT_PROMPT_PATH", ""),
		DoctorPromptPath:   getEnv("DOCTOR_PROMPT_PATH", ""),
		DoctorGreeting:     getEnv("DOCTOR_GREETING", "Hello, how can I help you?"),
		TopKDiagnosis:      getEnvAsInt("TOP_K_DIAGNOSIS", 5),
		DoctorMaxInference: getEnvAsInt("DOCTOR_MAX_INFERENCES", 15),
		StaffPromptPath:    getEnv("STAFF_PROMPT_PATH", ""),
		StaffGreeting:      getEnv("STAFF_GREETING", ""),
		StaffMaxInference:  getEnvAsInt("STAFF_MAX_INFERENCES", 5),

		MaxTurns:                  getEnvAsInt("MAX_TURNS", 0),
		TurnDelay:                 getEnvAsDuration("TURN_DELAY", time.Second),
		EndMarker:                 getEnv("END_MARKER", ""),
		EndMarkerMatch:            strings.ToLower(getEnv("END_MARKER_MATCH", "substring")),
		EndMarkerCaseSensitive:    getEnvAsBool("END_MARKER_CASE_SENSITIVE", false),
		EnableLLMTerminationCheck: getEnvAsBool("ENABLE_LLM_TERMINATION_CHECK", false),
		TerminationCheckerModel:   getEnv("TERMINATION_CHECKER_MODEL", "gemini-2.5-flash"),
		TerminationPromptPath:     getEnv("TERMINATION_PROMPT_PATH", ""),
		LabelModel:                getEnv("LABEL_MODEL", ""),

		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		AzureOpenAIEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-10-21"),
		UseAzure:              getEnvAsBool("USE_AZURE", false),
		GoogleAPIKey:          getEnv("GOOGLE_API_KEY", ""),
		GenAIProjectID:        getEnv("GENAI_PROJECT_ID", ""),
		GenAIProjectLocation:  getEnv("GENAI_PROJECT_LOCATION", ""),
		GenAICredentialPath:   getEnv("GENAI_CREDENTIAL_PATH", ""),
		UseVertex:             getEnvAsBool("USE_VERTEX", false),
		AnthropicAPIKey:       getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		DatasetPath:       getEnv("DATASET_PATH", ""),
		DatasetDir:        getEnv("DATASET_DIR", "data"),
		DatasetVersion:    getEnv("DATASET_VERSION", "1.0.0"),
		PhysioNetUsername: getEnv("PHYSIONET_USERNAME", ""),
		PhysioNetPassword: getEnv("PHYSIONET_PASSWORD", ""),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),
		ArchiveDir:    getEnv("ARCHIVE_DIR", ""),
	}
}

// Routing returns the provider routing flags.
func (c *Config) Routing() llm.Routing {
	return llm.Routing{UseAzure: c.UseAzure, UseVertex: c.UseVertex}
}

// ProviderConfig returns the explicit credentials consumed by agents. The
// AWS SDK config is attached by the caller.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Routing:              c.Routing(),
		OpenAIAPIKey:         c.OpenAIAPIKey,
		AzureEndpoint:        c.AzureOpenAIEndpoint,
		AzureAPIVersion:      c.AzureOpenAIAPIVersion,
		GoogleAPIKey:         c.GoogleAPIKey,
		VertexProject:        c.GenAIProjectID,
		VertexLocation:       c.GenAIProjectLocation,
		VertexCredentialPath: c.GenAICredentialPath,
		AnthropicAPIKey:      c.AnthropicAPIKey,
		AWSRegion:            c.AWSRegion,
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
