package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Workflow WorkflowConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	EmbedCaseTopic     string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama" or "jina"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "ollama" or "huggingface"
	LLMModel          string // e.g. "llama3", "qwen2.5"
	GeminiAPIKey      string
	JinaAPIKey        string
	HuggingFaceAPIKey string
}

// WorkflowConfig carries the tunables of the coding pipeline. Thresholds and
// multipliers are per intent; the exact values are deployment configuration,
// not code (see .env.example).
type WorkflowConfig struct {
	TopK int

	// Minimum acceptable confidence per intent. Below the threshold the
	// router takes the reasoning fallback branch.
	ThresholdDiagnostic float64
	ThresholdProcedural float64
	ThresholdSymptom    float64
	ThresholdCodeLookup float64
	ThresholdGeneral    float64

	// Confidence multipliers per intent. Diagnostic and procedural queries
	// carry a boost reflecting their clinical criticality.
	MultiplierDiagnostic float64
	MultiplierProcedural float64
	MultiplierSymptom    float64
	MultiplierCodeLookup float64
	MultiplierGeneral    float64

	// Bounded per-call deadlines for the external collaborators.
	ClassifyTimeout time.Duration
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	ReasonTimeout   time.Duration

	// Embedding memo cache (identical text embeds identically within a
	// session, so repeated queries skip the provider).
	EmbedCacheTTL time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			EmbedCaseTopic:     getEnv("EMBED_CASE_TOPIC_NAME", "EMBED_CODED_CASE"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			GeminiAPIKey:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
			JinaAPIKey:        getEnv("JINA_API_KEY", ""),
			HuggingFaceAPIKey: getEnv("HF_API_KEY", ""),
		},
		Workflow: WorkflowConfig{
			TopK: getEnvAsInt("WORKFLOW_TOP_K", 5),

			ThresholdDiagnostic: getEnvAsFloat("WORKFLOW_THRESHOLD_DIAGNOSTIC", 0.60),
			ThresholdProcedural: getEnvAsFloat("WORKFLOW_THRESHOLD_PROCEDURAL", 0.60),
			ThresholdSymptom:    getEnvAsFloat("WORKFLOW_THRESHOLD_SYMPTOM", 0.50),
			ThresholdCodeLookup: getEnvAsFloat("WORKFLOW_THRESHOLD_CODE_LOOKUP", 0.65),
			ThresholdGeneral:    getEnvAsFloat("WORKFLOW_THRESHOLD_GENERAL", 0.45),

			MultiplierDiagnostic: getEnvAsFloat("WORKFLOW_MULTIPLIER_DIAGNOSTIC", 1.15),
			MultiplierProcedural: getEnvAsFloat("WORKFLOW_MULTIPLIER_PROCEDURAL", 1.10),
			MultiplierSymptom:    getEnvAsFloat("WORKFLOW_MULTIPLIER_SYMPTOM", 1.0),
			MultiplierCodeLookup: getEnvAsFloat("WORKFLOW_MULTIPLIER_CODE_LOOKUP", 1.0),
			MultiplierGeneral:    getEnvAsFloat("WORKFLOW_MULTIPLIER_GENERAL", 1.0),

			ClassifyTimeout: getEnvAsDuration("WORKFLOW_CLASSIFY_TIMEOUT", 15*time.Second),
			EmbedTimeout:    getEnvAsDuration("WORKFLOW_EMBED_TIMEOUT", 20*time.Second),
			SearchTimeout:   getEnvAsDuration("WORKFLOW_SEARCH_TIMEOUT", 10*time.Second),
			ReasonTimeout:   getEnvAsDuration("WORKFLOW_REASON_TIMEOUT", 90*time.Second),

			EmbedCacheTTL: getEnvAsDuration("WORKFLOW_EMBED_CACHE_TTL", time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
