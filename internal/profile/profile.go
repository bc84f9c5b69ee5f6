package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where conceptlens stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// AI Configuration
	AIEnabled             bool    // CONCEPTLENS_AI_ENABLED
	AIEmbeddingProvider   string  // CONCEPTLENS_AI_EMBEDDING_PROVIDER (default: siliconflow)
	AIEmbeddingModel      string  // CONCEPTLENS_AI_EMBEDDING_MODEL (default: BAAI/bge-m3)
	AIEmbeddingDimensions int     // CONCEPTLENS_AI_EMBEDDING_DIMENSIONS (default: 1024)
	AISiliconFlowAPIKey   string  // CONCEPTLENS_AI_SILICONFLOW_API_KEY
	AISiliconFlowBaseURL  string  // CONCEPTLENS_AI_SILICONFLOW_BASE_URL (default: https://api.siliconflow.cn/v1)
	AIOpenAIAPIKey        string  // CONCEPTLENS_AI_OPENAI_API_KEY
	AIOpenAIBaseURL       string  // CONCEPTLENS_AI_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	AIOllamaBaseURL       string  // CONCEPTLENS_AI_OLLAMA_BASE_URL (default: http://localhost:11434/v1)
	AIEmbeddingRateLimit  float64 // CONCEPTLENS_AI_EMBEDDING_RATE_LIMIT, requests per second, 0 disables (default: 10)
	AIEmbeddingCacheSize  int     // CONCEPTLENS_AI_EMBEDDING_CACHE_SIZE, vectors kept in memory, 0 disables (default: 1000)

	// AnalyzeConcurrency bounds the concepts analyzed in parallel in one batch.
	AnalyzeConcurrency int // CONCEPTLENS_ANALYZE_CONCURRENCY (default: 4)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if AI is enabled and the selected embedding provider is reachable.
func (p *Profile) IsAIEnabled() bool {
	if !p.AIEnabled {
		return false
	}
	switch p.AIEmbeddingProvider {
	case "siliconflow":
		return p.AISiliconFlowAPIKey != ""
	case "openai":
		return p.AIOpenAIAPIKey != ""
	case "ollama":
		return p.AIOllamaBaseURL != ""
	default:
		return false
	}
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// FromEnv loads the AI configuration from CONCEPTLENS_* environment variables.
func (p *Profile) FromEnv() {
	p.AIEnabled = os.Getenv("CONCEPTLENS_AI_ENABLED") == "true"
	p.AIEmbeddingProvider = getEnvOrDefault("CONCEPTLENS_AI_EMBEDDING_PROVIDER", "siliconflow")
	p.AIEmbeddingModel = getEnvOrDefault("CONCEPTLENS_AI_EMBEDDING_MODEL", "BAAI/bge-m3")
	p.AIEmbeddingDimensions = getIntEnvOrDefault("CONCEPTLENS_AI_EMBEDDING_DIMENSIONS", 1024)
	p.AISiliconFlowAPIKey = os.Getenv("CONCEPTLENS_AI_SILICONFLOW_API_KEY")
	p.AISiliconFlowBaseURL = getEnvOrDefault("CONCEPTLENS_AI_SILICONFLOW_BASE_URL", "https://api.siliconflow.cn/v1")
	p.AIOpenAIAPIKey = os.Getenv("CONCEPTLENS_AI_OPENAI_API_KEY")
	p.AIOpenAIBaseURL = getEnvOrDefault("CONCEPTLENS_AI_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.AIOllamaBaseURL = getEnvOrDefault("CONCEPTLENS_AI_OLLAMA_BASE_URL", "http://localhost:11434/v1")
	p.AIEmbeddingRateLimit = getFloatEnvOrDefault("CONCEPTLENS_AI_EMBEDDING_RATE_LIMIT", 10)
	p.AIEmbeddingCacheSize = getIntEnvOrDefault("CONCEPTLENS_AI_EMBEDDING_CACHE_SIZE", 1000)
	p.AnalyzeConcurrency = getIntEnvOrDefault("CONCEPTLENS_ANALYZE_CONCURRENCY", 4)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a dsn")
	}
	if p.AnalyzeConcurrency <= 0 {
		p.AnalyzeConcurrency = 1
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "conceptlens")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/conceptlens"
		}
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("conceptlens_%s.db", p.Mode))
	}

	return nil
}
