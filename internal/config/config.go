package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the graphRAG query engine configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Graph     GraphConfig     `yaml:"graph"`
	Auth      AuthConfig      `yaml:"auth"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Query     QueryConfig     `yaml:"query"`
	Session   SessionConfig   `yaml:"session"`
	Audit     AuditConfig     `yaml:"audit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings (vector index, sessions, audit).
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// GraphConfig holds the embedded graph store settings.
type GraphConfig struct {
	Path string `yaml:"path"` // empty = in-memory (tests, local seeding)
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// LLMConfig holds the chat completion provider settings.
type LLMConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	MaxTokens  int    `yaml:"max_tokens"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// QueryConfig holds retrieval and confidence policy parameters. The agreement
// bonus and confidence thresholds are tunable policy, not fixed semantics.
type QueryConfig struct {
	HopLimit            int     `yaml:"hop_limit"`
	GraphLimit          int     `yaml:"graph_limit"`
	VectorTopK          int     `yaml:"vector_top_k"`
	BackfillAttempts    int     `yaml:"backfill_attempts"`
	EvidenceCap         int     `yaml:"evidence_cap"`
	AgreementBonus      float64 `yaml:"agreement_bonus"`
	HighRelevance       float64 `yaml:"high_relevance"`
	MinEvidence         int     `yaml:"min_evidence"`
	RetrieverTimeoutSec int     `yaml:"retriever_timeout_sec"`
}

// SessionConfig holds conversation memory settings.
type SessionConfig struct {
	MaxTurns     int `yaml:"max_turns"`
	ContextTurns int `yaml:"context_turns"`
	IdleTTLMin   int `yaml:"idle_ttl_min"`
}

// AuditConfig holds audit log retention settings.
type AuditConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 30
	}
	if c.Query.HopLimit <= 0 {
		c.Query.HopLimit = 3
	}
	if c.Query.GraphLimit <= 0 {
		c.Query.GraphLimit = 25
	}
	if c.Query.VectorTopK <= 0 {
		c.Query.VectorTopK = 10
	}
	if c.Query.BackfillAttempts <= 0 {
		c.Query.BackfillAttempts = 3
	}
	if c.Query.EvidenceCap <= 0 {
		c.Query.EvidenceCap = 20
	}
	if c.Query.AgreementBonus <= 0 {
		c.Query.AgreementBonus = 0.1
	}
	if c.Query.HighRelevance <= 0 {
		c.Query.HighRelevance = 0.75
	}
	if c.Query.MinEvidence <= 0 {
		c.Query.MinEvidence = 2
	}
	if c.Query.RetrieverTimeoutSec <= 0 {
		c.Query.RetrieverTimeoutSec = 5
	}
	if c.Session.MaxTurns <= 0 {
		c.Session.MaxTurns = 10
	}
	if c.Session.ContextTurns <= 0 {
		c.Session.ContextTurns = 3
	}
	if c.Session.IdleTTLMin <= 0 {
		c.Session.IdleTTLMin = 30
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = 90
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Query.AgreementBonus >= 1 {
		return fmt.Errorf("query.agreement_bonus must be below 1, got %v", c.Query.AgreementBonus)
	}
	if c.Query.HighRelevance > 1 {
		return fmt.Errorf("query.high_relevance must be at most 1, got %v", c.Query.HighRelevance)
	}
	if c.Session.ContextTurns > c.Session.MaxTurns {
		return fmt.Errorf("session.context_turns must not exceed session.max_turns")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
