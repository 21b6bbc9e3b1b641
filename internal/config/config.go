// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.coursechat/config.yaml, or ./config.yaml)
//  3. Default values
//
// Categories:
//   - AI: provider, model, embedder model
//   - Index: vector store backend (embedded chromem or postgres/pgvector)
//   - Chunking: chunk size, overlap
//   - Conversation: history window, answer length cap
//
// Error handling uses sentinel errors for errors.Is() checks.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidBackend indicates the vector index backend is not supported.
	ErrInvalidBackend = errors.New("invalid index backend")

	// ErrInvalidChunking indicates the chunk size/overlap combination is unusable.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidMaxResults indicates the search result limit is out of range.
	ErrInvalidMaxResults = errors.New("invalid max results")

	// ErrInvalidHistory indicates the conversation history bound is out of range.
	ErrInvalidHistory = errors.New("invalid history size")

	// ErrInvalidPostgres indicates incomplete PostgreSQL connection settings.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Vector index backends.
const (
	BackendEmbedded = "embedded" // chromem-go, in-process
	BackendPostgres = "postgres" // pgvector over PostgreSQL
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultChunkSize is the target chunk size in runes.
	DefaultChunkSize = 800

	// DefaultChunkOverlap is the overlap carried between consecutive chunks.
	DefaultChunkOverlap = 100

	// DefaultMaxResults bounds how many chunks a single search returns.
	DefaultMaxResults = 5

	// DefaultHistoryPairs bounds the rolling conversation window per session.
	DefaultHistoryPairs = 2

	// DefaultMaxAnswerTokens caps the model's answer length.
	DefaultMaxAnswerTokens = 800
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider"`
	ModelName     string `mapstructure:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host"`

	// Retrieval configuration
	ChunkSize       int `mapstructure:"chunk_size"`
	ChunkOverlap    int `mapstructure:"chunk_overlap"`
	MaxResults      int `mapstructure:"max_results"`
	HistoryPairs    int `mapstructure:"history_pairs"`
	MaxAnswerTokens int `mapstructure:"max_answer_tokens"`

	// Ingestion configuration
	DocsDir string `mapstructure:"docs_dir"` // auto-ingested at startup when set

	// Index backend selection
	Backend   string `mapstructure:"backend"`
	IndexPath string `mapstructure:"index_path"` // embedded backend persistence dir ("" = in-memory)

	// PostgreSQL settings (postgres backend only)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".coursechat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)
	viper.SetDefault("max_results", DefaultMaxResults)
	viper.SetDefault("history_pairs", DefaultHistoryPairs)
	viper.SetDefault("max_answer_tokens", DefaultMaxAnswerTokens)

	viper.SetDefault("docs_dir", "./docs")

	viper.SetDefault("backend", BackendEmbedded)
	viper.SetDefault("index_path", "")

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "coursechat")
	viper.SetDefault("postgres_password", "coursechat_dev_password")
	viper.SetDefault("postgres_db_name", "coursechat")
	viper.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit plugins,
// not via viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "COURSECHAT_PROVIDER")
	mustBind("model_name", "COURSECHAT_MODEL_NAME")
	mustBind("embedder_model", "COURSECHAT_EMBEDDER_MODEL")
	mustBind("ollama_host", "COURSECHAT_OLLAMA_HOST")
	mustBind("backend", "COURSECHAT_BACKEND")
	mustBind("index_path", "COURSECHAT_INDEX_PATH")
	mustBind("docs_dir", "COURSECHAT_DOCS_DIR")
	mustBind("postgres_host", "COURSECHAT_POSTGRES_HOST")
	mustBind("postgres_port", "COURSECHAT_POSTGRES_PORT")
	mustBind("postgres_user", "COURSECHAT_POSTGRES_USER")
	mustBind("postgres_password", "COURSECHAT_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "COURSECHAT_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "COURSECHAT_POSTGRES_SSL_MODE")
}

// Validate checks the configuration, fail-fast at startup.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (must be gemini, ollama or openai)", ErrInvalidProvider, c.Provider)
	}

	switch c.Backend {
	case BackendEmbedded:
	case BackendPostgres:
		if c.PostgresHost == "" || c.PostgresDBName == "" || c.PostgresUser == "" {
			return fmt.Errorf("%w: host, user and db name are required", ErrInvalidPostgres)
		}
		if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgres, c.PostgresPort)
		}
	default:
		return fmt.Errorf("%w: %q (must be embedded or postgres)", ErrInvalidBackend, c.Backend)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be in [0, chunk size %d)",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}
	if c.MaxResults <= 0 || c.MaxResults > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidMaxResults, c.MaxResults)
	}
	if c.HistoryPairs < 0 || c.HistoryPairs > 50 {
		return fmt.Errorf("%w: must be between 0 and 50, got %d", ErrInvalidHistory, c.HistoryPairs)
	}
	return nil
}

// FullModelName returns the provider-qualified model name for generation.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// A ModelName that already contains "/" is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return "ollama/" + c.ModelName
	case ProviderOpenAI:
		return "openai/" + c.ModelName
	default:
		return "googleai/" + c.ModelName
	}
}

// PostgresURL returns the connection URL used by both pgx and golang-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}
