// Package config loads the process-wide Config once at startup from
// environment variables (with an optional YAML file overlay) and hands it
// down to every component. Provider API keys are read from their named
// variables by Provider.APIKey when called, and internal/logging reads
// LOG_JSON itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree.
type Config struct {
	Server      ServerConfig        `json:"server" yaml:"server"`
	Store       StoreConfig         `json:"store" yaml:"store"`
	Providers   map[string]Provider `json:"providers" yaml:"providers"`
	Chunking    ChunkingConfig      `json:"chunking" yaml:"chunking"`
	Search      SearchConfig        `json:"search" yaml:"search"`
	Transcripts TranscriptsConfig   `json:"transcripts" yaml:"transcripts"`
	Logging     LoggingConfig       `json:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// StoreConfig configures the embedded Store.
type StoreConfig struct {
	Path         string        `json:"path" yaml:"path"`
	BlobDir      string        `json:"blob_dir" yaml:"blob_dir"`
	BusyTimeout  time.Duration `json:"busy_timeout" yaml:"busy_timeout"`
	JournalMode  string        `json:"journal_mode" yaml:"journal_mode"`
	SyncMode     string        `json:"sync_mode" yaml:"sync_mode"`
	MaxOpenConns int           `json:"max_open_conns" yaml:"max_open_conns"`
}

// Provider holds the environment-driven defaults for one ProviderAdapter,
// per spec §4.6 and §9's "environment-driven defaults" design note.
// Adapters receive this struct at construction; they never read the
// environment themselves.
type Provider struct {
	DefaultModelID string        `json:"default_model_id" yaml:"default_model_id"`
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	APIKeyEnv      string        `json:"api_key_env" yaml:"api_key_env"`
	MaxTokens      int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	ReasoningLevel string        `json:"reasoning_level,omitempty" yaml:"reasoning_level,omitempty"`
	ThinkingBudget int           `json:"thinking_budget,omitempty" yaml:"thinking_budget,omitempty"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
	StateExtractPath string      `json:"state_extract_path,omitempty" yaml:"state_extract_path,omitempty"`
}

// APIKey reads the provider's API key from its configured environment
// variable. Returns "" if unset — Mock needs none.
func (p Provider) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// ChunkingConfig configures the Chunker.
type ChunkingConfig struct {
	LineWindow int `json:"line_window" yaml:"line_window"`
}

// SearchConfig configures Search defaults.
type SearchConfig struct {
	DefaultLimit int `json:"default_limit" yaml:"default_limit"`
	MaxLimit     int `json:"max_limit" yaml:"max_limit"`
}

// TranscriptsConfig configures the auto-save side effect.
type TranscriptsConfig struct {
	Dir           string `json:"dir" yaml:"dir"`
	DefaultFormat string `json:"default_format" yaml:"default_format"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Provider family names recognised by pkg/provider's factory.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderXAI       = "xai"
	ProviderMock      = "mock"
)

// Default returns the baseline configuration; Load overlays it with an
// optional YAML file and then environment variables.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Store: StoreConfig{
			Path:         "./data/orchestrator.db",
			BlobDir:      "./data/blobs",
			BusyTimeout:  5 * time.Second,
			JournalMode:  "WAL",
			SyncMode:     "NORMAL",
			MaxOpenConns: 1,
		},
		Providers: map[string]Provider{
			ProviderOpenAI: {
				DefaultModelID: "gpt-4o",
				BaseURL:        "https://api.openai.com/v1/responses",
				APIKeyEnv:      "OPENAI_API_KEY",
				RequestTimeout: 60 * time.Second,
			},
			ProviderAnthropic: {
				DefaultModelID: "claude-sonnet-4-5",
				BaseURL:        "https://api.anthropic.com/v1/messages",
				APIKeyEnv:      "ANTHROPIC_API_KEY",
				MaxTokens:      8192,
				RequestTimeout: 60 * time.Second,
			},
			ProviderGoogle: {
				DefaultModelID:   "gemini-2.5-pro",
				BaseURL:          "https://generativelanguage.googleapis.com/v1beta",
				APIKeyEnv:        "GOOGLE_API_KEY",
				RequestTimeout:   60 * time.Second,
				StateExtractPath: "candidates.0.content.parts.0.thoughtSignature",
			},
			ProviderXAI: {
				DefaultModelID: "grok-4",
				BaseURL:        "https://api.x.ai/v1/chat/completions",
				APIKeyEnv:      "XAI_API_KEY",
				RequestTimeout: 60 * time.Second,
			},
			ProviderMock: {
				DefaultModelID: "mock-echo",
				RequestTimeout: 5 * time.Second,
			},
		},
		Chunking: ChunkingConfig{
			LineWindow: 50,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
		},
		Transcripts: TranscriptsConfig{
			Dir:           "./data/transcripts",
			DefaultFormat: "md",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the Config: defaults, then an optional YAML file (path from
// CONFIG_FILE, if set), then environment variable overrides, then
// validation.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	loadServerEnv(cfg)
	loadStoreEnv(cfg)
	loadProviderEnv(cfg)
	loadChunkingEnv(cfg)
	loadSearchEnv(cfg)
	loadTranscriptsEnv(cfg)
	loadLoggingEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overlayYAML(cfg *Config, path string) error {
	raw, err := os.ReadFile(path) //nolint:gosec // path is operator-configured, not user input
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, cfg)
}

func loadServerEnv(cfg *Config) {
	if v := os.Getenv("ORCH_HOST"); v != "" {
		cfg.Server.Host = v
	}
	setIntFromEnv("ORCH_PORT", &cfg.Server.Port)
	setDurationFromEnv("ORCH_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDurationFromEnv("ORCH_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
}

func loadStoreEnv(cfg *Config) {
	if v := os.Getenv("ORCH_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("ORCH_BLOB_DIR"); v != "" {
		cfg.Store.BlobDir = v
	}
	setDurationFromEnv("ORCH_BUSY_TIMEOUT", &cfg.Store.BusyTimeout)
}

// loadProviderEnv applies per-provider overrides of the shape
// ORCH_PROVIDER_<NAME>_MODEL / _BASE_URL / _API_KEY_ENV / _MAX_TOKENS.
func loadProviderEnv(cfg *Config) {
	for name, p := range cfg.Providers {
		prefix := "ORCH_PROVIDER_" + upperName(name)
		if v := os.Getenv(prefix + "_MODEL"); v != "" {
			p.DefaultModelID = v
		}
		if v := os.Getenv(prefix + "_BASE_URL"); v != "" {
			p.BaseURL = v
		}
		if v := os.Getenv(prefix + "_API_KEY_ENV"); v != "" {
			p.APIKeyEnv = v
		}
		setIntFromEnv(prefix+"_MAX_TOKENS", &p.MaxTokens)
		if v := os.Getenv(prefix + "_STATE_EXTRACT_PATH"); v != "" {
			p.StateExtractPath = v
		}
		cfg.Providers[name] = p
	}
}

func upperName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

func loadChunkingEnv(cfg *Config) {
	setIntFromEnv("ORCH_CHUNK_LINE_WINDOW", &cfg.Chunking.LineWindow)
}

func loadSearchEnv(cfg *Config) {
	setIntFromEnv("ORCH_SEARCH_DEFAULT_LIMIT", &cfg.Search.DefaultLimit)
	setIntFromEnv("ORCH_SEARCH_MAX_LIMIT", &cfg.Search.MaxLimit)
}

func loadTranscriptsEnv(cfg *Config) {
	if v := os.Getenv("ORCH_TRANSCRIPTS_DIR"); v != "" {
		cfg.Transcripts.Dir = v
	}
	if v := os.Getenv("ORCH_TRANSCRIPTS_FORMAT"); v != "" {
		cfg.Transcripts.DefaultFormat = v
	}
}

func loadLoggingEnv(cfg *Config) {
	if v := os.Getenv("ORCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ORCH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func setIntFromEnv(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func setDurationFromEnv(key string, target *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

// Validate checks invariants the rest of the system relies on at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Store.Path == "" {
		return errors.New("store path cannot be empty")
	}
	if c.Store.BlobDir == "" {
		return errors.New("blob directory cannot be empty")
	}
	if c.Chunking.LineWindow <= 0 {
		return errors.New("chunking line window must be positive")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit <= 0 {
		return errors.New("search limits must be positive")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return errors.New("search default limit cannot exceed max limit")
	}
	if _, ok := c.Providers[ProviderMock]; !ok {
		return errors.New("mock provider must always be configured")
	}
	return nil
}

// ProviderNames returns the configured provider family keys, used to
// validate target_models[].provider on the /turn request.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	return names
}
