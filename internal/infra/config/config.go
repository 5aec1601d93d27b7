package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	LLM     LLMConfig     `yaml:"llm"`
	Store   StoreConfig   `yaml:"store"`
	Limits  LimitsConfig  `yaml:"limits"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
}

// GatewayConfig holds HTTP gateway settings.
type GatewayConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	TrustedProxies []string      `yaml:"trusted_proxies,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Production     bool          `yaml:"production"`
	Auth           AuthConfig    `yaml:"auth"`
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig maps a single bearer token to a user identity.
type TokenConfig struct {
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	Provider       ProviderConfig       `yaml:"provider"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderConfig holds settings for the chat-completion provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
}

// CircuitBreakerConfig holds circuit breaker settings for the LLM provider.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// StoreConfig holds document store settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LimitsConfig holds admission control settings.
type LimitsConfig struct {
	// Per-user sliding window applied before any tool runs.
	UserRequests int           `yaml:"user_requests"`
	UserWindow   time.Duration `yaml:"user_window"`

	// Per-IP token bucket applied at the HTTP edge.
	IPRequestsPerMin int `yaml:"ip_requests_per_min"`
	IPBurst          int `yaml:"ip_burst"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
	Output string `yaml:"output"` // "stdout", "stderr", or a file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// Defaults returns a Config populated with sensible defaults.
func Defaults() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 5 * time.Minute,
		},
		LLM: LLMConfig{
			Provider: ProviderConfig{
				Name:        "openai",
				BaseURL:     "https://api.openai.com/v1",
				Model:       "gpt-4o",
				MaxTokens:   4096,
				ConnTimeout: 30 * time.Second,
				RespTimeout: 120 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Store: StoreConfig{
			Path: "./data/canvas.db",
		},
		Limits: LimitsConfig{
			UserRequests:     10,
			UserWindow:       time.Minute,
			IPRequestsPerMin: 120,
			IPBurst:          30,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error; defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps CANVASAI_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CANVASAI_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("CANVASAI_LLM_API_KEY"); v != "" {
		cfg.LLM.Provider.APIKey = v
	}
	if v := os.Getenv("CANVASAI_LLM_BASE_URL"); v != "" {
		cfg.LLM.Provider.BaseURL = v
	}
	if v := os.Getenv("CANVASAI_LLM_MODEL"); v != "" {
		cfg.LLM.Provider.Model = v
	}
	if v := os.Getenv("CANVASAI_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CANVASAI_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CANVASAI_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("CANVASAI_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("CANVASAI_LIMITS_USER_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Limits.UserRequests = n
		}
	}
	if v := os.Getenv("CANVASAI_LIMITS_USER_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Limits.UserWindow = d
		}
	}
	if v := os.Getenv("CANVASAI_PRODUCTION"); v == "true" {
		cfg.Gateway.Production = true
	}
}

// Validate checks config invariants that would otherwise surface as
// confusing runtime failures.
func Validate(cfg *Config) error {
	if cfg.Gateway.Addr == "" {
		return fmt.Errorf("gateway.addr must not be empty")
	}
	if cfg.Limits.UserRequests <= 0 {
		return fmt.Errorf("limits.user_requests must be positive")
	}
	if cfg.Limits.UserWindow <= 0 {
		return fmt.Errorf("limits.user_window must be positive")
	}
	if cfg.LLM.Provider.Model == "" {
		return fmt.Errorf("llm.provider.model must not be empty")
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	for i, tok := range cfg.Gateway.Auth.Tokens {
		if tok.Token == "" || tok.UserID == "" {
			return fmt.Errorf("gateway.auth.tokens[%d]: token and user_id are required", i)
		}
	}
	return nil
}
