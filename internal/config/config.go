// Package config provides configuration management for toolpilot.
// Settings come from built-in defaults, an optional YAML file, and
// environment variables with the TOOLPILOT_ prefix, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Answer strategies.
const (
	StrategyAuto            = "auto"
	StrategyFunctionCalling = "function-calling"
	StrategyDelegated       = "delegated"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

// Config holds all configuration settings for toolpilot.
type Config struct {
	MCP       MCPConfig       `yaml:"mcp"`
	LLM       LLMConfig       `yaml:"llm"`
	Assistant AssistantConfig `yaml:"assistant"`
	Answer    AnswerConfig    `yaml:"answer"`
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// MCPConfig configures the MCP session.
type MCPConfig struct {
	URL              string        `yaml:"url"`               // SSE transport URL
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // Wait for the endpoint event (default: 10s)
	RequestTimeout   time.Duration `yaml:"request_timeout"`   // Wait for a correlated reply (default: 30s)
	ClientName       string        `yaml:"client_name"`       // Sent in initialize (default: toolpilot)
	ClientVersion    string        `yaml:"client_version"`    // Sent in initialize (default: 1.0.0)
	ProtocolVersion  string        `yaml:"protocol_version"`  // Sent in initialize (default: 2024-11-05)
}

// LLMConfig contains function-calling model configuration.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // openai, ollama or none (default: openai)
	BaseURL     string        `yaml:"base_url"` // Provider default when empty
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`   // Provider default when empty
	Timeout     time.Duration `yaml:"timeout"` // Per-completion timeout (default: 60s)
	Temperature float64       `yaml:"temperature"`
}

// AssistantConfig contains hosted assistant configuration for the
// delegated strategy.
type AssistantConfig struct {
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	AssistantID string        `yaml:"assistant_id"`
	Timeout     time.Duration `yaml:"timeout"` // default: 60s
}

// AnswerConfig selects how questions are answered.
type AnswerConfig struct {
	Strategy      string `yaml:"strategy"`       // auto, function-calling or delegated (default: auto)
	StripNewlines bool   `yaml:"strip_newlines"` // Flatten answers for single-line displays (default: false)
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 6464)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string `yaml:"mode"`      // Security mode: development, production (default: development)
	APIToken     string `yaml:"api_token"` // API authentication token
}

// RateLimitConfig bounds the ask surface per client.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 2
	Burst             int     `yaml:"burst"`               // default: 5
}

// LoadConfig loads configuration. When path is empty, TOOLPILOT_CONFIG names
// the optional YAML file. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("TOOLPILOT_CONFIG")
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the program cannot act on.
func (c *Config) Validate() error {
	switch c.Answer.Strategy {
	case StrategyAuto, StrategyFunctionCalling, StrategyDelegated:
	default:
		return fmt.Errorf("config: unknown answer strategy %q", c.Answer.Strategy)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderOllama, ProviderNone, "":
	default:
		return fmt.Errorf("config: unsupported LLM provider %q", c.LLM.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.MCP.HandshakeTimeout <= 0 || c.MCP.RequestTimeout <= 0 {
		return errors.New("config: MCP timeouts must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("config: rate limit must be positive")
	}
	return nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		MCP: MCPConfig{
			HandshakeTimeout: 10 * time.Second,
			RequestTimeout:   30 * time.Second,
			ClientName:       "toolpilot",
			ClientVersion:    "1.0.0",
			ProtocolVersion:  "2024-11-05",
		},
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Timeout:  60 * time.Second,
		},
		Assistant: AssistantConfig{
			Timeout: 60 * time.Second,
		},
		Answer: AnswerConfig{
			Strategy: StrategyAuto,
		},
		Server: ServerConfig{
			Port: 6464,
			Host: "127.0.0.1",
		},
		Security: SecurityConfig{
			SecurityMode: "development",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             5,
		},
	}
}

// applyEnv overlays environment variables onto cfg. Each current value is
// the fallback, so unset variables leave file settings alone.
func applyEnv(cfg *Config) {
	cfg.MCP.URL = getEnv("TOOLPILOT_MCP_URL", cfg.MCP.URL)
	cfg.MCP.HandshakeTimeout = getEnvDuration("TOOLPILOT_MCP_HANDSHAKE_TIMEOUT", cfg.MCP.HandshakeTimeout)
	cfg.MCP.RequestTimeout = getEnvDuration("TOOLPILOT_MCP_REQUEST_TIMEOUT", cfg.MCP.RequestTimeout)
	cfg.MCP.ClientName = getEnv("TOOLPILOT_MCP_CLIENT_NAME", cfg.MCP.ClientName)
	cfg.MCP.ClientVersion = getEnv("TOOLPILOT_MCP_CLIENT_VERSION", cfg.MCP.ClientVersion)
	cfg.MCP.ProtocolVersion = getEnv("TOOLPILOT_MCP_PROTOCOL_VERSION", cfg.MCP.ProtocolVersion)

	cfg.LLM.Provider = strings.ToLower(getEnv("TOOLPILOT_LLM_PROVIDER", cfg.LLM.Provider))
	cfg.LLM.BaseURL = getEnv("TOOLPILOT_LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("TOOLPILOT_LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("TOOLPILOT_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Timeout = getEnvDuration("TOOLPILOT_LLM_TIMEOUT", cfg.LLM.Timeout)
	cfg.LLM.Temperature = getEnvFloat("TOOLPILOT_LLM_TEMPERATURE", cfg.LLM.Temperature)

	cfg.Assistant.URL = getEnv("TOOLPILOT_ASSISTANT_URL", cfg.Assistant.URL)
	cfg.Assistant.APIKey = getEnv("TOOLPILOT_ASSISTANT_API_KEY", cfg.Assistant.APIKey)
	cfg.Assistant.AssistantID = getEnv("TOOLPILOT_ASSISTANT_ID", cfg.Assistant.AssistantID)
	cfg.Assistant.Timeout = getEnvDuration("TOOLPILOT_ASSISTANT_TIMEOUT", cfg.Assistant.Timeout)

	cfg.Answer.Strategy = strings.ToLower(getEnv("TOOLPILOT_ANSWER_STRATEGY", cfg.Answer.Strategy))
	cfg.Answer.StripNewlines = getEnvBool("TOOLPILOT_STRIP_NEWLINES", cfg.Answer.StripNewlines)

	cfg.Server.Port = getEnvInt("TOOLPILOT_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("TOOLPILOT_HOST", cfg.Server.Host)

	cfg.Security.SecurityMode = getEnv("TOOLPILOT_SECURITY_MODE", cfg.Security.SecurityMode)
	cfg.Security.APIToken = getEnv("TOOLPILOT_API_TOKEN", cfg.Security.APIToken)

	cfg.RateLimit.RequestsPerSecond = getEnvFloat("TOOLPILOT_RATE_LIMIT_RPS", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = getEnvInt("TOOLPILOT_RATE_LIMIT_BURST", cfg.RateLimit.Burst)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("30s", "1m") and falls back
// to the default on anything unparseable.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
