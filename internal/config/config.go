package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Agents    AgentsConfig    `mapstructure:"agents"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Gate      GateConfig      `mapstructure:"gate"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Log       LogConfig       `mapstructure:"log"`
}

// AgentsConfig agent settings
type AgentsConfig struct {
	Defaults AgentDefaults `mapstructure:"defaults"`
}

// AgentDefaults default model parameters
type AgentDefaults struct {
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// ProvidersConfig LLM provider settings
type ProvidersConfig struct {
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
	Claude     ProviderConfig `mapstructure:"claude"`
	OpenAI     ProviderConfig `mapstructure:"openai"`
	DeepSeek   ProviderConfig `mapstructure:"deepseek"`
	Ollama     ProviderConfig `mapstructure:"ollama"`
}

// ProviderConfig single provider settings
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// GateConfig intent gate thresholds and safety settings
type GateConfig struct {
	MinConfidenceProceed         string   `mapstructure:"min_confidence_proceed"`
	MinConfidenceWrite           string   `mapstructure:"min_confidence_write"`
	RequireConfirmationForDelete bool     `mapstructure:"require_confirmation_for_delete"`
	MaxResourceLimit             int      `mapstructure:"max_resource_limit"`
	ProtectedPatterns            []string `mapstructure:"protected_patterns"`
	DefaultRegions               []string `mapstructure:"default_regions"`
}

// PolicyConfig policy engine settings
type PolicyConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// File is the policy store path. Empty means <config dir>/policies.json.
	File string `mapstructure:"file"`
	// UseDefaults loads the built-in baseline policies when the store is
	// empty.
	UseDefaults bool `mapstructure:"use_defaults"`
}

// ExecutorConfig command execution settings
type ExecutorConfig struct {
	// Timeout is the per-command limit in seconds.
	Timeout int `mapstructure:"timeout"`
	// DryRun prints generated commands instead of executing them.
	DryRun bool `mapstructure:"dry_run"`
}

// GatewayConfig server settings
type GatewayConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

// AuditConfig audit trail settings
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// File is the JSONL audit log path. Empty means <config dir>/audit.log.
	File string `mapstructure:"file"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Model:       "anthropic/claude-sonnet-4-5",
				MaxTokens:   2048,
				Temperature: 0.0,
			},
		},
		Providers: ProvidersConfig{},
		Gate: GateConfig{
			MinConfidenceProceed:         "medium",
			MinConfidenceWrite:           "high",
			RequireConfirmationForDelete: true,
			MaxResourceLimit:             100,
			ProtectedPatterns:            []string{"prod", "production", "master", "main"},
			DefaultRegions:               []string{"us-east-1"},
		},
		Policy: PolicyConfig{
			Enabled:     true,
			UseDefaults: true,
		},
		Executor: ExecutorConfig{
			Timeout: 60,
			DryRun:  false,
		},
		Gateway: GatewayConfig{
			Host:  "0.0.0.0",
			Port:  18890,
			Token: "",
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the opsgate config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".opsgate")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// PolicyPath returns the effective policy store path.
func (c *Config) PolicyPath() string {
	if c.Policy.File != "" {
		return c.Policy.File
	}
	return filepath.Join(ConfigDir(), "policies.json")
}

// AuditPath returns the effective audit log path.
func (c *Config) AuditPath() string {
	if c.Audit.File != "" {
		return c.Audit.File
	}
	return filepath.Join(ConfigDir(), "audit.log")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := ConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("OPSGATE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to file
func Save(cfg *Config) error {
	configPath := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	d := &c.Agents.Defaults

	if d.Temperature < 0 || d.Temperature > 2.0 {
		return fmt.Errorf("agents.defaults.temperature must be between 0 and 2.0, got %f", d.Temperature)
	}
	if d.MaxTokens <= 0 {
		return fmt.Errorf("agents.defaults.max_tokens must be > 0, got %d", d.MaxTokens)
	}

	for _, field := range []struct {
		name  string
		value *string
	}{
		{"gate.min_confidence_proceed", &c.Gate.MinConfidenceProceed},
		{"gate.min_confidence_write", &c.Gate.MinConfidenceWrite},
	} {
		level := strings.ToLower(strings.TrimSpace(*field.value))
		switch level {
		case "":
			// filled from defaults downstream
		case "low", "medium", "high":
			*field.value = level
		default:
			return fmt.Errorf("%s must be one of low, medium, high; got %q", field.name, *field.value)
		}
	}

	if c.Gate.MaxResourceLimit < 0 {
		return fmt.Errorf("gate.max_resource_limit must not be negative, got %d", c.Gate.MaxResourceLimit)
	}

	if c.Executor.Timeout < 0 {
		return fmt.Errorf("executor.timeout must not be negative, got %d", c.Executor.Timeout)
	}
	if c.Executor.Timeout == 0 {
		c.Executor.Timeout = 60
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}
