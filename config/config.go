package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestration system
type Config struct {
	General       GeneralConfig       `mapstructure:"general"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Orchestration OrchestrationConfig `mapstructure:"orchestration"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Server        ServerConfig        `mapstructure:"server"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // openai, anthropic
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model to use for different operations
type LLMRoutingConfig struct {
	Planning    string `mapstructure:"planning"`    // fact sheet + plan generation
	Assessment  string `mapstructure:"assessment"`  // per-round progress assessment
	Synthesis   string `mapstructure:"synthesis"`   // final answer preparation
	Participant string `mapstructure:"participant"` // team member turns
	Fallback    string `mapstructure:"fallback"`    // used when a slot is empty
}

// OrchestrationConfig contains the round loop policy knobs
type OrchestrationConfig struct {
	// MaxStallCount is how many stalled rounds are tolerated before a
	// forced replan and session reset.
	MaxStallCount int `mapstructure:"max_stall_count"`
	// MaxRoundCount is the hard ceiling on rounds for a single run.
	MaxRoundCount int `mapstructure:"max_round_count"`
	// MaxResetCount caps replans per run; 0 means unbounded.
	MaxResetCount int `mapstructure:"max_reset_count"`
	// MaxTranscriptTokens triggers transcript summarization when the
	// estimated session footprint exceeds it; 0 disables the cap.
	MaxTranscriptTokens int `mapstructure:"max_transcript_tokens"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	CostTracking bool   `mapstructure:"cost_tracking"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("roundtable")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("ROUNDTABLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional; defaults carry a usable setup.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "60s")

	viper.SetDefault("llm.routing.planning", "gpt-4")
	viper.SetDefault("llm.routing.assessment", "gpt-4")
	viper.SetDefault("llm.routing.synthesis", "gpt-4")
	viper.SetDefault("llm.routing.participant", "gpt-4")
	viper.SetDefault("llm.routing.fallback", "gpt-4")

	viper.SetDefault("orchestration.max_stall_count", 3)
	viper.SetDefault("orchestration.max_round_count", 10)
	viper.SetDefault("orchestration.max_reset_count", 0)
	viper.SetDefault("orchestration.max_transcript_tokens", 0)

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.cost_tracking", true)
	viper.SetDefault("telemetry.periodic_logs", false)

	viper.SetDefault("server.listen", ":8080")
}

// overrideFromEnv overrides configuration with environment variables
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("llm.providers.openai.type", "openai")
		viper.Set("llm.providers.openai.api_key", apiKey)
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		viper.Set("llm.providers.anthropic.type", "anthropic")
		viper.Set("llm.providers.anthropic.api_key", apiKey)
	}
	if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
		viper.Set("telemetry.otlp_endpoint", endpoint)
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if len(config.LLM.Providers) == 0 {
		return fmt.Errorf("at least one LLM provider must be configured")
	}
	if config.Orchestration.MaxRoundCount <= 0 {
		return fmt.Errorf("orchestration.max_round_count must be positive")
	}
	if config.Orchestration.MaxStallCount < 0 {
		return fmt.Errorf("orchestration.max_stall_count must not be negative")
	}
	if config.Orchestration.MaxResetCount < 0 {
		return fmt.Errorf("orchestration.max_reset_count must not be negative")
	}
	return nil
}
