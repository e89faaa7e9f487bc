// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LLMProvider defines the supported LLM providers. Provider selection is an
// explicit configuration choice, never runtime introspection.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Suggest  SuggestConfig  `mapstructure:"suggest" yaml:"suggest"`
	Apply    ApplyConfig    `mapstructure:"apply" yaml:"apply"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AnalyzerConfig bounds the pipeline run: per-phase and overall wall-clock
// timeouts plus an optional memory ceiling.
type AnalyzerConfig struct {
	PhaseTimeout   time.Duration `mapstructure:"phase_timeout" yaml:"phase_timeout"`
	RunTimeout     time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	MemoryLimitMiB int           `mapstructure:"memory_limit_mib" yaml:"memory_limit_mib"` // 0 disables the ceiling.
	ProjectRoot    string        `mapstructure:"project_root" yaml:"project_root"`
}

// LLMConfig configures the resilient LLM service and its provider adapter.
type LLMConfig struct {
	Provider         LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model            string        `mapstructure:"model" yaml:"model"`
	APIKey           string        `mapstructure:"api_key" yaml:"-"`
	Endpoint         string        `mapstructure:"endpoint" yaml:"endpoint"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxTokens        int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	BreakerThreshold int           `mapstructure:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerWindow    time.Duration `mapstructure:"breaker_window" yaml:"breaker_window"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown"`
	RequestsPerSec   float64       `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
	WorkerCount      int           `mapstructure:"worker_count" yaml:"worker_count"`
}

// SuggestConfig controls ranking and truncation of the merged suggestion set.
type SuggestConfig struct {
	MinConfidence    float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	MaxPerFailure    int     `mapstructure:"max_per_failure" yaml:"max_per_failure"`
	MaxPromptContext int     `mapstructure:"max_prompt_context" yaml:"max_prompt_context"` // Characters of code context per prompt.
}

// ApplyConfig controls the fix applier.
type ApplyConfig struct {
	AutoApply   bool   `mapstructure:"auto_apply" yaml:"auto_apply"`
	Verify      bool   `mapstructure:"verify" yaml:"verify"` // Re-run the originating test after applying. Default off.
	Commit      bool   `mapstructure:"commit" yaml:"commit"` // Commit applied fixes via git. Default off.
	BackupDir   string `mapstructure:"backup_dir" yaml:"backup_dir"`
	TestCommand string `mapstructure:"test_command" yaml:"test_command"` // Shell command for verification; {test} expands to the test ID.
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "mend-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Analyzer --
	v.SetDefault("analyzer.phase_timeout", "5m")
	v.SetDefault("analyzer.run_timeout", "15m")
	v.SetDefault("analyzer.memory_limit_mib", 0)
	v.SetDefault("analyzer.project_root", "")

	// -- LLM --
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "gemini-2.5-pro")
	v.SetDefault("llm.request_timeout", "60s")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.breaker_threshold", 5)
	v.SetDefault("llm.breaker_window", "1m")
	v.SetDefault("llm.breaker_cooldown", "30s")
	v.SetDefault("llm.requests_per_sec", 2.0)
	v.SetDefault("llm.worker_count", 4)

	// -- Suggest --
	v.SetDefault("suggest.min_confidence", 0.2)
	v.SetDefault("suggest.max_per_failure", 3)
	v.SetDefault("suggest.max_prompt_context", 4000)

	// -- Apply --
	v.SetDefault("apply.auto_apply", false)
	v.SetDefault("apply.verify", false)
	v.SetDefault("apply.commit", false)
	v.SetDefault("apply.backup_dir", "")
	v.SetDefault("apply.test_command", "")
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	_ = v.BindEnv("llm.api_key", "MEND_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up.
	if cfg.LLM.Provider != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("MEND_LLM_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".mend"), nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Analyzer.PhaseTimeout <= 0 {
		return fmt.Errorf("analyzer.phase_timeout must be a positive duration")
	}
	if c.Analyzer.RunTimeout <= 0 {
		return fmt.Errorf("analyzer.run_timeout must be a positive duration")
	}
	if c.Analyzer.MemoryLimitMiB < 0 {
		return fmt.Errorf("analyzer.memory_limit_mib must not be negative")
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if c.Suggest.MinConfidence < 0.0 || c.Suggest.MinConfidence > 1.0 {
		return fmt.Errorf("suggest.min_confidence must be between 0.0 and 1.0")
	}
	if c.Suggest.MaxPerFailure <= 0 {
		return fmt.Errorf("suggest.max_per_failure must be a positive integer")
	}
	if c.Apply.Verify && c.Apply.TestCommand == "" {
		return fmt.Errorf("apply.verify requires apply.test_command to be set")
	}
	return nil
}

// Validate checks the LLM configuration. An empty provider disables AI
// suggestions entirely and is valid.
func (l *LLMConfig) Validate() error {
	if l.Provider == "" {
		return nil
	}
	switch l.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown llm provider '%s'. Supported: [%s %s]", l.Provider, ProviderGemini, ProviderOpenAI)
	}
	if l.APIKey == "" {
		return fmt.Errorf("llm API key is required but not found. Ensure MEND_LLM_API_KEY is set")
	}
	if l.RequestTimeout <= 0 {
		return fmt.Errorf("llm.request_timeout must be a positive duration")
	}
	// A negative count would convert to a huge unsigned retry budget.
	if l.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}
	if l.BreakerThreshold <= 0 {
		return fmt.Errorf("llm.breaker_threshold must be a positive integer")
	}
	if l.WorkerCount <= 0 {
		return fmt.Errorf("llm.worker_count must be a positive integer")
	}
	return nil
}
