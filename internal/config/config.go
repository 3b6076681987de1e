// Package config handles loading and hot-reloading pagemill configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/pagemill/pagemill/internal/classify"
	"github.com/pagemill/pagemill/internal/pipeline"
	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/robust"
	"github.com/pagemill/pagemill/internal/types"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("provider", defaults.Provider)
	viper.SetDefault("pipeline", defaults.Pipeline)
	viper.SetDefault("classify", defaults.Classify)
	viper.SetDefault("log", defaults.Log)

	// Environment variables with PAGEMILL_ prefix
	viper.SetEnvPrefix("PAGEMILL")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.pagemill")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToProviderConfig converts the provider section to an OpenRouter config,
// resolving ${ENV_VAR} references in the API key.
func (c *Config) ToProviderConfig() providers.OpenRouterConfig {
	return providers.OpenRouterConfig{
		APIKey:            ResolveEnvVars(c.Provider.APIKey),
		BaseURL:           c.Provider.BaseURL,
		Model:             c.Provider.Model,
		RequestsPerMinute: c.Provider.RequestsPerMinute,
		RequestTimeout:    time.Duration(c.Provider.TimeoutSeconds) * time.Second,
		MaxPDFPages:       c.Provider.MaxPDFPages,
	}
}

// ToPipelineOptions converts the pipeline and classify sections to run options.
func (c *Config) ToPipelineOptions() pipeline.Options {
	return pipeline.Options{
		DPI:             c.Pipeline.DPI,
		ForcePipeline:   types.ParsePipelineType(c.Pipeline.ForcePipeline),
		Parallel:        c.Pipeline.Parallel,
		Concurrency:     c.Pipeline.Concurrency,
		MinCallInterval: time.Duration(c.Pipeline.MinCallIntervalMS) * time.Millisecond,
		CallTimeout:     time.Duration(c.Pipeline.CallTimeoutSeconds) * time.Second,
		ContinueOnError: c.Pipeline.ContinueOnError,
		IncludeTOC:      c.Pipeline.IncludeTOC,
		TOCMaxLevel:     c.Pipeline.TOCMaxLevel,
		WindowSize:      c.Pipeline.WindowSize,
		Retry: robust.RetryPolicy{
			MaxAttempts: c.Pipeline.Retry.MaxAttempts,
			BaseDelay:   time.Duration(c.Pipeline.Retry.BaseDelayMS) * time.Millisecond,
			Factor:      c.Pipeline.Retry.Factor,
			MaxDelay:    time.Duration(c.Pipeline.Retry.MaxDelayMS) * time.Millisecond,
		},
		Classify: classify.Options{
			SamplePages:          c.Classify.SamplePages,
			ModerateThreshold:    c.Classify.ModerateThreshold,
			ComplexThreshold:     c.Classify.ComplexThreshold,
			IntelligentThreshold: c.Classify.IntelligentThreshold,
		},
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Pagemill configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENROUTER_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
