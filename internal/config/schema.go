package config

// Config holds pagemill configuration.
type Config struct {
	Provider ProviderCfg `mapstructure:"provider" yaml:"provider"`
	Pipeline PipelineCfg `mapstructure:"pipeline" yaml:"pipeline"`
	Classify ClassifyCfg `mapstructure:"classify" yaml:"classify"`
	Log      LogCfg      `mapstructure:"log" yaml:"log"`
}

// ProviderCfg configures the AI conversion provider.
type ProviderCfg struct {
	Type              string `mapstructure:"type" yaml:"type"`   // "openrouter"
	Model             string `mapstructure:"model" yaml:"model"` // Model name
	APIKey            string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	BaseURL           string `mapstructure:"base_url" yaml:"base_url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxPDFPages       int    `mapstructure:"max_pdf_pages" yaml:"max_pdf_pages"`
}

// RetryCfg configures the backoff policy for AI calls.
type RetryCfg struct {
	MaxAttempts int     `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelayMS int     `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	Factor      float64 `mapstructure:"factor" yaml:"factor"`
	MaxDelayMS  int     `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
}

// PipelineCfg configures conversion runs.
type PipelineCfg struct {
	DPI                int      `mapstructure:"dpi" yaml:"dpi"`
	ForcePipeline      string   `mapstructure:"force_pipeline" yaml:"force_pipeline"` // "", "direct", "light", "full", "intelligent"
	Parallel           bool     `mapstructure:"parallel" yaml:"parallel"`
	Concurrency        int      `mapstructure:"concurrency" yaml:"concurrency"`
	MinCallIntervalMS  int      `mapstructure:"min_call_interval_ms" yaml:"min_call_interval_ms"`
	CallTimeoutSeconds int      `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
	ContinueOnError    bool     `mapstructure:"continue_on_error" yaml:"continue_on_error"`
	IncludeTOC         bool     `mapstructure:"include_toc" yaml:"include_toc"`
	TOCMaxLevel        int      `mapstructure:"toc_max_level" yaml:"toc_max_level"`
	WindowSize         int      `mapstructure:"window_size" yaml:"window_size"`
	Retry              RetryCfg `mapstructure:"retry" yaml:"retry"`
}

// ClassifyCfg tunes the complexity classifier.
type ClassifyCfg struct {
	SamplePages          int `mapstructure:"sample_pages" yaml:"sample_pages"`
	ModerateThreshold    int `mapstructure:"moderate_threshold" yaml:"moderate_threshold"`
	ComplexThreshold     int `mapstructure:"complex_threshold" yaml:"complex_threshold"`
	IntelligentThreshold int `mapstructure:"intelligent_threshold" yaml:"intelligent_threshold"`
}

// LogCfg controls logging output.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level"`   // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text", "json"
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderCfg{
			Type:              "openrouter",
			Model:             "google/gemini-2.5-flash",
			APIKey:            "${OPENROUTER_API_KEY}",
			RequestsPerMinute: 60,
			TimeoutSeconds:    120,
			MaxPDFPages:       48,
		},
		Pipeline: PipelineCfg{
			DPI:                150,
			Concurrency:        4,
			MinCallIntervalMS:  250,
			CallTimeoutSeconds: 180,
			ContinueOnError:    true,
			IncludeTOC:         true,
			TOCMaxLevel:        3,
			WindowSize:         20,
			Retry: RetryCfg{
				MaxAttempts: 3,
				BaseDelayMS: 1000,
				Factor:      2.0,
				MaxDelayMS:  30000,
			},
		},
		Classify: ClassifyCfg{
			SamplePages:          3,
			ModerateThreshold:    30,
			ComplexThreshold:     60,
			IntelligentThreshold: 85,
		},
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
	}
}
