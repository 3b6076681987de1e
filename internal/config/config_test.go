package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pagemill/pagemill/internal/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider.Type != "openrouter" {
		t.Errorf("provider type = %s", cfg.Provider.Type)
	}
	if cfg.Provider.APIKey != "${OPENROUTER_API_KEY}" {
		t.Errorf("api key = %s", cfg.Provider.APIKey)
	}
	if cfg.Pipeline.DPI != 150 || cfg.Pipeline.WindowSize != 20 {
		t.Errorf("pipeline defaults: %+v", cfg.Pipeline)
	}
	if !cfg.Pipeline.ContinueOnError {
		t.Error("continue_on_error should default to true")
	}
	if cfg.Pipeline.Retry.MaxAttempts != 3 || cfg.Pipeline.Retry.Factor != 2.0 {
		t.Errorf("retry defaults: %+v", cfg.Pipeline.Retry)
	}
	if cfg.Classify.ModerateThreshold != 30 || cfg.Classify.IntelligentThreshold != 85 {
		t.Errorf("classify defaults: %+v", cfg.Classify)
	}
}

func TestResolveEnvVars(t *testing.T) {
	os.Setenv("PAGEMILL_TEST_KEY", "secret123")
	defer os.Unsetenv("PAGEMILL_TEST_KEY")

	tests := []struct{ in, want string }{
		{"${PAGEMILL_TEST_KEY}", "secret123"},
		{"prefix-${PAGEMILL_TEST_KEY}-suffix", "prefix-secret123-suffix"},
		{"no vars here", "no vars here"},
		{"${PAGEMILL_UNSET_VAR}", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := ResolveEnvVars(tc.in); got != tc.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToProviderConfig(t *testing.T) {
	os.Setenv("PAGEMILL_TEST_API_KEY", "sk-test")
	defer os.Unsetenv("PAGEMILL_TEST_API_KEY")

	cfg := DefaultConfig()
	cfg.Provider.APIKey = "${PAGEMILL_TEST_API_KEY}"
	cfg.Provider.TimeoutSeconds = 90

	pc := cfg.ToProviderConfig()
	if pc.APIKey != "sk-test" {
		t.Errorf("api key not resolved: %q", pc.APIKey)
	}
	if pc.RequestTimeout != 90*time.Second {
		t.Errorf("timeout = %v", pc.RequestTimeout)
	}
	if pc.Model != "google/gemini-2.5-flash" {
		t.Errorf("model = %s", pc.Model)
	}
}

func TestToPipelineOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.ForcePipeline = "intelligent"
	cfg.Pipeline.MinCallIntervalMS = 250
	cfg.Pipeline.CallTimeoutSeconds = 60

	opts := cfg.ToPipelineOptions()
	if opts.ForcePipeline != types.PipelineIntelligent {
		t.Errorf("force pipeline = %s", opts.ForcePipeline)
	}
	if opts.MinCallInterval != 250*time.Millisecond {
		t.Errorf("min call interval = %v", opts.MinCallInterval)
	}
	if opts.CallTimeout != 60*time.Second {
		t.Errorf("call timeout = %v", opts.CallTimeout)
	}
	if opts.Retry.BaseDelay != time.Second || opts.Retry.MaxDelay != 30*time.Second {
		t.Errorf("retry delays: %+v", opts.Retry)
	}
	if opts.Classify.SamplePages != 3 {
		t.Errorf("classify options: %+v", opts.Classify)
	}

	t.Run("unknown force pipeline ignored", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Pipeline.ForcePipeline = "warp-speed"
		if got := cfg.ToPipelineOptions().ForcePipeline; got != "" {
			t.Errorf("unknown pipeline mapped to %q", got)
		}
	})
}

func TestWriteDefault(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "# Pagemill configuration") {
		t.Error("missing header comment")
	}
	for _, key := range []string{"provider:", "pipeline:", "classify:", "log:", "api_key:"} {
		if !strings.Contains(content, key) {
			t.Errorf("missing %q in written config", key)
		}
	}
}
