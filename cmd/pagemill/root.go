package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagemill/pagemill/version"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "pagemill",
	Short: "Adaptive PDF to Markdown conversion pipeline",
	Long: `Pagemill converts PDF documents to clean Markdown using an AI
document-understanding service.

Each document is classified by complexity and routed to one of four
strategies:
  - direct:      page-at-a-time conversion for small unstructured documents
  - light:       adds cheap document analysis and header/footer suppression
  - full:        window-based conversion for large documents
  - intelligent: four-pass layout/structure/extraction/assembly pipeline`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pagemill/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupLogger configures slog from config and the --log-level override.
func setupLogger(level, format string) *slog.Logger {
	if logLevel != "" {
		level = logLevel
	}
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
