package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/pipeline"
	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/render"
	"github.com/pagemill/pagemill/internal/types"
)

var (
	convertOut      string
	convertPipeline string
	convertParallel bool
	convertWorkers  int
	convertDPI      int
	convertTOC      bool
	convertStrict   bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <document.pdf>",
	Short: "Convert a PDF document to Markdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertOut, "out", "", "output file (default: <input>.md)")
	convertCmd.Flags().StringVar(&convertPipeline, "pipeline", "", "force a pipeline: direct, light, full, intelligent")
	convertCmd.Flags().BoolVar(&convertParallel, "parallel", false, "enable bounded-concurrency processing")
	convertCmd.Flags().IntVar(&convertWorkers, "concurrency", 0, "concurrent units when --parallel is set")
	convertCmd.Flags().IntVar(&convertDPI, "dpi", 0, "render DPI (overrides config)")
	convertCmd.Flags().BoolVar(&convertTOC, "toc", false, "include an anchor-linked contents section")
	convertCmd.Flags().BoolVar(&convertStrict, "strict", false, "abort on the first failed page or window")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return err
	}
	cfg := cm.Get()
	log := setupLogger(cfg.Log.Level, cfg.Log.Format)

	input := args[0]
	doc, err := render.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", input, err)
	}
	defer doc.Close()

	conv, err := providers.NewOpenRouterConverter(cfg.ToProviderConfig())
	if err != nil {
		return err
	}

	opts := cfg.ToPipelineOptions()
	opts.Logger = log
	if convertPipeline != "" {
		pt := types.ParsePipelineType(convertPipeline)
		if pt == "" {
			return fmt.Errorf("unknown pipeline %q", convertPipeline)
		}
		opts.ForcePipeline = pt
	}
	if convertParallel {
		opts.Parallel = true
	}
	if convertWorkers > 0 {
		opts.Concurrency = convertWorkers
	}
	if convertDPI > 0 {
		opts.DPI = convertDPI
	}
	if convertTOC {
		opts.IncludeTOC = true
	}
	if convertStrict {
		opts.ContinueOnError = false
	}
	opts.OnProgress = func(status string, current, total int) {
		fmt.Fprintf(os.Stderr, "\r%-12s %d/%d", status, current, total)
		if current >= total {
			fmt.Fprintln(os.Stderr)
		}
	}

	result, err := pipeline.Convert(cmd.Context(), doc, conv, opts)
	if err != nil {
		return err
	}

	outPath := convertOut
	if outPath == "" {
		outPath = strings.TrimSuffix(input, filepath.Ext(input)) + ".md"
	}
	if err := os.WriteFile(outPath, []byte(result.Markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	return output(convertSummary(result, outPath))
}

// convertSummary is the structured report printed after a conversion.
type summaryOut struct {
	Output      string                `json:"output"`
	Pipeline    types.PipelineType    `json:"pipeline"`
	Pages       int                   `json:"pages"`
	Level       types.ComplexityLevel `json:"complexity_level"`
	Score       int                   `json:"complexity_score"`
	FullSuccess bool                  `json:"full_success"`
	Errors      []string              `json:"errors,omitempty"`
	Tokens      int                   `json:"total_tokens"`
	CostUSD     float64               `json:"cost_usd"`
	ElapsedMS   int64                 `json:"elapsed_ms"`
}

func convertSummary(result *pipeline.Result, outPath string) summaryOut {
	s := summaryOut{
		Output:      outPath,
		Pipeline:    result.Pipeline,
		Pages:       result.Metadata.PageCount,
		FullSuccess: result.FullSuccess,
		Tokens:      result.Usage.TotalTokens,
		CostUSD:     result.Usage.CostUSD,
		ElapsedMS:   result.Elapsed.Milliseconds(),
	}
	if result.Complexity != nil {
		s.Level = result.Complexity.Level
		s.Score = result.Complexity.Score
	}
	for _, e := range result.Errors {
		s.Errors = append(s.Errors, fmt.Sprintf("%s: %s", e.Context, e.Message))
	}
	return s
}
