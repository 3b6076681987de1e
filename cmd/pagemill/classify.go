package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pagemill/pagemill/internal/classify"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/render"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <document.pdf>",
	Short: "Assess document complexity without converting",
	Long: `Classify samples a few pages, scores the document's complexity and
reports which conversion pipeline would be used, with an estimated
processing time. No AI calls are made.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return err
	}
	cfg := cm.Get()
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	doc, err := render.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer doc.Close()

	assessment, err := classify.Classify(doc, classify.Options{
		SamplePages:          cfg.Classify.SamplePages,
		ModerateThreshold:    cfg.Classify.ModerateThreshold,
		ComplexThreshold:     cfg.Classify.ComplexThreshold,
		IntelligentThreshold: cfg.Classify.IntelligentThreshold,
	})
	if err != nil {
		return err
	}
	return output(assessment)
}
