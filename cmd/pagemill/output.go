package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type outputFmt string

const (
	outputYAML outputFmt = "yaml"
	outputJSON outputFmt = "json"
)

var globalOutputFormat = outputYAML

func setOutputFormat(format string) {
	if format == "json" {
		globalOutputFormat = outputJSON
	} else {
		globalOutputFormat = outputYAML
	}
}

// output writes data to stdout in the configured format.
func output(data any) error {
	return outputTo(os.Stdout, globalOutputFormat, data)
}

func outputTo(w io.Writer, format outputFmt, data any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	default:
		// Round-trip through JSON so yaml output honors the json tags.
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("failed to remarshal output: %w", err)
		}
		return yaml.NewEncoder(w).Encode(generic)
	}
}
