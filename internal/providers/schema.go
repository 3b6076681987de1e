package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateAgainst checks a structured response against its canonical schema
// before it is unmarshalled, so malformed model output is caught early and
// uniformly.
func validateAgainst(schemaSrc string, data []byte) error {
	sch, err := jsonschema.CompileString("response.json", schemaSrc)
	if err != nil {
		return fmt.Errorf("failed to compile response schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("response failed schema validation: %w", err)
	}
	return nil
}

// extractJSONBlock pulls the first JSON object out of a free-form model reply.
// Handles fenced code blocks and leading prose.
func extractJSONBlock(s string) []byte {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = rest[:j]
		} else {
			s = rest
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil
	}
	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if esc {
			esc = false
			continue
		}
		switch c {
		case '\\':
			if inStr {
				esc = true
			}
		case '"':
			inStr = !inStr
		case '{':
			if !inStr {
				depth++
			}
		case '}':
			if !inStr {
				depth--
				if depth == 0 {
					return []byte(s[start : i+1])
				}
			}
		}
	}
	return nil
}

// Canonical response schemas for structured calls.

const analysisSchema = `{
	"type": "object",
	"required": ["language", "has_toc"],
	"properties": {
		"language": {"type": "string"},
		"has_toc": {"type": "boolean"},
		"estimated_images": {"type": "integer"},
		"estimated_tables": {"type": "integer"},
		"estimated_code_blocks": {"type": "integer"},
		"page_count": {"type": "integer"}
	}
}`

const pageSchema = `{
	"type": "object",
	"required": ["content"],
	"properties": {
		"content": {"type": "string"},
		"images": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["bbox"],
				"properties": {
					"bbox": {"type": "array", "items": {"type": "integer"}, "minItems": 4, "maxItems": 4},
					"description": {"type": "string"}
				}
			}
		},
		"summary": {"type": "string"},
		"last_paragraph": {"type": "string"},
		"language": {"type": "string"}
	}
}`

const windowSchema = `{
	"type": "object",
	"required": ["content"],
	"properties": {
		"content": {"type": "string"},
		"summary": {"type": "string"},
		"last_paragraph": {"type": "string"}
	}
}`

const structureSchema = `{
	"type": "object",
	"required": ["document_type"],
	"properties": {
		"document_type": {"type": "string"},
		"toc": {
			"type": "object",
			"properties": {
				"explicit": {"type": "boolean"},
				"entries": {"type": "array"}
			}
		},
		"hierarchy": {
			"type": "object",
			"properties": {
				"max_depth": {"type": "integer"},
				"heading_styles": {"type": "array"}
			}
		},
		"sections": {"type": "object"},
		"cross_references": {"type": "object"}
	}
}`
