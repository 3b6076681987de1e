package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagemill/pagemill/internal/passes"
	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/render"
)

const directTailChars = 500

// runDirect is the minimal strategy for small unstructured documents: one
// page at a time, a short trailing-content window, no structure pass.
func (r *runner) runDirect(ctx context.Context) (*Result, error) {
	pageCount, err := r.doc.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	result := &Result{}
	language := ""
	prevContent := ""
	prevSummary := ""

	for n := 1; n <= pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.progress(StatusConverting, n-1, pageCount)

		imageB64, err := r.doc.RenderPage(ctx, n, render.RenderOptions{DPI: r.opts.DPI})
		if err != nil {
			if ferr := r.unitFailure(result, fmt.Sprintf("page %d", n), err); ferr != nil {
				return nil, ferr
			}
			result.Contents = append(result.Contents, PageContent{Page: n})
			continue
		}
		pageText, _ := r.doc.PageText(n)

		pr, err := r.callPage(ctx, nil, imageB64, providers.PageContext{
			PageNumber:      n,
			TotalPages:      pageCount,
			PageText:        pageText,
			PreviousContent: prevContent,
			PreviousSummary: prevSummary,
			Language:        language,
		})
		if err != nil {
			if ferr := r.unitFailure(result, fmt.Sprintf("page %d", n), err); ferr != nil {
				return nil, ferr
			}
			result.Contents = append(result.Contents, PageContent{Page: n})
			continue
		}

		result.Usage.Add(pr.Usage)
		result.Contents = append(result.Contents, PageContent{Page: n, Markdown: pr.Content})
		prevContent = passes.Tail(pr.Content, directTailChars)
		if pr.Summary != "" {
			prevSummary = pr.Summary
		}
		if language == "" {
			if pr.Language != "" {
				language = pr.Language
			} else {
				language = DetectLanguage(pageText)
			}
		}
		r.progress(StatusConverting, n, pageCount)
	}

	result.Markdown = joinContents(result.Contents)
	return result, nil
}

// joinContents concatenates unit markdown with blank-line separators.
func joinContents(contents []PageContent) string {
	var parts []string
	for _, c := range contents {
		if t := strings.TrimSpace(c.Markdown); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// languageKeywords are high-frequency function words per language, used as a
// cheap fallback when the conversion service does not report a language.
var languageKeywords = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "that", "is", "with"},
	"es": {"el", "la", "de", "que", "y", "en", "los", "una"},
	"fr": {"le", "la", "de", "et", "les", "des", "est", "une"},
	"de": {"der", "die", "und", "das", "von", "mit", "ist", "ein"},
	"it": {"il", "la", "di", "che", "e", "per", "una", "del"},
}

// DetectLanguage guesses the text language by keyword frequency. Returns "en"
// when no language stands out.
func DetectLanguage(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return "en"
	}
	counts := make(map[string]int)
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		for lang, keys := range languageKeywords {
			for _, k := range keys {
				if w == k {
					counts[lang]++
					break
				}
			}
		}
	}
	best, n := "en", 0
	for lang, c := range counts {
		if c > n {
			best, n = lang, c
		}
	}
	if n < 3 {
		return "en"
	}
	return best
}
