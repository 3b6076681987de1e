package passes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/render"
	"github.com/pagemill/pagemill/internal/robust"
	"github.com/pagemill/pagemill/internal/types"
)

// AnalyzeOptions configure the AI calls the analysis passes issue. The zero
// value means one attempt per call with no per-call deadline.
type AnalyzeOptions struct {
	DPI         int
	Retry       robust.RetryPolicy
	CallTimeout time.Duration
}

// layoutSamplePercents are the fixed page offsets sampled by layout analysis.
var layoutSamplePercents = []int{10, 30, 50, 70, 90}

// patternRetainRatio keeps a header/footer pattern only when it recurs in at
// least this share of sampled pages.
const patternRetainRatio = 0.4

// pageLayout is the structured per-page response.
type pageLayout struct {
	HeaderBottomPct float64           `json:"header_bottom_pct"`
	FooterTopPct    float64           `json:"footer_top_pct"`
	MarginLeftPct   float64           `json:"margin_left_pct"`
	MarginRightPct  float64           `json:"margin_right_pct"`
	HeaderText      string            `json:"header_text"`
	FooterText      string            `json:"footer_text"`
	PageNumberFmt   string            `json:"page_number_format"`
	DecorativeZones []types.ImageZone `json:"decorative_zones"`
	FootnoteStyle   string            `json:"footnote_style"`
	Columns         string            `json:"columns"`
}

const layoutPrompt = `Describe this document page's layout as a JSON object:
header_bottom_pct (bottom edge of the running header as %% of page height),
footer_top_pct (top edge of the footer as %% of page height),
margin_left_pct, margin_right_pct,
header_text (exact repeating header text, "" if none),
footer_text (exact repeating footer text, "" if none),
page_number_format (e.g. "- N -", "N", "" if none),
decorative_zones (array of {x_pct, y_pct, width_pct, height_pct, pattern}),
footnote_style ("numbered", "symbolic" or "none"),
columns ("single", "double" or "mixed").
Respond with only the JSON object.`

// AnalyzeLayout is pass 1. It samples pages at fixed percentage offsets and
// aggregates per-page responses into a LayoutProfile. Each AI call retries
// transient failures per opts.Retry; only after retries exhaust does the page
// fall back to defaults. This pass never aborts the conversion.
func AnalyzeLayout(ctx context.Context, doc render.Service, conv providers.Converter, opts AnalyzeOptions, log *slog.Logger) *types.LayoutProfile {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("pass", "layout")

	profile := DefaultLayoutProfile()

	pageCount, err := doc.PageCount()
	if err != nil || pageCount < 1 {
		log.Warn("layout analysis skipped", "error", err)
		return profile
	}

	samples := PercentOffsets(pageCount, layoutSamplePercents)
	if pageCount == 1 {
		samples = []int{1}
	}

	var results []pageLayout
	for _, n := range samples {
		pl, err := analyzePage(ctx, doc, conv, n, opts)
		if err != nil {
			log.Warn("page layout analysis failed, using defaults", "page", n, "error", err)
			continue
		}
		results = append(results, *pl)
	}
	if len(results) == 0 {
		log.Warn("no layout samples succeeded, using default profile")
		return profile
	}

	aggregate(profile, results, len(samples))
	log.Debug("layout profile built",
		"samples", len(results),
		"header_patterns", len(profile.HeaderPatterns),
		"footer_patterns", len(profile.FooterPatterns),
		"columns", profile.Columns)
	return profile
}

// DefaultLayoutProfile is the conservative fallback when analysis fails.
func DefaultLayoutProfile() *types.LayoutProfile {
	return &types.LayoutProfile{
		Zones: types.ZoneBounds{
			HeaderBottomPct: 8,
			FooterTopPct:    92,
			MarginLeftPct:   10,
			MarginRightPct:  90,
		},
		FootnoteStyle: types.FootnotesNone,
		Columns:       types.ColumnsSingle,
	}
}

// analyzePage issues the structured call for one page, falling back to a
// free-form chat call when the first response is unparseable.
func analyzePage(ctx context.Context, doc render.Service, conv providers.Converter, n int, opts AnalyzeOptions) (*pageLayout, error) {
	imageB64, err := doc.RenderPage(ctx, n, render.RenderOptions{DPI: opts.DPI})
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", n, err)
	}
	text, _ := doc.PageText(n)

	prompt := layoutPrompt
	if text != "" {
		prompt += "\n\nExtracted page text for reference:\n" + Tail(text, 2000)
	}

	reply, err := robust.WithRetry(opts.Retry,
		robust.WithTimeout(opts.CallTimeout, func(cctx context.Context) (string, error) {
			return chatWithImage(cctx, conv, prompt, imageB64)
		}))(ctx)
	if err != nil {
		return nil, err
	}
	if pl := parsePageLayout(reply); pl != nil {
		return pl, nil
	}

	// Secondary free-form attempt with a stripped-down prompt.
	fallbackPrompt := "Reply with ONLY a JSON object. " + prompt + "\n\nPage text:\n" + Tail(text, 2000)
	reply, err = robust.WithRetry(opts.Retry,
		robust.WithTimeout(opts.CallTimeout, func(cctx context.Context) (string, error) {
			return conv.Chat(cctx, fallbackPrompt)
		}))(ctx)
	if err != nil {
		return nil, err
	}
	if pl := parsePageLayout(reply); pl != nil {
		return pl, nil
	}
	return nil, fmt.Errorf("page %d layout response unparseable", n)
}

// chatWithImage prefers the provider's vision capability when present.
func chatWithImage(ctx context.Context, conv providers.Converter, prompt, imageB64 string) (string, error) {
	if vc, ok := conv.(providers.VisionChatter); ok {
		return vc.ChatVision(ctx, prompt, imageB64)
	}
	return conv.Chat(ctx, prompt)
}

func parsePageLayout(reply string) *pageLayout {
	raw := extractJSON(reply)
	if raw == nil {
		return nil
	}
	var pl pageLayout
	if err := json.Unmarshal(raw, &pl); err != nil {
		return nil
	}
	clampPct(&pl.HeaderBottomPct, 0, 30, 8)
	clampPct(&pl.FooterTopPct, 70, 100, 92)
	clampPct(&pl.MarginLeftPct, 0, 40, 10)
	clampPct(&pl.MarginRightPct, 60, 100, 90)
	return &pl
}

func clampPct(v *float64, lo, hi, def float64) {
	if *v == 0 {
		*v = def
		return
	}
	if *v < lo {
		*v = lo
	}
	if *v > hi {
		*v = hi
	}
}

// aggregate combines per-page results: boundaries by median, patterns kept at
// the recurrence threshold, style fields by majority vote.
func aggregate(profile *types.LayoutProfile, results []pageLayout, sampleCount int) {
	profile.Zones = types.ZoneBounds{
		HeaderBottomPct: median(collect(results, func(p pageLayout) float64 { return p.HeaderBottomPct })),
		FooterTopPct:    median(collect(results, func(p pageLayout) float64 { return p.FooterTopPct })),
		MarginLeftPct:   median(collect(results, func(p pageLayout) float64 { return p.MarginLeftPct })),
		MarginRightPct:  median(collect(results, func(p pageLayout) float64 { return p.MarginRightPct })),
	}

	minRecur := int(float64(sampleCount)*patternRetainRatio + 0.5)
	if minRecur < 1 {
		minRecur = 1
	}
	profile.HeaderPatterns = recurringPatterns(results, minRecur, func(p pageLayout) string { return p.HeaderText })
	profile.FooterPatterns = recurringPatterns(results, minRecur, func(p pageLayout) string { return p.FooterText })
	profile.PageNumberPattern = pageNumberPattern(results, minRecur)
	profile.DecorativeZones = recurringZones(results, minRecur)

	profile.FootnoteStyle = types.FootnoteStyle(majority(results, string(types.FootnotesNone),
		func(p pageLayout) string { return p.FootnoteStyle }))

	// Column layout: majority vote, but any disagreement forces mixed.
	columns := make(map[string]bool)
	for _, r := range results {
		if r.Columns != "" {
			columns[r.Columns] = true
		}
	}
	switch {
	case len(columns) > 1:
		profile.Columns = types.ColumnsMixed
	case columns["double"]:
		profile.Columns = types.ColumnsDouble
	case columns["mixed"]:
		profile.Columns = types.ColumnsMixed
	default:
		profile.Columns = types.ColumnsSingle
	}
}

func collect(results []pageLayout, get func(pageLayout) float64) []float64 {
	out := make([]float64, 0, len(results))
	for _, r := range results {
		out = append(out, get(r))
	}
	return out
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func recurringPatterns(results []pageLayout, minRecur int, get func(pageLayout) string) []string {
	counts := make(map[string]int)
	for _, r := range results {
		if t := NormalizePattern(get(r)); t != "" {
			counts[t]++
		}
	}
	var out []string
	for pattern, n := range counts {
		if n >= minRecur {
			out = append(out, pattern)
		}
	}
	sort.Strings(out)
	return out
}

// pageNumberPattern turns the majority page-number format into a regexp source.
func pageNumberPattern(results []pageLayout, minRecur int) string {
	counts := make(map[string]int)
	for _, r := range results {
		if f := strings.TrimSpace(r.PageNumberFmt); f != "" {
			counts[NormalizePattern(f)]++
		}
	}
	best, n := "", 0
	for f, c := range counts {
		if c > n {
			best, n = f, c
		}
	}
	if n < minRecur || best == "" {
		return ""
	}
	// The normalized format uses '#' for the number; escape the rest.
	var sb strings.Builder
	sb.WriteString(`^\s*`)
	for _, r := range best {
		if r == '#' {
			sb.WriteString(`\d+`)
		} else {
			sb.WriteString(escapeRegexRune(r))
		}
	}
	sb.WriteString(`\s*$`)
	return sb.String()
}

func escapeRegexRune(r rune) string {
	switch r {
	case '\\', '.', '+', '*', '?', '(', ')', '|', '[', ']', '{', '}', '^', '$':
		return `\` + string(r)
	}
	return string(r)
}

func recurringZones(results []pageLayout, minRecur int) []types.ImageZone {
	type zoneAgg struct {
		zone  types.ImageZone
		count int
	}
	var aggs []zoneAgg
	for _, r := range results {
		for _, z := range r.DecorativeZones {
			matched := false
			for i := range aggs {
				if zonesOverlap(aggs[i].zone, z) {
					aggs[i].count++
					matched = true
					break
				}
			}
			if !matched {
				aggs = append(aggs, zoneAgg{zone: z, count: 1})
			}
		}
	}
	var out []types.ImageZone
	for _, a := range aggs {
		if a.count >= minRecur {
			out = append(out, a.zone)
		}
	}
	return out
}

func zonesOverlap(a, b types.ImageZone) bool {
	return a.XPct < b.XPct+b.WidthPct && b.XPct < a.XPct+a.WidthPct &&
		a.YPct < b.YPct+b.HeightPct && b.YPct < a.YPct+a.HeightPct
}

func majority(results []pageLayout, def string, get func(pageLayout) string) string {
	counts := make(map[string]int)
	for _, r := range results {
		if v := get(r); v != "" {
			counts[v]++
		}
	}
	best, n := def, 0
	for v, c := range counts {
		if c > n {
			best, n = v, c
		}
	}
	return best
}

// extractJSON pulls the first balanced JSON object out of a model reply.
func extractJSON(s string) []byte {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil
	}
	depth, inStr, esc := 0, false, false
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
