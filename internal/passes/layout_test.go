package passes

import (
	"context"
	"regexp"
	"testing"

	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/render"
	"github.com/pagemill/pagemill/internal/types"
)

const journalLayoutReply = `{
  "header_bottom_pct": 7,
  "footer_top_pct": 93,
  "margin_left_pct": 12,
  "margin_right_pct": 88,
  "header_text": "Journal of Testing 12",
  "footer_text": "",
  "page_number_format": "- 12 -",
  "decorative_zones": [],
  "footnote_style": "numbered",
  "columns": "double"
}`

func TestAnalyzeLayout(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates consistent samples", func(t *testing.T) {
		doc := render.NewMockService(10)
		conv := providers.NewMockConverter()
		conv.ChatReply = func(string) string { return journalLayoutReply }

		profile := AnalyzeLayout(ctx, doc, conv, AnalyzeOptions{DPI: 150}, nil)
		if profile.Zones.HeaderBottomPct != 7 || profile.Zones.FooterTopPct != 93 {
			t.Errorf("unexpected zones: %+v", profile.Zones)
		}
		if len(profile.HeaderPatterns) != 1 || profile.HeaderPatterns[0] != "Journal of Testing #" {
			t.Errorf("unexpected header patterns: %v", profile.HeaderPatterns)
		}
		if profile.FootnoteStyle != types.FootnotesNumbered {
			t.Errorf("footnote style = %s", profile.FootnoteStyle)
		}
		if profile.Columns != types.ColumnsDouble {
			t.Errorf("columns = %s", profile.Columns)
		}
		if profile.PageNumberPattern == "" {
			t.Error("expected a page number pattern")
		}
	})

	t.Run("all failures yield default profile", func(t *testing.T) {
		doc := render.NewMockService(5)
		conv := providers.NewMockConverter()
		conv.FailAlways = true

		profile := AnalyzeLayout(ctx, doc, conv, AnalyzeOptions{DPI: 150}, nil)
		def := DefaultLayoutProfile()
		if profile.Zones != def.Zones || profile.Columns != def.Columns {
			t.Errorf("expected default profile, got %+v", profile)
		}
	})

	t.Run("transient failures retried before defaults", func(t *testing.T) {
		doc := render.NewMockService(10)
		conv := providers.NewMockConverter()
		conv.FailTimes = 5 // every sample's first attempt fails
		conv.ChatReply = func(string) string { return journalLayoutReply }

		profile := AnalyzeLayout(ctx, doc, conv, AnalyzeOptions{
			DPI:   150,
			Retry: fastRetryPolicy(),
		}, nil)
		if profile.Zones == DefaultLayoutProfile().Zones {
			t.Fatal("retryable failures degraded straight to the default profile")
		}
		if profile.Columns != types.ColumnsDouble {
			t.Errorf("columns = %s, want double", profile.Columns)
		}
	})

	t.Run("unparseable replies fall back to defaults", func(t *testing.T) {
		doc := render.NewMockService(5)
		conv := providers.NewMockConverter()
		conv.ChatReply = func(string) string { return "no json here" }

		profile := AnalyzeLayout(ctx, doc, conv, AnalyzeOptions{DPI: 150}, nil)
		if profile.Zones != DefaultLayoutProfile().Zones {
			t.Errorf("expected default zones, got %+v", profile.Zones)
		}
	})

	t.Run("column disagreement forces mixed", func(t *testing.T) {
		doc := render.NewMockService(10)
		conv := providers.NewMockConverter()
		replies := []string{
			`{"columns": "single"}`,
			`{"columns": "double"}`,
			`{"columns": "single"}`,
			`{"columns": "single"}`,
			`{"columns": "double"}`,
		}
		i := 0
		conv.ChatReply = func(string) string {
			r := replies[i%len(replies)]
			i++
			return r
		}

		profile := AnalyzeLayout(ctx, doc, conv, AnalyzeOptions{DPI: 150}, nil)
		if profile.Columns != types.ColumnsMixed {
			t.Errorf("columns = %s, want mixed", profile.Columns)
		}
	})
}

func TestPageNumberPattern(t *testing.T) {
	results := []pageLayout{
		{PageNumberFmt: "- 12 -"},
		{PageNumberFmt: "- 13 -"},
		{PageNumberFmt: "- 14 -"},
	}
	src := pageNumberPattern(results, 2)
	if src == "" {
		t.Fatal("expected a pattern")
	}
	re, err := regexp.Compile(src)
	if err != nil {
		t.Fatalf("pattern %q does not compile: %v", src, err)
	}
	if !re.MatchString("- 57 -") {
		t.Errorf("pattern %q does not match a page number line", src)
	}
	if re.MatchString("chapter - 57 - end") {
		t.Errorf("pattern %q matches prose", src)
	}
}
