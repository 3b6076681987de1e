package passes

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/render"
	"github.com/pagemill/pagemill/internal/robust"
	"github.com/pagemill/pagemill/internal/types"
)

// ExtractOptions configure the content-extraction pass.
type ExtractOptions struct {
	DPI             int
	Concurrency     int           // > 1 enables parallel page conversion
	MinCallInterval time.Duration // spacing between successive AI calls
	CallTimeout     time.Duration // per-call timeout, 0 disables
	Retry           robust.RetryPolicy
	OnPage          func(page, total int)
}

// ExtractResult is the pass output: extracted content plus the failure
// records and usage accumulated along the way.
type ExtractResult struct {
	Raw      *types.RawContent
	Usage    providers.Usage
	Errors   []robust.ErrorRecord
	Language string
}

// FullSuccess reports whether every page converted without substitution.
func (r *ExtractResult) FullSuccess() bool {
	for _, e := range r.Errors {
		if e.Recovered {
			return false
		}
	}
	return len(r.Errors) == 0
}

const contextTailChars = 800

// ExtractContent is pass 3. Pages are converted one at a time (or in a bounded
// worker pool when Concurrency > 1), each call wrapped with retry, timeout and
// rate limiting. A page that still fails after retries is recorded and
// replaced with an empty fragment so the document conversion completes.
func ExtractContent(ctx context.Context, doc render.Service, conv providers.Converter, layout *types.LayoutProfile, structure *types.StructureProfile, opts ExtractOptions, log *slog.Logger) (*ExtractResult, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("pass", "extract")

	pageCount, err := doc.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if pageCount < 1 {
		return nil, fmt.Errorf("document has no pages")
	}

	if layout == nil {
		layout = DefaultLayoutProfile()
	}
	if structure == nil {
		structure = DefaultStructureProfile(pageCount)
	}

	ex := &extractor{
		doc:       doc,
		conv:      conv,
		layout:    layout,
		structure: structure,
		opts:      opts,
		log:       log,
		limiter:   robust.NewLimiter(opts.Concurrency, opts.MinCallInterval),
		result:    &ExtractResult{Raw: types.NewRawContent()},
		pageCount: pageCount,
	}

	if opts.Concurrency > 1 {
		err = ex.runParallel(ctx)
	} else {
		err = ex.runSequential(ctx)
	}
	if err != nil {
		return nil, err
	}

	ex.linkContinuations()
	log.Info("extraction complete",
		"pages", pageCount,
		"sections", len(ex.result.Raw.Sections),
		"footnotes", len(ex.result.Raw.Footnotes),
		"images", len(ex.result.Raw.Images),
		"errors", len(ex.result.Errors))
	return ex.result, nil
}

type extractor struct {
	doc       render.Service
	conv      providers.Converter
	layout    *types.LayoutProfile
	structure *types.StructureProfile
	opts      ExtractOptions
	log       *slog.Logger
	limiter   *robust.Limiter
	pageCount int

	mu     sync.Mutex
	result *ExtractResult

	// Sequential-mode continuity state.
	prevContent string
	prevSummary string
	openSection string
}

// pageOutcome holds everything parsed from one page, collected before the
// shared result is updated.
type pageOutcome struct {
	page      int
	sections  []*types.Section
	footnotes []*types.Footnote
	images    []*types.ImageRef
	usage     providers.Usage
	failed    error
}

func (ex *extractor) runSequential(ctx context.Context) error {
	for n := 1; n <= ex.pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome := ex.convertPage(ctx, n, ex.prevContent, ex.prevSummary, ex.openSection)
		ex.apply(outcome)

		if outcome.failed == nil && len(outcome.sections) > 0 {
			last := outcome.sections[len(outcome.sections)-1]
			ex.prevContent = Tail(last.Content, contextTailChars)
			for i := len(outcome.sections) - 1; i >= 0; i-- {
				if outcome.sections[i].Level > 0 {
					ex.openSection = outcome.sections[i].Title
					break
				}
			}
		}
		if ex.opts.OnPage != nil {
			ex.opts.OnPage(n, ex.pageCount)
		}
	}
	return nil
}

// runParallel converts pages in a bounded worker pool. Cross-page continuity
// context is deliberately empty here; continuation links are recovered
// afterwards from the text itself.
func (ex *extractor) runParallel(ctx context.Context) error {
	outcomes := make([]*pageOutcome, ex.pageCount+1)
	pages := make(chan int)

	workers := ex.opts.Concurrency
	if workers > ex.pageCount {
		workers = ex.pageCount
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range pages {
				outcome := ex.convertPage(ctx, n, "", "", "")
				ex.mu.Lock()
				outcomes[n] = outcome
				ex.mu.Unlock()
				if ex.opts.OnPage != nil {
					ex.opts.OnPage(n, ex.pageCount)
				}
			}
		}()
	}

	for n := 1; n <= ex.pageCount; n++ {
		select {
		case <-ctx.Done():
			close(pages)
			wg.Wait()
			return ctx.Err()
		case pages <- n:
		}
	}
	close(pages)
	wg.Wait()

	// Fold outcomes back in page order so section IDs stay deterministic.
	for n := 1; n <= ex.pageCount; n++ {
		if outcomes[n] != nil {
			ex.apply(outcomes[n])
		}
	}
	return ctx.Err()
}

// convertPage renders one page and runs the decorated AI call, parsing the
// response into sections, footnotes and images. Failures produce an outcome
// with an empty fragment instead of propagating.
func (ex *extractor) convertPage(ctx context.Context, n int, prevContent, prevSummary, openSection string) *pageOutcome {
	out := &pageOutcome{page: n}

	imageB64, err := ex.doc.RenderPage(ctx, n, render.RenderOptions{DPI: ex.opts.DPI})
	if err != nil {
		out.failed = fmt.Errorf("failed to render page %d: %w", n, err)
		out.sections = []*types.Section{emptyFragment(n)}
		return out
	}

	pageText, _ := ex.doc.PageText(n)
	pc := providers.PageContext{
		PageNumber:        n,
		TotalPages:        ex.pageCount,
		PageText:          FilterRepeatedLines(pageText, ex.allPatterns(), ex.layout.PageNumberPattern),
		PreviousContent:   prevContent,
		PreviousSummary:   prevSummary,
		ExpectedHeadings:  ex.headingsForPage(n),
		CurrentSection:    openSection,
		HeaderPatterns:    ex.layout.HeaderPatterns,
		FooterPatterns:    ex.layout.FooterPatterns,
		PageNumberPattern: ex.layout.PageNumberPattern,
		Language:          ex.language(),
	}

	call := robust.WithRetry(ex.opts.Retry,
		robust.WithTimeout(ex.opts.CallTimeout,
			robust.WithRateLimit(ex.limiter, func(cctx context.Context) (*providers.PageResult, error) {
				return ex.conv.ConvertPage(cctx, imageB64, pc)
			})))

	result, err := call(ctx)
	if err != nil {
		ex.log.Warn("page conversion failed, substituting empty fragment", "page", n, "error", err)
		out.failed = err
		out.sections = []*types.Section{emptyFragment(n)}
		return out
	}

	out.usage = result.Usage
	out.sections = parseSections(result.Content, n)
	out.footnotes = extractFootnotes(out.sections, n, ex.footnoteStyle())
	out.images = ex.collectImages(n, imageB64, result.Images)
	ex.tagRefs(out)

	if result.Summary != "" {
		ex.mu.Lock()
		ex.prevSummary = result.Summary
		if result.Language != "" && ex.result.Language == "" {
			ex.result.Language = result.Language
		}
		ex.mu.Unlock()
	}
	return out
}

// apply folds one page outcome into the shared result.
func (ex *extractor) apply(out *pageOutcome) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	ex.result.Raw.Sections = append(ex.result.Raw.Sections, out.sections...)
	for _, fn := range out.footnotes {
		ex.result.Raw.Footnotes[fn.ID] = fn
	}
	for _, img := range out.images {
		ex.result.Raw.Images[img.ID] = img
	}
	ex.result.Usage.Add(out.usage)
	if out.failed != nil {
		ex.result.Errors = append(ex.result.Errors,
			robust.NewErrorRecord(fmt.Sprintf("page %d", out.page), out.failed, true))
	}
}

func (ex *extractor) allPatterns() []string {
	return append(append([]string{}, ex.layout.HeaderPatterns...), ex.layout.FooterPatterns...)
}

func (ex *extractor) language() string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.result.Language
}

func (ex *extractor) footnoteStyle() types.FootnoteStyle {
	if ex.structure.CrossRefs.FootnoteStyle != "" && ex.structure.CrossRefs.FootnoteStyle != types.FootnotesNone {
		return ex.structure.CrossRefs.FootnoteStyle
	}
	return ex.layout.FootnoteStyle
}

// headingsForPage collects TOC titles whose page matches n.
func (ex *extractor) headingsForPage(n int) []string {
	var out []string
	var walk func(entries []types.TocEntry)
	walk = func(entries []types.TocEntry) {
		for _, e := range entries {
			if e.Page == n {
				out = append(out, e.Title)
			}
			walk(e.Children)
		}
	}
	walk(ex.structure.Toc.Entries)
	return out
}

// collectImages classifies and crops the images the model located on a page.
func (ex *extractor) collectImages(page int, imageB64 string, placements map[string]providers.ImagePlacement) []*types.ImageRef {
	if len(placements) == 0 {
		return nil
	}
	var out []*types.ImageRef
	for id, p := range placements {
		ref := &types.ImageRef{
			ID:          scopedImageID(page, id),
			Description: p.Description,
			Page:        page,
		}
		if ex.isDecorative(p) {
			ref.IsDecorative = true
			out = append(out, ref)
			continue
		}
		dataURL, err := ex.doc.CropImage(imageB64, render.BBox(p.BBox))
		if err != nil {
			ex.log.Warn("image crop failed, dropping image", "page", page, "image", id, "error", err)
			ref.IsDecorative = true
		} else {
			ref.DataURL = dataURL
		}
		out = append(out, ref)
	}
	return out
}

// isDecorative applies the layout-zone and logo/icon heuristics.
func (ex *extractor) isDecorative(p providers.ImagePlacement) bool {
	ymin, xmin, ymax, xmax := p.BBox[0], p.BBox[1], p.BBox[2], p.BBox[3]
	if ymax <= ymin || xmax <= xmin {
		return true
	}
	cy := float64(ymin+ymax) / 2 / 10 // 0-1000 scale to percent
	cx := float64(xmin+xmax) / 2 / 10
	for _, z := range ex.layout.DecorativeZones {
		if cx >= z.XPct && cx <= z.XPct+z.WidthPct && cy >= z.YPct && cy <= z.YPct+z.HeightPct {
			return true
		}
	}
	// Tiny images in the header or footer band are logos and ornaments.
	hPct := float64(ymax-ymin) / 10
	wPct := float64(xmax-xmin) / 10
	if hPct < 6 && wPct < 15 && (cy < ex.layout.Zones.HeaderBottomPct || cy > ex.layout.Zones.FooterTopPct) {
		return true
	}
	desc := strings.ToLower(p.Description)
	return strings.Contains(desc, "logo") || strings.Contains(desc, "icon") || strings.Contains(desc, "decorat")
}

// tagRefs records which footnotes and images each section references.
func (ex *extractor) tagRefs(out *pageOutcome) {
	for _, s := range out.sections {
		for _, fn := range out.footnotes {
			if strings.Contains(s.Content, "[^"+fn.ID+"]") || strings.Contains(s.Content, "["+fn.ID+"]") {
				s.FootnoteRefs = append(s.FootnoteRefs, fn.ID)
			}
		}
		for _, img := range out.images {
			if strings.Contains(s.Content, "("+img.ID+")") {
				s.ImageRefs = append(s.ImageRefs, img.ID)
			}
		}
	}
}

// linkContinuations connects a page whose trailing text looks grammatically
// incomplete to the opener of the following page, when that opener has no
// heading or starts with a lowercase letter.
func (ex *extractor) linkContinuations() {
	sections := ex.result.Raw.Sections
	for i := 1; i < len(sections); i++ {
		prev, cur := sections[i-1], sections[i]
		if cur.Page != prev.Page+1 || cur.ContinuesFrom != "" {
			continue
		}
		if !EndsIncomplete(prev.Content) {
			continue
		}
		if cur.Level != 0 && !startsLowercase(cur.Content) {
			continue
		}
		if strings.TrimSpace(cur.Content) == "" || strings.TrimSpace(prev.Content) == "" {
			continue
		}
		cur.ContinuesFrom = prev.ID
	}
}

func startsLowercase(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	r := []rune(t)[0]
	return r >= 'a' && r <= 'z'
}

var headingLineRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// parseSections splits converted page markdown into sections at heading lines.
// Content before the first heading becomes a level-0 fragment.
func parseSections(content string, page int) []*types.Section {
	lines := strings.Split(content, "\n")
	var sections []*types.Section
	var current *types.Section
	var body []string

	flush := func() {
		if current == nil {
			text := strings.TrimSpace(strings.Join(body, "\n"))
			if text != "" {
				sections = append(sections, &types.Section{
					ID:      sectionID(page, len(sections)),
					Level:   0,
					Content: text,
					Page:    page,
				})
			}
		} else {
			current.Content = strings.TrimSpace(strings.Join(body, "\n"))
			sections = append(sections, current)
		}
		body = nil
	}

	for _, line := range lines {
		if m := headingLineRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &types.Section{
				ID:    sectionID(page, len(sections)),
				Level: len(m[1]),
				Title: strings.TrimSpace(m[2]),
				Page:  page,
			}
			continue
		}
		body = append(body, line)
	}
	flush()

	if len(sections) == 0 {
		sections = append(sections, emptyFragment(page))
	}
	return sections
}

func sectionID(page, idx int) string {
	return fmt.Sprintf("p%d-s%d", page, idx)
}

func scopedImageID(page int, id string) string {
	if strings.HasPrefix(id, fmt.Sprintf("p%d-", page)) {
		return id
	}
	return fmt.Sprintf("p%d-%s", page, id)
}

// emptyFragment is the substitution for a page that could not be converted.
func emptyFragment(page int) *types.Section {
	return &types.Section{
		ID:    sectionID(page, 0),
		Level: 0,
		Page:  page,
	}
}

var (
	numberedDefRe = regexp.MustCompile(`(?m)^\[\^(\w+)\]:\s*(.+)$`)
	trailingNumRe = regexp.MustCompile(`^(\d{1,3})\.\s+(.+)$`)
	symbolicDefRe = regexp.MustCompile(`^([*†‡§])\s+(.+)$`)
)

// extractFootnotes pulls definition lines out of section content. Canonical
// markdown definitions are always recognized; bare "N. text" trailing lines
// only when the document uses numbered footnotes, symbol lines only for
// symbolic style.
func extractFootnotes(sections []*types.Section, page int, style types.FootnoteStyle) []*types.Footnote {
	var out []*types.Footnote
	for _, s := range sections {
		var kept []string
		lines := strings.Split(s.Content, "\n")
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			if m := numberedDefRe.FindStringSubmatch(trimmed); m != nil {
				out = append(out, &types.Footnote{ID: m[1], Content: m[2], Page: page})
				continue
			}
			if style == types.FootnotesSymbolic {
				if m := symbolicDefRe.FindStringSubmatch(trimmed); m != nil {
					out = append(out, &types.Footnote{ID: m[1], Content: m[2], Page: page})
					continue
				}
			}
			if style == types.FootnotesNumbered && isTrailingRegion(lines, i) {
				if m := trailingNumRe.FindStringSubmatch(trimmed); m != nil &&
					referencesMarker(s.Content, m[1]) {
					out = append(out, &types.Footnote{ID: m[1], Content: m[2], Page: page})
					continue
				}
			}
			kept = append(kept, line)
		}
		s.Content = strings.TrimSpace(strings.Join(kept, "\n"))
	}
	return out
}

// isTrailingRegion reports whether line i sits in the last quarter of the
// section, where footnote definitions live.
func isTrailingRegion(lines []string, i int) bool {
	return i >= len(lines)*3/4
}

// referencesMarker reports whether the content carries a marker for id before
// its definition line, distinguishing footnote lists from ordered lists.
func referencesMarker(content, id string) bool {
	return strings.Contains(content, "[^"+id+"]") || strings.Contains(content, "["+id+"]")
}
