// Package types provides shared types used across multiple packages.
// This package has no dependencies on other pagemill packages to avoid import cycles.
package types

// ComplexityLevel describes how hard a document is to convert.
type ComplexityLevel string

const (
	ComplexitySimple   ComplexityLevel = "simple"
	ComplexityModerate ComplexityLevel = "moderate"
	ComplexityComplex  ComplexityLevel = "complex"
)

// PipelineType identifies a conversion strategy.
type PipelineType string

const (
	PipelineDirect      PipelineType = "direct"
	PipelineLight       PipelineType = "light"
	PipelineFull        PipelineType = "full"
	PipelineIntelligent PipelineType = "intelligent"
)

// ParsePipelineType converts a string to a PipelineType.
// Returns empty string if the string is not recognized.
func ParsePipelineType(s string) PipelineType {
	switch s {
	case "direct":
		return PipelineDirect
	case "light":
		return PipelineLight
	case "full":
		return PipelineFull
	case "intelligent":
		return PipelineIntelligent
	default:
		return ""
	}
}

// ComplexityFactors are the raw signals the classifier extrapolated from its page sample.
type ComplexityFactors struct {
	PageCount       int         `json:"page_count" yaml:"page_count"`
	HasTOC          bool        `json:"has_toc" yaml:"has_toc"`
	EstimatedImages int         `json:"estimated_images" yaml:"estimated_images"`
	EstimatedTables int         `json:"estimated_tables" yaml:"estimated_tables"`
	TextDensity     TextDensity `json:"text_density" yaml:"text_density"`
	StructuralDepth int         `json:"structural_depth" yaml:"structural_depth"`
	HasCode         bool        `json:"has_code" yaml:"has_code"`
	HasMath         bool        `json:"has_math" yaml:"has_math"`
}

// TextDensity buckets the amount of text per sampled page.
type TextDensity string

const (
	DensitySparse TextDensity = "sparse"
	DensityNormal TextDensity = "normal"
	DensityDense  TextDensity = "dense"
)

// ComplexityAssessment is the classifier output. Computed once per document, immutable.
type ComplexityAssessment struct {
	Level               ComplexityLevel   `json:"level" yaml:"level"`
	Score               int               `json:"score" yaml:"score"`
	Factors             ComplexityFactors `json:"factors" yaml:"factors"`
	RecommendedPipeline PipelineType      `json:"recommended_pipeline" yaml:"recommended_pipeline"`
	EstimatedSeconds    int               `json:"estimated_seconds" yaml:"estimated_seconds"`
	Reasoning           []string          `json:"reasoning" yaml:"reasoning"`
}

// ZoneBounds are page zone boundaries expressed as percentages of page dimensions.
type ZoneBounds struct {
	HeaderBottomPct float64 `json:"header_bottom_pct"`
	FooterTopPct    float64 `json:"footer_top_pct"`
	MarginLeftPct   float64 `json:"margin_left_pct"`
	MarginRightPct  float64 `json:"margin_right_pct"`
}

// FootnoteStyle describes how footnotes are marked in the document.
type FootnoteStyle string

const (
	FootnotesNumbered FootnoteStyle = "numbered"
	FootnotesSymbolic FootnoteStyle = "symbolic"
	FootnotesNone     FootnoteStyle = "none"
)

// ColumnLayout describes the page column arrangement.
type ColumnLayout string

const (
	ColumnsSingle ColumnLayout = "single"
	ColumnsDouble ColumnLayout = "double"
	ColumnsMixed  ColumnLayout = "mixed"
)

// ImageZone marks a region that holds decorative imagery on most pages.
type ImageZone struct {
	XPct      float64 `json:"x_pct"`
	YPct      float64 `json:"y_pct"`
	WidthPct  float64 `json:"width_pct"`
	HeightPct float64 `json:"height_pct"`
	Pattern   string  `json:"pattern,omitempty"` // e.g. "logo", "border"
}

// LayoutProfile is produced by the layout-analysis pass and consumed read-only
// by the later passes.
type LayoutProfile struct {
	Zones             ZoneBounds    `json:"zones"`
	HeaderPatterns    []string      `json:"header_patterns"`
	FooterPatterns    []string      `json:"footer_patterns"`
	PageNumberPattern string        `json:"page_number_pattern,omitempty"` // regexp source
	DecorativeZones   []ImageZone   `json:"decorative_zones"`
	FootnoteStyle     FootnoteStyle `json:"footnote_style"`
	Columns           ColumnLayout  `json:"columns"`
}

// DocumentType is the closed taxonomy used by structure analysis.
type DocumentType string

const (
	DocAcademic  DocumentType = "academic"
	DocBook      DocumentType = "book"
	DocReport    DocumentType = "report"
	DocMarketing DocumentType = "marketing"
	DocManual    DocumentType = "manual"
	DocLegal     DocumentType = "legal"
	DocOther     DocumentType = "other"
)

// ParseDocumentType converts a string to a DocumentType, defaulting to DocOther.
func ParseDocumentType(s string) DocumentType {
	switch DocumentType(s) {
	case DocAcademic, DocBook, DocReport, DocMarketing, DocManual, DocLegal:
		return DocumentType(s)
	default:
		return DocOther
	}
}

// TocEntry is one node of a (possibly nested) table of contents.
type TocEntry struct {
	Level    int        `json:"level"`
	Title    string     `json:"title"`
	Page     int        `json:"page"`
	Children []TocEntry `json:"children,omitempty"`
}

// PageRange is an inclusive 1-indexed page span.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether page n falls inside the range.
func (r PageRange) Contains(n int) bool {
	return n >= r.Start && n <= r.End
}

// HeadingStyle describes how headings of one level are typeset.
type HeadingStyle struct {
	Level     int    `json:"level"`
	Indicator string `json:"indicator"` // e.g. "numbered", "all-caps", "bold"
}

// Sections splits the document into front matter, body and back matter.
type Sections struct {
	FrontMatter *PageRange `json:"front_matter,omitempty"`
	Body        PageRange  `json:"body"`
	BackMatter  *PageRange `json:"back_matter,omitempty"`
}

// CrossReferences records footnote/citation conventions.
type CrossReferences struct {
	FootnoteStyle FootnoteStyle `json:"footnote_style"`
	CitationStyle string        `json:"citation_style,omitempty"`
}

// TOC is the explicit-or-inferred table of contents.
type TOC struct {
	Explicit bool       `json:"explicit"`
	Entries  []TocEntry `json:"entries"`
}

// Hierarchy describes the heading structure of the document.
type Hierarchy struct {
	MaxDepth      int            `json:"max_depth"`
	HeadingStyles []HeadingStyle `json:"heading_styles,omitempty"`
}

// StructureProfile is produced by the structure-analysis pass.
// Invariants: Body.Start <= Body.End; FrontMatter.End < Body.Start when present.
type StructureProfile struct {
	DocumentType DocumentType    `json:"document_type"`
	Toc          TOC             `json:"toc"`
	Hierarchy    Hierarchy       `json:"hierarchy"`
	Sections     Sections        `json:"sections"`
	CrossRefs    CrossReferences `json:"cross_references"`
}

// Section is one extracted content unit. Sections form a singly-linked
// continuation chain via ContinuesFrom; chains are flattened before rendering.
type Section struct {
	ID            string   `json:"id"`
	Level         int      `json:"level"` // 0 = untitled body text, 1-6 = heading levels
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Page          int      `json:"page"`
	FootnoteRefs  []string `json:"footnote_refs,omitempty"`
	ImageRefs     []string `json:"image_refs,omitempty"`
	ContinuesFrom string   `json:"continues_from,omitempty"`

	// Hierarchy repair bookkeeping, set by the organizer.
	OriginalLevel int  `json:"original_level,omitempty"`
	LevelFixed    bool `json:"level_fixed,omitempty"`
}

// Footnote is a footnote definition keyed by its marker id.
type Footnote struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Page    int    `json:"page"`
}

// ImageRef is an extracted image keyed by placeholder id.
type ImageRef struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	DataURL      string `json:"data_url"`
	Page         int    `json:"page"`
	IsDecorative bool   `json:"is_decorative"`
}

// RawContent aggregates everything the extraction pass produced for a document.
type RawContent struct {
	Sections             []*Section           `json:"sections"`
	Footnotes            map[string]*Footnote `json:"footnotes"`
	Images               map[string]*ImageRef `json:"images"`
	PendingContinuations []string             `json:"pending_continuations,omitempty"`
}

// NewRawContent returns an empty aggregate ready for extraction.
func NewRawContent() *RawContent {
	return &RawContent{
		Footnotes: make(map[string]*Footnote),
		Images:    make(map[string]*ImageRef),
	}
}

// WindowSpec is a contiguous page range processed as one AI request in the
// full pipeline. Windows are computed once per document and immutable thereafter.
type WindowSpec struct {
	WindowNumber     int      `json:"window_number"`
	StartPage        int      `json:"start_page"`
	EndPage          int      `json:"end_page"`
	SectionsInWindow []string `json:"sections_in_window,omitempty"`
	ExpectedHeadings []string `json:"expected_headings,omitempty"`
}

// Pages returns the page count covered by the window.
func (w WindowSpec) Pages() int {
	return w.EndPage - w.StartPage + 1
}
