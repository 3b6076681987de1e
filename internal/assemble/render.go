package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pagemill/pagemill/internal/types"
)

// imagePlaceholderRe matches image placeholders the extraction pass leaves in
// section content: ![alt](img-id) where img-id keys the image map.
var imagePlaceholderRe = regexp.MustCompile(`!\[([^\]]*)\]\(([A-Za-z0-9_\-]+)\)`)

// renderSection emits one section: heading prefix, normalized content,
// resolved images.
func renderSection(sb *strings.Builder, s *types.Section, images map[string]*types.ImageRef) {
	if s.Level > 0 && strings.TrimSpace(s.Title) != "" {
		fmt.Fprintf(sb, "%s %s\n\n", strings.Repeat("#", s.Level), strings.TrimSpace(s.Title))
	}

	content := NormalizeFootnoteMarkers(s.Content)
	content = resolveImages(content, images)
	content = strings.TrimSpace(content)
	if content != "" {
		sb.WriteString(content)
		sb.WriteString("\n\n")
	}
}

// resolveImages replaces image placeholders with data-URL images. Unresolved
// and decorative references are dropped silently.
func resolveImages(content string, images map[string]*types.ImageRef) string {
	return imagePlaceholderRe.ReplaceAllStringFunc(content, func(m string) string {
		sub := imagePlaceholderRe.FindStringSubmatch(m)
		id := sub[2]
		img, ok := images[id]
		if !ok {
			// Dangling placeholder.
			return ""
		}
		if img.IsDecorative || img.DataURL == "" {
			return ""
		}
		desc := img.Description
		if desc == "" {
			desc = sub[1]
		}
		return fmt.Sprintf("![%s](%s)", desc, img.DataURL)
	})
}
