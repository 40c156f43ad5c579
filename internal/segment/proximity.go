package segment

import (
	"strings"

	"github.com/fyerfyer/manual-ingest/internal/layout"
)

const (
	// ProximityThreshold is the vertical-center distance (in page units)
	// within which a text span counts as belonging to an image. Fixed,
	// not externally configurable.
	ProximityThreshold = 50.0

	// maxNearbyText caps how many context snippets one image collects.
	maxNearbyText = 3

	// fusedTextFallback is emitted when an image has neither a caption
	// nor any nearby text.
	fusedTextFallback = "Image"
)

// captionKeywords mark text above an image as a caption.
var captionKeywords = []string{"figure", "fig", "image", "diagram", "scheme"}

// Match is the outcome of pairing one image with the text on its page.
type Match struct {
	Caption    string
	NearbyText []string
}

// FusedText joins caption and context into the text of a fused unit.
// An empty match yields the literal "Image".
func (m Match) FusedText() string {
	parts := make([]string, 0, 1+len(m.NearbyText))
	if m.Caption != "" {
		parts = append(parts, m.Caption)
	}
	parts = append(parts, m.NearbyText...)

	if len(parts) == 0 {
		return fusedTextFallback
	}
	return strings.Join(parts, " ")
}

// ProximityMatcher classifies text spans around an image as caption or
// context using vertical-center distance. Stateless, safe to share.
type ProximityMatcher struct {
	threshold float64
}

// NewProximityMatcher creates a matcher with the fixed threshold.
func NewProximityMatcher() *ProximityMatcher {
	return &ProximityMatcher{threshold: ProximityThreshold}
}

// Match evaluates every text span on the image's page, in input order:
//
//   - strictly above the image within 2x threshold: caption if the text
//     carries a caption keyword (first match wins, later caption-like
//     spans are discarded), otherwise context;
//   - strictly below within 2x threshold: context;
//   - horizontally overlapping within threshold: context.
//
// Context is truncated to the first 3 matches in input order; matches
// are never re-sorted by distance, so identical input yields identical
// output.
func (m *ProximityMatcher) Match(img layout.ImageSpan, spans []layout.TextSpan) Match {
	var match Match

	imgCenter := img.BBox.CenterY()

	for _, span := range spans {
		if span.Page != img.Page {
			continue
		}

		distance := span.BBox.CenterY() - imgCenter
		if distance < 0 {
			distance = -distance
		}

		switch {
		case span.BBox.Y2 < img.BBox.Y1 && distance < m.threshold*2:
			// Above the image: caption candidate.
			if isCaptionText(span.Text) {
				if match.Caption == "" {
					match.Caption = span.Text
				}
				continue
			}
			match.NearbyText = append(match.NearbyText, span.Text)

		case span.BBox.Y1 > img.BBox.Y2 && distance < m.threshold*2:
			match.NearbyText = append(match.NearbyText, span.Text)

		case span.BBox.OverlapsX(img.BBox) && distance < m.threshold:
			match.NearbyText = append(match.NearbyText, span.Text)
		}
	}

	if len(match.NearbyText) > maxNearbyText {
		match.NearbyText = match.NearbyText[:maxNearbyText]
	}

	return match
}

// isCaptionText reports whether text contains a caption keyword.
func isCaptionText(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, keyword := range captionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
