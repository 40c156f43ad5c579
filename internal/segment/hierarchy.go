package segment

import (
	"sort"
	"strings"

	"github.com/fyerfyer/manual-ingest/internal/layout"
)

// pathSeparator joins heading titles into a human-readable breadcrumb.
const pathSeparator = " > "

// HierarchyBuilder resolves section context from detected headings.
// It is constructed over the headings of one page (or one document)
// and answers two questions: which heading governs a given vertical
// position, and what the hierarchical breadcrumb path looks like.
type HierarchyBuilder struct {
	headings []layout.Heading
}

// NewHierarchyBuilder creates a builder over the given headings.
// Headings are processed in document order: page, then top edge.
func NewHierarchyBuilder(headings []layout.Heading) *HierarchyBuilder {
	sorted := make([]layout.Heading, len(headings))
	copy(sorted, headings)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Page != sorted[j].Page {
			return sorted[i].Page < sorted[j].Page
		}
		if sorted[i].BBox.Y1 != sorted[j].BBox.Y1 {
			return sorted[i].BBox.Y1 < sorted[j].BBox.Y1
		}
		return sorted[i].Level < sorted[j].Level
	})

	return &HierarchyBuilder{headings: sorted}
}

// TitleAt returns the title of the nearest heading strictly above y,
// i.e. the heading with the largest bottom edge that is still <= y.
// The empty string means no heading governs this position.
func (b *HierarchyBuilder) TitleAt(y float64) string {
	var closest *layout.Heading
	minDistance := 0.0

	for i := range b.headings {
		h := &b.headings[i]
		if h.BBox.Y2 > y {
			continue
		}
		distance := y - h.BBox.Y2
		if closest == nil || distance < minDistance {
			closest = h
			minDistance = distance
		}
	}

	if closest == nil {
		return ""
	}
	return closest.Text
}

// Path builds the breadcrumb for the current position by replaying all
// headings through a level-keyed stack: a level-1 heading resets the
// stack, a heading at level L truncates the stack to L-1 entries before
// appending itself. Levels are not required to be contiguous; a heading
// deeper than the stack simply extends it.
func (b *HierarchyBuilder) Path() string {
	var stack []string

	for _, h := range b.headings {
		if h.Level == 1 {
			stack = []string{h.Text}
			continue
		}
		if h.Level-1 < len(stack) {
			stack = stack[:h.Level-1]
		}
		stack = append(stack, h.Text)
	}

	if len(stack) == 0 {
		return ""
	}
	return strings.Join(stack, pathSeparator)
}
