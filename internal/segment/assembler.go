package segment

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/manual-ingest/internal/layout"
)

// UnitKind distinguishes fused image units from plain text units.
type UnitKind string

const (
	// UnitTextOnly is a grouped run of text spans
	UnitTextOnly UnitKind = "TEXT_ONLY"
	// UnitImageWithContext is an image fused with its caption and context
	UnitImageWithContext UnitKind = "IMAGE_WITH_CONTEXT"
)

// ContentUnit is the irreducible retrievable item handed downstream.
// Kind is UnitImageWithContext exactly when ImageRef is set.
type ContentUnit struct {
	ID           string
	DocID        string
	Page         int
	SectionTitle string
	SectionPath  string
	Text         string
	Kind         UnitKind
	ImageRef     string
	TokenCount   int
	Tags         []string
}

// ImageStore is the narrow interface to the image-storage collaborator.
// It persists raw image bytes and returns an opaque reference plus a
// content hash; the engine never decodes the bytes itself.
type ImageStore interface {
	SaveImage(docID string, page int, bbox layout.BBox, data []byte) (ref string, hash string, err error)
}

// Assembler turns per-page extraction geometry into ordered content
// units: one fused unit per image, then token-budgeted text-only groups
// from the spans no image consumed.
type Assembler struct {
	counter            Counter
	matcher            *ProximityMatcher
	images             ImageStore
	chunkSize          int
	minUnitSize        int
	enforceMinUnitSize bool
	logger             *logrus.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithChunkSize sets the token budget for text-only groups.
func WithChunkSize(size int) AssemblerOption {
	return func(a *Assembler) {
		if size > 0 {
			a.chunkSize = size
		}
	}
}

// WithImageStore sets the collaborator that persists image bytes.
func WithImageStore(store ImageStore) AssemblerOption {
	return func(a *Assembler) {
		a.images = store
	}
}

// WithMinUnitSize enables the optional lower bound on text-only groups.
// Off by default: the fused path historically emits every final group
// while the flat chunker drops undersized ones, and consumers may rely
// on either behavior.
func WithMinUnitSize(size int) AssemblerOption {
	return func(a *Assembler) {
		if size > 0 {
			a.minUnitSize = size
			a.enforceMinUnitSize = true
		}
	}
}

// WithAssemblerLogger sets the logger.
func WithAssemblerLogger(logger *logrus.Logger) AssemblerOption {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAssembler creates an assembler. The counter is shared with every
// other sizing decision in the pipeline.
func NewAssembler(counter Counter, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		counter:   counter,
		matcher:   NewProximityMatcher(),
		chunkSize: 600,
		logger:    logrus.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildUnits produces the ordered unit sequence for one document:
// pages ascending, and within a page images before text-only groups.
// Empty extraction yields an empty slice, never an error.
func (a *Assembler) BuildUnits(extract *layout.DocumentExtract) []ContentUnit {
	if extract == nil || len(extract.Pages) == 0 {
		return []ContentUnit{}
	}

	a.logger.WithField("doc_id", extract.DocID).Info("Building content units")

	pages := make([]layout.PageExtract, len(extract.Pages))
	copy(pages, extract.Pages)
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})

	units := make([]ContentUnit, 0)
	imageUnits := 0

	for _, page := range pages {
		hierarchy := NewHierarchyBuilder(page.Headings)

		for _, img := range page.ImageSpans {
			units = append(units, a.buildImageUnit(extract.DocID, page, img, hierarchy))
			imageUnits++
		}

		remaining := a.filterTextNearImages(page.TextSpans, page.ImageSpans)
		units = append(units, a.buildTextUnits(extract.DocID, page, remaining, hierarchy)...)
	}

	a.logger.WithFields(logrus.Fields{
		"doc_id":      extract.DocID,
		"units":       len(units),
		"image_units": imageUnits,
	}).Info("Content units built")

	return units
}

// buildImageUnit fuses one image with its nearby text into a unit.
func (a *Assembler) buildImageUnit(docID string, page layout.PageExtract, img layout.ImageSpan, hierarchy *HierarchyBuilder) ContentUnit {
	match := a.matcher.Match(img, page.TextSpans)
	fused := match.FusedText()

	ref := img.ImageRef
	if ref == "" && a.images != nil && len(img.Data) > 0 {
		saved, _, err := a.images.SaveImage(docID, img.Page, img.BBox, img.Data)
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"doc_id": docID,
				"page":   img.Page,
			}).Warn("Failed to persist image asset")
		} else {
			ref = saved
		}
	}
	if ref == "" {
		// The unit kind promises an image reference; mint one so the
		// pairing survives even when the asset store is unavailable.
		ref = uuid.New().String()
	}

	return ContentUnit{
		ID:           uuid.New().String(),
		DocID:        docID,
		Page:         page.PageNumber,
		SectionTitle: hierarchy.TitleAt(img.BBox.Y1),
		SectionPath:  hierarchy.Path(),
		Text:         fused,
		Kind:         UnitImageWithContext,
		ImageRef:     ref,
		TokenCount:   a.counter.Count(fused),
		Tags:         ExtractTags(fused),
	}
}

// buildTextUnits groups the remaining spans greedily under the token
// budget. The final group is emitted regardless of size unless the
// optional minimum is enabled. Section context comes from the position
// of each group's first span.
func (a *Assembler) buildTextUnits(docID string, page layout.PageExtract, spans []layout.TextSpan, hierarchy *HierarchyBuilder) []ContentUnit {
	units := make([]ContentUnit, 0)
	if len(spans) == 0 {
		return units
	}

	var groupTexts []string
	groupTokens := 0
	groupStart := spans[0]

	flush := func() {
		if len(groupTexts) == 0 {
			return
		}
		if a.enforceMinUnitSize && groupTokens < a.minUnitSize {
			groupTexts = nil
			groupTokens = 0
			return
		}
		text := strings.Join(groupTexts, " ")
		units = append(units, ContentUnit{
			ID:           uuid.New().String(),
			DocID:        docID,
			Page:         page.PageNumber,
			SectionTitle: hierarchy.TitleAt(groupStart.BBox.Y1),
			SectionPath:  hierarchy.Path(),
			Text:         text,
			Kind:         UnitTextOnly,
			TokenCount:   groupTokens,
			Tags:         ExtractTags(text),
		})
		groupTexts = nil
		groupTokens = 0
	}

	for _, span := range spans {
		spanTokens := a.counter.Count(span.Text)

		if groupTokens+spanTokens > a.chunkSize && len(groupTexts) > 0 {
			flush()
		}
		if len(groupTexts) == 0 {
			groupStart = span
		}
		groupTexts = append(groupTexts, span.Text)
		groupTokens += spanTokens
	}

	flush()
	return units
}

// filterTextNearImages drops spans whose vertical center lies within the
// proximity threshold of any image on the page, regardless of direction.
// Those spans already live inside a fused unit; emitting them again as
// text-only would duplicate the same sentence downstream.
func (a *Assembler) filterTextNearImages(spans []layout.TextSpan, images []layout.ImageSpan) []layout.TextSpan {
	if len(images) == 0 {
		return spans
	}

	filtered := make([]layout.TextSpan, 0, len(spans))
	for _, span := range spans {
		near := false
		for _, img := range images {
			if img.Page != span.Page {
				continue
			}
			distance := span.BBox.CenterY() - img.BBox.CenterY()
			if distance < 0 {
				distance = -distance
			}
			if distance < ProximityThreshold {
				near = true
				break
			}
		}
		if !near {
			filtered = append(filtered, span)
		}
	}

	return filtered
}
