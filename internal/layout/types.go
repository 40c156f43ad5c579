package layout

// BBox is an axis-aligned rectangle in page coordinate space.
// Y grows downward, matching the extraction collaborator's output.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// CenterY returns the vertical center of the box.
func (b BBox) CenterY() float64 {
	return (b.Y1 + b.Y2) / 2
}

// OverlapsX reports whether two boxes share any horizontal range.
func (b BBox) OverlapsX(other BBox) bool {
	return b.X1 < other.X2 && b.X2 > other.X1
}

// SpanKind classifies a text span as detected by the extractor.
type SpanKind string

const (
	// KindParagraph is regular body text
	KindParagraph SpanKind = "paragraph"
	// KindCaption is text the extractor flagged as caption-like
	KindCaption SpanKind = "caption"
	// KindListItem is a bullet or numbered list entry
	KindListItem SpanKind = "list_item"
)

// TextSpan is a positioned block of text on a page.
// Spans are immutable once extracted.
type TextSpan struct {
	Text string   `json:"text"`
	BBox BBox     `json:"bbox"`
	Page int      `json:"page"`
	Kind SpanKind `json:"kind"`
}

// ImageSpan is a positioned image on a page. ImageRef is the opaque
// handle assigned by the image store once the bytes are persisted;
// it is empty until then. Data carries the raw bytes handed over by
// the extraction collaborator and is never decoded here.
type ImageSpan struct {
	BBox        BBox   `json:"bbox"`
	Page        int    `json:"page"`
	ImageRef    string `json:"image_ref,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// Heading is a detected section heading with its outline level (1..6).
type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
	BBox  BBox   `json:"bbox"`
	Page  int    `json:"page"`
}

// PageExtract is everything the extraction collaborator produced for one page.
type PageExtract struct {
	PageNumber int        `json:"page_number"`
	TextSpans  []TextSpan `json:"text_spans"`
	ImageSpans []ImageSpan `json:"image_spans"`
	Headings   []Heading  `json:"headings"`
}

// DocumentExtract is the full per-document extraction handed to the engine.
type DocumentExtract struct {
	DocID      string        `json:"doc_id"`
	Title      string        `json:"title"`
	TotalPages int           `json:"total_pages"`
	Pages      []PageExtract `json:"pages"`
}
