package storage

import (
	"io"
)

// ImageInfo describes a persisted image asset.
type ImageInfo struct {
	Ref   string // opaque reference recorded on content units
	Hash  string // sha256 hex digest of the raw bytes
	Size  int64  // byte size
	DocID string // owning document
	Page  int    // source page
	Path  string // backend-specific location
}

// Storage persists the image assets extracted from manuals. The
// segmentation engine records only the returned reference and hash;
// it never decodes the bytes.
type Storage interface {
	// Save persists image bytes for a document page and returns the
	// assigned reference plus content hash
	Save(reader io.Reader, docID string, page int) (ImageInfo, error)

	// Get streams a stored asset by reference
	Get(ref string) (io.ReadCloser, error)

	// Delete removes a stored asset
	Delete(ref string) error

	// List enumerates a document's assets; empty docID lists everything
	List(docID string) ([]ImageInfo, error)

	// Exists reports whether a reference resolves to a stored asset
	Exists(ref string) (bool, error)
}
