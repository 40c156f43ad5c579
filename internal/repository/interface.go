package repository

import "github.com/fyerfyer/manual-ingest/internal/models"

// DocumentRepository stores ingestion run metadata and the unit/chunk
// records produced per document. Records are namespaced by doc_id;
// workers never touch another document's rows.
type DocumentRepository interface {
	// Create registers a document for this ingestion run
	Create(doc *models.Document) error

	// Update rewrites a document row
	Update(doc *models.Document) error

	// GetByID fetches a document by doc_id
	GetByID(id string) (*models.Document, error)

	// GetByContentHash finds a previously ingested document with the
	// same source content, if any
	GetByContentHash(hash string) (*models.Document, error)

	// List pages through documents with optional status filtering
	List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)

	// Delete removes a document row
	Delete(id string) error

	// UpdateStatus transitions a document's ingestion status
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// UpdateProgress records progress and the current pipeline stage
	UpdateProgress(id string, progress int, stage models.ProcessStage) error

	// SaveUnits persists content units in emission order
	SaveUnits(units []*models.ContentUnitRecord) error

	// GetUnits returns a document's units ordered by position
	GetUnits(docID string) ([]*models.ContentUnitRecord, error)

	// CountUnits counts a document's units
	CountUnits(docID string) (int, error)

	// DeleteUnits removes a document's units (used before re-ingestion)
	DeleteUnits(docID string) error

	// SaveChunks persists flat-path chunks in emission order
	SaveChunks(chunks []*models.DocumentChunkRecord) error

	// GetChunks returns a document's chunks ordered by position
	GetChunks(docID string) ([]*models.DocumentChunkRecord, error)

	// CountChunks counts a document's chunks
	CountChunks(docID string) (int, error)

	// DeleteChunks removes a document's chunks
	DeleteChunks(docID string) error
}
