package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fyerfyer/manual-ingest/internal/database"
	"github.com/fyerfyer/manual-ingest/internal/models"
)

// docRepository is the gorm-backed DocumentRepository.
type docRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a repository on the global connection.
func NewDocumentRepository() DocumentRepository {
	return &docRepository{db: database.MustDB()}
}

// NewDocumentRepositoryWithDB creates a repository on a specific connection.
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{db: db}
}

// Create registers a document row.
func (r *docRepository) Create(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return r.db.Create(doc).Error
}

// Update rewrites a document row.
func (r *docRepository) Update(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return r.db.Save(doc).Error
}

// GetByID fetches a document by doc_id.
func (r *docRepository) GetByID(id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
		}
		return nil, err
	}
	return &doc, nil
}

// GetByContentHash finds a completed document with matching source hash.
func (r *docRepository) GetByContentHash(hash string) (*models.Document, error) {
	if hash == "" {
		return nil, nil
	}
	var doc models.Document
	err := r.db.Where("content_hash = ? AND status = ?", hash, models.DocStatusCompleted).
		Order("ingested_at DESC").First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// List pages through documents, optionally filtered by status or mode.
func (r *docRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})

	if filters != nil {
		if status, ok := filters["status"]; ok {
			if s := fmt.Sprintf("%v", status); s != "" {
				query = query.Where("status = ?", s)
			}
		}
		if mode, ok := filters["mode"]; ok {
			if m := fmt.Sprintf("%v", mode); m != "" {
				query = query.Where("mode = ?", m)
			}
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Order("ingested_at DESC").Find(&docs).Error; err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// Delete removes a document row.
func (r *docRepository) Delete(id string) error {
	return r.db.Delete(&models.Document{}, "id = ?", id).Error
}

// UpdateStatus transitions a document's status, stamping the finish
// time on terminal states.
func (r *docRepository) UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"error":      errorMsg,
		"updated_at": time.Now(),
	}

	switch status {
	case models.DocStatusCompleted, models.DocStatusFailed, models.DocStatusSkipped:
		now := time.Now()
		updates["processed_at"] = &now
	}
	if status == models.DocStatusCompleted {
		updates["progress"] = 100
		updates["current_stage"] = models.StageCompleted
	}

	result := r.db.Model(&models.Document{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	return nil
}

// UpdateProgress records progress and the current pipeline stage.
func (r *docRepository) UpdateProgress(id string, progress int, stage models.ProcessStage) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	updates := map[string]interface{}{
		"progress":   progress,
		"updated_at": time.Now(),
	}
	if stage != "" {
		updates["current_stage"] = stage
	}

	return r.db.Model(&models.Document{}).Where("id = ?", id).Updates(updates).Error
}

// SaveUnits persists content units in batches.
func (r *docRepository) SaveUnits(units []*models.ContentUnitRecord) error {
	if len(units) == 0 {
		return nil
	}
	return r.db.CreateInBatches(units, 100).Error
}

// GetUnits returns a document's units ordered by emission position.
func (r *docRepository) GetUnits(docID string) ([]*models.ContentUnitRecord, error) {
	var units []*models.ContentUnitRecord
	err := r.db.Where("doc_id = ?", docID).Order("position ASC").Find(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

// CountUnits counts a document's units.
func (r *docRepository) CountUnits(docID string) (int, error) {
	var count int64
	err := r.db.Model(&models.ContentUnitRecord{}).Where("doc_id = ?", docID).Count(&count).Error
	return int(count), err
}

// DeleteUnits removes a document's units.
func (r *docRepository) DeleteUnits(docID string) error {
	return r.db.Delete(&models.ContentUnitRecord{}, "doc_id = ?", docID).Error
}

// SaveChunks persists flat-path chunks in batches.
func (r *docRepository) SaveChunks(chunks []*models.DocumentChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error
}

// GetChunks returns a document's chunks ordered by emission position.
func (r *docRepository) GetChunks(docID string) ([]*models.DocumentChunkRecord, error) {
	var chunks []*models.DocumentChunkRecord
	err := r.db.Where("doc_id = ?", docID).Order("position ASC").Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// CountChunks counts a document's chunks.
func (r *docRepository) CountChunks(docID string) (int, error) {
	var count int64
	err := r.db.Model(&models.DocumentChunkRecord{}).Where("doc_id = ?", docID).Count(&count).Error
	return int(count), err
}

// DeleteChunks removes a document's chunks.
func (r *docRepository) DeleteChunks(docID string) error {
	return r.db.Delete(&models.DocumentChunkRecord{}, "doc_id = ?", docID).Error
}
