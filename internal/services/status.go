package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/manual-ingest/internal/models"
	"github.com/fyerfyer/manual-ingest/internal/repository"
)

// DocumentStatusManager owns the ingestion status lifecycle of a
// document. All transitions go through it so concurrent workers can't
// race each other into an inconsistent state.
type DocumentStatusManager struct {
	repo   repository.DocumentRepository
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewDocumentStatusManager creates a status manager.
func NewDocumentStatusManager(repo repository.DocumentRepository, logger *logrus.Logger) *DocumentStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &DocumentStatusManager{
		repo:   repo,
		logger: logger,
	}
}

// Register creates or resets the metadata row for a document that an
// ingestion run is about to process. A document from an earlier run is
// reset to pending so the run can own it again.
func (m *DocumentStatusManager) Register(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"doc_id": doc.ID,
		"mode":   doc.Mode,
		"source": doc.SourcePath,
	}).Info("Registering document for ingestion")

	existing, err := m.repo.GetByID(doc.ID)
	if err != nil && !errors.Is(err, models.ErrDocumentNotFound) {
		return fmt.Errorf("failed to look up document: %w", err)
	}

	doc.Status = models.DocStatusPending
	doc.Progress = 0
	doc.Error = ""

	if existing != nil {
		doc.IngestedAt = existing.IngestedAt
		return m.repo.Update(doc)
	}
	return m.repo.Create(doc)
}

// MarkAsProcessing transitions a document to processing.
func (m *DocumentStatusManager) MarkAsProcessing(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if err := m.ValidateStateTransition(doc.Status, models.DocStatusProcessing); err != nil {
		return fmt.Errorf("document %s: %s -> %s: %w", docID, doc.Status, models.DocStatusProcessing, err)
	}

	m.logger.WithField("doc_id", docID).Info("Marking document as processing")
	return m.repo.UpdateStatus(docID, models.DocStatusProcessing, "")
}

// UpdateStage records the pipeline stage and coarse progress of a
// document that is currently processing.
func (m *DocumentStatusManager) UpdateStage(ctx context.Context, docID string, stage models.ProcessStage, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if doc.Status != models.DocStatusProcessing {
		return fmt.Errorf("cannot update stage: document %s is not processing", docID)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id":   docID,
		"stage":    stage,
		"progress": progress,
	}).Debug("Updating document stage")

	return m.repo.UpdateProgress(docID, progress, stage)
}

// MarkAsCompleted transitions a document to completed and records what
// the run produced.
func (m *DocumentStatusManager) MarkAsCompleted(ctx context.Context, docID string, unitCount, chunkCount, imageCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if err := m.ValidateStateTransition(doc.Status, models.DocStatusCompleted); err != nil {
		return fmt.Errorf("document %s: %s -> %s: %w", docID, doc.Status, models.DocStatusCompleted, err)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id":      docID,
		"unit_count":  unitCount,
		"chunk_count": chunkCount,
		"image_count": imageCount,
	}).Info("Marking document as completed")

	doc.UnitCount = unitCount
	doc.ChunkCount = chunkCount
	doc.ImageCount = imageCount
	if err := m.repo.Update(doc); err != nil {
		return err
	}

	return m.repo.UpdateStatus(docID, models.DocStatusCompleted, "")
}

// MarkAsFailed transitions a document to failed with the reason.
func (m *DocumentStatusManager) MarkAsFailed(ctx context.Context, docID string, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.repo.GetByID(docID); err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id": docID,
		"error":  errorMsg,
	}).Error("Marking document as failed")

	return m.repo.UpdateStatus(docID, models.DocStatusFailed, errorMsg)
}

// MarkAsSkipped transitions a document to skipped. Used when its
// content hash matches an already completed ingestion.
func (m *DocumentStatusManager) MarkAsSkipped(ctx context.Context, docID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.repo.GetByID(docID); err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id": docID,
		"reason": reason,
	}).Info("Marking document as skipped")

	return m.repo.UpdateStatus(docID, models.DocStatusSkipped, reason)
}

// GetStatus returns a document's current ingestion status.
func (m *DocumentStatusManager) GetStatus(ctx context.Context, docID string) (models.DocumentStatus, error) {
	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return "", fmt.Errorf("failed to get document status: %w", err)
	}
	return doc.Status, nil
}

// GetDocument returns the full metadata row.
func (m *DocumentStatusManager) GetDocument(ctx context.Context, docID string) (*models.Document, error) {
	return m.repo.GetByID(docID)
}

// ListDocuments pages through document rows.
func (m *DocumentStatusManager) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	return m.repo.List(offset, limit, filters)
}

// DeleteDocument removes a document's metadata row.
func (m *DocumentStatusManager) DeleteDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithField("doc_id", docID).Info("Deleting document record")
	return m.repo.Delete(docID)
}

// ValidateStateTransition checks whether a status transition is legal.
func (m *DocumentStatusManager) ValidateStateTransition(from, to models.DocumentStatus) error {
	validTransitions := map[models.DocumentStatus][]models.DocumentStatus{
		models.DocStatusPending: {
			models.DocStatusProcessing,
			models.DocStatusSkipped,
			models.DocStatusFailed,
		},
		models.DocStatusProcessing: {
			models.DocStatusCompleted,
			models.DocStatusFailed,
		},
		// terminal, except that failed and skipped documents may be
		// retried by a later run
		models.DocStatusCompleted: {},
		models.DocStatusFailed:    {models.DocStatusProcessing},
		models.DocStatusSkipped:   {models.DocStatusProcessing},
	}

	for _, validTo := range validTransitions[from] {
		if validTo == to {
			return nil
		}
	}

	return errors.New("invalid state transition")
}
