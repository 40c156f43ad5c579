package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/fyerfyer/manual-ingest/internal/cache"
	"github.com/fyerfyer/manual-ingest/internal/document"
	"github.com/fyerfyer/manual-ingest/internal/layout"
	"github.com/fyerfyer/manual-ingest/internal/models"
	"github.com/fyerfyer/manual-ingest/internal/repository"
	"github.com/fyerfyer/manual-ingest/internal/segment"
	"github.com/fyerfyer/manual-ingest/pkg/storage"
)

// IngestReport summarizes what one ingestion run produced for a document.
type IngestReport struct {
	DocID      string            // document identifier
	Mode       models.IngestMode // which pipeline ran
	UnitCount  int               // content units persisted (layout mode)
	ChunkCount int               // chunks persisted (flat mode)
	ImageCount int               // image units among the persisted units
	Skipped    bool              // identical content was already ingested
}

// IngestService runs the two ingestion pipelines: the fused layout path
// over extraction geometry and the flat semantic-chunking path over
// heading-delimited text. Both share the token counter so every sizing
// decision in the system agrees.
type IngestService struct {
	repo      repository.DocumentRepository
	status    *DocumentStatusManager
	storage   storage.Storage
	cache     cache.Cache
	counter   segment.Counter
	assembler *segment.Assembler
	chunker   *document.SemanticChunker
	dedupTTL  time.Duration
	logger    *logrus.Logger

	assemblerOpts []segment.AssemblerOption
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithStorage sets the image asset store for the layout path.
func WithStorage(store storage.Storage) IngestOption {
	return func(s *IngestService) {
		s.storage = store
	}
}

// WithCache sets the dedup cache.
func WithCache(c cache.Cache) IngestOption {
	return func(s *IngestService) {
		s.cache = c
	}
}

// WithTokenCounter sets the shared token counter.
func WithTokenCounter(counter segment.Counter) IngestOption {
	return func(s *IngestService) {
		s.counter = counter
	}
}

// WithAssembler replaces the default unit assembler.
func WithAssembler(a *segment.Assembler) IngestOption {
	return func(s *IngestService) {
		s.assembler = a
	}
}

// WithAssemblerOptions passes extra options to the default assembler,
// typically the configured token budgets. Ignored when WithAssembler
// supplies a prebuilt one.
func WithAssemblerOptions(opts ...segment.AssemblerOption) IngestOption {
	return func(s *IngestService) {
		s.assemblerOpts = append(s.assemblerOpts, opts...)
	}
}

// WithChunker replaces the default semantic chunker.
func WithChunker(c *document.SemanticChunker) IngestOption {
	return func(s *IngestService) {
		s.chunker = c
	}
}

// WithDedupTTL sets how long ingested content hashes stay cached.
func WithDedupTTL(ttl time.Duration) IngestOption {
	return func(s *IngestService) {
		s.dedupTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) IngestOption {
	return func(s *IngestService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewIngestService creates an ingestion service over the given
// repository. Collaborators not supplied via options get defaults: an
// in-memory dedup cache, the fallback token counter, and pipeline
// components built from the default budgets.
func NewIngestService(repo repository.DocumentRepository, opts ...IngestOption) *IngestService {
	s := &IngestService{
		repo:   repo,
		logger: logrus.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.counter == nil {
		s.counter = segment.NewTokenCounter()
	}
	if s.cache == nil {
		c, _ := cache.NewCache(cache.DefaultConfig())
		s.cache = c
	}
	if s.assembler == nil {
		assemblerOpts := []segment.AssemblerOption{segment.WithAssemblerLogger(s.logger)}
		if s.storage != nil {
			assemblerOpts = append(assemblerOpts, segment.WithImageStore(&imageStoreAdapter{backend: s.storage}))
		}
		assemblerOpts = append(assemblerOpts, s.assemblerOpts...)
		s.assembler = segment.NewAssembler(s.counter, assemblerOpts...)
	}
	if s.chunker == nil {
		s.chunker = document.NewSemanticChunker(document.DefaultChunkerConfig(), s.counter, document.WithChunkerLogger(s.logger))
	}

	s.status = NewDocumentStatusManager(repo, s.logger)

	return s
}

// StatusManager exposes the status lifecycle manager.
func (s *IngestService) StatusManager() *DocumentStatusManager {
	return s.status
}

// ProcessLayoutDocument ingests one extraction JSON file through the
// fused text+image pipeline. When force is false and the file's content
// hash matches a completed ingestion, the document is marked skipped
// and nothing is written.
func (s *IngestService) ProcessLayoutDocument(ctx context.Context, extractPath string, force bool) (*IngestReport, error) {
	data, err := os.ReadFile(extractPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction file: %w", err)
	}
	contentHash := hashContent(data)

	extract, err := layout.ReadExtract(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(extractPath), err)
	}
	if extract.DocID == "" {
		extract.DocID = fileStem(extractPath)
	}

	title := extract.Title
	if title == "" {
		title = extract.DocID
	}

	doc := &models.Document{
		ID:          extract.DocID,
		Title:       title,
		SourcePath:  extractPath,
		Mode:        models.ModeLayout,
		TotalPages:  extract.TotalPages,
		ContentHash: contentHash,
	}
	if err := s.status.Register(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	if !force {
		if owner, found := s.findDuplicate(ctx, contentHash, extract.DocID); found {
			reason := fmt.Sprintf("content already ingested as %s", owner)
			if err := s.status.MarkAsSkipped(ctx, extract.DocID, reason); err != nil {
				s.logger.WithError(err).Warn("Failed to mark document as skipped")
			}
			s.logger.WithFields(logrus.Fields{
				"doc_id": extract.DocID,
				"owner":  owner,
			}).Info("Skipping duplicate content")
			return &IngestReport{DocID: extract.DocID, Mode: models.ModeLayout, Skipped: true}, nil
		}
	}

	if err := s.status.MarkAsProcessing(ctx, extract.DocID); err != nil {
		return nil, err
	}

	report, err := s.runLayoutPipeline(ctx, extract)
	if err != nil {
		if failErr := s.status.MarkAsFailed(ctx, extract.DocID, err.Error()); failErr != nil {
			s.logger.WithError(failErr).Error("Failed to mark document as failed")
		}
		return nil, err
	}

	s.rememberContent(contentHash, extract.DocID)
	return report, nil
}

// runLayoutPipeline executes segmenting and persisting for one extract.
func (s *IngestService) runLayoutPipeline(ctx context.Context, extract *layout.DocumentExtract) (*IngestReport, error) {
	docID := extract.DocID

	if err := s.status.UpdateStage(ctx, docID, models.StageSegmenting, 30); err != nil {
		s.logger.WithError(err).Warn("Failed to update document stage")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	units := s.assembler.BuildUnits(extract)

	if err := s.status.UpdateStage(ctx, docID, models.StagePersisting, 70); err != nil {
		s.logger.WithError(err).Warn("Failed to update document stage")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// re-ingestion replaces the previous run's rows
	if err := s.repo.DeleteUnits(docID); err != nil {
		return nil, fmt.Errorf("failed to clear previous units: %w", err)
	}

	records, imageCount := unitsToRecords(units)
	if err := s.repo.SaveUnits(records); err != nil {
		return nil, fmt.Errorf("failed to persist units: %w", err)
	}

	if err := s.status.MarkAsCompleted(ctx, docID, len(records), 0, imageCount); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":      docID,
		"unit_count":  len(records),
		"image_count": imageCount,
	}).Info("Layout document ingested")

	return &IngestReport{
		DocID:      docID,
		Mode:       models.ModeLayout,
		UnitCount:  len(records),
		ImageCount: imageCount,
	}, nil
}

// ProcessFlatDocument ingests one markdown or plain-text file through
// the semantic chunker. totalPages of 0 means the page count is unknown
// and every chunk lands on page 1.
func (s *IngestService) ProcessFlatDocument(ctx context.Context, filePath string, totalPages int, force bool) (*IngestReport, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}
	contentHash := hashContent(data)
	docID := fileStem(filePath)

	doc := &models.Document{
		ID:          docID,
		Title:       docID,
		SourcePath:  filePath,
		Mode:        models.ModeFlat,
		TotalPages:  totalPages,
		ContentHash: contentHash,
	}
	if err := s.status.Register(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	if !force {
		if owner, found := s.findDuplicate(ctx, contentHash, docID); found {
			reason := fmt.Sprintf("content already ingested as %s", owner)
			if err := s.status.MarkAsSkipped(ctx, docID, reason); err != nil {
				s.logger.WithError(err).Warn("Failed to mark document as skipped")
			}
			s.logger.WithFields(logrus.Fields{
				"doc_id": docID,
				"owner":  owner,
			}).Info("Skipping duplicate content")
			return &IngestReport{DocID: docID, Mode: models.ModeFlat, Skipped: true}, nil
		}
	}

	if err := s.status.MarkAsProcessing(ctx, docID); err != nil {
		return nil, err
	}

	report, err := s.runFlatPipeline(ctx, docID, filePath, data, totalPages)
	if err != nil {
		if failErr := s.status.MarkAsFailed(ctx, docID, err.Error()); failErr != nil {
			s.logger.WithError(failErr).Error("Failed to mark document as failed")
		}
		return nil, err
	}

	s.rememberContent(contentHash, docID)
	return report, nil
}

// runFlatPipeline executes parsing, chunking and persisting for one file.
func (s *IngestService) runFlatPipeline(ctx context.Context, docID, filePath string, data []byte, totalPages int) (*IngestReport, error) {
	if err := s.status.UpdateStage(ctx, docID, models.StageParsing, 20); err != nil {
		s.logger.WithError(err).Warn("Failed to update document stage")
	}

	parser, err := document.ParserFactory(filePath)
	if err != nil {
		return nil, err
	}
	text, err := parser.ParseReader(bytes.NewReader(data), filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	if err := s.status.UpdateStage(ctx, docID, models.StageChunking, 50); err != nil {
		s.logger.WithError(err).Warn("Failed to update document stage")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunks := s.chunker.Chunk(docID, text, totalPages)

	if err := s.status.UpdateStage(ctx, docID, models.StagePersisting, 80); err != nil {
		s.logger.WithError(err).Warn("Failed to update document stage")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.repo.DeleteChunks(docID); err != nil {
		return nil, fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	records := chunksToRecords(chunks)
	if err := s.repo.SaveChunks(records); err != nil {
		return nil, fmt.Errorf("failed to persist chunks: %w", err)
	}

	if err := s.status.MarkAsCompleted(ctx, docID, 0, len(records), 0); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":      docID,
		"chunk_count": len(records),
	}).Info("Flat document ingested")

	return &IngestReport{
		DocID:      docID,
		Mode:       models.ModeFlat,
		ChunkCount: len(records),
	}, nil
}

// findDuplicate reports whether the content hash belongs to an already
// completed ingestion of a different source document. The cache answers
// first; the repository backs it up across restarts.
func (s *IngestService) findDuplicate(ctx context.Context, contentHash, docID string) (string, bool) {
	if owner, found, err := s.cache.Get(cache.DedupKey(contentHash)); err == nil && found && owner != docID {
		return owner, true
	}

	doc, err := s.repo.GetByContentHash(contentHash)
	if err != nil {
		s.logger.WithError(err).Warn("Content hash lookup failed")
		return "", false
	}
	if doc != nil && doc.ID != docID {
		return doc.ID, true
	}
	return "", false
}

// rememberContent records a completed ingestion's content hash.
func (s *IngestService) rememberContent(contentHash, docID string) {
	if err := s.cache.Set(cache.DedupKey(contentHash), docID, s.dedupTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache content hash")
	}
}

// unitsToRecords converts assembler output into persistence rows,
// numbering them in emission order.
func unitsToRecords(units []segment.ContentUnit) ([]*models.ContentUnitRecord, int) {
	records := make([]*models.ContentUnitRecord, 0, len(units))
	imageCount := 0

	for i, unit := range units {
		var tags datatypes.JSON
		if len(unit.Tags) > 0 {
			if encoded, err := json.Marshal(unit.Tags); err == nil {
				tags = encoded
			}
		}
		if unit.Kind == segment.UnitImageWithContext {
			imageCount++
		}

		records = append(records, &models.ContentUnitRecord{
			ID:           unit.ID,
			DocID:        unit.DocID,
			Page:         unit.Page,
			SectionTitle: unit.SectionTitle,
			SectionPath:  unit.SectionPath,
			Text:         unit.Text,
			UnitKind:     string(unit.Kind),
			ImageRef:     unit.ImageRef,
			TokenCount:   unit.TokenCount,
			Tags:         tags,
			Position:     i,
		})
	}

	return records, imageCount
}

// chunksToRecords converts chunker output into persistence rows.
func chunksToRecords(chunks []document.DocumentChunk) []*models.DocumentChunkRecord {
	records := make([]*models.DocumentChunkRecord, 0, len(chunks))
	for i, chunk := range chunks {
		records = append(records, &models.DocumentChunkRecord{
			ChunkID:     chunk.ChunkID,
			DocID:       chunk.DocID,
			Text:        chunk.Text,
			Page:        chunk.Page,
			SectionPath: chunk.SectionPath,
			TokenCount:  chunk.TokenCount,
			Position:    i,
		})
	}
	return records
}

// imageStoreAdapter exposes the asset backend through the narrow
// interface the assembler consumes.
type imageStoreAdapter struct {
	backend storage.Storage
}

// SaveImage persists raw image bytes and returns the opaque reference
// and content hash of the stored asset.
func (a *imageStoreAdapter) SaveImage(docID string, page int, bbox layout.BBox, data []byte) (string, string, error) {
	info, err := a.backend.Save(bytes.NewReader(data), docID, page)
	if err != nil {
		return "", "", err
	}
	return info.Ref, info.Hash, nil
}

// hashContent returns the hex sha256 of the source bytes.
func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fileStem derives a doc_id from a file path, matching how the
// extraction side names documents after their source file.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
