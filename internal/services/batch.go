package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/manual-ingest/internal/models"
)

// BatchResult aggregates the outcome of one directory run.
type BatchResult struct {
	Processed int               // documents ingested
	Skipped   int               // documents skipped as duplicates
	Failed    int               // documents that errored
	Errors    map[string]string // source path to failure reason
}

// BatchIngestor walks a directory and ingests every recognized source
// file, a bounded number at a time. Extraction JSON goes through the
// layout path; markdown and plain text go through the flat path.
type BatchIngestor struct {
	service    *IngestService
	workers    int
	totalPages int
	force      bool
	logger     *logrus.Logger
}

// BatchOption configures a BatchIngestor.
type BatchOption func(*BatchIngestor)

// WithWorkers bounds how many documents are ingested concurrently.
func WithWorkers(n int) BatchOption {
	return func(b *BatchIngestor) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithForce re-ingests documents whose content hash is already known.
func WithForce(force bool) BatchOption {
	return func(b *BatchIngestor) {
		b.force = force
	}
}

// WithFlatTotalPages sets the page count passed to the flat path, since
// plain files carry no page geometry of their own.
func WithFlatTotalPages(pages int) BatchOption {
	return func(b *BatchIngestor) {
		if pages > 0 {
			b.totalPages = pages
		}
	}
}

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *logrus.Logger) BatchOption {
	return func(b *BatchIngestor) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBatchIngestor creates a directory ingestor over the service.
func NewBatchIngestor(service *IngestService, opts ...BatchOption) *BatchIngestor {
	b := &BatchIngestor{
		service: service,
		workers: 4,
		logger:  logrus.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// IngestDirectory processes every recognized file under dir. Files are
// dispatched in sorted path order so runs are reproducible. When the
// context is cancelled, no new files are started; documents already in
// flight run to completion so no unit sequence is left half-written.
func (b *BatchIngestor) IngestDirectory(ctx context.Context, dir string) (*BatchResult, error) {
	files, err := b.collectFiles(dir)
	if err != nil {
		return nil, err
	}

	b.logger.WithFields(logrus.Fields{
		"dir":     dir,
		"files":   len(files),
		"workers": b.workers,
	}).Info("Starting directory ingestion")

	result := &BatchResult{Errors: make(map[string]string)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, b.workers)

	for _, file := range files {
		if ctx.Err() != nil {
			b.logger.Info("Ingestion cancelled, waiting for in-flight documents")
			break
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			report, err := b.ingestFile(ctx, path)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				result.Errors[path] = err.Error()
				b.logger.WithError(err).WithField("file", path).Error("Failed to ingest document")
			case report.Skipped:
				result.Skipped++
			default:
				result.Processed++
			}
		}(file)
	}

	wg.Wait()

	b.logger.WithFields(logrus.Fields{
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}).Info("Directory ingestion finished")

	return result, nil
}

// ingestFile routes one file to the pipeline its extension selects.
func (b *BatchIngestor) ingestFile(ctx context.Context, path string) (*IngestReport, error) {
	switch mode := modeForFile(path); mode {
	case models.ModeLayout:
		return b.service.ProcessLayoutDocument(ctx, path, b.force)
	case models.ModeFlat:
		return b.service.ProcessFlatDocument(ctx, path, b.totalPages, b.force)
	default:
		return nil, fmt.Errorf("unrecognized source file: %s", path)
	}
}

// collectFiles lists the recognized source files under dir, sorted.
func (b *BatchIngestor) collectFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if modeForFile(path) != "" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// modeForFile maps a file extension to the pipeline that handles it.
// Unrecognized extensions return the empty mode.
func modeForFile(path string) models.IngestMode {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return models.ModeLayout
	case ".md", ".markdown", ".txt":
		return models.ModeFlat
	}
	return ""
}
