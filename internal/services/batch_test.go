package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/manual-ingest/internal/models"
)

func TestBatchIngestor_IngestDirectory(t *testing.T) {
	repo := setupTestRepo(t)
	service := newTestService(t, repo)

	dir := t.TempDir()
	writeExtract(t, dir, "manual-01.json", "manual-01")
	writeExtract(t, dir, "manual-02.json", "manual-02")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "care-guide.md"),
		[]byte("# Care\n\nwipe the rollers with a dry cloth after every shift"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.png"), []byte("x"), 0644))

	b := NewBatchIngestor(service, WithWorkers(2), WithBatchLogger(quietLogger()))

	result, err := b.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors, filepath.Join(dir, "broken.json"))

	t.Run("LayoutDocumentsCompleted", func(t *testing.T) {
		for _, id := range []string{"manual-01", "manual-02"} {
			doc, err := repo.GetByID(id)
			require.NoError(t, err)
			assert.Equal(t, models.DocStatusCompleted, doc.Status)
			assert.Equal(t, models.ModeLayout, doc.Mode)
		}
	})

	t.Run("FlatDocumentCompleted", func(t *testing.T) {
		doc, err := repo.GetByID("care-guide")
		require.NoError(t, err)
		assert.Equal(t, models.DocStatusCompleted, doc.Status)
		assert.Equal(t, models.ModeFlat, doc.Mode)
	})
}

func TestBatchIngestor_DuplicatesWithinDirectory(t *testing.T) {
	repo := setupTestRepo(t)
	service := newTestService(t, repo)

	// byte-identical extracts; doc_id falls back to the file stem
	dir := t.TempDir()
	writeExtract(t, dir, "manual-a.json", "")
	writeExtract(t, dir, "manual-b.json", "")

	// single worker so the first file completes before the second starts
	b := NewBatchIngestor(service, WithWorkers(1), WithBatchLogger(quietLogger()))

	result, err := b.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	// files dispatch in sorted order, so manual-a wins
	doc, err := repo.GetByID("manual-a")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, doc.Status)

	doc, err = repo.GetByID("manual-b")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusSkipped, doc.Status)
}

func TestBatchIngestor_ForceIngestsDuplicates(t *testing.T) {
	repo := setupTestRepo(t)
	service := newTestService(t, repo)

	dir := t.TempDir()
	writeExtract(t, dir, "manual-a.json", "")
	writeExtract(t, dir, "manual-b.json", "")

	b := NewBatchIngestor(service,
		WithWorkers(1),
		WithForce(true),
		WithBatchLogger(quietLogger()))

	result, err := b.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, result.Skipped)
}

func TestBatchIngestor_EmptyDirectory(t *testing.T) {
	service := newTestService(t, setupTestRepo(t))
	b := NewBatchIngestor(service, WithBatchLogger(quietLogger()))

	result, err := b.IngestDirectory(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed+result.Skipped+result.Failed)
}

func TestBatchIngestor_MissingDirectory(t *testing.T) {
	service := newTestService(t, setupTestRepo(t))
	b := NewBatchIngestor(service, WithBatchLogger(quietLogger()))

	_, err := b.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestBatchIngestor_CancelledBeforeStart(t *testing.T) {
	service := newTestService(t, setupTestRepo(t))

	dir := t.TempDir()
	writeExtract(t, dir, "manual-01.json", "manual-01")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBatchIngestor(service, WithBatchLogger(quietLogger()))
	result, err := b.IngestDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed+result.Skipped+result.Failed)
}
