package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType identifies an ingestion task.
type TaskType string

const (
	// TaskIngestLayout runs the fused text+image pipeline over an
	// extraction JSON file
	TaskIngestLayout TaskType = "ingest_layout"
	// TaskIngestFlat runs the semantic chunker over a flat document
	TaskIngestFlat TaskType = "ingest_flat"
)

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

const (
	// StatusPending - queued, not yet picked up
	StatusPending TaskStatus = "pending"
	// StatusProcessing - a worker is running it
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted - finished successfully
	StatusCompleted TaskStatus = "completed"
	// StatusFailed - finished with an error
	StatusFailed TaskStatus = "failed"
)

// Task is the queue-side record of one ingestion job.
type Task struct {
	ID          string          `json:"id"`
	Type        TaskType        `json:"type"`
	DocumentID  string          `json:"document_id"`
	Status      TaskStatus      `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Result      json.RawMessage `json:"result"`
	Error       string          `json:"error"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	Attempts    int             `json:"attempts"`
	MaxRetries  int             `json:"max_retries"`
}

// IngestLayoutPayload asks a worker to ingest one extraction JSON file.
type IngestLayoutPayload struct {
	ExtractPath string            `json:"extract_path"` // path to the extraction JSON
	Force       bool              `json:"force"`        // re-ingest even if the content hash is known
	Metadata    map[string]string `json:"metadata"`     // pass-through extras
}

// IngestFlatPayload asks a worker to chunk one flat document.
type IngestFlatPayload struct {
	FilePath   string            `json:"file_path"`   // path to the .md/.txt source
	TotalPages int               `json:"total_pages"` // page count for interpolation, 0 if unknown
	Force      bool              `json:"force"`       // re-ingest even if the content hash is known
	Metadata   map[string]string `json:"metadata"`    // pass-through extras
}

// IngestResult reports what one ingestion task produced.
type IngestResult struct {
	DocID      string `json:"doc_id"`
	UnitCount  int    `json:"unit_count"`
	ChunkCount int    `json:"chunk_count"`
	ImageCount int    `json:"image_count"`
	Skipped    bool   `json:"skipped"` // duplicate content, nothing written
	Error      string `json:"error"`
}
