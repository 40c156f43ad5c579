package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus tracks where a document is in its ingestion run.
type DocumentStatus string

const (
	// DocStatusPending - registered, not yet picked up by a worker
	DocStatusPending DocumentStatus = "pending"
	// DocStatusProcessing - a worker owns it right now
	DocStatusProcessing DocumentStatus = "processing"
	// DocStatusCompleted - units/chunks persisted
	DocStatusCompleted DocumentStatus = "completed"
	// DocStatusFailed - ingestion aborted; eligible for a future run
	DocStatusFailed DocumentStatus = "failed"
	// DocStatusSkipped - identical content was already ingested
	DocStatusSkipped DocumentStatus = "skipped"
)

// ProcessStage names the pipeline stage a document is currently in.
type ProcessStage string

const (
	// StageParsing - reading extraction JSON or flat text
	StageParsing ProcessStage = "parsing"
	// StageSegmenting - building fused content units
	StageSegmenting ProcessStage = "segmenting"
	// StageChunking - running the flat chunker
	StageChunking ProcessStage = "chunking"
	// StagePersisting - writing unit/chunk records
	StagePersisting ProcessStage = "persisting"
	// StageCompleted - done
	StageCompleted ProcessStage = "completed"
)

// IngestMode selects which pipeline processed the document.
type IngestMode string

const (
	// ModeLayout - fused text+image path over extraction geometry
	ModeLayout IngestMode = "layout"
	// ModeFlat - semantic chunker over heading-delimited text
	ModeFlat IngestMode = "flat"
)

// Document is the per-run metadata row for one ingested manual.
type Document struct {
	ID           string         `gorm:"primaryKey"`         // doc_id, derived from the source file stem
	Title        string         `gorm:"size:255"`           // human-readable title
	SourcePath   string         `gorm:"not null"`           // extraction JSON or flat file path
	Mode         IngestMode     `gorm:"size:10;not null"`   // which pipeline ran
	TotalPages   int            `gorm:"not null;default:0"` // page count from the extractor
	Status       DocumentStatus `gorm:"not null;index"`     // ingestion status
	ContentHash  string         `gorm:"size:64;index"`      // sha256 of source content, for dedup
	IngestedAt   time.Time      `gorm:"not null;index"`     // when the run picked it up
	ProcessedAt  *time.Time     `gorm:"index"`              // when the run finished it
	UpdatedAt    time.Time      `gorm:"not null"`           // last status change
	Progress     int            `gorm:"not null;default:0"` // 0-100
	CurrentStage ProcessStage   `gorm:"size:20"`            // pipeline stage
	Error        string         `gorm:"type:text"`          // failure reason, if any
	UnitCount    int            `gorm:"not null;default:0"` // emitted content units
	ChunkCount   int            `gorm:"not null;default:0"` // emitted flat chunks
	ImageCount   int            `gorm:"not null;default:0"` // persisted image assets
	Metadata     datatypes.JSON `gorm:"type:json"`          // extractor-provided extras
}

// BeforeCreate stamps ingest and update times.
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if d.IngestedAt.IsZero() {
		d.IngestedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate refreshes the update time.
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName pins the table name.
func (Document) TableName() string {
	return "documents"
}
