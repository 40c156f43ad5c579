package models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrDocumentNotFound is returned when a doc_id has no metadata row.
var ErrDocumentNotFound = errors.New("document not found")

// ContentUnitRecord persists one retrievable unit from the fused path.
// Position preserves emission order within the document; consumers that
// fetch neighboring units depend on it.
type ContentUnitRecord struct {
	ID           string         `gorm:"primaryKey"`          // unit id (uuid)
	DocID        string         `gorm:"not null;index"`      // owning document
	Page         int            `gorm:"not null"`            // source page
	SectionTitle string         `gorm:"size:255"`            // nearest heading above, empty if none
	SectionPath  string         `gorm:"size:512"`            // breadcrumb, empty if no headings
	Text         string         `gorm:"type:text;not null"`  // fused or grouped text
	UnitKind     string         `gorm:"size:20;not null;index"` // TEXT_ONLY or IMAGE_WITH_CONTEXT
	ImageRef     string         `gorm:"size:64"`             // set iff UnitKind is IMAGE_WITH_CONTEXT
	TokenCount   int            `gorm:"not null;default:0"`  // estimated tokens
	Tags         datatypes.JSON `gorm:"type:json"`           // keyword tags, JSON array
	Position     int            `gorm:"not null"`            // emission order within the document
	CreatedAt    time.Time      `gorm:"not null"`            // persistence time
}

// BeforeCreate stamps the creation time.
func (u *ContentUnitRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	return nil
}

// TableName pins the table name.
func (ContentUnitRecord) TableName() string {
	return "content_units"
}

// TagList decodes the stored tag array.
func (u *ContentUnitRecord) TagList() []string {
	if len(u.Tags) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(u.Tags, &tags); err != nil {
		return nil
	}
	return tags
}

// DocumentChunkRecord persists one chunk from the flat path.
type DocumentChunkRecord struct {
	ChunkID     string    `gorm:"primaryKey"`         // {doc_id}_s{section}_c{chunk}
	DocID       string    `gorm:"not null;index"`     // owning document
	Text        string    `gorm:"type:text;not null"` // chunk text
	Page        int       `gorm:"not null"`           // estimated page
	SectionPath string    `gorm:"size:512"`           // breadcrumb
	TokenCount  int       `gorm:"not null;default:0"` // estimated tokens
	Position    int       `gorm:"not null"`           // emission order within the document
	CreatedAt   time.Time `gorm:"not null"`           // persistence time
}

// BeforeCreate stamps the creation time.
func (c *DocumentChunkRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return nil
}

// TableName pins the table name.
func (DocumentChunkRecord) TableName() string {
	return "document_chunks"
}
