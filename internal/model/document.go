package model

import "time"

type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusIngested DocumentStatus = "ingested"
	DocumentStatusFailed   DocumentStatus = "failed"
)

// Document is an uploaded policy file. Status is owned by the ingestion
// pipeline: pending on upload, then ingested or failed. StatusReason keeps
// the last ingestion failure for display.
type Document struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"not null;index" json:"user_id"`
	Name             string         `gorm:"size:256;not null" json:"name"`
	OriginalFilename string         `gorm:"size:256;not null" json:"original_filename"`
	StoredPath       string         `gorm:"size:512;not null" json:"-"`
	SizeBytes        int64          `gorm:"not null" json:"size_bytes"`
	Status           DocumentStatus `gorm:"size:16;not null;index;default:pending" json:"status"`
	StatusReason     string         `gorm:"size:512" json:"status_reason,omitempty"`
	ChunkCount       int            `gorm:"not null;default:0" json:"chunk_count"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
