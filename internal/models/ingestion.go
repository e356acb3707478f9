package models

import "time"

// Ingestion job states.
const (
	IngestionStatusQueued    = "queued"
	IngestionStatusRunning   = "running"
	IngestionStatusSucceeded = "succeeded"
	IngestionStatusFailed    = "failed"
)

// IngestionJobModel tracks one scrape-and-draft job for a source URL.
type IngestionJobModel struct {
	Base
	SourceURL  string     `json:"source_url" gorm:"not null"`
	PageSlug   string     `json:"page_slug"  gorm:"index"`
	Status     string     `json:"status"     gorm:"index;default:queued"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Error      string     `json:"error"      gorm:"type:text"`
	RevisionID *string    `json:"revision_id"`
	CreatedBy  string     `json:"created_by" gorm:"index"`
	Metadata   JSONMap    `json:"metadata,omitempty" gorm:"type:json;serializer:json"`
}

func (IngestionJobModel) TableName() string { return "ingestion_jobs" }
