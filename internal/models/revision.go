package models

import (
	"time"

	"github.com/vibecodingwiki/core/internal/pkg/diff"
	"github.com/vibecodingwiki/core/internal/pkg/markdown"
)

// Revision moderation states. Approved and rejected are terminal except that
// a rollback may demote the currently approved revision back to pending.
const (
	RevisionStatusPending  = "pending"
	RevisionStatusApproved = "approved"
	RevisionStatusRejected = "rejected"
)

// PageRevisionModel is one immutable submission of page content. Revision
// numbers are per page, starting at 1, strictly increasing.
type PageRevisionModel struct {
	Base
	PageID         string `json:"page_id"         gorm:"index:idx_revisions_page_number,priority:1;not null"`
	RevisionNumber int    `json:"revision_number" gorm:"index:idx_revisions_page_number,priority:2;not null"`

	Content       string                   `json:"content"        gorm:"type:longtext"`
	Summary       string                   `json:"summary"        gorm:"type:text"`
	Sections      []markdown.Section       `json:"sections"       gorm:"type:json;serializer:json"`
	Timeline      []markdown.TimelineEntry `json:"timeline"       gorm:"type:json;serializer:json"`
	Tags          StringSlice              `json:"tags"           gorm:"type:json;serializer:json"`
	RelatedTopics StringSlice              `json:"related_topics" gorm:"type:json;serializer:json"`

	Status          string     `json:"status"           gorm:"index;default:pending"`
	CreatedBy       string     `json:"created_by"       gorm:"index"`
	ApprovedBy      *string    `json:"approved_by"`
	ApprovedAt      *time.Time `json:"approved_at"`
	RejectionReason string     `json:"rejection_reason"`

	// Conflict-detection inputs recorded at submission time. BaseRevisionID
	// is the approved revision the author edited against; DiffContent and
	// DiffStats are stored as submitted and never recomputed.
	BaseRevisionID *string     `json:"base_revision_id" gorm:"index"`
	DiffContent    string      `json:"diff_content"     gorm:"type:longtext"`
	DiffStats      *diff.Stats `json:"diff_stats"       gorm:"type:json;serializer:json"`

	Metadata       JSONMap `json:"metadata,omitempty" gorm:"type:json;serializer:json"`
	IngestionJobID *string `json:"ingestion_job_id"   gorm:"index"`
	ImportedFrom   string  `json:"imported_from"`
}

func (PageRevisionModel) TableName() string { return "page_revisions" }
