package models

// Moderation actions recorded in the audit trail.
const (
	ModerationActionApproved   = "approved"
	ModerationActionRejected   = "rejected"
	ModerationActionRolledBack = "rollback"
)

// ModerationEventModel is an append-only audit record; rows are never
// updated or deleted.
type ModerationEventModel struct {
	Base
	PageID     string  `json:"page_id"     gorm:"index;not null"`
	RevisionID string  `json:"revision_id" gorm:"index;not null"`
	Action     string  `json:"action"      gorm:"index;not null"`
	ActorID    string  `json:"actor_id"    gorm:"index"`
	Reason     string  `json:"reason"`
	Details    JSONMap `json:"details,omitempty" gorm:"type:json;serializer:json"`
}

func (ModerationEventModel) TableName() string { return "moderation_events" }
