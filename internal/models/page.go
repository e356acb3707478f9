package models

import "time"

// Page lifecycle states.
const (
	PageStatusDraft     = "draft"
	PageStatusPending   = "pending"
	PageStatusPublished = "published"
	PageStatusArchived  = "archived"
)

// PageModel is a wiki page. Content lives in page_revisions; the page row
// holds identity, the approved-revision pointer, and denormalized display
// fields copied from the approved revision.
type PageModel struct {
	Base
	Slug               string      `json:"slug"                 gorm:"uniqueIndex;not null"`
	Title              string      `json:"title"                gorm:"not null"`
	Namespace          string      `json:"namespace"            gorm:"index;default:main"`
	Summary            string      `json:"summary"              gorm:"type:text"`
	HeroImage          string      `json:"hero_image"`
	Tags               StringSlice `json:"tags"                 gorm:"type:json;serializer:json"`
	PageType           string      `json:"page_type"            gorm:"default:article"`
	Status             string      `json:"status"               gorm:"index;default:draft"`
	CreatedBy          string      `json:"created_by"           gorm:"index"`
	ApprovedRevisionID *string     `json:"approved_revision_id" gorm:"index"`
	ViewCount          int64       `json:"view_count"           gorm:"default:0"`
	PopularityScore    int         `json:"popularity_score"     gorm:"index;default:0"`
	LastScrapedAt      *time.Time  `json:"last_scraped_at"`
}

func (PageModel) TableName() string { return "pages" }
