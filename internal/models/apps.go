package models

// App submission states.
const (
	AppStatusPending  = "pending"
	AppStatusApproved = "approved"
	AppStatusRejected = "rejected"
)

// AppSubmissionModel is a community-submitted app for the directory.
type AppSubmissionModel struct {
	Base
	Name        string      `json:"name"        gorm:"not null"`
	Tagline     string      `json:"tagline"`
	Description string      `json:"description" gorm:"type:text"`
	URL         string      `json:"url"         gorm:"not null"`
	IconURL     string      `json:"icon_url"`
	Tags        StringSlice `json:"tags"        gorm:"type:json;serializer:json"`
	Status      string      `json:"status"      gorm:"index;default:pending"`
	SubmittedBy string      `json:"submitted_by" gorm:"index"`
	ReviewedBy  *string     `json:"reviewed_by"`
	VoteCount   int64       `json:"vote_count"  gorm:"default:0"`
}

func (AppSubmissionModel) TableName() string { return "app_submissions" }

// AppVoteModel records one upvote per user per app.
type AppVoteModel struct {
	Base
	AppID  string `json:"app_id"  gorm:"uniqueIndex:idx_app_votes_unique;not null"`
	UserID string `json:"user_id" gorm:"uniqueIndex:idx_app_votes_unique;not null"`
}

func (AppVoteModel) TableName() string { return "app_votes" }
