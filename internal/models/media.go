package models

// MediaModel records an object uploaded to the R2 bucket.
type MediaModel struct {
	Base
	Key        string  `json:"key"         gorm:"uniqueIndex;not null"`
	URL        string  `json:"url"`
	MimeType   string  `json:"mime_type"`
	SizeBytes  int64   `json:"size_bytes"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	UploadedBy string  `json:"uploaded_by" gorm:"index"`
	PageID     *string `json:"page_id"     gorm:"index"`
	SourceURL  string  `json:"source_url"`
}

func (MediaModel) TableName() string { return "media" }
