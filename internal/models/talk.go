package models

// Talk thread states.
const (
	ThreadStatusOpen     = "open"
	ThreadStatusResolved = "resolved"
	ThreadStatusArchived = "archived"
)

// TalkThreadModel is a discussion thread attached to a page.
type TalkThreadModel struct {
	Base
	PageID       string `json:"page_id"       gorm:"index;not null"`
	Title        string `json:"title"         gorm:"not null"`
	CreatedBy    string `json:"created_by"    gorm:"index"`
	Status       string `json:"status"        gorm:"index;default:open"`
	MessageCount int64  `json:"message_count" gorm:"default:0"`

	Messages []TalkMessageModel `json:"messages,omitempty" gorm:"foreignKey:ThreadID"`
}

func (TalkThreadModel) TableName() string { return "talk_threads" }

// TalkMessageModel is one message inside a thread.
type TalkMessageModel struct {
	Base
	ThreadID string  `json:"thread_id" gorm:"index;not null"`
	PageID   string  `json:"page_id"   gorm:"index;not null"`
	AuthorID string  `json:"author_id" gorm:"index"`
	Content  string  `json:"content"   gorm:"type:text;not null"`
	ReplyTo  *string `json:"reply_to"`
}

func (TalkMessageModel) TableName() string { return "talk_messages" }
