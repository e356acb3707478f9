package models

import "time"

// NewsletterSubscriberModel is one opted-in email address.
type NewsletterSubscriberModel struct {
	Base
	Email          string     `json:"email"  gorm:"uniqueIndex;not null"`
	Source         string     `json:"source"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at"`
}

func (NewsletterSubscriberModel) TableName() string { return "newsletter_subscribers" }
