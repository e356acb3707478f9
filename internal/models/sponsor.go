package models

import "time"

// SponsorModel is a sponsorship placement shown on the site.
type SponsorModel struct {
	Base
	Name     string     `json:"name"     gorm:"not null"`
	URL      string     `json:"url"`
	LogoURL  string     `json:"logo_url"`
	Tier     string     `json:"tier"     gorm:"index;default:supporter"`
	Blurb    string     `json:"blurb"    gorm:"type:text"`
	Active   bool       `json:"active"   gorm:"index;default:true"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Order    int        `json:"order"    gorm:"default:0"`
}

func (SponsorModel) TableName() string { return "sponsors" }
