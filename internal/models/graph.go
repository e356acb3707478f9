package models

// PageLinkModel is one resolved wiki link edge. The link graph is rebuilt
// wholesale per source page, so rows carry no state beyond the edge itself.
type PageLinkModel struct {
	Base
	FromPageID string `json:"from_page_id" gorm:"uniqueIndex:idx_page_links_edge,priority:1;not null"`
	ToPageID   string `json:"to_page_id"   gorm:"uniqueIndex:idx_page_links_edge,priority:2;index;not null"`
	ToSlug     string `json:"to_slug"      gorm:"index;not null"`
}

func (PageLinkModel) TableName() string { return "page_links" }

// WatchlistModel marks a user as watching a page.
type WatchlistModel struct {
	Base
	UserID string `json:"user_id" gorm:"uniqueIndex:idx_watchlists_user_page,priority:1;not null"`
	PageID string `json:"page_id" gorm:"uniqueIndex:idx_watchlists_user_page,priority:2;index;not null"`
}

func (WatchlistModel) TableName() string { return "watchlists" }
