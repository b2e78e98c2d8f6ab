package models

import "time"

// PageView counts GET hits of one server-rendered route on one day.
type PageView struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Day       string    `gorm:"size:10;not null;uniqueIndex:idx_page_views_day_route" json:"day"` // YYYY-MM-DD, server local time
	Route     string    `gorm:"size:191;not null;uniqueIndex:idx_page_views_day_route" json:"route"`
	Hits      int64     `gorm:"not null;default:0" json:"hits"`
	UpdatedAt time.Time `json:"updated_at"`
}
