package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog records who did what; Details is free-form JSON.
type ActivityLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	User      *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action    string         `gorm:"size:100;not null;index" json:"action"`
	Details   datatypes.JSON `json:"details"`
	Timestamp time.Time      `gorm:"index" json:"timestamp"`
}
