package models

import "time"

// RewardPointHistory is one append-only ledger row. The sum of Points for a
// user always equals User.RewardPoints.
type RewardPointHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	Points       int       `gorm:"not null" json:"points"`
	BalanceAfter int       `gorm:"not null" json:"balance_after"`
	Reason       string    `gorm:"size:255;not null" json:"reason"`
	SubmissionID *uint     `gorm:"index" json:"submission_id"`
	ClaimID      *uint     `gorm:"index" json:"claim_id"`
	AwardedByID  *uint     `json:"awarded_by_id"`
	AwardedBy    *User     `gorm:"foreignKey:AwardedByID" json:"awarded_by,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName keeps the table singular like the other ledger-style tables.
func (RewardPointHistory) TableName() string { return "reward_point_history" }
