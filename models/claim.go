package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus is a step of the redemption workflow.
type ClaimStatus string

const (
	ClaimPending    ClaimStatus = "pending"
	ClaimProcessing ClaimStatus = "processing"
	ClaimCompleted  ClaimStatus = "completed"
	ClaimCancelled  ClaimStatus = "cancelled"
)

// Claim types.
const (
	ClaimPayment  = "payment"
	ClaimDonation = "donation"
)

// Valid reports whether s is a known claim status.
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimPending, ClaimProcessing, ClaimCompleted, ClaimCancelled:
		return true
	}
	return false
}

// RewardClaim is a request to redeem points for cash or a hospital donation.
type RewardClaim struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ReferenceID      string          `gorm:"size:20;not null;uniqueIndex" json:"reference_id"`
	UserID           uint            `gorm:"not null;index" json:"user_id"`
	User             *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ClaimAmount      int             `gorm:"not null" json:"claim_amount"`
	MonetaryAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"monetary_amount"`
	ClaimType        string          `gorm:"size:10;not null" json:"claim_type"`
	DonationHospital string          `gorm:"size:100" json:"donation_hospital,omitempty"`
	Status           ClaimStatus     `gorm:"size:15;not null;default:pending;index" json:"status"`
	ProcessedByID    *uint           `json:"processed_by_id"`
	ProcessedAt      *time.Time      `json:"processed_at"`
	Notes            string          `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
