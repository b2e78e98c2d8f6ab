package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmissionStatus is a step of the collection lifecycle.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionAssigned  SubmissionStatus = "assigned"
	SubmissionOnTheWay  SubmissionStatus = "on_the_way"
	SubmissionArrived   SubmissionStatus = "arrived"
	SubmissionPicked    SubmissionStatus = "picked"
	SubmissionCollected SubmissionStatus = "collected"
	SubmissionVerified  SubmissionStatus = "verified"
	SubmissionCancelled SubmissionStatus = "cancelled"
)

var submissionStatusLabels = map[SubmissionStatus]string{
	SubmissionPending:   "Pending",
	SubmissionAssigned:  "Assigned to Rider",
	SubmissionOnTheWay:  "Rider On The Way",
	SubmissionArrived:   "Rider Arrived at Location",
	SubmissionPicked:    "Trash Picked Up",
	SubmissionCollected: "Collected",
	SubmissionVerified:  "Collection Verified",
	SubmissionCancelled: "Cancelled",
}

// Label is the human readable status.
func (s SubmissionStatus) Label() string {
	if l, ok := submissionStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	_, ok := submissionStatusLabels[s]
	return ok
}

// TrashSubmission is a user's request for a pickup.
type TrashSubmission struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	TrackID          string              `gorm:"size:15;not null;uniqueIndex" json:"track_id"`
	UserID           uint                `gorm:"not null;index" json:"user_id"`
	User             *User               `gorm:"foreignKey:UserID" json:"user,omitempty"`
	QuantityKg       decimal.NullDecimal `gorm:"type:decimal(6,2)" json:"quantity_kg"`
	TrashDescription string              `gorm:"type:text" json:"trash_description"`
	Location         string              `gorm:"size:255;not null" json:"location"`
	Status           SubmissionStatus    `gorm:"size:20;not null;default:pending;index" json:"status"`
	RiderID          *uint               `gorm:"index" json:"rider_id"`
	Rider            *User               `gorm:"foreignKey:RiderID" json:"rider,omitempty"`
	AssignmentNotes  string              `gorm:"type:text" json:"assignment_notes"`
	AssignedAt       *time.Time          `json:"assigned_at"`
	OnTheWayAt       *time.Time          `json:"on_the_way_at"`
	ArrivedAt        *time.Time          `json:"arrived_at"`
	PickupTime       *time.Time          `json:"pickup_time"`
	CompletionTime   *time.Time          `json:"completion_time"`
	CancelledAt      *time.Time          `json:"cancelled_at"`
	RiderNotes       string              `gorm:"type:text" json:"rider_notes"`
	CancelReason     string              `gorm:"size:255" json:"cancel_reason,omitempty"`
	Collection       *CollectionRecord   `gorm:"foreignKey:SubmissionID" json:"collection_record,omitempty"`
	CreatedAt        time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// StatusLabel is used by templates.
func (s *TrashSubmission) StatusLabel() string { return s.Status.Label() }

// CollectionRecord is written once a rider completes a pickup.
type CollectionRecord struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	SubmissionID      uint             `gorm:"not null;uniqueIndex" json:"submission_id"`
	Submission        *TrashSubmission `gorm:"foreignKey:SubmissionID" json:"submission,omitempty"`
	RiderID           uint             `gorm:"not null;index" json:"rider_id"`
	Rider             *User            `gorm:"foreignKey:RiderID" json:"rider,omitempty"`
	TrashType         string           `gorm:"size:50;not null" json:"trash_type"`
	ActualQuantity    decimal.Decimal  `gorm:"type:decimal(6,2);not null" json:"actual_quantity"`
	PointsAwarded     int              `gorm:"not null;default:0" json:"points_awarded"`
	CollectedAt       time.Time        `gorm:"index" json:"collected_at"`
	AdminVerified     bool             `gorm:"not null;default:false" json:"admin_verified"`
	VerifiedByID      *uint            `json:"verified_by_id"`
	VerifiedAt        *time.Time       `json:"verified_at"`
	VerifiedPoints    int              `gorm:"not null;default:0" json:"verified_points"`
	VerificationNotes string           `gorm:"type:text" json:"verification_notes"`
}
