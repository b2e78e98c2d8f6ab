package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles.
const (
	RoleUser  = "user"
	RoleRider = "rider"
	RoleAdmin = "admin"
)

// Account statuses.
const (
	UserActive    = "active"
	UserInactive  = "inactive"
	UserSuspended = "suspended"
)

// User is an account of any role. Passwords are stored as bcrypt hashes only.
// RewardPoints is only ever changed together with a RewardPointHistory row.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"size:150;not null;uniqueIndex" json:"username"`
	Email        string     `gorm:"size:254" json:"email"`
	FirstName    string     `gorm:"size:150" json:"first_name"`
	LastName     string     `gorm:"size:150" json:"last_name"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	UserType     string     `gorm:"size:10;not null;default:user;index" json:"user_type"`
	Status       string     `gorm:"size:10;not null;default:active" json:"status"`
	Phone        string     `gorm:"size:15" json:"phone"`
	Location     string     `gorm:"size:255" json:"location"`
	RewardPoints int        `gorm:"not null;default:0" json:"reward_points"`
	ProfileImage string     `gorm:"size:512" json:"profile_image"`
	RegisterIP   string     `gorm:"size:45" json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	// Rider-only fields
	IDProof      string    `gorm:"size:512" json:"id_proof,omitempty"`
	VehicleType  string    `gorm:"size:50" json:"vehicle_type,omitempty"`
	VehicleModel string    `gorm:"size:50" json:"vehicle_model,omitempty"`
	LicensePlate string    `gorm:"size:20" json:"license_plate,omitempty"`
	VehicleColor string    `gorm:"size:30" json:"vehicle_color,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate fills role and status defaults and timestamps.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.UserType == "" {
		u.UserType = RoleUser
	}
	if u.Status == "" {
		u.Status = UserActive
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

func (u *User) IsAdmin() bool  { return u.UserType == RoleAdmin }
func (u *User) IsRider() bool  { return u.UserType == RoleRider }
func (u *User) IsActive() bool { return u.Status == UserActive }

// FullName falls back to the username when no name is set.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
