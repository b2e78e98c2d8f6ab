package models

import "time"

// SettingsID is the primary key of the only SystemSettings row.
const SettingsID = 1

// SystemSettings is the singleton site configuration edited by admins.
type SystemSettings struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	SiteName           string    `gorm:"size:100;not null" json:"site_name"`
	SiteDescription    string    `gorm:"type:text" json:"site_description"`
	ContactEmail       string    `gorm:"size:254" json:"contact_email"`
	DefaultTimezone    string    `gorm:"size:50" json:"default_timezone"`
	MaintenanceMode    bool      `gorm:"not null;default:false" json:"maintenance_mode"`
	MaintenanceMessage string    `gorm:"type:text" json:"maintenance_message"`
	DebugMode          bool      `gorm:"not null;default:false" json:"debug_mode"`
	LogLevel           string    `gorm:"size:10;not null;default:INFO" json:"log_level"`
	UpdatedByID        *uint     `json:"updated_by_id"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultSettings returns the factory configuration.
func DefaultSettings() SystemSettings {
	return SystemSettings{
		ID:                 SettingsID,
		SiteName:           "Trash to Treasure",
		SiteDescription:    "Transform waste into rewards with our eco-friendly recycling platform",
		ContactEmail:       "admin@trashtotreasure.com",
		DefaultTimezone:    "UTC",
		MaintenanceMessage: "System is currently under maintenance. Please check back later.",
		LogLevel:           "INFO",
	}
}
