package services

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ttt-platform/trash2treasure/models"
)

// Activity actions.
const (
	ActionAssignRider        = "assign_rider"
	ActionUpdateStatus       = "update_status"
	ActionCompleteCollection = "complete_collection"
	ActionVerifyCollection   = "verify_collection"
	ActionCancelSubmission   = "cancel_submission"
	ActionClaimStatus        = "claim_status"
	ActionDeleteClaim        = "delete_claim"
	ActionAwardBonus         = "award_bonus"
	ActionClearPoints        = "clear_points"
	ActionToggleStatus       = "toggle_status"
	ActionCreateRider        = "create_rider"
	ActionUpdateSettings     = "update_settings"
	ActionResetSettings      = "reset_settings"
)

// logActivity appends an activity row using the caller's transaction.
func logActivity(tx *gorm.DB, userID uint, action string, details map[string]interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return tx.Create(&models.ActivityLog{
		UserID:    userID,
		Action:    action,
		Details:   datatypes.JSON(raw),
		Timestamp: time.Now(),
	}).Error
}

// ActivityFilter narrows the admin activity listing.
type ActivityFilter struct {
	UserID   uint
	Action   string
	Page     int
	PageSize int
}

// ActivityService reads the activity log.
type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// List returns activity newest first.
func (s *ActivityService) List(f ActivityFilter) ([]models.ActivityLog, int64, error) {
	q := s.db.Model(&models.ActivityLog{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.ActivityLog
	err := paginate(q.Preload("User"), f.Page, f.PageSize).
		Order("timestamp DESC, id DESC").
		Find(&rows).Error
	return rows, total, err
}
