package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/utils"
)

const settingsKey = "settings"

var logLevels = map[string]bool{"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true}

// SettingsInput is a partial settings update.
type SettingsInput struct {
	SiteName           *string
	SiteDescription    *string
	ContactEmail       *string
	DefaultTimezone    *string
	MaintenanceMode    *bool
	MaintenanceMessage *string
	DebugMode          *bool
	LogLevel           *string
}

// SettingsService owns the singleton settings row.
type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Get returns the settings row, creating it with defaults on first use.
// It is read on every request, so a short Redis cache sits in front of it.
func (s *SettingsService) Get() (*models.SystemSettings, error) {
	var out models.SystemSettings
	if utils.CacheGetJSON(settingsKey, &out) && out.SiteName != "" {
		return &out, nil
	}
	err := s.db.First(&out, models.SettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		out = models.DefaultSettings()
		err = s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&out).Error
		if err == nil {
			err = s.db.First(&out, models.SettingsID).Error
		}
	}
	if err != nil {
		return nil, err
	}
	s.cache(&out)
	return &out, nil
}

func (s *SettingsService) cache(st *models.SystemSettings) {
	utils.CacheSetJSON(settingsKey, st, time.Duration(config.Get().SettingsCacheSecs)*time.Second)
}

// Update applies a partial update and pushes the log level to the running logger.
func (s *SettingsService) Update(admin *models.User, in SettingsInput) (*models.SystemSettings, error) {
	if !admin.IsAdmin() {
		return nil, Forbidden("only admins can change settings")
	}
	current, err := s.Get()
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.SiteName != nil {
		name := utils.CleanText(*in.SiteName)
		if name == "" {
			return nil, Invalid("site name is required")
		}
		updates["site_name"] = truncate(name, 100)
	}
	if in.SiteDescription != nil {
		updates["site_description"] = utils.CleanText(*in.SiteDescription)
	}
	if in.ContactEmail != nil {
		email := strings.TrimSpace(*in.ContactEmail)
		if email != "" {
			if err := validate.Var(email, "email"); err != nil {
				return nil, Invalid("enter a valid contact email")
			}
		}
		updates["contact_email"] = email
	}
	if in.DefaultTimezone != nil {
		tz := strings.TrimSpace(*in.DefaultTimezone)
		if _, err := time.LoadLocation(tz); err != nil || tz == "" {
			return nil, Invalid("unknown timezone %q", tz)
		}
		updates["default_timezone"] = tz
	}
	if in.MaintenanceMode != nil {
		updates["maintenance_mode"] = *in.MaintenanceMode
	}
	if in.MaintenanceMessage != nil {
		updates["maintenance_message"] = utils.CleanText(*in.MaintenanceMessage)
	}
	if in.DebugMode != nil {
		updates["debug_mode"] = *in.DebugMode
	}
	if in.LogLevel != nil {
		lvl := strings.ToUpper(strings.TrimSpace(*in.LogLevel))
		if !logLevels[lvl] {
			return nil, Invalid("log level must be one of DEBUG, INFO, WARNING, ERROR")
		}
		updates["log_level"] = lvl
	}
	if len(updates) == 0 {
		return current, nil
	}
	updates["updated_by_id"] = admin.ID
	updates["updated_at"] = time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.SystemSettings{}).Where("id = ?", models.SettingsID).Updates(updates).Error; err != nil {
			return err
		}
		changed := make([]string, 0, len(updates))
		for k := range updates {
			if k != "updated_by_id" && k != "updated_at" {
				changed = append(changed, k)
			}
		}
		return logActivity(tx, admin.ID, ActionUpdateSettings, map[string]interface{}{"fields": changed})
	})
	if err != nil {
		return nil, err
	}
	return s.reload()
}

// Reset restores factory settings.
func (s *SettingsService) Reset(admin *models.User) (*models.SystemSettings, error) {
	if !admin.IsAdmin() {
		return nil, Forbidden("only admins can reset settings")
	}
	def := models.DefaultSettings()
	def.UpdatedByID = uintPtr(admin.ID)
	def.UpdatedAt = time.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&def).Error; err != nil {
			return err
		}
		return logActivity(tx, admin.ID, ActionResetSettings, map[string]interface{}{})
	})
	if err != nil {
		return nil, err
	}
	return s.reload()
}

func (s *SettingsService) reload() (*models.SystemSettings, error) {
	utils.CacheDelete(settingsKey)
	st, err := s.Get()
	if err != nil {
		return nil, err
	}
	utils.SetLevel(st.LogLevel)
	return st, nil
}

// ClearData wipes collection data and every non-admin account. Admin balances are
// zeroed together with their history so balances still match the ledger.
func (s *SettingsService) ClearData(admin *models.User) error {
	if !admin.IsAdmin() {
		return Forbidden("only admins can clear system data")
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, m := range []interface{}{
			&models.RewardPointHistory{},
			&models.RewardClaim{},
			&models.CollectionRecord{},
			&models.TrashSubmission{},
			&models.ActivityLog{},
		} {
			if err := all.Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_type <> ?", models.RoleAdmin).Delete(&models.User{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("user_type = ?", models.RoleAdmin).UpdateColumn("reward_points", 0).Error
	})
	if err != nil {
		return err
	}
	utils.Sugar.Warnf("system data cleared by admin=%d", admin.ID)
	utils.InvalidateByPrefix("stats:")
	return nil
}
