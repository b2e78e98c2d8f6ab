package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/utils"
)

func TestSettingsDefaultsAndUpdate(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettingsService(db)
	admin := mkUser(t, db, "boss", models.RoleAdmin)
	user := mkUser(t, db, "alice", models.RoleUser)

	st, err := svc.Get()
	require.NoError(t, err)
	require.Equal(t, "Trash to Treasure", st.SiteName)
	require.False(t, st.MaintenanceMode)

	on := true
	_, err = svc.Update(user, SettingsInput{MaintenanceMode: &on})
	requireKind(t, err, KindForbidden)

	bad := "nope"
	_, err = svc.Update(admin, SettingsInput{ContactEmail: &bad})
	requireKind(t, err, KindValidation)
	_, err = svc.Update(admin, SettingsInput{DefaultTimezone: &bad})
	requireKind(t, err, KindValidation)
	_, err = svc.Update(admin, SettingsInput{LogLevel: &bad})
	requireKind(t, err, KindValidation)
	blank := "  "
	_, err = svc.Update(admin, SettingsInput{SiteName: &blank})
	requireKind(t, err, KindValidation)

	msg := "Back <b>soon</b>"
	level := "debug"
	st, err = svc.Update(admin, SettingsInput{MaintenanceMode: &on, MaintenanceMessage: &msg, LogLevel: &level})
	require.NoError(t, err)
	require.True(t, st.MaintenanceMode)
	require.Equal(t, "Back soon", st.MaintenanceMessage)
	require.Equal(t, "DEBUG", st.LogLevel)
	require.Equal(t, zapcore.DebugLevel, utils.CurrentLevel())
	require.NotNil(t, st.UpdatedByID)
	require.Equal(t, admin.ID, *st.UpdatedByID)

	st, err = svc.Reset(admin)
	require.NoError(t, err)
	require.False(t, st.MaintenanceMode)
	require.Equal(t, "INFO", st.LogLevel)

	var logs int64
	require.NoError(t, db.Model(&models.ActivityLog{}).Count(&logs).Error)
	require.EqualValues(t, 2, logs)
}

func TestClearDataKeepsAdmins(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettingsService(db)
	admin := mkUser(t, db, "boss", models.RoleAdmin)
	user := mkUser(t, db, "alice", models.RoleUser)
	mkUser(t, db, "rider1", models.RoleRider)
	credit(t, db, user.ID, 700)
	credit(t, db, admin.ID, 20)

	require.Error(t, svc.ClearData(user))
	require.NoError(t, svc.ClearData(admin))

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	require.Equal(t, admin.ID, users[0].ID)
	require.Zero(t, users[0].RewardPoints)
	requireLedgerConsistent(t, db, admin.ID)

	var history int64
	require.NoError(t, db.Model(&models.RewardPointHistory{}).Count(&history).Error)
	require.Zero(t, history)
}
