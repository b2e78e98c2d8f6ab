package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ttt-platform/trash2treasure/models"
)

func TestPostLedgerRules(t *testing.T) {
	db := newTestDB(t)
	user := mkUser(t, db, "alice", models.RoleUser)

	post := func(e LedgerEntry) error {
		return db.Transaction(func(tx *gorm.DB) error {
			_, err := PostLedger(tx, e)
			return err
		})
	}

	requireKind(t, post(LedgerEntry{UserID: user.ID, Points: 0, Reason: "noop"}), KindValidation)
	requireKind(t, post(LedgerEntry{UserID: user.ID, Points: 5}), KindValidation)
	requireKind(t, post(LedgerEntry{UserID: user.ID + 100, Points: 5, Reason: "ghost"}), KindNotFound)
	requireKind(t, post(LedgerEntry{UserID: user.ID, Points: -1, Reason: "overdraw"}), KindConflict)

	require.NoError(t, post(LedgerEntry{UserID: user.ID, Points: 30, Reason: "first"}))
	require.NoError(t, post(LedgerEntry{UserID: user.ID, Points: -30, Reason: "second"}))
	requireKind(t, post(LedgerEntry{UserID: user.ID, Points: -1, Reason: "third"}), KindConflict)

	require.Zero(t, balance(t, db, user.ID))
	report, err := CheckLedger(db, user.ID)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.EqualValues(t, 2, report.Entries)
}

func TestCheckLedgerSpotsDrift(t *testing.T) {
	db := newTestDB(t)
	user := mkUser(t, db, "alice", models.RoleUser)
	credit(t, db, user.ID, 10)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumn("reward_points", 99).Error)

	report, err := CheckLedger(db, user.ID)
	require.NoError(t, err)
	require.False(t, report.Consistent)
	require.Equal(t, 99, report.Balance)
	require.Equal(t, 10, report.LedgerSum)
}
