package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/models"
)

const testPassword = "s3cret-pass"

// newTestDB opens a private in-memory database with every table migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	config.Set(config.AppConfig{JWTSecret: "test", DBDriver: "sqlite", MediaRoot: t.TempDir()})
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.OpenDatabase("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name), "silent")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// mkUser inserts an active account with the given role. The hash is a fixed
// bcrypt value so tests stay fast; use Register when a real password is needed.
func mkUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", UserType: role, Status: models.UserActive, PasswordHash: "x"}
	require.NoError(t, db.Create(u).Error)
	return u
}

// credit moves points onto a balance through the ledger.
func credit(t *testing.T, db *gorm.DB, userID uint, points int) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := PostLedger(tx, LedgerEntry{UserID: userID, Points: points, Reason: "test credit"})
		return err
	}))
}

func balance(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var u models.User
	require.NoError(t, db.Select("id", "reward_points").First(&u, userID).Error)
	return u.RewardPoints
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.True(t, errors.As(err, &se), "expected a service error, got %v", err)
	require.Equal(t, kind, se.Kind, se.Message)
}

func requireLedgerConsistent(t *testing.T, db *gorm.DB, userID uint) {
	t.Helper()
	report, err := CheckLedger(db, userID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "balance %d != ledger %d", report.Balance, report.LedgerSum)
}
