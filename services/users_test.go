package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttt-platform/trash2treasure/models"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, nil)

	user, err := svc.Register(RegisterInput{Username: "alice", Email: "alice@example.com", Password: testPassword, FirstName: "Alice", IP: "10.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, user.UserType)
	require.Equal(t, models.UserActive, user.Status)
	require.NotEqual(t, testPassword, user.PasswordHash)

	_, err = svc.Register(RegisterInput{Username: "alice", Password: testPassword})
	requireKind(t, err, KindConflict)
	require.Equal(t, "username already exists", err.Error())

	_, err = svc.Register(RegisterInput{Username: "a b", Password: testPassword})
	requireKind(t, err, KindValidation)
	_, err = svc.Register(RegisterInput{Username: "carol", Password: "12345678"})
	requireKind(t, err, KindValidation)
	_, err = svc.Register(RegisterInput{Username: "carol", Email: "not-an-email", Password: testPassword})
	requireKind(t, err, KindValidation)

	got, err := svc.Authenticate("alice", testPassword)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)

	_, err = svc.Authenticate("alice", "wrong-password")
	requireKind(t, err, KindUnauthorized)
	_, err = svc.Authenticate("nobody", testPassword)
	requireKind(t, err, KindUnauthorized)

	admin := mkUser(t, db, "boss", models.RoleAdmin)
	_, err = svc.ToggleStatus(admin, user.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate("alice", testPassword)
	requireKind(t, err, KindForbidden)
	require.Equal(t, "your account is suspended", err.Error())
}

func TestCreateRiderAndProfile(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, nil)
	admin := mkUser(t, db, "boss", models.RoleAdmin)
	user := mkUser(t, db, "alice", models.RoleUser)

	_, err := svc.CreateRider(user, RiderInput{RegisterInput: RegisterInput{Username: "rider1", Password: testPassword}})
	requireKind(t, err, KindForbidden)

	rider, err := svc.CreateRider(admin, RiderInput{
		RegisterInput: RegisterInput{Username: "rider1", Password: testPassword},
		VehicleType:   "bike",
		LicensePlate:  "abc-123",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleRider, rider.UserType)
	require.Equal(t, "ABC-123", rider.LicensePlate)

	riders, err := svc.ListRiders()
	require.NoError(t, err)
	require.Len(t, riders, 1)

	model := "Cargo"
	_, err = svc.UpdateProfile(user, ProfileInput{VehicleModel: &model})
	requireKind(t, err, KindForbidden)

	updated, err := svc.UpdateProfile(rider, ProfileInput{VehicleModel: &model})
	require.NoError(t, err)
	require.Equal(t, "Cargo", updated.VehicleModel)

	phone := "not a phone"
	_, err = svc.UpdateProfile(user, ProfileInput{Phone: &phone})
	requireKind(t, err, KindValidation)

	first := "Alice"
	updated, err = svc.UpdateProfile(user, ProfileInput{FirstName: &first})
	require.NoError(t, err)
	require.Equal(t, "Alice", updated.FirstName)
}

func TestChangePassword(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, nil)
	user, err := svc.Register(RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	err = svc.ChangePassword(user, "wrong-password", "another-pass")
	requireKind(t, err, KindValidation)
	require.Equal(t, "old password is incorrect", err.Error())

	require.NoError(t, svc.ChangePassword(user, testPassword, "another-pass"))
	_, err = svc.Authenticate("alice", "another-pass")
	require.NoError(t, err)
}

func TestBonusAndClearPoints(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, nil)
	admin := mkUser(t, db, "boss", models.RoleAdmin)
	user := mkUser(t, db, "alice", models.RoleUser)

	_, err := svc.AwardBonus(admin, user.ID, 0, "nothing")
	requireKind(t, err, KindValidation)
	_, err = svc.AwardBonus(admin, user.ID, 10001, "too much")
	requireKind(t, err, KindValidation)
	_, err = svc.AwardBonus(admin, user.ID, 10, "  ")
	requireKind(t, err, KindValidation)
	_, err = svc.AwardBonus(admin, admin.ID, 10, "self")
	requireKind(t, err, KindForbidden)
	_, err = svc.AwardBonus(user, user.ID, 10, "self")
	requireKind(t, err, KindForbidden)

	row, err := svc.AwardBonus(admin, user.ID, 250, "community day")
	require.NoError(t, err)
	require.Equal(t, "Bonus: community day", row.Reason)
	require.Equal(t, 250, row.BalanceAfter)

	cleared, err := svc.ClearPoints(admin, user.ID)
	require.NoError(t, err)
	require.Zero(t, cleared.RewardPoints)
	requireLedgerConsistent(t, db, user.ID)

	earned, total, err := svc.PointsHistory(user.ID, HistoryFilter{Type: "earned"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, 250, earned[0].Points)

	spent, _, err := svc.PointsHistory(user.ID, HistoryFilter{Type: "spent", Range: RangeToday})
	require.NoError(t, err)
	require.Len(t, spent, 1)
	require.Equal(t, "Points cleared by admin", spent[0].Reason)

	_, _, err = svc.PointsHistory(user.ID, HistoryFilter{Type: "other"})
	requireKind(t, err, KindValidation)

	_, err = svc.ClearPoints(admin, admin.ID)
	requireKind(t, err, KindForbidden)
}

func TestToggleStatusProtectsAdmins(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, nil)
	admin := mkUser(t, db, "boss", models.RoleAdmin)
	other := mkUser(t, db, "boss2", models.RoleAdmin)
	user := mkUser(t, db, "alice", models.RoleUser)

	_, err := svc.ToggleStatus(admin, other.ID)
	requireKind(t, err, KindForbidden)

	got, err := svc.ToggleStatus(admin, user.ID)
	require.NoError(t, err)
	require.Equal(t, models.UserSuspended, got.Status)
	got, err = svc.ToggleStatus(admin, user.ID)
	require.NoError(t, err)
	require.Equal(t, models.UserActive, got.Status)

	rows, total, err := svc.List(UserFilter{UserType: models.RoleAdmin})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, rows, 2)

	_, total, err = svc.List(UserFilter{Search: "ali"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestEnsureAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, nil)
	require.NoError(t, svc.EnsureAdmin("root", testPassword, "root@example.com"))
	require.NoError(t, svc.EnsureAdmin("root", "other-password", ""))

	got, err := svc.Authenticate("root", testPassword)
	require.NoError(t, err)
	require.True(t, got.IsAdmin())
	require.NoError(t, svc.EnsureAdmin("", "", ""))
}
