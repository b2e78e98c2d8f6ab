package services

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ttt-platform/trash2treasure/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.SubmissionStatus
		ok       bool
	}{
		{models.SubmissionPending, models.SubmissionAssigned, true},
		{models.SubmissionPending, models.SubmissionCancelled, true},
		{models.SubmissionAssigned, models.SubmissionOnTheWay, true},
		{models.SubmissionOnTheWay, models.SubmissionArrived, true},
		{models.SubmissionOnTheWay, models.SubmissionCancelled, true},
		{models.SubmissionArrived, models.SubmissionPicked, true},
		{models.SubmissionPicked, models.SubmissionCollected, true},
		{models.SubmissionCollected, models.SubmissionVerified, true},
		{models.SubmissionPending, models.SubmissionPicked, false},
		{models.SubmissionAssigned, models.SubmissionArrived, false},
		{models.SubmissionArrived, models.SubmissionCancelled, false},
		{models.SubmissionPicked, models.SubmissionCancelled, false},
		{models.SubmissionVerified, models.SubmissionCollected, false},
		{models.SubmissionCancelled, models.SubmissionPending, false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestValidTrackID(t *testing.T) {
	require.True(t, ValidTrackID("TR1A2B3C4D"))
	require.False(t, ValidTrackID("TR1A2B3C4"))
	require.False(t, ValidTrackID("tr1a2b3c4d"))
	require.False(t, ValidTrackID("XX1A2B3C4D"))
}

type lifecycle struct {
	svc   *SubmissionService
	user  *models.User
	rider *models.User
	admin *models.User
}

func newLifecycle(t *testing.T) (*lifecycle, *models.TrashSubmission) {
	db := newTestDB(t)
	lc := &lifecycle{
		svc:   NewSubmissionService(db, nil),
		user:  mkUser(t, db, "alice", models.RoleUser),
		rider: mkUser(t, db, "rider1", models.RoleRider),
		admin: mkUser(t, db, "boss", models.RoleAdmin),
	}
	qty := decimal.NewFromFloat(3.5)
	sub, err := lc.svc.Create(lc.user, SubmissionInput{QuantityKg: &qty, Location: "12 Green St", Description: "bottles"})
	require.NoError(t, err)
	return lc, sub
}

func TestCreateSubmission(t *testing.T) {
	lc, sub := newLifecycle(t)
	require.Equal(t, models.SubmissionPending, sub.Status)
	require.True(t, ValidTrackID(sub.TrackID))
	require.True(t, sub.QuantityKg.Valid)

	_, err := lc.svc.Create(lc.user, SubmissionInput{Location: "   "})
	requireKind(t, err, KindValidation)

	neg := decimal.NewFromInt(-1)
	_, err = lc.svc.Create(lc.user, SubmissionInput{Location: "x", QuantityKg: &neg})
	requireKind(t, err, KindValidation)

	_, err = lc.svc.Create(lc.rider, SubmissionInput{Location: "x"})
	requireKind(t, err, KindForbidden)

	found, err := lc.svc.Track(" " + sub.TrackID + " ")
	require.NoError(t, err)
	require.Equal(t, sub.ID, found.ID)

	_, err = lc.svc.Track("TR00000000")
	requireKind(t, err, KindNotFound)
	_, err = lc.svc.Track("nope")
	requireKind(t, err, KindValidation)
}

func TestFullLifecycleAwardsPoints(t *testing.T) {
	lc, sub := newLifecycle(t)
	db := lc.svc.db

	assigned, err := lc.svc.Assign(lc.admin, sub.ID, lc.rider.ID, "front door")
	require.NoError(t, err)
	require.Equal(t, models.SubmissionAssigned, assigned.Status)
	require.NotNil(t, assigned.AssignedAt)
	require.NotNil(t, assigned.RiderID)
	require.Equal(t, lc.rider.ID, *assigned.RiderID)

	// Re-assigning is rejected
	_, err = lc.svc.Assign(lc.admin, sub.ID, lc.rider.ID, "")
	requireKind(t, err, KindConflict)

	// Riders cannot skip steps
	_, err = lc.svc.UpdateStatus(lc.rider, sub.ID, models.SubmissionPicked, "")
	requireKind(t, err, KindConflict)

	for _, to := range []models.SubmissionStatus{models.SubmissionOnTheWay, models.SubmissionArrived, models.SubmissionPicked} {
		got, err := lc.svc.UpdateStatus(lc.rider, sub.ID, to, "")
		require.NoError(t, err)
		require.Equal(t, to, got.Status)
	}

	// Cancelling after arrival is no longer possible
	_, err = lc.svc.Cancel(lc.user, sub.ID, "changed my mind")
	requireKind(t, err, KindConflict)

	record, err := lc.svc.Complete(lc.rider, sub.ID, CompletionInput{
		TrashType:      "plastic",
		ActualQuantity: decimal.NewFromFloat(5.0),
		PointsAwarded:  100,
	})
	require.NoError(t, err)
	require.Equal(t, 100, record.PointsAwarded)
	require.Equal(t, models.SubmissionCollected, record.Submission.Status)
	require.Equal(t, 100, balance(t, db, lc.user.ID))

	var entries []models.RewardPointHistory
	require.NoError(t, db.Where("user_id = ?", lc.user.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	require.Equal(t, 100, entries[0].Points)
	require.Equal(t, 100, entries[0].BalanceAfter)

	verified, err := lc.svc.Verify(lc.admin, sub.ID, 50, "clean sort")
	require.NoError(t, err)
	require.True(t, verified.AdminVerified)
	require.Equal(t, 50, verified.VerifiedPoints)
	require.Equal(t, 150, balance(t, db, lc.user.ID))

	_, err = lc.svc.Verify(lc.admin, sub.ID, 50, "")
	requireKind(t, err, KindConflict)
	require.Equal(t, 150, balance(t, db, lc.user.ID))
	requireLedgerConsistent(t, db, lc.user.ID)

	var activity int64
	require.NoError(t, db.Model(&models.ActivityLog{}).Count(&activity).Error)
	require.EqualValues(t, 6, activity)
}

func TestCompleteRules(t *testing.T) {
	lc, sub := newLifecycle(t)
	other := mkUser(t, lc.svc.db, "rider2", models.RoleRider)
	_, err := lc.svc.Assign(lc.admin, sub.ID, lc.rider.ID, "")
	require.NoError(t, err)

	in := CompletionInput{TrashType: "glass", ActualQuantity: decimal.NewFromInt(2), PointsAwarded: 10}
	_, err = lc.svc.Complete(lc.rider, sub.ID, in)
	requireKind(t, err, KindConflict)

	_, err = lc.svc.Complete(other, sub.ID, in)
	requireKind(t, err, KindForbidden)

	_, err = lc.svc.UpdateStatus(other, sub.ID, models.SubmissionOnTheWay, "")
	requireKind(t, err, KindForbidden)

	_, err = lc.svc.Complete(lc.rider, sub.ID, CompletionInput{TrashType: "", ActualQuantity: decimal.NewFromInt(2)})
	requireKind(t, err, KindValidation)

	_, err = lc.svc.Complete(lc.rider, sub.ID, CompletionInput{TrashType: "glass", ActualQuantity: decimal.Zero})
	requireKind(t, err, KindValidation)
}

func TestAssignRejectsNonRiders(t *testing.T) {
	lc, sub := newLifecycle(t)

	_, err := lc.svc.Assign(lc.admin, sub.ID, lc.user.ID, "")
	requireKind(t, err, KindValidation)

	_, err = lc.svc.Assign(lc.rider, sub.ID, lc.rider.ID, "")
	requireKind(t, err, KindForbidden)

	require.NoError(t, lc.svc.db.Model(lc.rider).Update("status", models.UserSuspended).Error)
	_, err = lc.svc.Assign(lc.admin, sub.ID, lc.rider.ID, "")
	requireKind(t, err, KindValidation)
}

func TestCancelSubmission(t *testing.T) {
	lc, sub := newLifecycle(t)
	stranger := mkUser(t, lc.svc.db, "bob", models.RoleUser)

	_, err := lc.svc.Cancel(stranger, sub.ID, "")
	requireKind(t, err, KindForbidden)

	got, err := lc.svc.Cancel(lc.user, sub.ID, "moved away")
	require.NoError(t, err)
	require.Equal(t, models.SubmissionCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	require.Equal(t, "moved away", got.CancelReason)

	_, err = lc.svc.Cancel(lc.user, sub.ID, "")
	requireKind(t, err, KindConflict)
}

func TestVerifyNeedsPositivePoints(t *testing.T) {
	lc, sub := newLifecycle(t)
	_, err := lc.svc.Verify(lc.admin, sub.ID, 0, "")
	requireKind(t, err, KindValidation)
	_, err = lc.svc.Verify(lc.admin, sub.ID, 10, "")
	requireKind(t, err, KindConflict)
}

func TestListings(t *testing.T) {
	lc, sub := newLifecycle(t)
	_, err := lc.svc.Create(lc.user, SubmissionInput{Location: "Market square", Description: "cardboard"})
	require.NoError(t, err)

	rows, total, err := lc.svc.ListForUser(lc.user.ID, SubmissionFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, rows, 2)

	rows, total, err = lc.svc.ListForUser(lc.user.ID, SubmissionFilter{Search: "cardboard"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Market square", rows[0].Location)

	_, err = lc.svc.Assign(lc.admin, sub.ID, lc.rider.ID, "")
	require.NoError(t, err)

	_, total, err = lc.svc.ListPending(SubmissionFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	rows, total, err = lc.svc.ListForRider(lc.rider.ID, SubmissionFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, sub.ID, rows[0].ID)

	_, total, err = lc.svc.ListAll(SubmissionFilter{Status: string(models.SubmissionAssigned)})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestConcurrentVerifyCreditsOnce(t *testing.T) {
	lc, sub := newLifecycle(t)
	db := lc.svc.db
	_, err := lc.svc.Assign(lc.admin, sub.ID, lc.rider.ID, "")
	require.NoError(t, err)
	for _, to := range []models.SubmissionStatus{models.SubmissionOnTheWay, models.SubmissionArrived, models.SubmissionPicked} {
		_, err := lc.svc.UpdateStatus(lc.rider, sub.ID, to, "")
		require.NoError(t, err)
	}
	_, err = lc.svc.Complete(lc.rider, sub.ID, CompletionInput{TrashType: "metal", ActualQuantity: decimal.NewFromInt(1), PointsAwarded: 20})
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = lc.svc.Verify(lc.admin, sub.ID, 50, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireKind(t, err, KindConflict)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 70, balance(t, db, lc.user.ID))
	requireLedgerConsistent(t, db, lc.user.ID)
}
