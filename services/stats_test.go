package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ttt-platform/trash2treasure/models"
)

func TestStartOfWeekIsMonday(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 15, 4, 5, 0, time.Local)
	require.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local), startOfWeek(sunday))

	monday := time.Date(2024, 3, 18, 9, 0, 0, 0, time.Local)
	require.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.Local), startOfWeek(monday))
}

func TestGrowth(t *testing.T) {
	require.Zero(t, growth(5, 0))
	require.Equal(t, 50.0, growth(15, 10))
	require.Equal(t, -33.3, growth(2, 3))
}

func TestUserStatsHoldsOpenClaims(t *testing.T) {
	db := newTestDB(t)
	user := mkUser(t, db, "alice", models.RoleUser)
	credit(t, db, user.ID, 800)
	_, err := NewClaimService(db, nil).Create(user, ClaimInput{ClaimAmount: 500, ClaimType: models.ClaimPayment})
	require.NoError(t, err)
	_, err = NewSubmissionService(db, nil).Create(user, SubmissionInput{Location: "Somewhere"})
	require.NoError(t, err)

	user.RewardPoints = balance(t, db, user.ID)
	st := NewStatsService(db).User(user)
	require.Equal(t, 800, st.TotalPoints)
	require.Equal(t, 300, st.AvailablePoints)
	require.EqualValues(t, 1, st.PendingSubmissions)
	require.EqualValues(t, 1, st.TotalSubmissions)
	require.Zero(t, st.CompletedSubmissions)
}

func TestAdminAndRiderStats(t *testing.T) {
	lc, sub := newLifecycle(t)
	db := lc.svc.db
	stats := NewStatsService(db)

	_, err := lc.svc.Assign(lc.admin, sub.ID, lc.rider.ID, "")
	require.NoError(t, err)
	rs, err := stats.Rider(lc.rider)
	require.NoError(t, err)
	require.Len(t, rs.AssignedSubmissions, 1)
	require.Zero(t, rs.TotalCompleted)

	for _, to := range []models.SubmissionStatus{models.SubmissionOnTheWay, models.SubmissionArrived, models.SubmissionPicked} {
		_, err := lc.svc.UpdateStatus(lc.rider, sub.ID, to, "")
		require.NoError(t, err)
	}
	_, err = lc.svc.Complete(lc.rider, sub.ID, CompletionInput{TrashType: "paper", ActualQuantity: decimal.NewFromInt(4), PointsAwarded: 40})
	require.NoError(t, err)

	rs, err = stats.Rider(lc.rider)
	require.NoError(t, err)
	require.Empty(t, rs.AssignedSubmissions)
	require.EqualValues(t, 1, rs.CompletedToday)

	earn := stats.Earnings(lc.rider)
	require.EqualValues(t, 1, earn.TotalCollections)
	require.EqualValues(t, 40, earn.TotalPointsAwarded)

	as, err := stats.Admin()
	require.NoError(t, err)
	require.EqualValues(t, 3, as.BasicStats.TotalUsers)
	require.EqualValues(t, 1, as.BasicStats.TotalSubmissions)
	require.EqualValues(t, 40, as.BasicStats.TotalPoints)
	require.Equal(t, 100.0, as.SystemHealth.CompletionRate)
	require.EqualValues(t, 1, as.WeeklyStats.ThisWeekCollections)
	require.EqualValues(t, 100, as.WeeklyStats.WeeklyGrowth)
	require.Len(t, as.TopRiders, 1)
	require.Equal(t, "rider1", as.TopRiders[0].Username)
	require.EqualValues(t, 1, as.TopRiders[0].CollectionCount)

	pub := stats.Public()
	require.EqualValues(t, 1, pub.TotalUsers)
	require.EqualValues(t, 1, pub.ActiveRiders)
}

func TestAnalytics(t *testing.T) {
	db := newTestDB(t)
	mkUser(t, db, "alice", models.RoleUser)
	stats := NewStatsService(db)

	_, err := stats.Analytics(AnalyticsQuery{Start: "2024-13-01", End: "2024-01-02"})
	requireKind(t, err, KindValidation)
	_, err = stats.Analytics(AnalyticsQuery{Start: "2024-02-01", End: "2024-01-01"})
	requireKind(t, err, KindValidation)

	out, err := stats.Analytics(AnalyticsQuery{Start: "2024-01-01", End: "2024-01-07"})
	require.NoError(t, err)
	require.Equal(t, 7, out.DateRange.Period)
	require.Equal(t, "2024-01-01", out.DateRange.StartDate)
	require.Equal(t, "2024-01-07", out.DateRange.EndDate)
	require.Zero(t, out.PeriodStats.CurrentUsers)

	out, err = stats.Analytics(AnalyticsQuery{})
	require.NoError(t, err)
	require.Equal(t, 30, out.DateRange.Period)
	require.EqualValues(t, 1, out.PeriodStats.CurrentUsers)
}
