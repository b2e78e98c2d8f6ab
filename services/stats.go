package services

import (
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/utils"
)

const publicStatsKey = "stats:public"

// invalidateStats drops cached dashboard numbers after a write.
func invalidateStats() {
	utils.CacheDelete(publicStatsKey)
}

// PublicStats is shown on the landing page.
type PublicStats struct {
	TotalUsers       int64 `json:"total_users"`
	TotalSubmissions int64 `json:"total_submissions"`
	ActiveRiders     int64 `json:"active_riders"`
	TotalPoints      int64 `json:"total_points"`
}

// UserStats is a user's own dashboard.
type UserStats struct {
	TotalPoints          int   `json:"total_points"`
	AvailablePoints      int   `json:"available_points"`
	PendingSubmissions   int64 `json:"pending_submissions"`
	CompletedSubmissions int64 `json:"completed_submissions"`
	TotalSubmissions     int64 `json:"total_submissions"`
}

// RiderStats is a rider's dashboard.
type RiderStats struct {
	AssignedSubmissions []models.TrashSubmission `json:"assigned_submissions"`
	CompletedToday      int64                    `json:"completed_today"`
	TotalCompleted      int64                    `json:"total_completed"`
}

// RiderEarnings summarises a rider's collections.
type RiderEarnings struct {
	CollectionsToday    int64 `json:"collections_today"`
	CollectionsThisWeek int64 `json:"collections_this_week"`
	TotalCollections    int64 `json:"total_collections"`
	TotalPointsAwarded  int64 `json:"total_points_awarded"`
}

// TopRider is one row of the leaderboard.
type TopRider struct {
	ID              uint   `json:"id"`
	Username        string `json:"username"`
	CollectionCount int64  `json:"collection_count"`
}

// AdminStats is the admin dashboard.
type AdminStats struct {
	BasicStats struct {
		TotalUsers         int64 `json:"total_users"`
		TotalSubmissions   int64 `json:"total_submissions"`
		PendingSubmissions int64 `json:"pending_submissions"`
		ActiveRiders       int64 `json:"active_riders"`
		TotalPoints        int64 `json:"total_points"`
		PendingClaims      int64 `json:"pending_claims"`
	} `json:"basic_stats"`
	RecentSubmissions []models.TrashSubmission `json:"recent_submissions"`
	WeeklyStats       struct {
		ThisWeekCollections int64 `json:"this_week_collections"`
		LastWeekCollections int64 `json:"last_week_collections"`
		WeeklyGrowth        int64 `json:"weekly_growth"`
	} `json:"weekly_stats"`
	SystemHealth struct {
		CompletionRate    float64 `json:"completion_rate"`
		NewSubmissions24h int64   `json:"new_submissions_24h"`
		NewCollections24h int64   `json:"new_collections_24h"`
		NewUsers24h       int64   `json:"new_users_24h"`
	} `json:"system_health"`
	TopRiders []TopRider `json:"top_riders"`
	Traffic   struct {
		ViewsToday int64             `json:"views_today"`
		TopPages   []models.PageView `json:"top_pages"`
	} `json:"traffic"`
}

// AnalyticsQuery selects the analytics window: either the last Period days or Start..End.
type AnalyticsQuery struct {
	Period int
	Start  string
	End    string
}

// Analytics compares a window with the window before it.
type Analytics struct {
	PeriodStats struct {
		CurrentUsers       int64 `json:"current_users"`
		CurrentSubmissions int64 `json:"current_submissions"`
		CurrentRiders      int64 `json:"current_riders"`
		CurrentPoints      int64 `json:"current_points"`
	} `json:"period_stats"`
	GrowthStats struct {
		UserGrowth       float64 `json:"user_growth"`
		SubmissionGrowth float64 `json:"submission_growth"`
	} `json:"growth_stats"`
	DateRange struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Period    int    `json:"period"`
	} `json:"date_range"`
}

// StatsService computes dashboard numbers with plain COUNT/SUM queries.
type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// count returns 0 instead of failing the dashboard on a broken query.
func count(q *gorm.DB) int64 {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		utils.Sugar.Warnf("stats count failed: %v", err)
		return 0
	}
	return n
}

func sum(q *gorm.DB, column string) int64 {
	var n int64
	if err := q.Select("COALESCE(SUM(" + column + "), 0)").Scan(&n).Error; err != nil {
		utils.Sugar.Warnf("stats sum failed: %v", err)
		return 0
	}
	return n
}

// Public returns landing page counters, cached in Redis when available.
func (s *StatsService) Public() PublicStats {
	var out PublicStats
	if utils.CacheGetJSON(publicStatsKey, &out) {
		return out
	}
	out.TotalUsers = count(s.db.Model(&models.User{}).Where("user_type = ? AND status = ?", models.RoleUser, models.UserActive))
	out.TotalSubmissions = count(s.db.Model(&models.TrashSubmission{}))
	out.ActiveRiders = count(s.db.Model(&models.User{}).Where("user_type = ? AND status = ?", models.RoleRider, models.UserActive))
	out.TotalPoints = sum(s.db.Model(&models.User{}), "reward_points")
	utils.CacheSetJSON(publicStatsKey, out, time.Duration(config.Get().StatsCacheSeconds)*time.Second)
	return out
}

// User returns the dashboard for one user.
func (s *StatsService) User(user *models.User) UserStats {
	mine := s.db.Model(&models.TrashSubmission{}).Where("user_id = ?", user.ID).Session(&gorm.Session{})
	out := UserStats{
		TotalPoints:          user.RewardPoints,
		PendingSubmissions:   count(mine.Where("status = ?", models.SubmissionPending)),
		CompletedSubmissions: count(mine.Where("status IN ?", []models.SubmissionStatus{models.SubmissionCollected, models.SubmissionVerified})),
		TotalSubmissions:     count(mine),
	}
	open := sum(s.db.Model(&models.RewardClaim{}).
		Where("user_id = ? AND status IN ?", user.ID, []models.ClaimStatus{models.ClaimPending, models.ClaimProcessing}), "claim_amount")
	if avail := int64(user.RewardPoints) - open; avail > 0 {
		out.AvailablePoints = int(avail)
	}
	return out
}

// Rider returns the dashboard for one rider.
func (s *StatsService) Rider(rider *models.User) (RiderStats, error) {
	var out RiderStats
	err := s.db.Preload("User").
		Where("rider_id = ? AND status IN ?", rider.ID, []models.SubmissionStatus{
			models.SubmissionAssigned, models.SubmissionOnTheWay, models.SubmissionArrived, models.SubmissionPicked,
		}).
		Order("assigned_at DESC").
		Find(&out.AssignedSubmissions).Error
	if err != nil {
		return out, err
	}
	records := s.db.Model(&models.CollectionRecord{}).Where("rider_id = ?", rider.ID).Session(&gorm.Session{})
	out.CompletedToday = count(records.Where("collected_at >= ?", startOfDay(time.Now())))
	out.TotalCompleted = count(records)
	return out, nil
}

// Earnings summarises a rider's completed collections.
func (s *StatsService) Earnings(rider *models.User) RiderEarnings {
	now := time.Now()
	records := s.db.Model(&models.CollectionRecord{}).Where("rider_id = ?", rider.ID).Session(&gorm.Session{})
	return RiderEarnings{
		CollectionsToday:    count(records.Where("collected_at >= ?", startOfDay(now))),
		CollectionsThisWeek: count(records.Where("collected_at >= ?", startOfWeek(now))),
		TotalCollections:    count(records),
		TotalPointsAwarded:  sum(records, "points_awarded"),
	}
}

// Admin returns the admin dashboard.
func (s *StatsService) Admin() (AdminStats, error) {
	var out AdminStats
	now := time.Now()
	subs := s.db.Model(&models.TrashSubmission{}).Session(&gorm.Session{})
	records := s.db.Model(&models.CollectionRecord{}).Session(&gorm.Session{})
	users := s.db.Model(&models.User{}).Session(&gorm.Session{})

	out.BasicStats.TotalUsers = count(users)
	out.BasicStats.TotalSubmissions = count(subs)
	out.BasicStats.PendingSubmissions = count(subs.Where("status = ?", models.SubmissionPending))
	out.BasicStats.ActiveRiders = count(users.Where("user_type = ? AND status = ?", models.RoleRider, models.UserActive))
	out.BasicStats.TotalPoints = sum(users, "reward_points")
	out.BasicStats.PendingClaims = count(s.db.Model(&models.RewardClaim{}).Where("status = ?", models.ClaimPending))

	if err := s.db.Preload("User").Preload("Rider").Order("created_at DESC, id DESC").Limit(10).
		Find(&out.RecentSubmissions).Error; err != nil {
		return out, err
	}

	week := startOfWeek(now)
	prevWeek := week.AddDate(0, 0, -7)
	thisWeek := count(records.Where("collected_at >= ?", week))
	lastWeek := count(records.Where("collected_at >= ? AND collected_at < ?", prevWeek, week))
	out.WeeklyStats.ThisWeekCollections = thisWeek
	out.WeeklyStats.LastWeekCollections = lastWeek
	switch {
	case lastWeek > 0:
		out.WeeklyStats.WeeklyGrowth = int64(math.Round(float64(thisWeek-lastWeek) / float64(lastWeek) * 100))
	case thisWeek > 0:
		out.WeeklyStats.WeeklyGrowth = 100
	}

	if total := out.BasicStats.TotalSubmissions; total > 0 {
		out.SystemHealth.CompletionRate = math.Round(float64(count(records))/float64(total)*1000) / 10
	}
	yesterday := now.Add(-24 * time.Hour)
	out.SystemHealth.NewSubmissions24h = count(subs.Where("created_at >= ?", yesterday))
	out.SystemHealth.NewCollections24h = count(records.Where("collected_at >= ?", yesterday))
	out.SystemHealth.NewUsers24h = count(users.Where("created_at >= ?", yesterday))

	top, err := s.TopRiders(5)
	if err != nil {
		return out, err
	}
	out.TopRiders = top

	today := s.db.Model(&models.PageView{}).Where("day = ?", now.Format("2006-01-02")).Session(&gorm.Session{})
	out.Traffic.ViewsToday = sum(today, "hits")
	if err := today.Order("hits DESC, route ASC").Limit(5).Find(&out.Traffic.TopPages).Error; err != nil {
		return out, err
	}
	return out, nil
}

// TopRiders ranks riders by number of collections.
func (s *StatsService) TopRiders(limit int) ([]TopRider, error) {
	var rows []TopRider
	err := s.db.Table("users").
		Select("users.id AS id, users.username AS username, COUNT(collection_records.id) AS collection_count").
		Joins("LEFT JOIN collection_records ON collection_records.rider_id = users.id").
		Where("users.user_type = ?", models.RoleRider).
		Group("users.id, users.username").
		Order("collection_count DESC, users.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// Analytics compares the selected window with the window of equal length before it.
func (s *StatsService) Analytics(q AnalyticsQuery) (Analytics, error) {
	var out Analytics
	if q.Period <= 0 {
		q.Period = 30
	}
	var start, end time.Time
	if q.Start != "" && q.End != "" {
		var err error
		if start, err = time.ParseInLocation("2006-01-02", q.Start, time.Local); err != nil {
			return out, Invalid("start_date must be YYYY-MM-DD")
		}
		if end, err = time.ParseInLocation("2006-01-02", q.End, time.Local); err != nil {
			return out, Invalid("end_date must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return out, Invalid("end_date must not be before start_date")
		}
		q.Period = int(end.Sub(start).Hours()/24) + 1
		end = end.AddDate(0, 0, 1)
	} else {
		end = time.Now()
		start = end.AddDate(0, 0, -q.Period)
	}
	prevStart := start.AddDate(0, 0, -q.Period)

	users := s.db.Model(&models.User{}).Session(&gorm.Session{})
	subs := s.db.Model(&models.TrashSubmission{}).Session(&gorm.Session{})
	inWindow := "created_at >= ? AND created_at < ?"

	out.PeriodStats.CurrentUsers = count(users.Where(inWindow, start, end))
	out.PeriodStats.CurrentSubmissions = count(subs.Where(inWindow, start, end))
	out.PeriodStats.CurrentRiders = count(users.Where("user_type = ?", models.RoleRider).Where(inWindow, start, end))
	out.PeriodStats.CurrentPoints = sum(s.db.Model(&models.RewardPointHistory{}).
		Where(inWindow, start, end).Where("points > 0"), "points")

	prevUsers := count(users.Where(inWindow, prevStart, start))
	prevSubs := count(subs.Where(inWindow, prevStart, start))
	out.GrowthStats.UserGrowth = growth(out.PeriodStats.CurrentUsers, prevUsers)
	out.GrowthStats.SubmissionGrowth = growth(out.PeriodStats.CurrentSubmissions, prevSubs)

	out.DateRange.StartDate = start.Format("2006-01-02")
	out.DateRange.EndDate = end.Add(-time.Nanosecond).Format("2006-01-02")
	out.DateRange.Period = q.Period
	return out, nil
}

func growth(cur, prev int64) float64 {
	if prev == 0 {
		return 0
	}
	return math.Round(float64(cur-prev)/float64(prev)*1000) / 10
}

// startOfWeek is Monday 00:00 of t's week.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}
