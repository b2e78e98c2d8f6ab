package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

// StatsController provides dashboard statistics for every role.
type StatsController struct {
	stats *services.StatsService
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(stats *services.StatsService) *StatsController {
	return &StatsController{stats: stats}
}

// Public returns counters for anonymous visitors.
func (s *StatsController) Public(ctx *gin.Context) {
	utils.Success(ctx, s.stats.Public())
}

// User returns the caller's own numbers.
func (s *StatsController) User(ctx *gin.Context) {
	utils.Success(ctx, s.stats.User(currentUser(ctx)))
}

// Rider returns the rider dashboard.
func (s *StatsController) Rider(ctx *gin.Context) {
	out, err := s.stats.Rider(currentUser(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, out)
}

// Admin returns the admin dashboard.
func (s *StatsController) Admin(ctx *gin.Context) {
	out, err := s.stats.Admin()
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, out)
}

// Analytics compares a period with the one before it. Either period=<days> or
// start_date and end_date (YYYY-MM-DD) select the window.
func (s *StatsController) Analytics(ctx *gin.Context) {
	q := services.AnalyticsQuery{
		Start: ctx.Query("start_date"),
		End:   ctx.Query("end_date"),
	}
	if v := ctx.Query("period"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 3650 {
			utils.Error(ctx, http.StatusBadRequest, 40002, "period must be a number of days")
			return
		}
		q.Period = n
	}
	out, err := s.stats.Analytics(q)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, out)
}
