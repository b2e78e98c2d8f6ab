package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

// PointsController serves the ledger views of users and riders.
type PointsController struct {
	users *services.UserService
	stats *services.StatsService
}

func NewPointsController(users *services.UserService, stats *services.StatsService) *PointsController {
	return &PointsController{users: users, stats: stats}
}

// History lists the caller's point changes; type=earned|spent and date=today|week|month filter it.
func (p *PointsController) History(ctx *gin.Context) {
	page, pageSize := pageParams(ctx)
	rows, total, err := p.users.PointsHistory(currentUser(ctx).ID, services.HistoryFilter{
		Type:     ctx.Query("type"),
		Range:    ctx.Query("date"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Paginated(ctx, rows, page, pageSize, total)
}

// RiderCollections lists the rider's completed collections.
func (p *PointsController) RiderCollections(ctx *gin.Context) {
	f := submissionFilter(ctx)
	rows, total, err := p.users.RiderCollections(currentUser(ctx).ID, f)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Paginated(ctx, rows, f.Page, f.PageSize, total)
}

// RiderEarnings summarises the rider's collections.
func (p *PointsController) RiderEarnings(ctx *gin.Context) {
	utils.Success(ctx, p.stats.Earnings(currentUser(ctx)))
}
