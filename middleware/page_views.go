package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/utils"
)

// PageViews counts successful GETs of server-rendered pages per day and route
// template, so /submissions/12 and /submissions/13 share one counter.
func PageViews(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()

		if ctx.Request.Method != "GET" {
			return
		}
		if status := ctx.Writer.Status(); status < 200 || status >= 300 {
			return
		}
		route := ctx.FullPath()
		if route == "" || strings.HasPrefix(route, "/api/") || strings.HasPrefix(route, "/media/") {
			return
		}

		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}, {Name: "route"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"hits":       gorm.Expr("hits + 1"),
				"updated_at": time.Now(),
			}),
		}).Create(&models.PageView{Day: time.Now().Format("2006-01-02"), Route: route, Hits: 1}).Error
		if err != nil {
			utils.Sugar.Debugf("page view %s: %v", route, err)
		}
	}
}
