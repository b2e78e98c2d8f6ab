package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

// ContextSettingsKey holds the *models.SystemSettings loaded for this request.
const ContextSettingsKey = "settings"

var statusExemptPrefixes = []string{
	"/static/",
	"/media/",
	"/api/v1/health",
	"/api/v1/auth/login",
	"/api/v1/auth/logout",
	"/api/v1/auth/refresh",
}

var statusExemptPaths = map[string]bool{
	"/login":              true,
	"/logout":             true,
	"/maintenance":        true,
	"/under-construction": true,
}

// SystemStatus enforces maintenance and debug mode for everyone but admins.
// API callers get a 503 envelope; browsers are redirected to the matching page.
func SystemStatus(settings *services.SettingsService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		st, err := settings.Get()
		if err != nil {
			utils.Sugar.Warnf("system status: load settings: %v", err)
			ctx.Next()
			return
		}
		ctx.Set(ContextSettingsKey, st)

		if !st.MaintenanceMode && !st.DebugMode {
			ctx.Next()
			return
		}
		path := ctx.Request.URL.Path
		if statusExempt(path) || requestIsAdmin(ctx) {
			ctx.Next()
			return
		}

		api := strings.HasPrefix(path, "/api/")
		switch {
		case st.MaintenanceMode && api:
			abortJSON(ctx, http.StatusServiceUnavailable, 50301, st.MaintenanceMessage)
		case st.MaintenanceMode:
			ctx.Redirect(http.StatusFound, "/maintenance")
			ctx.Abort()
		case api:
			abortJSON(ctx, http.StatusServiceUnavailable, 50302, "site is under construction")
		default:
			ctx.Redirect(http.StatusFound, "/under-construction")
			ctx.Abort()
		}
	}
}

// Settings returns the settings loaded by SystemStatus, if any.
func Settings(ctx *gin.Context) *models.SystemSettings {
	if v, ok := ctx.Get(ContextSettingsKey); ok {
		if st, ok := v.(*models.SystemSettings); ok {
			return st
		}
	}
	return nil
}

func statusExempt(path string) bool {
	if statusExemptPaths[path] {
		return true
	}
	for _, p := range statusExemptPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// requestIsAdmin inspects the bearer token or session cookie without touching
// the database; the role claim is enough to let admins through.
func requestIsAdmin(ctx *gin.Context) bool {
	token := ""
	if h := ctx.GetHeader("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		token = strings.TrimSpace(h[7:])
	} else if c, err := ctx.Cookie(SessionCookie); err == nil {
		token = c
	}
	if token == "" || utils.IsTokenBlacklisted(token) {
		return false
	}
	claims, err := utils.ParseTokenOfType(token, utils.AccessToken)
	return err == nil && claims.Role == models.RoleAdmin
}
