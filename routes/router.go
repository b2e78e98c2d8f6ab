package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/controllers"
	"github.com/ttt-platform/trash2treasure/events"
	"github.com/ttt-platform/trash2treasure/middleware"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/templates"
	"github.com/ttt-platform/trash2treasure/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, pub events.Publisher) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	controllers.RegisterValidators()

	r := gin.New()
	// Access log goes to its own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	tmpl, err := templates.Load()
	if err != nil {
		utils.Sugar.Fatalf("load templates: %v", err)
	}
	r.SetHTMLTemplate(tmpl)
	r.Static("/media", cfg.MediaRoot)

	users := services.NewUserService(db, pub)
	subs := services.NewSubmissionService(db, pub)
	claims := services.NewClaimService(db, pub)
	stats := services.NewStatsService(db)
	settings := services.NewSettingsService(db)
	activity := services.NewActivityService(db)

	r.Use(middleware.SystemStatus(settings))
	r.Use(middleware.PageViews(db))

	authController := controllers.NewAuthController(users)
	submissionController := controllers.NewSubmissionController(subs)
	pointsController := controllers.NewPointsController(users, stats)
	claimController := controllers.NewClaimController(claims)
	adminController := controllers.NewAdminController(users, settings, activity)
	statsController := controllers.NewStatsController(stats)
	pageController := controllers.NewPageController(users, subs, claims, stats, settings)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	api.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	// Credential endpoints get a tighter budget than the rest of the API
	authGroup := api.Group("/auth")
	authLimited := authGroup.Group("", middleware.RateLimit(cfg.RateLimitPerMinute/6))
	authLimited.POST("/register", authController.Register)
	authLimited.POST("/login", authController.Login)
	authLimited.POST("/refresh", authController.Refresh)
	authGroup.GET("/captcha", authController.Captcha)

	api.GET("/trash/track/:track_id", submissionController.Track)
	api.GET("/stats/public", statsController.Public)

	protected := api.Group("", middleware.AuthRequired(users))
	protected.POST("/auth/logout", authController.Logout)
	protected.GET("/auth/profile", authController.Profile)
	protected.PUT("/auth/profile", authController.UpdateProfile)
	protected.POST("/auth/profile/change-password", authController.ChangePassword)
	protected.POST("/auth/profile/image", authController.UploadProfileImage)
	protected.POST("/trash/submissions", submissionController.Create)
	protected.GET("/trash/submissions", submissionController.ListMine)
	protected.GET("/trash/submissions/:id", submissionController.Get)
	protected.POST("/trash/submissions/:id/cancel", submissionController.Cancel)
	protected.GET("/trash/points/history", pointsController.History)
	protected.POST("/claims", claimController.Create)
	protected.GET("/claims", claimController.ListMine)
	protected.GET("/stats/user", statsController.User)

	rider := protected.Group("", middleware.RoleRequired(models.RoleRider))
	rider.GET("/rider/submissions", submissionController.RiderList)
	rider.POST("/trash/submissions/:id/update-status", submissionController.UpdateStatus)
	rider.POST("/trash/submissions/:id/complete", submissionController.Complete)
	rider.GET("/rider/collections", pointsController.RiderCollections)
	rider.GET("/rider/earnings", pointsController.RiderEarnings)
	rider.GET("/stats/rider", statsController.Rider)
	rider.POST("/auth/profile/id-proof", authController.UploadIDProof)

	admin := protected.Group("", middleware.RoleRequired(models.RoleAdmin))
	admin.POST("/trash/submissions/:id/assign", submissionController.Assign)
	admin.POST("/trash/submissions/:id/verify", submissionController.Verify)
	admin.GET("/admin/submissions", submissionController.AdminList)
	admin.GET("/admin/submissions/pending", submissionController.AdminPending)
	admin.GET("/admin/users", adminController.ListUsers)
	admin.GET("/admin/riders", adminController.ListRiders)
	admin.POST("/admin/riders", adminController.CreateRider)
	admin.POST("/admin/users/:id/toggle-status", adminController.ToggleStatus)
	admin.POST("/admin/users/:id/clear-points", adminController.ClearPoints)
	admin.POST("/admin/users/:id/bonus", adminController.AwardBonus)
	admin.GET("/admin/users/:id/ledger-check", adminController.LedgerCheck)
	admin.GET("/admin/claims", claimController.AdminList)
	admin.POST("/admin/claims/:id/status", claimController.UpdateStatus)
	admin.DELETE("/admin/claims/:id", claimController.Delete)
	admin.GET("/admin/activity", adminController.Activity)
	admin.GET("/stats/admin", statsController.Admin)
	admin.GET("/admin/analytics", statsController.Analytics)
	admin.GET("/admin/settings", adminController.GetSettings)
	admin.PUT("/admin/settings", adminController.UpdateSettings)
	admin.POST("/admin/settings/reset", adminController.ResetSettings)
	admin.POST("/admin/settings/clear-data", adminController.ClearData)

	registerPages(r, users, pageController, cfg.RateLimitPerMinute, cfg.SessionCookieSecure)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.Redirect(http.StatusFound, "/")
	})

	return r
}

func registerPages(r *gin.Engine, users *services.UserService, pages *controllers.PageController, perMinute int, secure bool) {
	csrf := middleware.CSRF(secure)
	public := r.Group("", csrf, middleware.OptionalSession(users))
	public.GET("/", pages.Home)
	public.GET("/login", pages.LoginPage)
	public.GET("/register", pages.RegisterPage)
	public.GET("/track", pages.Track)
	public.GET("/maintenance", pages.Maintenance)
	public.GET("/under-construction", pages.Construction)
	public.POST("/logout", pages.Logout)

	forms := public.Group("", middleware.RateLimit(perMinute/6))
	forms.POST("/login", pages.Login)
	forms.POST("/register", pages.Register)

	session := r.Group("", csrf, middleware.SessionAuth(users))
	session.GET("/dashboard", pages.Dashboard)
	session.GET("/submissions/:id", pages.Submission)
	session.POST("/submissions/:id/cancel", pages.CancelSubmission)
	session.GET("/profile", pages.Profile)
	session.POST("/profile", pages.ProfileSave)
	session.POST("/profile/password", pages.ProfilePassword)
	session.POST("/profile/image", pages.ProfileImage)

	user := session.Group("/user", middleware.PageRoleRequired(models.RoleUser))
	user.GET("/dashboard", pages.UserDashboard)
	user.POST("/submissions", pages.CreateSubmission)
	user.GET("/points", pages.UserPoints)
	user.GET("/claims", pages.UserClaims)
	user.POST("/claims", pages.CreateClaim)

	rider := session.Group("", middleware.PageRoleRequired(models.RoleRider))
	rider.GET("/rider/dashboard", pages.RiderDashboard)
	rider.GET("/rider/collections", pages.RiderCollections)
	rider.POST("/rider/submissions/:id/status", pages.RiderStatus)
	rider.POST("/rider/submissions/:id/complete", pages.RiderComplete)
	rider.POST("/profile/id-proof", pages.ProfileIDProof)

	admin := session.Group("/admin", middleware.PageRoleRequired(models.RoleAdmin))
	admin.GET("/dashboard", pages.AdminDashboard)
	admin.POST("/submissions/:id/assign", pages.AdminAssign)
	admin.POST("/submissions/:id/verify", pages.AdminVerify)
	admin.GET("/claims", pages.AdminClaims)
	admin.POST("/claims/:id/status", pages.AdminClaimStatus)
	admin.POST("/claims/:id/delete", pages.AdminClaimDelete)
	admin.GET("/users", pages.AdminUsers)
	admin.POST("/users/:id/toggle-status", pages.AdminToggleStatus)
	admin.POST("/users/:id/clear-points", pages.AdminClearPoints)
	admin.POST("/users/:id/bonus", pages.AdminBonus)
	admin.POST("/riders", pages.AdminCreateRider)
	admin.GET("/settings", pages.AdminSettings)
	admin.POST("/settings", pages.AdminSettingsSave)
	admin.POST("/settings/reset", pages.AdminSettingsReset)
	admin.POST("/settings/clear-data", pages.AdminClearData)
}
