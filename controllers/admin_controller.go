package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

// AdminController covers user management, settings and the activity log.
type AdminController struct {
	users    *services.UserService
	settings *services.SettingsService
	activity *services.ActivityService
}

func NewAdminController(users *services.UserService, settings *services.SettingsService, activity *services.ActivityService) *AdminController {
	return &AdminController{users: users, settings: settings, activity: activity}
}

// ListUsers returns paginated users; search, user_type and status filter the list.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	page, pageSize := pageParams(ctx)
	rows, total, err := a.users.List(services.UserFilter{
		Search:   ctx.Query("search"),
		UserType: ctx.Query("user_type"),
		Status:   ctx.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Paginated(ctx, rows, page, pageSize, total)
}

// ListRiders returns active riders for assignment.
func (a *AdminController) ListRiders(ctx *gin.Context) {
	rows, err := a.users.ListRiders()
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, rows)
}

type createRiderRequest struct {
	Username     string `json:"username" binding:"required,username"`
	Email        string `json:"email"`
	Password     string `json:"password" binding:"required"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone"`
	Location     string `json:"location"`
	VehicleType  string `json:"vehicle_type" binding:"max=50"`
	VehicleModel string `json:"vehicle_model" binding:"max=50"`
	LicensePlate string `json:"license_plate" binding:"max=20"`
	VehicleColor string `json:"vehicle_color" binding:"max=30"`
}

// CreateRider adds a rider account.
func (a *AdminController) CreateRider(ctx *gin.Context) {
	var req createRiderRequest
	if !bindJSON(ctx, &req) {
		return
	}
	rider, err := a.users.CreateRider(currentUser(ctx), services.RiderInput{
		RegisterInput: services.RegisterInput{
			Username:  req.Username,
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
			Location:  req.Location,
			IP:        ctx.ClientIP(),
		},
		VehicleType:  req.VehicleType,
		VehicleModel: req.VehicleModel,
		LicensePlate: req.LicensePlate,
		VehicleColor: req.VehicleColor,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, rider)
}

// ToggleStatus switches a user between active and suspended.
func (a *AdminController) ToggleStatus(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	user, err := a.users.ToggleStatus(currentUser(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

// ClearPoints zeroes a user's balance.
func (a *AdminController) ClearPoints(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	user, err := a.users.ClearPoints(currentUser(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

type bonusRequest struct {
	Points int    `json:"points"`
	Reason string `json:"reason" binding:"required,max=200"`
}

// AwardBonus credits bonus points.
func (a *AdminController) AwardBonus(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req bonusRequest
	if !bindJSON(ctx, &req) {
		return
	}
	row, err := a.users.AwardBonus(currentUser(ctx), id, req.Points, req.Reason)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, row)
}

// LedgerCheck compares a user's balance with their point history.
func (a *AdminController) LedgerCheck(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	report, err := a.users.CheckLedger(id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, report)
}

// Activity lists the audit trail; user_id and action filter it.
func (a *AdminController) Activity(ctx *gin.Context) {
	page, pageSize := pageParams(ctx)
	f := services.ActivityFilter{Action: ctx.Query("action"), Page: page, PageSize: pageSize}
	if v := ctx.Query("user_id"); v != "" {
		id, ok := paramIDValue(v)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40002, "invalid user_id")
			return
		}
		f.UserID = id
	}
	rows, total, err := a.activity.List(f)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Paginated(ctx, rows, page, pageSize, total)
}

// GetSettings returns the site settings.
func (a *AdminController) GetSettings(ctx *gin.Context) {
	st, err := a.settings.Get()
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, st)
}

type settingsRequest struct {
	SiteName           *string `json:"site_name" binding:"omitempty,max=100"`
	SiteDescription    *string `json:"site_description"`
	ContactEmail       *string `json:"contact_email" binding:"omitempty,max=254"`
	DefaultTimezone    *string `json:"default_timezone" binding:"omitempty,max=50"`
	MaintenanceMode    *bool   `json:"maintenance_mode"`
	MaintenanceMessage *string `json:"maintenance_message"`
	DebugMode          *bool   `json:"debug_mode"`
	LogLevel           *string `json:"log_level"`
}

// UpdateSettings applies a partial settings update.
func (a *AdminController) UpdateSettings(ctx *gin.Context) {
	var req settingsRequest
	if !bindJSON(ctx, &req) {
		return
	}
	st, err := a.settings.Update(currentUser(ctx), services.SettingsInput{
		SiteName:           req.SiteName,
		SiteDescription:    req.SiteDescription,
		ContactEmail:       req.ContactEmail,
		DefaultTimezone:    req.DefaultTimezone,
		MaintenanceMode:    req.MaintenanceMode,
		MaintenanceMessage: req.MaintenanceMessage,
		DebugMode:          req.DebugMode,
		LogLevel:           req.LogLevel,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, st)
}

// ResetSettings restores factory settings.
func (a *AdminController) ResetSettings(ctx *gin.Context) {
	st, err := a.settings.Reset(currentUser(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, st)
}

// ClearData wipes all non-admin data.
func (a *AdminController) ClearData(ctx *gin.Context) {
	if err := a.settings.ClearData(currentUser(ctx)); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "all system data cleared successfully"})
}
