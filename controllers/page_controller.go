package controllers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/middleware"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/templates"
	"github.com/ttt-platform/trash2treasure/utils"
)

const flashCookie = "flash"

var submissionStatuses = []models.SubmissionStatus{
	models.SubmissionPending, models.SubmissionAssigned, models.SubmissionOnTheWay, models.SubmissionArrived,
	models.SubmissionPicked, models.SubmissionCollected, models.SubmissionVerified, models.SubmissionCancelled,
}

var claimStatuses = []models.ClaimStatus{
	models.ClaimPending, models.ClaimProcessing, models.ClaimCompleted, models.ClaimCancelled,
}

// PageController renders the browser UI. Forms post back here and redirect with a flash message.
type PageController struct {
	users    *services.UserService
	subs     *services.SubmissionService
	claims   *services.ClaimService
	stats    *services.StatsService
	settings *services.SettingsService
}

func NewPageController(users *services.UserService, subs *services.SubmissionService, claims *services.ClaimService,
	stats *services.StatsService, settings *services.SettingsService) *PageController {
	return &PageController{users: users, subs: subs, claims: claims, stats: stats, settings: settings}
}

func (p *PageController) page(ctx *gin.Context, title string, data interface{}) *templates.Page {
	page := &templates.Page{
		Title:     title,
		User:      currentUser(ctx),
		Settings:  middleware.Settings(ctx),
		Flash:     takeFlash(ctx),
		CSRFToken: middleware.CSRFToken(ctx),
		Data:      data,
	}
	if page.Settings == nil {
		page.Settings, _ = p.settings.Get()
	}
	return page
}

func (p *PageController) render(ctx *gin.Context, name, title string, data interface{}) {
	ctx.HTML(http.StatusOK, name, p.page(ctx, title, data))
}

func setFlash(ctx *gin.Context, kind, msg string) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(flashCookie, url.QueryEscape(kind+"|"+msg), 60, "/", "", config.Get().SessionCookieSecure, true)
}

func takeFlash(ctx *gin.Context) *templates.Flash {
	raw, err := ctx.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(flashCookie, "", -1, "/", "", config.Get().SessionCookieSecure, true)
	v, err := url.QueryUnescape(raw)
	if err != nil {
		return nil
	}
	kind, msg, ok := strings.Cut(v, "|")
	if !ok {
		return nil
	}
	return &templates.Flash{Kind: kind, Message: msg}
}

// done redirects back with a success flash, or an error flash when err is set.
func done(ctx *gin.Context, to string, err error, okMsg string) {
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
	} else if okMsg != "" {
		setFlash(ctx, "success", okMsg)
	}
	ctx.Redirect(http.StatusSeeOther, to)
}

func flashError(ctx *gin.Context, err error) string {
	var se *services.Error
	if errors.As(err, &se) {
		return se.Message
	}
	utils.Sugar.Errorw("page action failed", "path", ctx.FullPath(), "err", err)
	return "something went wrong, please try again"
}

func back(ctx *gin.Context, fallback string) string {
	if ref := ctx.Request.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Host == ctx.Request.Host {
			return u.RequestURI()
		}
	}
	return fallback
}

func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/dashboard"
	}
	return next
}

func formInt(ctx *gin.Context, key string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(ctx.PostForm(key)))
	return n
}

func optionalForm(ctx *gin.Context, key string) *string {
	if v, ok := ctx.GetPostForm(key); ok {
		return &v
	}
	return nil
}

func (p *PageController) startSession(ctx *gin.Context, user *models.User) error {
	cfg := config.Get()
	ttl := time.Duration(cfg.RefreshTokenTTLHours) * time.Hour
	token, err := utils.GenerateToken(user.ID, user.Username, user.UserType, utils.AccessToken, ttl)
	if err != nil {
		return err
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middleware.SessionCookie, token, int(ttl.Seconds()), "/", "", cfg.SessionCookieSecure, true)
	return nil
}

// Home is the landing page.
func (p *PageController) Home(ctx *gin.Context) {
	p.render(ctx, "home", "", p.stats.Public())
}

// LoginPage shows the login form.
func (p *PageController) LoginPage(ctx *gin.Context) {
	if currentUser(ctx) != nil {
		ctx.Redirect(http.StatusFound, "/dashboard")
		return
	}
	p.render(ctx, "login", "Log in", gin.H{"Next": ctx.Query("next"), "Username": ""})
}

// Login handles the login form.
func (p *PageController) Login(ctx *gin.Context) {
	username := ctx.PostForm("username")
	user, err := p.users.Authenticate(username, ctx.PostForm("password"))
	if err == nil {
		err = p.startSession(ctx, user)
	}
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
		ctx.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(ctx.PostForm("next")))
		return
	}
	setFlash(ctx, "success", "Welcome back, "+user.FullName()+"!")
	ctx.Redirect(http.StatusSeeOther, safeNext(ctx.PostForm("next")))
}

// Logout revokes the session token.
func (p *PageController) Logout(ctx *gin.Context) {
	if token, err := ctx.Cookie(middleware.SessionCookie); err == nil && token != "" {
		var exp time.Time
		if claims, err := utils.ParseToken(token); err == nil {
			exp = utils.TokenExpiry(claims, 0)
		}
		utils.BlacklistToken(token, exp)
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middleware.SessionCookie, "", -1, "/", "", config.Get().SessionCookieSecure, true)
	setFlash(ctx, "info", "You have been logged out.")
	ctx.Redirect(http.StatusSeeOther, "/")
}

type captchaView struct {
	ID    string
	Image string
}

// RegisterPage shows the sign-up form.
func (p *PageController) RegisterPage(ctx *gin.Context) {
	data := gin.H{"Username": "", "Email": "", "FirstName": "", "LastName": "", "Phone": "", "Location": "", "Captcha": nil}
	if config.Get().RegisterCaptchaEnabled {
		if id, img, err := utils.GenerateCaptcha(); err == nil {
			data["Captcha"] = &captchaView{ID: id, Image: img}
		}
	}
	p.render(ctx, "register", "Register", data)
}

// Register handles the sign-up form and logs the new user in.
func (p *PageController) Register(ctx *gin.Context) {
	if ctx.PostForm("password") != ctx.PostForm("confirm_password") {
		done(ctx, "/register", services.Invalid("passwords do not match"), "")
		return
	}
	user, code, msg := registerGuarded(p.users, ctx.ClientIP(), ctx.PostForm("captcha_id"), ctx.PostForm("captcha_answer"), services.RegisterInput{
		Username:  ctx.PostForm("username"),
		Email:     ctx.PostForm("email"),
		Password:  ctx.PostForm("password"),
		FirstName: ctx.PostForm("first_name"),
		LastName:  ctx.PostForm("last_name"),
		Phone:     ctx.PostForm("phone"),
		Location:  ctx.PostForm("location"),
	})
	if code != 0 {
		setFlash(ctx, "error", msg)
		ctx.Redirect(http.StatusSeeOther, "/register")
		return
	}
	if err := p.startSession(ctx, user); err != nil {
		done(ctx, "/login", err, "")
		return
	}
	done(ctx, "/dashboard", nil, "Welcome, "+user.FullName()+"!")
}

// Track is the public tracking page.
func (p *PageController) Track(ctx *gin.Context) {
	q := strings.TrimSpace(ctx.Query("track_id"))
	data := gin.H{"Query": q, "Submission": nil}
	if q != "" {
		sub, err := p.subs.Track(q)
		if err != nil {
			page := p.page(ctx, "Track", data)
			page.Flash = &templates.Flash{Kind: "error", Message: flashError(ctx, err)}
			ctx.HTML(http.StatusOK, "track", page)
			return
		}
		data["Submission"] = sub
	}
	p.render(ctx, "track", "Track", data)
}

// Maintenance is shown to non-admins while maintenance mode is on.
func (p *PageController) Maintenance(ctx *gin.Context) {
	p.render(ctx, "maintenance", "Maintenance", nil)
}

// Construction is shown to non-admins while debug mode is on.
func (p *PageController) Construction(ctx *gin.Context) {
	p.render(ctx, "construction", "Under construction", nil)
}

// Dashboard sends each role to its own dashboard.
func (p *PageController) Dashboard(ctx *gin.Context) {
	switch currentUser(ctx).UserType {
	case models.RoleAdmin:
		ctx.Redirect(http.StatusFound, "/admin/dashboard")
	case models.RoleRider:
		ctx.Redirect(http.StatusFound, "/rider/dashboard")
	default:
		ctx.Redirect(http.StatusFound, "/user/dashboard")
	}
}

// UserDashboard shows the user's numbers, the pickup form and their submissions.
func (p *PageController) UserDashboard(ctx *gin.Context) {
	user := currentUser(ctx)
	f := submissionFilter(ctx)
	rows, total, err := p.subs.ListForUser(user.ID, f)
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
	}
	p.render(ctx, "user_dashboard", "Dashboard", gin.H{
		"Stats":       p.stats.User(user),
		"Submissions": rows,
		"Statuses":    submissionStatuses,
		"Status":      f.Status,
		"Range":       f.Range,
		"Search":      f.Search,
		"Pager":       templates.NewPager(f.Page, f.PageSize, total, ctx.Request.URL.Query()),
	})
}

// CreateSubmission handles the pickup request form.
func (p *PageController) CreateSubmission(ctx *gin.Context) {
	in := services.SubmissionInput{
		Location:    ctx.PostForm("location"),
		Description: ctx.PostForm("trash_description"),
	}
	if v := strings.TrimSpace(ctx.PostForm("quantity_kg")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			done(ctx, "/user/dashboard", services.Invalid("estimated weight must be a number"), "")
			return
		}
		in.QuantityKg = &d
	}
	sub, err := p.subs.Create(currentUser(ctx), in)
	if err != nil {
		done(ctx, "/user/dashboard", err, "")
		return
	}
	done(ctx, "/user/dashboard", nil, "Pickup requested. Your tracking code is "+sub.TrackID+".")
}

// UserPoints shows the points history.
func (p *PageController) UserPoints(ctx *gin.Context) {
	page, pageSize := pageParams(ctx)
	f := services.HistoryFilter{Type: ctx.Query("type"), Range: ctx.Query("date"), Page: page, PageSize: pageSize}
	rows, total, err := p.users.PointsHistory(currentUser(ctx).ID, f)
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
	}
	p.render(ctx, "user_points", "Points", gin.H{
		"Entries": rows,
		"Type":    f.Type,
		"Range":   f.Range,
		"Pager":   templates.NewPager(page, pageSize, total, ctx.Request.URL.Query()),
	})
}

// UserClaims shows the claim form and the user's claims.
func (p *PageController) UserClaims(ctx *gin.Context) {
	user := currentUser(ctx)
	page, pageSize := pageParams(ctx)
	rows, total, err := p.claims.List(services.ClaimFilter{UserID: user.ID, Page: page, PageSize: pageSize})
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
	}
	avail, _ := p.claims.Available(user.ID)
	cfg := config.Get()
	p.render(ctx, "user_claims", "Claims", gin.H{
		"Claims":     rows,
		"Available":  avail,
		"MinClaim":   cfg.MinClaimPoints,
		"PointValue": cfg.PointValue,
		"Pager":      templates.NewPager(page, pageSize, total, ctx.Request.URL.Query()),
	})
}

// CreateClaim handles the claim form.
func (p *PageController) CreateClaim(ctx *gin.Context) {
	claim, err := p.claims.Create(currentUser(ctx), services.ClaimInput{
		ClaimAmount:      formInt(ctx, "claim_amount"),
		ClaimType:        ctx.PostForm("claim_type"),
		DonationHospital: ctx.PostForm("donation_hospital"),
	})
	if err != nil {
		done(ctx, "/user/claims", err, "")
		return
	}
	done(ctx, "/user/claims", nil, "Claim "+claim.ReferenceID+" submitted.")
}

// Submission shows one submission with the actions the viewer may take.
func (p *PageController) Submission(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.Redirect(http.StatusFound, "/dashboard")
		return
	}
	user := currentUser(ctx)
	sub, err := p.subs.Get(user, uint(id))
	if err != nil {
		done(ctx, "/dashboard", err, "")
		return
	}
	assigned := sub.RiderID != nil && *sub.RiderID == user.ID
	data := gin.H{
		"Submission":  sub,
		"CanCancel":   (sub.UserID == user.ID || user.IsAdmin()) && services.CanTransition(sub.Status, models.SubmissionCancelled),
		"CanComplete": assigned && sub.Status == models.SubmissionPicked,
		"CanAssign":   user.IsAdmin() && sub.Status == models.SubmissionPending,
		"CanVerify":   user.IsAdmin() && sub.Status == models.SubmissionCollected,
		"RiderNext":   models.SubmissionStatus(""),
		"Riders":      nil,
	}
	if next, ok := services.RiderNextStatus(sub.Status); ok && assigned {
		data["RiderNext"] = next
	}
	if user.IsAdmin() && sub.Status == models.SubmissionPending {
		data["Riders"], _ = p.users.ListRiders()
	}
	p.render(ctx, "submission", sub.TrackID, data)
}

// CancelSubmission handles the cancel form.
func (p *PageController) CancelSubmission(ctx *gin.Context) {
	id, _ := strconv.ParseUint(ctx.Param("id"), 10, 64)
	_, err := p.subs.Cancel(currentUser(ctx), uint(id), ctx.PostForm("reason"))
	done(ctx, back(ctx, "/dashboard"), err, "Submission cancelled.")
}

// RiderDashboard shows the rider's open work.
func (p *PageController) RiderDashboard(ctx *gin.Context) {
	rider := currentUser(ctx)
	stats, err := p.stats.Rider(rider)
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
	}
	p.render(ctx, "rider_dashboard", "Dashboard", gin.H{"Stats": stats, "Earnings": p.stats.Earnings(rider)})
}

// RiderCollections shows the rider's completed collections.
func (p *PageController) RiderCollections(ctx *gin.Context) {
	f := submissionFilter(ctx)
	rows, total, err := p.users.RiderCollections(currentUser(ctx).ID, f)
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
	}
	p.render(ctx, "rider_collections", "Collections", gin.H{
		"Records": rows,
		"Range":   f.Range,
		"Search":  f.Search,
		"Pager":   templates.NewPager(f.Page, f.PageSize, total, ctx.Request.URL.Query()),
	})
}

// RiderStatus handles the one-step status form.
func (p *PageController) RiderStatus(ctx *gin.Context) {
	id, _ := strconv.ParseUint(ctx.Param("id"), 10, 64)
	sub, err := p.subs.UpdateStatus(currentUser(ctx), uint(id), models.SubmissionStatus(ctx.PostForm("status")), ctx.PostForm("notes"))
	if err != nil {
		done(ctx, back(ctx, "/rider/dashboard"), err, "")
		return
	}
	done(ctx, back(ctx, "/rider/dashboard"), nil, sub.TrackID+": "+sub.StatusLabel())
}

// RiderComplete handles the completion form.
func (p *PageController) RiderComplete(ctx *gin.Context) {
	id, _ := strconv.ParseUint(ctx.Param("id"), 10, 64)
	qty, err := decimal.NewFromString(strings.TrimSpace(ctx.PostForm("actual_quantity")))
	if err != nil {
		done(ctx, back(ctx, "/rider/dashboard"), services.Invalid("actual quantity must be a number"), "")
		return
	}
	_, err = p.subs.Complete(currentUser(ctx), uint(id), services.CompletionInput{
		TrashType:      ctx.PostForm("trash_type"),
		ActualQuantity: qty,
		PointsAwarded:  formInt(ctx, "points_awarded"),
		Notes:          ctx.PostForm("notes"),
	})
	done(ctx, back(ctx, "/rider/dashboard"), err, "Collection completed.")
}

// AdminDashboard shows site statistics and all submissions.
func (p *PageController) AdminDashboard(ctx *gin.Context) {
	stats, err := p.stats.Admin()
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
	}
	f := submissionFilter(ctx)
	rows, total, err := p.subs.ListAll(f)
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
	}
	p.render(ctx, "admin_dashboard", "Admin", gin.H{
		"Stats":       stats,
		"Submissions": rows,
		"Statuses":    submissionStatuses,
		"Status":      f.Status,
		"Search":      f.Search,
		"Pager":       templates.NewPager(f.Page, f.PageSize, total, ctx.Request.URL.Query()),
	})
}

// AdminAssign handles the assignment form.
func (p *PageController) AdminAssign(ctx *gin.Context) {
	id, _ := strconv.ParseUint(ctx.Param("id"), 10, 64)
	_, err := p.subs.Assign(currentUser(ctx), uint(id), uint(formInt(ctx, "rider_id")), ctx.PostForm("notes"))
	done(ctx, back(ctx, "/admin/dashboard"), err, "Rider assigned.")
}

// AdminVerify handles the verification form.
func (p *PageController) AdminVerify(ctx *gin.Context) {
	id, _ := strconv.ParseUint(ctx.Param("id"), 10, 64)
	_, err := p.subs.Verify(currentUser(ctx), uint(id), formInt(ctx, "points"), ctx.PostForm("notes"))
	done(ctx, back(ctx, "/admin/dashboard"), err, "Collection verified.")
}

// AdminClaims lists claims for processing.
func (p *PageController) AdminClaims(ctx *gin.Context) {
	page, pageSize := pageParams(ctx)
	status := ctx.Query("status")
	rows, total, err := p.claims.List(services.ClaimFilter{Status: status, Page: page, PageSize: pageSize})
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
	}
	p.render(ctx, "admin_claims", "Claims", gin.H{
		"Claims":   rows,
		"Statuses": claimStatuses,
		"Status":   status,
		"Pager":    templates.NewPager(page, pageSize, total, ctx.Request.URL.Query()),
	})
}

// AdminClaimStatus handles the claim status buttons.
func (p *PageController) AdminClaimStatus(ctx *gin.Context) {
	id, _ := strconv.ParseUint(ctx.Param("id"), 10, 64)
	claim, err := p.claims.UpdateStatus(currentUser(ctx), uint(id), models.ClaimStatus(ctx.PostForm("status")), ctx.PostForm("notes"))
	if err != nil {
		done(ctx, back(ctx, "/admin/claims"), err, "")
		return
	}
	done(ctx, back(ctx, "/admin/claims"), nil, "Claim "+claim.ReferenceID+" is now "+string(claim.Status)+".")
}

// AdminClaimDelete handles the claim delete button.
func (p *PageController) AdminClaimDelete(ctx *gin.Context) {
	id, _ := strconv.ParseUint(ctx.Param("id"), 10, 64)
	done(ctx, back(ctx, "/admin/claims"), p.claims.Delete(currentUser(ctx), uint(id)), "Claim deleted.")
}

// AdminUsers lists users with management actions.
func (p *PageController) AdminUsers(ctx *gin.Context) {
	page, pageSize := pageParams(ctx)
	f := services.UserFilter{
		Search:   ctx.Query("search"),
		UserType: ctx.Query("user_type"),
		Status:   ctx.Query("status"),
		Page:     page,
		PageSize: pageSize,
	}
	rows, total, err := p.users.List(f)
	if err != nil {
		setFlash(ctx, "error", flashError(ctx, err))
	}
	p.render(ctx, "admin_users", "Users", gin.H{
		"Users":    rows,
		"Search":   f.Search,
		"UserType": f.UserType,
		"Status":   f.Status,
		"MaxBonus": config.Get().MaxBonusPoints,
		"Pager":    templates.NewPager(page, pageSize, total, ctx.Request.URL.Query()),
	})
}

// AdminToggleStatus handles the suspend/activate button.
func (p *PageController) AdminToggleStatus(ctx *gin.Context) {
	id, _ := strconv.ParseUint(ctx.Param("id"), 10, 64)
	user, err := p.users.ToggleStatus(currentUser(ctx), uint(id))
	if err != nil {
		done(ctx, back(ctx, "/admin/users"), err, "")
		return
	}
	done(ctx, back(ctx, "/admin/users"), nil, user.Username+" is now "+user.Status+".")
}

// AdminClearPoints handles the clear points button.
func (p *PageController) AdminClearPoints(ctx *gin.Context) {
	id, _ := strconv.ParseUint(ctx.Param("id"), 10, 64)
	_, err := p.users.ClearPoints(currentUser(ctx), uint(id))
	done(ctx, back(ctx, "/admin/users"), err, "Points cleared.")
}

// AdminBonus handles the bonus form.
func (p *PageController) AdminBonus(ctx *gin.Context) {
	id, _ := strconv.ParseUint(ctx.Param("id"), 10, 64)
	_, err := p.users.AwardBonus(currentUser(ctx), uint(id), formInt(ctx, "points"), ctx.PostForm("reason"))
	done(ctx, back(ctx, "/admin/users"), err, "Bonus points awarded.")
}

// AdminCreateRider handles the rider form.
func (p *PageController) AdminCreateRider(ctx *gin.Context) {
	rider, err := p.users.CreateRider(currentUser(ctx), services.RiderInput{
		RegisterInput: services.RegisterInput{
			Username:  ctx.PostForm("username"),
			Email:     ctx.PostForm("email"),
			Password:  ctx.PostForm("password"),
			FirstName: ctx.PostForm("first_name"),
			LastName:  ctx.PostForm("last_name"),
			Phone:     ctx.PostForm("phone"),
			IP:        ctx.ClientIP(),
		},
		VehicleType:  ctx.PostForm("vehicle_type"),
		VehicleModel: ctx.PostForm("vehicle_model"),
		LicensePlate: ctx.PostForm("license_plate"),
		VehicleColor: ctx.PostForm("vehicle_color"),
	})
	if err != nil {
		done(ctx, "/admin/users", err, "")
		return
	}
	done(ctx, "/admin/users", nil, "Rider "+rider.Username+" created.")
}

// AdminSettings shows the settings form.
func (p *PageController) AdminSettings(ctx *gin.Context) {
	p.render(ctx, "admin_settings", "Settings", gin.H{"LogLevels": []string{"DEBUG", "INFO", "WARNING", "ERROR"}})
}

// AdminSettingsSave handles the settings form. Unchecked boxes are not posted, so they mean false.
func (p *PageController) AdminSettingsSave(ctx *gin.Context) {
	maintenance := ctx.PostForm("maintenance_mode") == "on"
	debug := ctx.PostForm("debug_mode") == "on"
	_, err := p.settings.Update(currentUser(ctx), services.SettingsInput{
		SiteName:           optionalForm(ctx, "site_name"),
		SiteDescription:    optionalForm(ctx, "site_description"),
		ContactEmail:       optionalForm(ctx, "contact_email"),
		DefaultTimezone:    optionalForm(ctx, "default_timezone"),
		MaintenanceMode:    &maintenance,
		MaintenanceMessage: optionalForm(ctx, "maintenance_message"),
		DebugMode:          &debug,
		LogLevel:           optionalForm(ctx, "log_level"),
	})
	done(ctx, "/admin/settings", err, "Settings saved.")
}

// AdminSettingsReset restores defaults.
func (p *PageController) AdminSettingsReset(ctx *gin.Context) {
	_, err := p.settings.Reset(currentUser(ctx))
	done(ctx, "/admin/settings", err, "Settings reset to defaults.")
}

// AdminClearData wipes non-admin data.
func (p *PageController) AdminClearData(ctx *gin.Context) {
	done(ctx, "/admin/settings", p.settings.ClearData(currentUser(ctx)), "All system data cleared.")
}

// Profile shows the profile forms.
func (p *PageController) Profile(ctx *gin.Context) {
	p.render(ctx, "profile", "Profile", nil)
}

// ProfileSave handles the profile form.
func (p *PageController) ProfileSave(ctx *gin.Context) {
	user := currentUser(ctx)
	in := services.ProfileInput{
		Email:     optionalForm(ctx, "email"),
		FirstName: optionalForm(ctx, "first_name"),
		LastName:  optionalForm(ctx, "last_name"),
		Phone:     optionalForm(ctx, "phone"),
		Location:  optionalForm(ctx, "location"),
	}
	if user.IsRider() {
		in.VehicleType = optionalForm(ctx, "vehicle_type")
		in.VehicleModel = optionalForm(ctx, "vehicle_model")
		in.LicensePlate = optionalForm(ctx, "license_plate")
		in.VehicleColor = optionalForm(ctx, "vehicle_color")
	}
	_, err := p.users.UpdateProfile(user, in)
	done(ctx, "/profile", err, "Profile updated.")
}

// ProfilePassword handles the change password form.
func (p *PageController) ProfilePassword(ctx *gin.Context) {
	err := p.users.ChangePassword(currentUser(ctx), ctx.PostForm("old_password"), ctx.PostForm("new_password"))
	done(ctx, "/profile", err, "Password changed.")
}

// ProfileImage handles the photo upload.
func (p *PageController) ProfileImage(ctx *gin.Context) {
	p.upload(ctx, p.users.SetProfileImage, "Profile photo updated.")
}

// ProfileIDProof handles the rider id document upload.
func (p *PageController) ProfileIDProof(ctx *gin.Context) {
	p.upload(ctx, p.users.SetIDProof, "ID proof uploaded.")
}

func (p *PageController) upload(ctx *gin.Context, store func(*models.User, io.Reader) (*models.User, error), okMsg string) {
	limit := int64(config.Get().MaxUploadMB) << 20
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit+1<<20)
	fh, err := ctx.FormFile("image")
	if err != nil {
		done(ctx, "/profile", services.Invalid("please choose an image"), "")
		return
	}
	if fh.Size > limit {
		done(ctx, "/profile", services.Invalid("image is larger than %d MB", config.Get().MaxUploadMB), "")
		return
	}
	f, err := fh.Open()
	if err != nil {
		done(ctx, "/profile", err, "")
		return
	}
	defer f.Close()
	_, err = store(currentUser(ctx), f)
	done(ctx, "/profile", err, okMsg)
}
