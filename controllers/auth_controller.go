package controllers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/middleware"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

// AuthController handles registration, login, tokens and the caller's own profile.
type AuthController struct {
	users *services.UserService
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(users *services.UserService) *AuthController {
	return &AuthController{users: users}
}

type registerRequest struct {
	Username        string `json:"username" binding:"required,username"`
	Email           string `json:"email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone"`
	Location        string `json:"location"`
	CaptchaID       string `json:"captcha_id"`
	CaptchaAnswer   string `json:"captcha_answer"`
}

// Register creates a regular user account and logs it in.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		utils.Error(ctx, http.StatusBadRequest, 40003, "passwords do not match")
		return
	}

	user, code, msg := registerGuarded(a.users, ctx.ClientIP(), req.CaptchaID, req.CaptchaAnswer, services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Location:  req.Location,
	})
	if code != 0 {
		utils.Error(ctx, statusForCode(code), code, msg)
		return
	}
	pair, err := utils.GenerateTokenPair(user.ID, user.Username, user.UserType)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}
	utils.Created(ctx, tokenResponse(user, pair))
}

// registerGuarded applies the per-IP abuse guards and captcha around UserService.Register.
// A non-zero code is an error to report; otherwise the user is returned.
func registerGuarded(users *services.UserService, ip, captchaID, captchaAnswer string, in services.RegisterInput) (*models.User, int, string) {
	if config.Get().RegisterCaptchaEnabled {
		if !utils.VerifyCaptcha(strings.TrimSpace(captchaID), strings.TrimSpace(captchaAnswer)) {
			return nil, 40004, "captcha is wrong or expired"
		}
	}
	if utils.RegistrationIsBanned(ip) {
		return nil, 42920, "this IP is temporarily blocked, try again later"
	}
	if !utils.RegistrationCooldownTry(ip) {
		return nil, 42910, "too many attempts, try again later"
	}
	if !utils.RegistrationDailyLimitCheck(ip) {
		return nil, 42921, "daily registration limit reached"
	}

	in.IP = ip
	user, err := users.Register(in)
	if err != nil {
		utils.RegistrationFailRecord(ip)
		var code int
		switch services.KindOf(err) {
		case services.KindValidation:
			code = 40000
		case services.KindConflict:
			code = 40901
		default:
			utils.Sugar.Errorw("register failed", "username", in.Username, "err", err)
			return nil, 50002, "failed to create user"
		}
		return nil, code, err.Error()
	}
	utils.RegistrationDailyIncrement(ip)
	return user, 0, ""
}

func statusForCode(code int) int {
	return code / 100
}

// Captcha returns a fresh captcha id and base64 image (data URI).
func (a *AuthController) Captcha(ctx *gin.Context) {
	id, b64, err := utils.GenerateCaptcha()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"captcha_id": id, "image": b64, "enabled": config.Get().RegisterCaptchaEnabled})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and returns a token pair.
func (a *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user, err := a.users.Authenticate(req.Username, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}
	pair, err := utils.GenerateTokenPair(user.ID, user.Username, user.UserType)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, tokenResponse(user, pair))
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// Refresh rotates a refresh token into a new pair; the old refresh token is revoked.
func (a *AuthController) Refresh(ctx *gin.Context) {
	var req refreshRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if utils.IsTokenBlacklisted(req.Refresh) {
		utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
		return
	}
	claims, err := utils.ParseTokenOfType(req.Refresh, utils.RefreshToken)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}
	user, err := a.users.Get(claims.UserID)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "user not found")
		return
	}
	if !user.IsActive() {
		utils.Error(ctx, http.StatusForbidden, 40301, "account is "+user.Status)
		return
	}
	pair, err := utils.GenerateTokenPair(user.ID, user.Username, user.UserType)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.BlacklistToken(req.Refresh, utils.TokenExpiry(claims, time.Duration(config.Get().RefreshTokenTTLHours)*time.Hour))
	utils.Success(ctx, tokenResponse(user, pair))
}

// Logout revokes the access token and, when given, the refresh token.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	ttl := time.Duration(config.Get().AccessTokenTTLMinutes) * time.Minute
	utils.BlacklistToken(token, utils.TokenExpiry(middleware.CurrentClaims(ctx), ttl))

	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = ctx.ShouldBindJSON(&req)
	if req.Refresh != "" {
		if claims, err := utils.ParseTokenOfType(req.Refresh, utils.RefreshToken); err == nil {
			utils.BlacklistToken(req.Refresh, utils.TokenExpiry(claims, 0))
		}
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Profile returns the caller.
func (a *AuthController) Profile(ctx *gin.Context) {
	utils.Success(ctx, currentUser(ctx))
}

type profileRequest struct {
	Email        *string `json:"email" binding:"omitempty,max=254"`
	FirstName    *string `json:"first_name" binding:"omitempty,max=150"`
	LastName     *string `json:"last_name" binding:"omitempty,max=150"`
	Phone        *string `json:"phone" binding:"omitempty,max=15"`
	Location     *string `json:"location" binding:"omitempty,max=255"`
	VehicleType  *string `json:"vehicle_type" binding:"omitempty,max=50"`
	VehicleModel *string `json:"vehicle_model" binding:"omitempty,max=50"`
	LicensePlate *string `json:"license_plate" binding:"omitempty,max=20"`
	VehicleColor *string `json:"vehicle_color" binding:"omitempty,max=30"`
}

func (r profileRequest) input() services.ProfileInput {
	return services.ProfileInput{
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Phone:        r.Phone,
		Location:     r.Location,
		VehicleType:  r.VehicleType,
		VehicleModel: r.VehicleModel,
		LicensePlate: r.LicensePlate,
		VehicleColor: r.VehicleColor,
	}
}

// UpdateProfile applies a partial update to the caller's profile.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	var req profileRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user, err := a.users.UpdateProfile(currentUser(ctx), req.input())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword replaces the caller's password.
func (a *AuthController) ChangePassword(ctx *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := a.users.ChangePassword(currentUser(ctx), req.OldPassword, req.NewPassword); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "password changed successfully"})
}

// UploadProfileImage accepts a multipart "image" field.
func (a *AuthController) UploadProfileImage(ctx *gin.Context) {
	a.upload(ctx, a.users.SetProfileImage)
}

// UploadIDProof accepts a rider's id document as a multipart "image" field.
func (a *AuthController) UploadIDProof(ctx *gin.Context) {
	a.upload(ctx, a.users.SetIDProof)
}

func (a *AuthController) upload(ctx *gin.Context, store func(*models.User, io.Reader) (*models.User, error)) {
	limit := int64(config.Get().MaxUploadMB) << 20
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit+1<<20)
	fh, err := ctx.FormFile("image")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "image file is required")
		return
	}
	if fh.Size > limit {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41300, "image is too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40071, "cannot read upload")
		return
	}
	defer f.Close()

	user, err := store(currentUser(ctx), f)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

func tokenResponse(user *models.User, pair utils.TokenPair) gin.H {
	return gin.H{
		"user":               user,
		"access":             pair.Access,
		"refresh":            pair.Refresh,
		"access_expires_at":  pair.AccessExpiresAt,
		"refresh_expires_at": pair.RefreshExpiresAt,
	}
}
