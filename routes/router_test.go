package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/middleware"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()
	config.Set(config.AppConfig{
		JWTSecret:          "test-secret",
		GinMode:            "test",
		GinPath:            filepath.Join(dir, "gin.log"),
		DBDriver:           "sqlite",
		MediaRoot:          filepath.Join(dir, "media"),
		RateLimitPerMinute: 6000,
	})
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.OpenDatabase("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name), "silent")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &testApp{t: t, db: db, router: SetupRouter(db, nil)}
}

func (a *testApp) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

// account creates a user with the given role and returns an access token for it.
func (a *testApp) account(username, role string) (*models.User, string) {
	a.t.Helper()
	hash, err := utils.HashPassword("s3cret-pass")
	require.NoError(a.t, err)
	u := &models.User{Username: username, Email: username + "@example.com", UserType: role, Status: models.UserActive, PasswordHash: hash}
	require.NoError(a.t, a.db.Create(u).Error)
	pair, err := utils.GenerateTokenPair(u.ID, u.Username, u.UserType)
	require.NoError(a.t, err)
	return u, pair.Access
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	app := setupApp(t)

	w, env := app.do(http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, env.Code)

	w, env = app.do(http.MethodGet, "/api/v1/does-not-exist", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, 40400, env.Code)

	w, _ = app.do(http.MethodGet, "/somewhere", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
}

func TestRegisterLoginAndProfile(t *testing.T) {
	app := setupApp(t)

	w, env := app.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username":         "alice",
		"email":            "alice@example.com",
		"password":         "s3cret-pass",
		"confirm_password": "s3cret-pass",
		"user_type":        "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var reg struct {
		Access string      `json:"access"`
		User   models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	require.NotEmpty(t, reg.Access)
	require.Equal(t, models.RoleUser, reg.User.UserType)

	w, env = app.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "alice", "password": "s3cret-pass"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, 40901, env.Code)

	w, env = app.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "bob", "password": "s3cret-pass", "confirm_password": "other"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 40003, env.Code)

	w, env = app.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, 40100, env.Code)

	w, env = app.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))

	w, env = app.do(http.MethodGet, "/api/v1/auth/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, 40101, env.Code)

	w, env = app.do(http.MethodPut, "/api/v1/auth/profile", login.Access, gin.H{"first_name": "Alice"})
	require.Equal(t, http.StatusOK, w.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(env.Data, &me))
	require.Equal(t, "Alice", me.FirstName)

	// A refresh token cannot be used as an access token
	w, _ = app.do(http.MethodGet, "/api/v1/auth/profile", login.Refresh, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = app.do(http.MethodPost, "/api/v1/auth/logout", login.Access, gin.H{"refresh": login.Refresh})
	require.Equal(t, http.StatusOK, w.Code)
	w, env = app.do(http.MethodGet, "/api/v1/auth/profile", login.Access, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, 40104, env.Code)
	w, _ = app.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh": login.Refresh})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleGuards(t *testing.T) {
	app := setupApp(t)
	_, userToken := app.account("alice", models.RoleUser)
	_, adminToken := app.account("boss", models.RoleAdmin)

	w, env := app.do(http.MethodGet, "/api/v1/admin/users", userToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, 40302, env.Code)

	w, _ = app.do(http.MethodGet, "/api/v1/rider/submissions", userToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w, env = app.do(http.MethodGet, "/api/v1/admin/users?user_type=user", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items      []models.User `json:"items"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.EqualValues(t, 1, page.Pagination.Total)
	require.Equal(t, "alice", page.Items[0].Username)
}

func TestSubmissionTrackingAndClaims(t *testing.T) {
	app := setupApp(t)
	_, userToken := app.account("alice", models.RoleUser)

	w, env := app.do(http.MethodPost, "/api/v1/trash/submissions", userToken, gin.H{
		"quantity_kg":       "2.5",
		"location":          "12 Green St",
		"trash_description": "bottles",
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var sub models.TrashSubmission
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	require.Equal(t, models.SubmissionPending, sub.Status)

	w, env = app.do(http.MethodGet, "/api/v1/trash/track/"+sub.TrackID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tracked struct {
		TrackID string `json:"track_id"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tracked))
	require.Equal(t, sub.TrackID, tracked.TrackID)
	require.Equal(t, string(models.SubmissionPending), tracked.Status)

	w, _ = app.do(http.MethodGet, "/api/v1/trash/track/nope", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = app.do(http.MethodGet, "/api/v1/trash/track/TR00000000", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, env = app.do(http.MethodPost, "/api/v1/claims", userToken, gin.H{"claim_amount": 500, "claim_type": "payment"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "cannot claim more points than available", env.Message)

	w, _ = app.do(http.MethodPost, "/api/v1/claims", userToken, gin.H{"claim_amount": 500, "claim_type": "voucher"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMaintenanceModeBlocksApi(t *testing.T) {
	app := setupApp(t)
	admin, adminToken := app.account("boss", models.RoleAdmin)
	_, userToken := app.account("alice", models.RoleUser)

	on := true
	msg := "Back soon"
	_, err := services.NewSettingsService(app.db).Update(admin, services.SettingsInput{MaintenanceMode: &on, MaintenanceMessage: &msg})
	require.NoError(t, err)

	w, env := app.do(http.MethodGet, "/api/v1/stats/user", userToken, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, 50301, env.Code)
	require.Equal(t, "Back soon", env.Message)

	w, _ = app.do(http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = app.do(http.MethodGet, "/api/v1/admin/settings", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = app.do(http.MethodGet, "/track", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/maintenance", w.Header().Get("Location"))
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// postForm submits a page form with the given cookies attached.
func (a *testApp) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestPageLoginFlow(t *testing.T) {
	app := setupApp(t)
	app.account("alice", models.RoleUser)

	w, _ := app.do(http.MethodGet, "/dashboard", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login?next=%2Fdashboard", w.Header().Get("Location"))

	w, _ = app.do(http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "<form")
	csrf := responseCookie(w, "csrf_token")
	require.NotNil(t, csrf)
	require.Equal(t, http.SameSiteStrictMode, csrf.SameSite)
	require.Contains(t, w.Body.String(), `name="csrf_token" value="`+csrf.Value+`"`)

	var views models.PageView
	require.NoError(t, app.db.Where("route = ?", "/login").First(&views).Error)
	require.EqualValues(t, 1, views.Hits)

	creds := url.Values{"username": {"alice"}, "password": {"s3cret-pass"}}
	w = app.postForm("/login", creds)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = app.postForm("/login", creds, csrf)
	require.Equal(t, http.StatusForbidden, w.Code)

	creds.Set("csrf_token", csrf.Value)
	w = app.postForm("/login", creds, csrf)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/dashboard", w.Header().Get("Location"))
	session := responseCookie(w, "session")
	require.NotNil(t, session)
	flash := responseCookie(w, "flash")
	require.NotNil(t, flash)
	require.Equal(t, http.SameSiteLaxMode, flash.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/user/dashboard", nil)
	req.AddCookie(session)
	req.AddCookie(csrf)
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "alice")
	require.Contains(t, w.Body.String(), `action="/logout">`+`<input type="hidden" name="csrf_token"`)

	req = httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/dashboard", w.Header().Get("Location"))

	// logging out is a form post, not a link
	w, _ = app.do(http.MethodGet, "/logout", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
	w = app.postForm("/logout", url.Values{"csrf_token": {csrf.Value}}, session, csrf)
	require.Equal(t, http.StatusSeeOther, w.Code)
}

func TestPageFormsRequireToken(t *testing.T) {
	app := setupApp(t)
	app.account("boss", models.RoleAdmin)
	app.account("alice", models.RoleUser)

	w, _ := app.do(http.MethodGet, "/login", "", nil)
	csrf := responseCookie(w, "csrf_token")
	require.NotNil(t, csrf)
	w = app.postForm("/login", url.Values{"username": {"boss"}, "password": {"s3cret-pass"}, "csrf_token": {csrf.Value}}, csrf)
	require.Equal(t, http.StatusSeeOther, w.Code)
	session := responseCookie(w, "session")
	require.NotNil(t, session)

	// a cross-site post carries the session cookie but cannot know the token
	w = app.postForm("/admin/settings/clear-data", url.Values{}, session, csrf)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = app.postForm("/admin/settings/clear-data", url.Values{"csrf_token": {"0123456789abcdef0123456789abcdef"}}, session, csrf)
	require.Equal(t, http.StatusForbidden, w.Code)

	var users int64
	require.NoError(t, app.db.Model(&models.User{}).Count(&users).Error)
	require.EqualValues(t, 2, users)

	req := httptest.NewRequest(http.MethodPost, "/admin/settings/clear-data", nil)
	req.Header.Set(middleware.CSRFHeader, csrf.Value)
	req.AddCookie(session)
	req.AddCookie(csrf)
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.NoError(t, app.db.Model(&models.User{}).Count(&users).Error)
	require.EqualValues(t, 1, users)
}
