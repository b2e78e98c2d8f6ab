package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

const (
	// ContextUserKey holds the authenticated *models.User.
	ContextUserKey = "user"
	// ContextTokenKey holds the raw access token so logout can revoke it.
	ContextTokenKey = "token"
	// ContextClaimsKey holds the parsed *utils.Claims.
	ContextClaimsKey = "claims"

	// SessionCookie carries the access token for server-rendered pages.
	SessionCookie = "session"
)

// AuthRequired authenticates API requests with a bearer access token.
func AuthRequired(users *services.UserService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			abortJSON(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortJSON(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			abortJSON(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			return
		}

		user, claims, code, msg := resolve(users, tokenString)
		if user == nil {
			abortJSON(ctx, http.StatusUnauthorized, code, msg)
			return
		}
		if !user.IsActive() {
			abortJSON(ctx, http.StatusForbidden, 40301, "account is "+user.Status)
			return
		}

		ctx.Set(ContextUserKey, user)
		ctx.Set(ContextClaimsKey, claims)
		ctx.Set(ContextTokenKey, tokenString)
		ctx.Next()
	}
}

// SessionAuth authenticates page requests from the session cookie and redirects
// anonymous visitors to the login page.
func SessionAuth(users *services.UserService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !loadSession(ctx, users) {
			ctx.SetCookie(SessionCookie, "", -1, "/", "", false, true)
			ctx.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(ctx.Request.URL.RequestURI()))
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// OptionalSession loads the session user when there is one and never blocks.
func OptionalSession(users *services.UserService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		loadSession(ctx, users)
		ctx.Next()
	}
}

func loadSession(ctx *gin.Context, users *services.UserService) bool {
	token, err := ctx.Cookie(SessionCookie)
	if err != nil || token == "" {
		return false
	}
	user, claims, _, _ := resolve(users, token)
	if user == nil || !user.IsActive() {
		return false
	}
	ctx.Set(ContextUserKey, user)
	ctx.Set(ContextClaimsKey, claims)
	ctx.Set(ContextTokenKey, token)
	return true
}

// resolve validates an access token and loads its user. On failure the user is
// nil and code/msg describe the problem.
func resolve(users *services.UserService, token string) (*models.User, *utils.Claims, int, string) {
	if utils.IsTokenBlacklisted(token) {
		return nil, nil, 40104, "token revoked"
	}
	claims, err := utils.ParseTokenOfType(token, utils.AccessToken)
	if err != nil {
		return nil, nil, 40105, "invalid token"
	}
	user, err := users.Get(claims.UserID)
	if err != nil {
		return nil, nil, 40106, "user not found"
	}
	return user, claims, 0, ""
}

// RoleRequired rejects users whose role is not listed. It must run after an auth middleware.
func RoleRequired(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user := CurrentUser(ctx)
		if user == nil {
			abortJSON(ctx, http.StatusUnauthorized, 40108, "unauthorized")
			return
		}
		for _, r := range roles {
			if user.UserType == r {
				ctx.Next()
				return
			}
		}
		abortJSON(ctx, http.StatusForbidden, 40302, "you do not have permission to perform this action")
	}
}

// PageRoleRequired is RoleRequired for pages: it redirects to the dashboard instead of answering JSON.
func PageRoleRequired(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if user := CurrentUser(ctx); user != nil {
			for _, r := range roles {
				if user.UserType == r {
					ctx.Next()
					return
				}
			}
		}
		ctx.Redirect(http.StatusFound, "/dashboard")
		ctx.Abort()
	}
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(ctx *gin.Context) *models.User {
	if v, ok := ctx.Get(ContextUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// CurrentClaims returns the parsed token claims or nil.
func CurrentClaims(ctx *gin.Context) *utils.Claims {
	if v, ok := ctx.Get(ContextClaimsKey); ok {
		if c, ok := v.(*utils.Claims); ok {
			return c
		}
	}
	return nil
}

func abortJSON(ctx *gin.Context, status, code int, msg string) {
	utils.Error(ctx, status, code, msg)
	ctx.Abort()
}
