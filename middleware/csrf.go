package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CSRFCookie holds the per-browser form token.
	CSRFCookie = "csrf_token"
	// CSRFField is the hidden form field every page form posts back.
	CSRFField = "csrf_token"
	// CSRFHeader may carry the token instead of the form field.
	CSRFHeader = "X-CSRF-Token"

	ctxCSRFKey = "csrf_token"
	csrfMaxAge = 12 * 60 * 60
)

// CSRF is a double-submit check for the cookie-authenticated pages: safe
// requests get a token cookie, unsafe ones must echo it in the form or header.
func CSRF(secure bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(CSRFCookie)
		if err != nil || len(token) != 32 {
			token = strings.ReplaceAll(uuid.NewString(), "-", "")
			http.SetCookie(ctx.Writer, &http.Cookie{
				Name:     CSRFCookie,
				Value:    token,
				Path:     "/",
				MaxAge:   csrfMaxAge,
				Secure:   secure,
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
			})
			if !safeMethod(ctx.Request.Method) {
				rejectCSRF(ctx)
				return
			}
		}
		ctx.Set(ctxCSRFKey, token)

		if safeMethod(ctx.Request.Method) {
			ctx.Next()
			return
		}
		sent := strings.TrimSpace(ctx.GetHeader(CSRFHeader))
		if sent == "" {
			sent = strings.TrimSpace(ctx.PostForm(CSRFField))
		}
		if sent == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
			rejectCSRF(ctx)
			return
		}
		ctx.Next()
	}
}

// CSRFToken returns the token pages must embed in their forms.
func CSRFToken(ctx *gin.Context) string {
	return ctx.GetString(ctxCSRFKey)
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func rejectCSRF(ctx *gin.Context) {
	ctx.String(http.StatusForbidden, "This form has expired. Go back, reload the page and try again.")
	ctx.Abort()
}
