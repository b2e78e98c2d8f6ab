package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ttt-platform/trash2treasure/middleware"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

// errorStatus maps a service error kind to the HTTP status and base app code.
var errorStatus = map[services.Kind][2]int{
	services.KindValidation:   {http.StatusBadRequest, 40000},
	services.KindUnauthorized: {http.StatusUnauthorized, 40100},
	services.KindForbidden:    {http.StatusForbidden, 40300},
	services.KindNotFound:     {http.StatusNotFound, 40400},
	services.KindConflict:     {http.StatusConflict, 40900},
}

// respondError writes a service error. Unknown errors are logged and hidden.
func respondError(ctx *gin.Context, err error) {
	var se *services.Error
	if errors.As(err, &se) {
		if m, ok := errorStatus[se.Kind]; ok {
			utils.Error(ctx, m[0], m[1], se.Message)
			return
		}
	}
	utils.Sugar.Errorw("request failed", "path", ctx.FullPath(), "method", ctx.Request.Method, "err", err)
	utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
}

// bindJSON decodes the body and answers 400 itself when that fails.
func bindJSON(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, bindMessage(err))
		return false
	}
	return true
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request payload"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "trackid":
		return field + " must be a tracking code like TR1A2B3C4D"
	case "username":
		return field + " may contain only letters, digits and @.+-_"
	case "oneof":
		return field + " must be one of " + fe.Param()
	case "min", "gte":
		return field + " must be at least " + fe.Param()
	case "max", "lte":
		return field + " must be at most " + fe.Param()
	case "email":
		return field + " must be a valid email address"
	}
	return field + " is invalid"
}

// pageParams reads page and page_size query parameters.
func pageParams(ctx *gin.Context) (int, int) {
	page, pageSize := 1, 10
	if v := strings.TrimSpace(ctx.Query("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := strings.TrimSpace(ctx.Query("page_size")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			pageSize = n
		}
	}
	return page, pageSize
}

// paramID parses a positive numeric path parameter and answers 400 on failure.
func paramID(ctx *gin.Context, name string) (uint, bool) {
	id, ok := paramIDValue(ctx.Param(name))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid "+name)
	}
	return id, ok
}

func paramIDValue(v string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func currentUser(ctx *gin.Context) *models.User {
	return middleware.CurrentUser(ctx)
}
