package controllers

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ttt-platform/trash2treasure/services"
)

// RegisterValidators adds the custom binding tags used by request structs.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("trackid", func(fl validator.FieldLevel) bool {
		return services.ValidTrackID(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return services.ValidUsername(strings.TrimSpace(fl.Field().String()))
	})
}
