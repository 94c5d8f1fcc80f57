package router

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/physiodesk/clinic-api/internal/model"
)

// registerValidators installs custom binding rules on gin's validator
// engine. Safe to call more than once.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("case_status", func(fl validator.FieldLevel) bool {
		_, err := model.ParseCaseStatus(fl.Field().String())
		return err == nil
	})
}
