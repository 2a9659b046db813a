package httpapi

import (
	"sync"

	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators добавляет в валидатор gin проверки формата даты и времени слота
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("slotdate", layoutValidator(model.DateLayout))
		_ = v.RegisterValidation("slottime", layoutValidator(model.TimeLayout))
	})
}

func layoutValidator(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return model.IsCanonical(layout, value)
	}
}
