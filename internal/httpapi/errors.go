package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var statusByCode = map[apperr.Code]int{
	apperr.CodeInvalidInput:      http.StatusBadRequest,
	apperr.CodeInvalidTime:       http.StatusBadRequest,
	apperr.CodeUnauthorized:      http.StatusUnauthorized,
	apperr.CodeForbidden:         http.StatusForbidden,
	apperr.CodePendingApproval:   http.StatusForbidden,
	apperr.CodeNotFound:          http.StatusNotFound,
	apperr.CodeDuplicateSlot:     http.StatusConflict,
	apperr.CodeSlotUnavailable:   http.StatusConflict,
	apperr.CodeSlotFull:          http.StatusConflict,
	apperr.CodeInvalidState:      http.StatusConflict,
	apperr.CodeInvalidTransition: http.StatusConflict,
	apperr.CodeHasBookings:       http.StatusConflict,
	apperr.CodeConflict:          http.StatusConflict,
	apperr.CodeStore:             http.StatusInternalServerError,
}

func statusOf(code apperr.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeError отвечает кодом ошибки и текстом без внутренних деталей
func writeError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := statusOf(code)
	if status >= http.StatusInternalServerError {
		// полный текст в лог, клиенту только код
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: string(code), Message: apperr.MessageOf(err)})
}

// bindError превращает ошибку привязки запроса в invalid_input
func bindError(c *gin.Context, err error) {
	writeError(c, apperr.New(apperr.CodeInvalidInput, describeBindError(err)))
}

func describeBindError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "malformed request body"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "slotdate":
			parts = append(parts, field+" must be YYYY-MM-DD")
		case "slottime":
			parts = append(parts, field+" must be HH:MM")
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
