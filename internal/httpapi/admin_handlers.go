package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/Freeeeeet/appointment_booking/internal/service"
	"github.com/gin-gonic/gin"
)

type rejectRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type addTeacherRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=6"`
	Name           string `json:"name" binding:"required,max=200"`
	Department     string `json:"department" binding:"max=200"`
	Subject        string `json:"subject" binding:"max=200"`
	Phone          string `json:"phone" binding:"max=50"`
	TelegramChatID *int64 `json:"telegram_chat_id"`
}

// updateTeacherRequest пароль через этот запрос не меняется
type updateTeacherRequest struct {
	Name           *string `json:"name" binding:"omitempty,max=200"`
	Department     *string `json:"department" binding:"omitempty,max=200"`
	Subject        *string `json:"subject" binding:"omitempty,max=200"`
	Phone          *string `json:"phone" binding:"omitempty,max=50"`
	TelegramChatID *int64  `json:"telegram_chat_id"`
}

type addAdminRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required,max=200"`
	Phone    string `json:"phone" binding:"max=50"`
}

func (h *handler) listPendingRegistrations(c *gin.Context) {
	users, err := h.svc.Accounts.ListPendingStudents(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": nonNil(users)})
}

func (h *handler) approveRegistration(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.svc.Accounts.ApproveStudent(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handler) rejectRegistration(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	// причина необязательна, пустое тело допустимо
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}
	user, err := h.svc.Accounts.RejectStudent(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handler) listUsers(c *gin.Context) {
	role := model.Role(c.DefaultQuery("role", string(model.RoleStudent)))
	users, err := h.svc.Accounts.ListUsers(c.Request.Context(), role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": nonNil(users)})
}

func (h *handler) addTeacher(c *gin.Context) {
	var req addTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	teacher, err := h.svc.Accounts.AddTeacher(c.Request.Context(), actorFrom(c), service.TeacherInput{
		Email:          req.Email,
		Password:       req.Password,
		Name:           req.Name,
		Department:     req.Department,
		Subject:        req.Subject,
		Phone:          req.Phone,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, teacher)
}

func (h *handler) updateTeacher(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	teacher, err := h.svc.Accounts.UpdateTeacher(c.Request.Context(), id, model.TeacherPatch{
		Name:           req.Name,
		Department:     req.Department,
		Subject:        req.Subject,
		Phone:          req.Phone,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, teacher)
}

// deleteTeacher по умолчанию деактивирует учителя, ?hard=true удаляет вместе со слотами и записями
func (h *handler) deleteTeacher(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	hard, err := strconv.ParseBool(c.DefaultQuery("hard", "false"))
	if err != nil {
		writeError(c, apperr.New(apperr.CodeInvalidInput, "hard must be true or false"))
		return
	}
	if err := h.svc.Accounts.DeleteTeacher(c.Request.Context(), id, hard); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) addAdmin(c *gin.Context) {
	var req addAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	actor := actorFrom(c)
	admin, err := h.svc.Accounts.AddAdmin(c.Request.Context(), &actor, service.AdminInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, admin)
}

func (h *handler) userStats(c *gin.Context) {
	stats, err := h.svc.Accounts.UserStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handler) systemStats(c *gin.Context) {
	stats, err := h.svc.Stats.System(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
