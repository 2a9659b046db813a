package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/Freeeeeet/appointment_booking/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// bookRequest бронь по ID слота или по учителю, дате и времени
type bookRequest struct {
	SlotID    int64  `json:"slot_id"`
	TeacherID int64  `json:"teacher_id" binding:"required_without=SlotID"`
	Date      string `json:"date" binding:"required_without=SlotID,slotdate"`
	Time      string `json:"time" binding:"required_without=SlotID,slottime"`
	Purpose   string `json:"purpose" binding:"max=1000"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

type sendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

const statusRejected = "rejected"

func (h *handler) bookAppointment(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	studentID := actorFrom(c).UserID

	var (
		appointment *model.Appointment
		err         error
	)
	if req.SlotID > 0 {
		appointment, err = h.svc.Booking.BookSlot(ctx, req.SlotID, studentID, req.Purpose)
	} else {
		appointment, err = h.svc.Booking.Book(ctx, service.BookingRequest{
			TeacherID: req.TeacherID,
			StudentID: studentID,
			Date:      req.Date,
			Time:      req.Time,
			Purpose:   req.Purpose,
		})
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appointment)
}

func (h *handler) listAppointments(c *gin.Context) {
	views, err := h.svc.Appointments.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": nonNil(views)})
}

func (h *handler) getAppointment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Appointments.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) appointmentStats(c *gin.Context) {
	stats, err := h.svc.Appointments.Stats(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// setAppointmentStatus статус rejected означает отказ учителя: запись отменяется с причиной
func (h *handler) setAppointmentStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	actor := actorFrom(c)

	var (
		appointment *model.Appointment
		err         error
	)
	if req.Status == statusRejected {
		if actor.Role == model.RoleStudent {
			writeError(c, apperr.New(apperr.CodeForbidden, "students can only cancel their appointments"))
			return
		}
		appointment, err = h.svc.Status.Reject(ctx, actor, id, req.Reason)
	} else {
		appointment, err = h.svc.Status.SetStatus(ctx, actor, id, model.AppointmentStatus(req.Status), req.Reason)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

func (h *handler) sendMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	msg, err := h.svc.Messages.Send(c.Request.Context(), actorFrom(c), id, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *handler) listAppointmentMessages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	messages, err := h.svc.Messages.ListForAppointment(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": nonNil(messages)})
}

// streamMessages отдаёт новые сообщения записи как server-sent events
func (h *handler) streamMessages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub, err := h.svc.Messages.Subscribe(ctx, actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	defer func() {
		if err := sub.Close(); err != nil {
			h.logger.Warn("Failed to close message subscription", zap.Int64("appointment_id", id), zap.Error(err))
		}
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Flush()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return false
			}
			c.SSEvent("message", msg)
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		case <-ctx.Done():
			return false
		}
	})
}

func (h *handler) listMessages(c *gin.Context) {
	messages, err := h.svc.Messages.ListForUser(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": nonNil(messages)})
}

func (h *handler) messageStats(c *gin.Context) {
	stats, err := h.svc.Messages.Stats(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
