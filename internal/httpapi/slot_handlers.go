package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/Freeeeeet/appointment_booking/internal/service"
	"github.com/gin-gonic/gin"
)

type createSlotRequest struct {
	TeacherID   int64  `json:"teacher_id"`
	Date        string `json:"date" binding:"required,slotdate"`
	Time        string `json:"time" binding:"required,slottime"`
	Duration    int    `json:"duration" binding:"required,min=1,max=1440"`
	MaxStudents int    `json:"max_students" binding:"required,min=1"`
	Purpose     string `json:"purpose" binding:"max=500"`
}

type updateSlotRequest struct {
	Date        *string           `json:"date" binding:"omitempty,slotdate"`
	Time        *string           `json:"time" binding:"omitempty,slottime"`
	Duration    *int              `json:"duration" binding:"omitempty,min=1,max=1440"`
	MaxStudents *int              `json:"max_students" binding:"omitempty,min=1"`
	Purpose     *string           `json:"purpose" binding:"omitempty,max=500"`
	Status      *model.SlotStatus `json:"status"`
}

type slotListQuery struct {
	Date       string `form:"date" binding:"omitempty,slotdate"`
	TeacherID  int64  `form:"teacher_id"`
	Department string `form:"department"`
}

func (h *handler) createSlot(c *gin.Context) {
	var req createSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	slot, err := h.svc.Slots.CreateSlot(c.Request.Context(), actorFrom(c), service.CreateSlotInput{
		TeacherID:   req.TeacherID,
		Date:        req.Date,
		Time:        req.Time,
		Duration:    req.Duration,
		MaxStudents: req.MaxStudents,
		Purpose:     req.Purpose,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (h *handler) listAvailableSlots(c *gin.Context) {
	var q slotListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	slots, err := h.svc.Slots.ListAvailable(c.Request.Context(), model.SlotFilter{
		Date:       q.Date,
		TeacherID:  q.TeacherID,
		Department: q.Department,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": nonNil(slots)})
}

func (h *handler) getSlot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	slot, err := h.svc.Slots.GetSlot(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (h *handler) updateSlot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	slot, err := h.svc.Slots.UpdateSlot(c.Request.Context(), actorFrom(c), id, model.SlotPatch{
		Date:        req.Date,
		Time:        req.Time,
		Duration:    req.Duration,
		MaxStudents: req.MaxStudents,
		Purpose:     req.Purpose,
		Status:      req.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (h *handler) deleteSlot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Slots.DeleteSlot(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) searchTeachers(c *gin.Context) {
	teachers, err := h.svc.Accounts.SearchTeachers(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teachers": nonNil(teachers)})
}

func (h *handler) listTeacherSlots(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	slots, err := h.svc.Slots.ListTeacherSlots(c.Request.Context(), id, model.SlotStatus(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": nonNil(slots)})
}

func (h *handler) teacherSlotStats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	stats, err := h.svc.Slots.Stats(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// nonNil чтобы пустой список сериализовался как [], а не null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
