package model

import (
	"strings"
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"   // Ожидает решения учителя
	AppointmentStatusApproved  AppointmentStatus = "approved"  // Подтверждено
	AppointmentStatusCancelled AppointmentStatus = "cancelled" // Отменено или отклонено
	AppointmentStatusCompleted AppointmentStatus = "completed" // Занятие состоялось
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending:  {AppointmentStatusApproved, AppointmentStatusCancelled},
	AppointmentStatusApproved: {AppointmentStatusCompleted, AppointmentStatusCancelled},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusApproved, AppointmentStatusCancelled, AppointmentStatusCompleted:
		return true
	}
	return false
}

func (s AppointmentStatus) IsTerminal() bool {
	return len(appointmentTransitions[s]) == 0
}

// CanTransition проверяет переход по таблице переходов
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range appointmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HoldsSeat возвращает true, если запись в этом статусе занимает место в слоте
func (s AppointmentStatus) HoldsSeat() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusApproved || s == AppointmentStatusCompleted
}

type Appointment struct {
	ID             int64             `json:"id"`
	TeacherID      int64             `json:"teacher_id"`
	StudentID      int64             `json:"student_id"`
	Date           string            `json:"date"`
	Time           string            `json:"time"`
	Purpose        string            `json:"purpose"`
	Status         AppointmentStatus `json:"status"`
	Reason         string            `json:"reason,omitempty"`
	ScheduleSlotID *int64            `json:"schedule_slot_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// IsParticipant проверяет что пользователь студент или учитель этой записи
func (a *Appointment) IsParticipant(userID int64) bool {
	return a.StudentID == userID || a.TeacherID == userID
}

// AppointmentView запись с именами участников для списков
type AppointmentView struct {
	Appointment
	StudentName string `json:"student_name"`
	TeacherName string `json:"teacher_name"`
	Name        string `json:"appointment_name"`
}

const purposePreviewLen = 25

// DisplayName формирует название записи для конкретной роли
func (v *AppointmentView) DisplayName(viewer Role) string {
	counterpart := v.TeacherName
	if viewer == RoleTeacher {
		counterpart = v.StudentName
	}
	purpose := strings.TrimSpace(v.Purpose)
	if purpose == "" {
		purpose = "Appointment on " + v.Date
	} else if r := []rune(purpose); len(r) > purposePreviewLen {
		purpose = string(r[:purposePreviewLen]) + "..."
	}
	if viewer == RoleAdmin {
		return v.StudentName + " / " + v.TeacherName + " - " + purpose
	}
	if counterpart == "" {
		return purpose
	}
	return counterpart + " - " + purpose
}

// AppointmentFilter выборка записей; нулевые поля не фильтруют
type AppointmentFilter struct {
	TeacherID int64
	StudentID int64
}
