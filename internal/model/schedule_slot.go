package model

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type SlotStatus string

const (
	SlotStatusAvailable   SlotStatus = "available"    // Есть свободные места, ни одной записи
	SlotStatusBooked      SlotStatus = "booked"       // Есть записи, но места ещё остались
	SlotStatusFullyBooked SlotStatus = "fully_booked" // Все места заняты
	SlotStatusCancelled   SlotStatus = "cancelled"    // Отменён учителем
	SlotStatusCompleted   SlotStatus = "completed"    // Занятие проведено
)

// Valid проверяет что статус из известного набора
func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusAvailable, SlotStatusBooked, SlotStatusFullyBooked, SlotStatusCancelled, SlotStatusCompleted:
		return true
	}
	return false
}

// IsManual возвращает true для статусов, которые выставляются вручную и не пересчитываются
func (s SlotStatus) IsManual() bool {
	return s == SlotStatusCancelled || s == SlotStatusCompleted
}

type ScheduleSlot struct {
	ID              int64      `json:"id"`
	TeacherID       int64      `json:"teacher_id"`
	Date            string     `json:"date"` // YYYY-MM-DD
	Time            string     `json:"time"` // HH:MM
	Duration        int        `json:"duration"`
	MaxStudents     int        `json:"max_students"`
	CurrentBookings int        `json:"current_bookings"`
	Status          SlotStatus `json:"status"`
	Purpose         string     `json:"purpose"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RecomputeStatus выводит статус слота из счётчика записей.
// Ручные статусы (cancelled, completed) не меняются.
func RecomputeStatus(status SlotStatus, currentBookings, maxStudents int) SlotStatus {
	if status.IsManual() {
		return status
	}
	switch {
	case currentBookings >= maxStudents:
		return SlotStatusFullyBooked
	case currentBookings > 0:
		return SlotStatusBooked
	default:
		return SlotStatusAvailable
	}
}

// Recompute пересчитывает и сохраняет статус в самом слоте
func (s *ScheduleSlot) Recompute() SlotStatus {
	s.Status = RecomputeStatus(s.Status, s.CurrentBookings, s.MaxStudents)
	return s.Status
}

// Remaining возвращает количество свободных мест
func (s *ScheduleSlot) Remaining() int {
	if s.CurrentBookings >= s.MaxStudents {
		return 0
	}
	return s.MaxStudents - s.CurrentBookings
}

func (s *ScheduleSlot) IsFull() bool {
	return s.CurrentBookings >= s.MaxStudents
}

// Counters возвращает текущие значения счётчика и статуса для conditional update
func (s *ScheduleSlot) Counters() SlotCounters {
	return SlotCounters{CurrentBookings: s.CurrentBookings, Status: s.Status}
}

// StartsAt возвращает момент начала слота в указанной таймзоне
func (s *ScheduleSlot) StartsAt(loc *time.Location) (time.Time, error) {
	return ParseSlotTime(s.Date, s.Time, loc)
}

// SlotCounters пара полей, которую меняют бронирования
type SlotCounters struct {
	CurrentBookings int
	Status          SlotStatus
}

// ParseSlotTime собирает дату и время слота в time.Time
func ParseSlotTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot time %q %q: %w", date, clock, err)
	}
	// Дата и время хранятся строками и входят в уникальный ключ слота,
	// поэтому "9:00" не должно проходить как "09:00"
	if !IsCanonical(DateLayout, date) || !IsCanonical(TimeLayout, clock) {
		return time.Time{}, fmt.Errorf("slot time %q %q is not in YYYY-MM-DD HH:MM form", date, clock)
	}
	return t, nil
}

// IsCanonical проверяет что value разбирается по layout и совпадает со своим форматированием
func IsCanonical(layout, value string) bool {
	t, err := time.Parse(layout, value)
	return err == nil && t.Format(layout) == value
}

// SlotPatch частичное обновление слота, nil означает "не менять"
type SlotPatch struct {
	Date        *string     `json:"date,omitempty"`
	Time        *string     `json:"time,omitempty"`
	Duration    *int        `json:"duration,omitempty"`
	MaxStudents *int        `json:"max_students,omitempty"`
	Purpose     *string     `json:"purpose,omitempty"`
	Status      *SlotStatus `json:"status,omitempty"`
}

// SlotFilter фильтр для поиска доступных слотов
type SlotFilter struct {
	Date       string
	TeacherID  int64
	Department string
}
