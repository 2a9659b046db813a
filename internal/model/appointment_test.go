package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		allowed  bool
	}{
		{AppointmentStatusPending, AppointmentStatusApproved, true},
		{AppointmentStatusPending, AppointmentStatusCancelled, true},
		{AppointmentStatusPending, AppointmentStatusCompleted, false},
		{AppointmentStatusApproved, AppointmentStatusCompleted, true},
		{AppointmentStatusApproved, AppointmentStatusCancelled, true},
		{AppointmentStatusApproved, AppointmentStatusPending, false},
		{AppointmentStatusCancelled, AppointmentStatusApproved, false},
		{AppointmentStatusCompleted, AppointmentStatusCancelled, false},
		{AppointmentStatusPending, AppointmentStatus("rejected"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestAppointmentStatus_IsTerminal(t *testing.T) {
	assert.False(t, AppointmentStatusPending.IsTerminal())
	assert.False(t, AppointmentStatusApproved.IsTerminal())
	assert.True(t, AppointmentStatusCancelled.IsTerminal())
	assert.True(t, AppointmentStatusCompleted.IsTerminal())
}

func TestAppointmentView_DisplayName(t *testing.T) {
	view := &AppointmentView{
		Appointment: Appointment{Date: "2030-01-10", Purpose: "Consultation about the final thesis draft"},
		StudentName: "Anna",
		TeacherName: "Dr. Smith",
	}

	assert.Equal(t, "Anna - Consultation about the fi...", view.DisplayName(RoleTeacher))
	assert.Equal(t, "Dr. Smith - Consultation about the fi...", view.DisplayName(RoleStudent))

	view.Purpose = ""
	assert.Equal(t, "Dr. Smith - Appointment on 2030-01-10", view.DisplayName(RoleStudent))
}

func TestUser_Matches(t *testing.T) {
	u := &User{Name: "Ivan Petrov", Department: "Physics", Subject: "Quantum Mechanics"}

	assert.True(t, u.Matches("petrov"))
	assert.True(t, u.Matches("PHYS"))
	assert.True(t, u.Matches("quantum"))
	assert.True(t, u.Matches(""))
	assert.False(t, u.Matches("chemistry"))
}
