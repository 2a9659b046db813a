package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedAppointment(t *testing.T, f *fixture) *model.Appointment {
	t.Helper()
	f.createSlot(t, "10:00", 1)
	a, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)
	a, err = f.status.Approve(context.Background(), f.teacherActor(), a.ID)
	require.NoError(t, err)
	return a
}

func TestMessageService_OnlyApprovedAppointments(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.createSlot(t, "10:00", 1)

	a, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)

	_, err = f.messages.Send(ctx, f.studentActor(), a.ID, "Hello")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.status.Approve(ctx, f.teacherActor(), a.ID)
	require.NoError(t, err)

	msg, err := f.messages.Send(ctx, f.studentActor(), a.ID, "  Hello  ")
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg.Body)
	assert.Equal(t, model.SenderStudent, msg.SenderType)
	assert.Equal(t, testNow, msg.Timestamp)
}

func TestMessageService_Validation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	a := approvedAppointment(t, f)
	outsider := f.addUser(t, "outsider@example.com", model.RoleStudent)

	_, err := f.messages.Send(ctx, f.studentActor(), a.ID, "   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.messages.Send(ctx, f.studentActor(), a.ID, strings.Repeat("a", maxMessageLength+1))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.messages.Send(ctx, model.Actor{UserID: outsider.ID, Role: model.RoleStudent}, a.ID, "hi")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.messages.Send(ctx, f.adminActor(), a.ID, "hi")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.messages.Send(ctx, f.studentActor(), 9999, "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMessageService_HistoryAndStats(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	a := approvedAppointment(t, f)

	_, err := f.messages.Send(ctx, f.studentActor(), a.ID, "first")
	require.NoError(t, err)
	reply, err := f.messages.Send(ctx, f.teacherActor(), a.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, model.SenderTeacher, reply.SenderType)

	history, err := f.messages.ListForAppointment(ctx, f.adminActor(), a.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Body)
	assert.Equal(t, "second", history[1].Body)

	mine, err := f.messages.ListForUser(ctx, f.studentActor())
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	stats, err := f.messages.Stats(ctx, f.studentActor())
	require.NoError(t, err)
	assert.Equal(t, model.MessageStats{Total: 2, Today: 2, ThisWeek: 2}, *stats)

	global, err := f.messages.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, global.Total)
}

func TestMessageService_SubscribeReceivesNewMessages(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := approvedAppointment(t, f)

	sub, err := f.messages.Subscribe(ctx, f.teacherActor(), a.ID)
	require.NoError(t, err)
	defer sub.Close()

	sent, err := f.messages.Send(ctx, f.studentActor(), a.ID, "are we still on?")
	require.NoError(t, err)

	select {
	case got := <-sub.Messages():
		require.NotNil(t, got)
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, "are we still on?", got.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}

	outsider := f.addUser(t, "outsider@example.com", model.RoleStudent)
	_, err = f.messages.Subscribe(ctx, model.Actor{UserID: outsider.ID, Role: model.RoleStudent}, a.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
