package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/identity"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/Freeeeeet/appointment_booking/internal/pubsub"
	"github.com/Freeeeeet/appointment_booking/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

type notification struct {
	UserID int64
	Text   string
	Secret string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) Dispatch(userID int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{UserID: userID, Text: text})
}

func (n *recordingNotifier) DispatchSecret(userID int64, text, secret string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{UserID: userID, Text: text, Secret: secret})
}

// Last последнее уведомление пользователя
func (n *recordingNotifier) Last(t *testing.T, userID int64) notification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].UserID == userID {
			return n.events[i]
		}
	}
	t.Fatalf("no notifications for user %d", userID)
	return notification{}
}

func (n *recordingNotifier) For(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var texts []string
	for _, ev := range n.events {
		if ev.UserID == userID {
			texts = append(texts, ev.Text)
		}
	}
	return texts
}

type fixture struct {
	logs     *observer.ObservedLogs
	store    *memory.Store
	broker   *pubsub.MemoryBroker
	notes    *recordingNotifier
	provider *identity.Provider

	slots        *SlotRegistry
	booking      *BookingCoordinator
	status       *AppointmentStatusMachine
	appointments *AppointmentService
	messages     *MessageService
	accounts     *AccountService
	reconciler   *Reconciler
	stats        *StatsService

	teacher *model.User
	student *model.User
	admin   *model.User
}

func newFixture(t *testing.T, allowPartial bool) *fixture {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	clock := func() time.Time { return testNow }

	f := &fixture{
		logs:   logs,
		store:  memory.NewStore(),
		broker: pubsub.NewMemoryBroker(),
		notes:  &recordingNotifier{},
	}
	f.store.SetClock(clock)

	f.provider = identity.NewProvider(identity.Options{
		Secret:        "test-secret",
		TokenTTL:      time.Hour,
		ResetTokenTTL: 10 * time.Minute,
		BcryptCost:    bcrypt.MinCost,
	}, identity.NewMemoryTokenStore())
	f.provider.SetClock(clock)

	slots, appointments, messages, users := f.store.Slots(), f.store.Appointments(), f.store.Messages(), f.store.Users()

	f.slots = NewSlotRegistry(slots, users, time.UTC, logger)
	f.slots.SetClock(clock)
	f.booking = NewBookingCoordinator(f.store, slots, appointments, f.notes, time.UTC, allowPartial, logger)
	f.booking.SetClock(clock)
	f.status = NewAppointmentStatusMachine(f.store, slots, appointments, f.notes, logger)
	f.appointments = NewAppointmentService(appointments, users)
	f.messages = NewMessageService(messages, appointments, f.broker, time.UTC, logger)
	f.messages.SetClock(clock)
	f.accounts = NewAccountService(users, f.provider, f.notes, logger)
	f.accounts.now = clock
	f.reconciler = NewReconciler(slots, appointments, logger)
	f.stats = NewStatsService(f.accounts, f.slots, f.appointments, f.messages)

	f.teacher = f.addUser(t, "teacher@example.com", model.RoleTeacher)
	f.student = f.addUser(t, "student@example.com", model.RoleStudent)
	f.admin = f.addUser(t, "admin@example.com", model.RoleAdmin)

	return f
}

func (f *fixture) addUser(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	hash, err := f.provider.HashPassword("secret123")
	require.NoError(t, err)

	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         fmt.Sprintf("%s %s", role, email),
		Role:         role,
		Department:   "Math",
		Approved:     true,
		Status:       model.UserStatusActive,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func (f *fixture) teacherActor() model.Actor {
	return model.Actor{UserID: f.teacher.ID, Role: model.RoleTeacher}
}

func (f *fixture) studentActor() model.Actor {
	return model.Actor{UserID: f.student.ID, Role: model.RoleStudent}
}

func (f *fixture) adminActor() model.Actor {
	return model.Actor{UserID: f.admin.ID, Role: model.RoleAdmin}
}

func (f *fixture) createSlot(t *testing.T, clock string, maxStudents int) *model.ScheduleSlot {
	t.Helper()
	slot, err := f.slots.CreateSlot(context.Background(), f.teacherActor(), CreateSlotInput{
		Date:        "2030-01-10",
		Time:        clock,
		Duration:    60,
		MaxStudents: maxStudents,
		Purpose:     "Consultation",
	})
	require.NoError(t, err)
	return slot
}

func (f *fixture) book(studentID int64, clock string) (*model.Appointment, error) {
	return f.booking.Book(context.Background(), BookingRequest{
		TeacherID: f.teacher.ID,
		StudentID: studentID,
		Date:      "2030-01-10",
		Time:      clock,
		Purpose:   "Thesis review",
	})
}

func (f *fixture) reload(t *testing.T, slotID int64) *model.ScheduleSlot {
	t.Helper()
	slot, err := f.slots.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	return slot
}
