package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/model"
)

// Transactor выполняет fn атомарно. Репозитории, вызванные с переданным контекстом,
// работают внутри той же транзакции.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Not-found на уровне хранилища возвращается как (nil, nil).

type SlotStore interface {
	Create(ctx context.Context, slot *model.ScheduleSlot) error
	GetByID(ctx context.Context, id int64) (*model.ScheduleSlot, error)
	GetByKey(ctx context.Context, teacherID int64, date, clock string) (*model.ScheduleSlot, error)
	Update(ctx context.Context, slot *model.ScheduleSlot, expected model.SlotCounters) (bool, error)
	SwapCounters(ctx context.Context, id int64, expected, next model.SlotCounters) (bool, error)
	Delete(ctx context.Context, id int64, expected model.SlotCounters) (bool, error)
	ListByTeacher(ctx context.Context, teacherID int64, status model.SlotStatus) ([]*model.ScheduleSlot, error)
	ListAvailable(ctx context.Context, filter model.SlotFilter) ([]*model.ScheduleSlot, error)
	ListOpen(ctx context.Context) ([]*model.ScheduleSlot, error)
	CountByStatus(ctx context.Context, teacherID int64) (map[model.SlotStatus]int, error)
}

type AppointmentStore interface {
	Create(ctx context.Context, a *model.Appointment) error
	GetByID(ctx context.Context, id int64) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.AppointmentStatus, reason string) (bool, error)
	List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
	CountSeatsBySlot(ctx context.Context) (map[int64]int, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	ListByAppointment(ctx context.Context, appointmentID int64) ([]*model.Message, error)
	ListByAppointments(ctx context.Context, appointmentIDs []int64) ([]*model.Message, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error)
	Update(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
}

// Notifier ставит уведомление пользователю в очередь.
// DispatchSecret доставляет secret только адресату, в логи он не попадает.
type Notifier interface {
	Dispatch(userID int64, text string)
	DispatchSecret(userID int64, text, secret string)
}

type nopNotifier struct{}

func (nopNotifier) Dispatch(int64, string) {}

func (nopNotifier) DispatchSecret(int64, string, string) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
