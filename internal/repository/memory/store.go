// Package memory хранилище в памяти процесса с тем же контрактом, что и PostgreSQL репозитории.
// Используется в тестах и при STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/model"
)

type txKey struct{}

type data struct {
	slots        map[int64]model.ScheduleSlot
	appointments map[int64]model.Appointment
	messages     map[int64]model.Message
	users        map[int64]model.User
	seq          int64
}

func (d *data) clone() *data {
	c := &data{
		slots:        make(map[int64]model.ScheduleSlot, len(d.slots)),
		appointments: make(map[int64]model.Appointment, len(d.appointments)),
		messages:     make(map[int64]model.Message, len(d.messages)),
		users:        make(map[int64]model.User, len(d.users)),
		seq:          d.seq,
	}
	for k, v := range d.slots {
		c.slots[k] = v
	}
	for k, v := range d.appointments {
		c.appointments[k] = v
	}
	for k, v := range d.messages {
		c.messages[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

// Store хранилище в памяти. Транзакции сериализуются одним мьютексом,
// при ошибке данные откатываются к снимку.
type Store struct {
	mu   sync.Mutex
	d    *data
	now  func() time.Time
	fail map[string]error
}

func NewStore() *Store {
	return &Store{
		d: &data{
			slots:        make(map[int64]model.ScheduleSlot),
			appointments: make(map[int64]model.Appointment),
			messages:     make(map[int64]model.Message),
			users:        make(map[int64]model.User),
		},
		now:  time.Now,
		fail: make(map[string]error),
	}
}

// SetClock подменяет часы для меток времени
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailOn заставляет операцию op возвращать err, nil снимает ошибку
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// lock берёт мьютекс, если вызов не внутри транзакции этого хранилища
func (s *Store) lock(ctx context.Context) func() {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) injected(op string) error {
	return s.fail[op]
}

func (s *Store) nextID() int64 {
	s.d.seq++
	return s.d.seq
}

// WithinTx выполняет fn атомарно относительно остальных операций хранилища
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

// Ping всегда успешен
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Slots() *SlotRepository               { return &SlotRepository{s: s} }
func (s *Store) Appointments() *AppointmentRepository { return &AppointmentRepository{s: s} }
func (s *Store) Messages() *MessageRepository         { return &MessageRepository{s: s} }
func (s *Store) Users() *UserRepository               { return &UserRepository{s: s} }
