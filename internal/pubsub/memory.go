package pubsub

import (
	"context"
	"sync"

	"github.com/Freeeeeet/appointment_booking/internal/model"
)

// MemoryBroker рассылка в пределах одного процесса
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[int64]map[chan *model.Message]struct{}
	buffer int
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs:   make(map[int64]map[chan *model.Message]struct{}),
		buffer: 16,
	}
}

// Publish не блокируется: если подписчик не успевает читать, сообщение для него теряется
func (b *MemoryBroker) Publish(_ context.Context, msg *model.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[msg.AppointmentID] {
		m := *msg
		select {
		case ch <- &m:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, appointmentID int64) (*Subscription, error) {
	in := make(chan *model.Message, b.buffer)

	b.mu.Lock()
	if b.subs[appointmentID] == nil {
		b.subs[appointmentID] = make(map[chan *model.Message]struct{})
	}
	b.subs[appointmentID][in] = struct{}{}
	b.mu.Unlock()

	sub := newSubscription(b.buffer, func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[appointmentID], in)
		if len(b.subs[appointmentID]) == 0 {
			delete(b.subs, appointmentID)
		}
		return nil
	})

	go sub.pump(ctx, in)
	return sub, nil
}

// Subscribers возвращает число активных подписок на переписку
func (b *MemoryBroker) Subscribers(appointmentID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[appointmentID])
}
