// Package pubsub доставляет новые сообщения подписчикам переписки по записи.
package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/Freeeeeet/appointment_booking/internal/model"
)

// Broker публикует сообщения и выдаёт подписки на переписку по записи
type Broker interface {
	Publish(ctx context.Context, msg *model.Message) error
	Subscribe(ctx context.Context, appointmentID int64) (*Subscription, error)
}

func channelName(appointmentID int64) string {
	return fmt.Sprintf("appointments:%d:messages", appointmentID)
}

// Subscription активная подписка. Close освобождает ресурсы на стороне брокера,
// повторный Close безопасен. Подписка закрывается и при отмене контекста.
type Subscription struct {
	out     chan *model.Message
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	release func() error
	err     error
}

func newSubscription(buffer int, release func() error) *Subscription {
	return &Subscription{
		out:     make(chan *model.Message, buffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		release: release,
	}
}

// Messages канал новых сообщений, закрывается после Close
func (s *Subscription) Messages() <-chan *model.Message {
	return s.out
}

func (s *Subscription) Close() error {
	s.shutdown()
	<-s.done
	return s.err
}

func (s *Subscription) shutdown() {
	s.once.Do(func() {
		close(s.stop)
		s.err = s.release()
	})
}

// pump перекладывает сообщения из источника в канал подписчика
func (s *Subscription) pump(ctx context.Context, source <-chan *model.Message) {
	defer close(s.done)
	defer close(s.out)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-s.stop:
			return
		case msg, ok := <-source:
			if !ok {
				return
			}
			select {
			case s.out <- msg:
			case <-s.stop:
				return
			case <-ctx.Done():
				s.shutdown()
				return
			}
		}
	}
}
