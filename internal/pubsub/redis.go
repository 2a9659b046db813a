package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker рассылает сообщения через Redis pub/sub, подписчики могут быть в других инстансах
type RedisBroker struct {
	client redis.UniversalClient
	buffer int
	logger *zap.Logger
}

func NewRedisBroker(client redis.UniversalClient, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, buffer: 16, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, msg *model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := b.client.Publish(ctx, channelName(msg.AppointmentID), payload).Err(); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, appointmentID int64) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, channelName(appointmentID))

	// ждём подтверждения, чтобы не потерять сообщения, опубликованные сразу после подписки
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to appointment %d: %w", appointmentID, err)
	}

	msgs := ps.Channel()
	decoded := make(chan *model.Message)
	sub := newSubscription(b.buffer, ps.Close)

	go func() {
		defer close(decoded)
		for raw := range msgs {
			var msg model.Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				b.logger.Warn("Dropping malformed message payload",
					zap.String("channel", raw.Channel),
					zap.Error(err),
				)
				continue
			}
			select {
			case decoded <- &msg:
			case <-sub.stop:
				return
			}
		}
	}()

	go sub.pump(ctx, decoded)
	return sub, nil
}
