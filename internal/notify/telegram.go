package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/go-telegram/bot"
)

// Telegram отправляет уведомления в чат пользователя, если он привязал Telegram
type Telegram struct {
	bot *bot.Bot
}

func NewTelegram(token string, opts ...bot.Option) (*Telegram, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: b}, nil
}

func (t *Telegram) Notify(ctx context.Context, user *model.User, msg Message) error {
	if user.TelegramChatID == nil {
		return nil
	}

	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *user.TelegramChatID,
		Text:   msg.Full(),
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
