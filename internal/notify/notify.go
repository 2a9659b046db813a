// Package notify отправляет пользователям уведомления о записях и регистрации.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/metrics"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"go.uber.org/zap"
)

// Notifier канал доставки уведомления конкретному пользователю
type Notifier interface {
	Notify(ctx context.Context, user *model.User, msg Message) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Message текст уведомления. Secret (одноразовые коды и т.п.) доставляется
// только в личный канал пользователя и никогда не пишется в лог.
type Message struct {
	Text   string
	Secret string
}

// Full текст вместе с секретом для отправки адресату
func (m Message) Full() string {
	if m.Secret == "" {
		return m.Text
	}
	return m.Text + ": " + m.Secret
}

type Event struct {
	UserID  int64
	Message Message
}

// Dispatcher асинхронно доставляет уведомления, чтобы не задерживать ответы API.
// Если очередь переполнена, событие отбрасывается.
type Dispatcher struct {
	notifier Notifier
	users    UserLookup
	logger   *zap.Logger
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	wg     sync.WaitGroup
}

func NewDispatcher(notifier Notifier, users UserLookup, size int, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		users:    users,
		logger:   logger,
		timeout:  10 * time.Second,
		queue:    make(chan Event, size),
	}

	d.wg.Add(1)
	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	user, err := d.users.GetByID(ctx, ev.UserID)
	if err != nil {
		d.logger.Warn("Failed to load notification recipient", zap.Int64("user_id", ev.UserID), zap.Error(err))
		return
	}
	if user == nil {
		return
	}

	if err := d.notifier.Notify(ctx, user, ev.Message); err != nil {
		d.logger.Warn("Failed to deliver notification", zap.Int64("user_id", ev.UserID), zap.Error(err))
	}
}

// Dispatch ставит уведомление в очередь, никогда не блокирует вызывающего
func (d *Dispatcher) Dispatch(userID int64, text string) {
	d.enqueue(Event{UserID: userID, Message: Message{Text: text}})
}

// DispatchSecret как Dispatch, но secret не попадает в логи
func (d *Dispatcher) DispatchSecret(userID int64, text, secret string) {
	d.enqueue(Event{UserID: userID, Message: Message{Text: text, Secret: secret}})
}

func (d *Dispatcher) enqueue(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	select {
	case d.queue <- ev:
	default:
		metrics.IncNotificationDropped()
		d.logger.Warn("Notification queue full, dropping event", zap.Int64("user_id", ev.UserID))
	}
}

// Close дожидается доставки уже поставленных уведомлений
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

// LogNotifier пишет уведомления в лог, используется без настроенного Telegram.
// Секрет сообщения в лог не попадает.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, user *model.User, msg Message) error {
	n.logger.Info("Notification",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("text", msg.Text),
		zap.Bool("secret_redacted", msg.Secret != ""),
	)
	return nil
}
