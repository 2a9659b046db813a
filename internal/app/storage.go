package app

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/appointment_booking/internal/config"
	"github.com/Freeeeeet/appointment_booking/internal/repository"
	"github.com/Freeeeeet/appointment_booking/internal/repository/base"
	"github.com/Freeeeeet/appointment_booking/internal/repository/memory"
	"github.com/Freeeeeet/appointment_booking/internal/service"
	"github.com/Freeeeeet/appointment_booking/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Storage набор хранилищ, выбранный STORAGE_DRIVER
type Storage struct {
	Tx           service.Transactor
	Slots        service.SlotStore
	Appointments service.AppointmentStore
	Messages     service.MessageStore
	Users        service.UserStore

	Ping  func(ctx context.Context) error
	Close func()
}

// OpenStorage подключается к PostgreSQL и применяет миграции, либо создаёт хранилище в памяти
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn("Using in-memory storage, data will be lost on restart")
		store := memory.NewStore()
		return &Storage{
			Tx:           store,
			Slots:        store.Slots(),
			Appointments: store.Appointments(),
			Messages:     store.Messages(),
			Users:        store.Users(),
			Ping:         store.Ping,
			Close:        func() {},
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Connected to PostgreSQL")

	migrator, err := NewMigrator(pool, migrations.FS, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	err = migrator.Run(ctx)
	if closeErr := migrator.Close(); closeErr != nil {
		logger.Warn("Failed to close migrator", zap.Error(closeErr))
	}
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Storage{
		Tx:           base.NewRepository(pool),
		Slots:        repository.NewSlotRepository(pool),
		Appointments: repository.NewAppointmentRepository(pool),
		Messages:     repository.NewMessageRepository(pool),
		Users:        repository.NewUserRepository(pool),
		Ping:         pool.Ping,
		Close:        pool.Close,
	}, nil
}
