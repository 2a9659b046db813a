package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/app"
	"github.com/Freeeeeet/appointment_booking/internal/config"
	"github.com/Freeeeeet/appointment_booking/internal/httpapi"
	"github.com/Freeeeeet/appointment_booking/internal/identity"
	"github.com/Freeeeeet/appointment_booking/internal/metrics"
	"github.com/Freeeeeet/appointment_booking/internal/notify"
	"github.com/Freeeeeet/appointment_booking/internal/pubsub"
	"github.com/Freeeeeet/appointment_booking/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const notificationQueueSize = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting appointment booking service",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.StorageDriver),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
	logger.Info("Service stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	storage, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	readiness := map[string]httpapi.ReadinessCheck{"store": storage.Ping}

	var (
		broker pubsub.Broker
		tokens identity.TokenStore
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))

		broker = pubsub.NewRedisBroker(client, logger)
		tokens = identity.NewRedisTokenStore(client)
		readiness["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process broker and token store")
		broker = pubsub.NewMemoryBroker()
		tokens = identity.NewMemoryTokenStore()
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken)
		if err != nil {
			return err
		}
		notifier = tg
		logger.Info("Telegram notifications enabled")
	}
	dispatcher := notify.NewDispatcher(notifier, storage.Users, notificationQueueSize, logger)
	defer dispatcher.Close()

	provider := identity.NewProvider(identity.Options{
		Secret:        cfg.JWTSecret,
		TokenTTL:      cfg.TokenTTL,
		ResetTokenTTL: cfg.ResetTokenTTL,
		BcryptCost:    cfg.BcryptCost,
	}, tokens)

	slots := service.NewSlotRegistry(storage.Slots, storage.Users, cfg.Timezone, logger)
	appointments := service.NewAppointmentService(storage.Appointments, storage.Users)
	messages := service.NewMessageService(storage.Messages, storage.Appointments, broker, cfg.Timezone, logger)
	accounts := service.NewAccountService(storage.Users, provider, dispatcher, logger)

	services := httpapi.Services{
		Slots: slots,
		Booking: service.NewBookingCoordinator(
			storage.Tx, storage.Slots, storage.Appointments, dispatcher, cfg.Timezone, cfg.BookingAllowPartial, logger,
		),
		Status:       service.NewAppointmentStatusMachine(storage.Tx, storage.Slots, storage.Appointments, dispatcher, logger),
		Appointments: appointments,
		Messages:     messages,
		Accounts:     accounts,
		Stats:        service.NewStatsService(accounts, slots, appointments, messages),
	}

	if err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
		return err
	}

	scheduler := app.NewScheduler(service.NewReconciler(storage.Slots, storage.Appointments, logger), cfg.ReconcileInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(services, httpapi.Options{
		Identity:      provider,
		CORSOrigins:   cfg.CORSOrigins,
		AuthRateLimit: cfg.AuthRateLimit,
		AuthRateBurst: cfg.AuthRateBurst,
		Readiness:     readiness,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// SSE потоки завершаются вместе с контекстом сигнала
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
