package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SlotRepairer сверяет счётчики слотов с записями
type SlotRepairer interface {
	Repair(ctx context.Context) (int, error)
}

// Scheduler периодически запускает сверку счётчиков слотов
type Scheduler struct {
	repairer SlotRepairer
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

func NewScheduler(repairer SlotRepairer, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		repairer: repairer,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновую сверку. При interval <= 0 сверка отключена.
// Повторный вызов и вызов после Stop ничего не делают.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	if s.interval <= 0 {
		s.logger.Info("Slot reconciliation disabled")
		close(s.done)
		return
	}
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))
	go s.runReconcileTask(ctx)
}

// Stop останавливает задачу и ждёт завершения текущего прохода.
// Если Start не вызывался, возвращается сразу.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
		if !s.started {
			close(s.done)
		}
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Scheduler) runReconcileTask(ctx context.Context) {
	defer close(s.done)

	// Первый запуск сразу при старте
	s.reconcile(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reconcile(ctx)
		case <-s.stopChan:
			s.logger.Info("Slot reconciliation task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Slot reconciliation task cancelled")
			return
		}
	}
}

func (s *Scheduler) reconcile(ctx context.Context) {
	repaired, err := s.repairer.Repair(ctx)
	if err != nil {
		s.logger.Error("Failed to reconcile slot counters", zap.Error(err))
		return
	}
	if repaired > 0 {
		s.logger.Warn("Slot counters reconciled", zap.Int("repaired", repaired))
		return
	}
	s.logger.Debug("Slot counters are consistent")
}
