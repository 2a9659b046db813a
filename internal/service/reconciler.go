package service

import (
	"context"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/metrics"
	"go.uber.org/zap"
)

// Reconciler сверяет счётчики открытых слотов с записями, которые держат место
type Reconciler struct {
	slots        SlotStore
	appointments AppointmentStore
	logger       *zap.Logger
}

func NewReconciler(slots SlotStore, appointments AppointmentStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{slots: slots, appointments: appointments, logger: logger}
}

// Repair исправляет расхождения и возвращает число исправленных слотов.
// Статус пересчитывается только у слотов, где изменился счётчик.
func (r *Reconciler) Repair(ctx context.Context) (int, error) {
	open, err := r.slots.ListOpen(ctx)
	if err != nil {
		return 0, apperr.Store("list open slots", err)
	}
	seats, err := r.appointments.CountSeatsBySlot(ctx)
	if err != nil {
		return 0, apperr.Store("count seats", err)
	}

	repaired := 0
	for _, slot := range open {
		actual := seats[slot.ID]
		if actual > slot.MaxStudents {
			actual = slot.MaxStudents
		}
		if actual == slot.CurrentBookings {
			continue
		}

		expected := slot.Counters()
		slot.CurrentBookings = actual
		slot.Recompute()

		ok, err := r.slots.SwapCounters(ctx, slot.ID, expected, slot.Counters())
		if err != nil {
			return repaired, apperr.Store("repair slot", err)
		}
		if !ok {
			// слот изменился параллельно, сверим на следующем проходе
			continue
		}

		repaired++
		r.logger.Warn("Slot counter repaired",
			zap.Int64("slot_id", slot.ID),
			zap.Int("was", expected.CurrentBookings),
			zap.Int("now", actual),
			zap.String("status", string(slot.Status)),
		)
	}

	if repaired > 0 {
		metrics.AddSlotRepairs(repaired)
	}
	return repaired, nil
}
