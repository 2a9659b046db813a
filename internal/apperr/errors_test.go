package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := New(CodeSlotFull, "slot is already fully booked")
	wrapped := fmt.Errorf("book appointment: %w", err)

	assert.ErrorIs(t, wrapped, ErrSlotFull)
	assert.NotErrorIs(t, wrapped, ErrSlotUnavailable)
	assert.Equal(t, CodeSlotFull, CodeOf(wrapped))
	assert.Equal(t, "slot is already fully booked", MessageOf(wrapped))
}

func TestStore(t *testing.T) {
	assert.NoError(t, Store("noop", nil))

	raw := errors.New("connection refused")
	err := Store("get slot", raw)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, raw)
	assert.Equal(t, "internal error", MessageOf(err))

	coded := New(CodeNotFound, "slot not found")
	assert.Same(t, coded, Store("get slot", coded))
}

func TestCodeOf_Uncoded(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeStore, CodeOf(errors.New("boom")))
}
