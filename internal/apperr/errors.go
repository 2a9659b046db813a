// Package apperr содержит бизнес-ошибки сервиса с кодами.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidInput      Code = "invalid_input"
	CodeInvalidTime       Code = "invalid_time"
	CodeDuplicateSlot     Code = "duplicate_slot"
	CodeSlotUnavailable   Code = "slot_unavailable"
	CodeSlotFull          Code = "slot_full"
	CodeNotFound          Code = "not_found"
	CodeInvalidState      Code = "invalid_state"
	CodeInvalidTransition Code = "invalid_transition"
	CodeHasBookings       Code = "has_bookings"
	CodeConflict          Code = "conflict"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodePendingApproval   Code = "pending_approval"
	CodeStore             Code = "store_error"
)

// Error ошибка с кодом, который понимают вызывающие слои
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает ошибки по коду, так работает errors.Is(err, apperr.ErrSlotFull)
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidInput      = &Error{Code: CodeInvalidInput}
	ErrInvalidTime       = &Error{Code: CodeInvalidTime}
	ErrDuplicateSlot     = &Error{Code: CodeDuplicateSlot}
	ErrSlotUnavailable   = &Error{Code: CodeSlotUnavailable}
	ErrSlotFull          = &Error{Code: CodeSlotFull}
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrInvalidState      = &Error{Code: CodeInvalidState}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition}
	ErrHasBookings       = &Error{Code: CodeHasBookings}
	ErrConflict          = &Error{Code: CodeConflict}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized}
	ErrForbidden         = &Error{Code: CodeForbidden}
	ErrPendingApproval   = &Error{Code: CodePendingApproval}
	ErrStore             = &Error{Code: CodeStore}
)

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Store оборачивает ошибку хранилища или провайдера авторизации.
// Уже кодированные ошибки возвращаются как есть.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: CodeStore, Message: op, Err: err}
}

// CodeOf возвращает код ошибки; некодированные ошибки считаются ошибками хранилища
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStore
}

// MessageOf возвращает текст для клиента без внутренних деталей
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code == CodeStore {
			return "internal error"
		}
		if e.Message != "" {
			return e.Message
		}
		return string(e.Code)
	}
	return "internal error"
}
