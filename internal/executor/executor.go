package executor

import (
	"context"
	"errors"
	"fmt"

	"ReloadPilot/internal/model"
)

// ErrAmountTooSmall is returned for amounts below model.MinAmount. Amounts are never clamped.
var ErrAmountTooSmall = fmt.Errorf("amount must be >= %.2f", model.MinAmount)

// ErrSessionClosed is returned when reloading through a closed session.
var ErrSessionClosed = errors.New("session closed")

// Result is the outcome of one reload.
//
// Fatal marks a broken session (e.g. rejected credentials): the caller must stop using
// the session. A failed, non-fatal result may be retried within the same session.
type Result struct {
	OK    bool
	Fatal bool
	Err   error
}

// Success is a successful Result.
func Success() Result { return Result{OK: true} }

// Failure is a retryable failed Result.
func Failure(err error) Result { return Result{Err: err} }

// FatalFailure is a failed Result that invalidates the session.
func FatalFailure(err error) Result { return Result{Fatal: true, Err: err} }

// Session is an authenticated connection to a reload backend. It is owned by a single
// account run and must be closed on every exit path.
type Session interface {
	Reload(ctx context.Context, amount float64) Result
	Close() error
}

// Executor opens sessions against a reload backend.
type Executor interface {
	Open(ctx context.Context, creds model.Credentials) (Session, error)
	Name() string
}

// CheckAmount rejects amounts below the backend minimum.
func CheckAmount(amount float64) error {
	if amount < model.MinAmount {
		return fmt.Errorf("%w: got %.2f", ErrAmountTooSmall, amount)
	}
	return nil
}
