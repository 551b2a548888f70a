package errors

import (
	"errors"
	"fmt"
)

// Categories. Every specific error below wraps exactly one of them so callers
// can decide how to react with errors.Is on the category alone.
var (
	ErrValidation  = fmt.Errorf("validation error")
	ErrTransport   = fmt.Errorf("transport error")
	ErrProtocol    = fmt.Errorf("protocol error")
	ErrPersistence = fmt.Errorf("persistence error")
	ErrConcurrency = fmt.Errorf("concurrency error")
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrParticipantNotFound  = fmt.Errorf("%w: participant not found", ErrValidation)
	ErrParticipantExists    = fmt.Errorf("%w: participant already exists", ErrValidation)
	ErrParticipantInactive  = fmt.Errorf("%w: participant is not registered", ErrValidation)
	ErrNameMismatch         = fmt.Errorf("%w: participant name does not match", ErrValidation)
	ErrSessionMismatch      = fmt.Errorf("%w: exam session inactive or mismatched", ErrValidation)
	ErrNoActiveSession      = fmt.Errorf("%w: no active exam session", ErrValidation)
	ErrSessionNotFound      = fmt.Errorf("%w: exam session not found", ErrValidation)
	ErrInvalidPayload       = fmt.Errorf("%w: invalid payload", ErrValidation)
	ErrUnknownViolationType = fmt.Errorf("%w: unknown violation type", ErrValidation)
	ErrUnknownSeverity      = fmt.Errorf("%w: unknown severity", ErrValidation)
	ErrRequestNotFound      = fmt.Errorf("%w: permission request not found", ErrValidation)
	ErrInvalidRules         = fmt.Errorf("%w: invalid exam rules", ErrValidation)
	ErrInvalidCredentials   = fmt.Errorf("%w: invalid credentials", ErrValidation)
	ErrInvalidPassword      = fmt.Errorf("%w: password does not meet complexity requirements", ErrValidation)
	ErrOperatorExists       = fmt.Errorf("%w: operator already exists", ErrValidation)
	ErrUnauthorized         = fmt.Errorf("%w: unauthorized", ErrValidation)

	ErrUnknownMessageType   = fmt.Errorf("%w: unknown message type", ErrProtocol)
	ErrMalformedMessage     = fmt.Errorf("%w: malformed message", ErrProtocol)
	ErrUnhandledMessageType = fmt.Errorf("%w: unhandled message type", ErrProtocol)

	ErrNotConnected = fmt.Errorf("%w: not connected", ErrTransport)
	ErrSendFailed   = fmt.Errorf("%w: send failed", ErrTransport)

	ErrSessionAlreadyActive = fmt.Errorf("%w: an exam session is already active", ErrConcurrency)
	ErrRequestNotPending    = fmt.Errorf("%w: permission request is not pending", ErrConcurrency)

	ErrTokenGeneration = fmt.Errorf("token generation failed")
)

// UserError is a rejection carrying the human-readable reason shown to the
// participant. The wrapped error keeps its category.
type UserError struct {
	Err     error
	Message string
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Message)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func Reject(err error, format string, args ...any) error {
	return &UserError{Err: err, Message: fmt.Sprintf(format, args...)}
}

// UserMessage returns the rejection message attached to err, if any.
func UserMessage(err error) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message, true
	}
	return "", false
}

// Persistence wraps a storage failure into the persistence category.
// Errors already carrying a validation or concurrency category pass through.
func Persistence(op string, err error) error {
	if err == nil || errors.Is(err, ErrValidation) || errors.Is(err, ErrConcurrency) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
