package catalog

import (
	"context"
	"errors"
	"fmt"

	"refboard/internal/color"
	"refboard/internal/database"
	"refboard/internal/logging"
	"refboard/internal/vectorindex"
)

// Error kinds. Every error returned by Catalog wraps one of these (when the
// failure is classifiable) inside an *OpError.
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrIndexUnavailable   = errors.New("vector index unavailable")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
)

// OpError records the operation and key that failed.
type OpError struct {
	Op   string
	Key  string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	msg := e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	switch {
	case e.Kind != nil && e.Err != nil && !errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	default:
		return msg + ": unknown error"
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// invalid builds an ErrInvalidInput failure for a check made before any
// storage access.
func invalid(op, key, format string, args ...any) error {
	return &OpError{Op: op, Key: key, Kind: ErrInvalidInput, Err: fmt.Errorf(format, args...)}
}

func notFound(op, key string) error {
	return &OpError{Op: op, Key: key, Kind: ErrNotFound}
}

// wrapErr classifies err and attaches the operation context. Storage failures
// that do not fit a kind are logged here, once, with their context.
func wrapErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}

	var kind error
	switch {
	case errors.Is(err, vectorindex.ErrDimension), errors.Is(err, color.ErrInvalidHex):
		kind = ErrInvalidInput
	case errors.Is(err, vectorindex.ErrUnavailable):
		kind = ErrIndexUnavailable
	case database.IsConstraintViolation(err):
		kind = ErrConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		logging.WithFields(map[string]any{"op": op, "key": key}).Errorf("catalog operation failed: %v", err)
	}
	return &OpError{Op: op, Key: key, Kind: kind, Err: err}
}
