package core

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/ovdsync/internal/ovd"
)

// ErrorKind classifies operation-level failures. The web layer maps each
// kind to an HTTP status and the envelope's code.
type ErrorKind string

const (
	KindFormat        ErrorKind = "FORMAT_ERROR"
	KindValidation    ErrorKind = "VALIDATION_ERROR"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindConnectivity  ErrorKind = "CONNECTIVITY_ERROR"
	KindConfiguration ErrorKind = "CONFIGURATION_ERROR"
	KindInternal      ErrorKind = "INTERNAL_ERROR"
)

// ErrRowRejected marks a ledger insert the database refused for one record.
// The import records it against the row and keeps going.
var ErrRowRejected = errors.New("row rejected by database")

// Error is an operation failure with a kind.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError returns an Error without an underlying cause.
func NewError(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to err. A nil err stays nil.
func WrapError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of err. Errors without one are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var fe *ovd.FormatError
	if errors.As(err, &fe) {
		return KindFormat
	}
	var fieldErr *ovd.FieldError
	if errors.As(err, &fieldErr) {
		return KindValidation
	}
	return KindInternal
}

// IsKind reports whether err is of kind k.
func IsKind(err error, k ErrorKind) bool {
	return KindOf(err) == k
}

// storageError wraps a persistence failure as connectivity unless it
// already carries a kind.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return WrapError(KindConnectivity, op, err)
}
