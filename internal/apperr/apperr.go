package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Kind int

const (
	KindInternal Kind = iota
	KindDuplicate
	KindNotFound
	KindStorage
	KindTransformation
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindDuplicate:
		return "duplicate"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindTransformation:
		return "transformation"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Class tells the boundary whether the caller or the service is at fault.
type Class int

const (
	ClassServer Class = iota
	ClassClient
)

func (c Class) String() string {
	if c == ClassClient {
		return "client"
	}
	return "server"
}

type Error struct {
	Kind      Kind
	Class     Class
	Transient bool
	Op        string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Duplicate(op, message string) *Error {
	return &Error{Kind: KindDuplicate, Class: ClassClient, Op: op, Message: message}
}

func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Class: ClassClient, Op: op, Message: message}
}

func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Class: ClassClient, Op: op, Message: message}
}

func Transformation(op, message string, class Class, err error) *Error {
	return &Error{Kind: KindTransformation, Class: class, Op: op, Message: message, Err: err}
}

// Storage wraps a backend failure. Transient is derived from err unless the
// caller already knows better via StorageTransient.
func Storage(op, message string, err error) *Error {
	return &Error{Kind: KindStorage, Class: ClassServer, Transient: isTransientCause(err), Op: op, Message: message, Err: err}
}

func StorageTransient(op, message string, err error) *Error {
	return &Error{Kind: KindStorage, Class: ClassServer, Transient: true, Op: op, Message: message, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Transient
	}
	return false
}

func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassServer
}

// transientMarker lets drivers flag backend-specific retryable errors
// (connection resets, lock contention) without apperr importing them.
type transientMarker interface {
	Transient() bool
}

func isTransientCause(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var marker transientMarker
	if errors.As(err, &marker) {
		return marker.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

type transientError struct {
	err error
}

func (t transientError) Error() string   { return t.err.Error() }
func (t transientError) Unwrap() error   { return t.err }
func (t transientError) Transient() bool { return true }

// MarkTransient is used by drivers to tag errors the caller may retry.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}
