package printer

import (
	"errors"
	"fmt"
)

// Kind classifies manager failures
type Kind int

const (
	KindTransport Kind = iota
	KindPermissionDenied
	KindRadioUnavailable
	KindNoPairedDevices
	KindConnectionFailed
	KindNotConnected
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindRadioUnavailable:
		return "radio unavailable"
	case KindNoPairedDevices:
		return "no paired devices"
	case KindConnectionFailed:
		return "connection failed"
	case KindNotConnected:
		return "not connected"
	default:
		return "transport error"
	}
}

// Sentinel errors, one per kind. An *Error matches its kind's sentinel
// through errors.Is.
var (
	ErrPermissionDenied = errors.New("bluetooth permissions not granted")
	ErrRadioUnavailable = errors.New("bluetooth radio unavailable")
	ErrNoPairedDevices  = errors.New("no paired devices found")
	ErrConnectionFailed = errors.New("failed to connect to printer")
	ErrNotConnected     = errors.New("no printer connected")
	ErrTransport        = errors.New("printer transport error")
)

// Error is returned by Manager operations
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.sentinel(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindRadioUnavailable:
		return ErrRadioUnavailable
	case KindNoPairedDevices:
		return ErrNoPairedDevices
	case KindConnectionFailed:
		return ErrConnectionFailed
	case KindNotConnected:
		return ErrNotConnected
	default:
		return ErrTransport
	}
}

// KindOf returns the kind of err, or KindTransport when err carries none
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransport
}
