// Package device holds the capability abstraction for the physical hardware
// on the mailbox: the contact sensor, the camera and the light.  The core
// only ever sees the Device interface and a typed error; which concrete
// hardware (or simulator) sits behind it is wiring in main.
package device

import (
	"fmt"

	"github.com/modkit/mailhub/internal/mailbox/model"
)

// Device is the capability contract consumed by the watchdog and the
// PollDevice handler.
type Device interface {
	Name() string
	Type() model.DeviceType
	// Connected reports whether the device is reachable.
	Connected() error
	// Poll reads the device and returns a typed data bundle.
	Poll() (*model.Bundle, error)
	// IsActive reports whether the device is in its active state, e.g. the
	// contact sensor reading open.
	IsActive() (bool, error)
	// OnActivate runs when the device enters its active state.
	OnActivate() error
}

// ErrorKind classifies device failures.  The core treats every kind the
// same way (wrap as an error event, or log and continue); the kind exists
// for logs and tests, not for branching.
type ErrorKind string

const (
	ErrNoConnection       ErrorKind = "no connection"
	ErrCommunicationError ErrorKind = "communication error"
	ErrDeviceNotFound     ErrorKind = "device not found"
	ErrGpio               ErrorKind = "gpio error"
	ErrImage              ErrorKind = "image error"
	ErrIo                 ErrorKind = "io error"
)

// Error is the one error type every device operation returns.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}
