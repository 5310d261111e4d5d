package isp

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

var (
	// ErrDeviceNotFound means identification returned no device. Nothing is
	// sent to the target.
	ErrDeviceNotFound = errors.New("isp: device not found")

	// ErrUnsupportedGroup means the device has no such configuration byte.
	// Callers treat it as a skip.
	ErrUnsupportedGroup = errors.New("isp: group not supported by device")

	// ErrValueOmitted means a write request carried no value. Callers treat
	// it as a skip.
	ErrValueOmitted = errors.New("isp: no value supplied")

	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("isp: transport failure")

	// ErrInvalidValue is the same sentinel as fuse.ErrInvalidValue.
	ErrInvalidValue = fuse.ErrInvalidValue

	// ErrInvalidState means an operation was issued out of sequence, e.g. a
	// read before the programming-enable handshake.
	ErrInvalidState = errors.New("isp: invalid session state")

	// ErrVerifyMismatch is matched by every *VerifyError.
	ErrVerifyMismatch = errors.New("isp: verification mismatch")
)

// OpError records which protocol operation failed and on which group.
type OpError struct {
	Op    string // enable, read, write, exit, identify, verify
	Group string // empty when the operation is not tied to a group
	Err   error
}

func (e *OpError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("isp: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("isp: %s %s: %v", e.Op, e.Group, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failed SPI or reset-line call.
type TransportError struct {
	Call string // e.g. "spi.Transmit", "reset.SetLevel"
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Call, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTransport) match.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// VerifyError reports a configuration byte that reads back differently from
// what was written.
type VerifyError struct {
	Group fuse.Group
	Want  uint8
	Got   uint8
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s verification failed: wrote 0x%02X, read back 0x%02X", e.Group.Label(), e.Want, e.Got)
}

// Is lets errors.Is(err, ErrVerifyMismatch) match.
func (e *VerifyError) Is(target error) bool {
	return target == ErrVerifyMismatch
}

// IsSkip reports whether err only means "nothing to do for this group".
func IsSkip(err error) bool {
	return errors.Is(err, ErrUnsupportedGroup) || errors.Is(err, ErrValueOmitted)
}
