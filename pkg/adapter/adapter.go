package adapter

import (
	"errors"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

// Info describes capabilities reported by a programmer implementation.
type Info struct {
	Name         string
	Vendor       string
	Model        string
	SerialNumber string
	Firmware     string
	MinFrequency int // Hertz
	MaxFrequency int // Hertz
	Buses        int
	ResetLines   int
	Notes        string
}

// Adapter abstracts a physical or virtual ISP programmer. It hands out the
// SPI bus and reset line handles a session drives.
type Adapter interface {
	isp.Port
	Info() (Info, error)
	Close() error
}

// ErrNotImplemented means the programmer family is not available on this
// platform.
var ErrNotImplemented = errors.New("adapter: not implemented")

// ErrNoSuchBus is returned for bus or reset-line indexes the programmer does
// not have.
var ErrNoSuchBus = errors.New("adapter: no such bus or line")
