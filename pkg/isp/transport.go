package isp

import "fmt"

// SPI is the bus master the session clocks ISP instructions through. Calls
// block until the bytes have been shifted.
type SPI interface {
	Configure(baudrate int) error
	Transmit(data []byte) error
	Receive(n int) ([]byte, error)
}

// Direction of a GPIO line.
type Direction uint8

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

// Level is a logic level on a GPIO line. AVR reset is active low.
type Level uint8

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == Low {
		return "0"
	}
	return "1"
}

// ResetLine is the GPIO wired to the target's RESET pin.
type ResetLine interface {
	SetDirection(d Direction) error
	SetLevel(l Level) error
}

// Port hands out SPI bus and reset line handles of a programmer by index.
type Port interface {
	SPI(bus int) (SPI, error)
	ResetLine(line int) (ResetLine, error)
}
