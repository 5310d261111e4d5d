package isp

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

// DefaultBaudRate is the SPI clock used when none is configured (1 MHz).
const DefaultBaudRate = 1_000_000

// MaxBaudRate is the practical ceiling of ISP clocks. It is documented, not
// enforced: the target's own clock decides what is safe.
const MaxBaudRate = 50_000_000

// Mode selects what a Programmer does with the supported groups.
type Mode uint8

const (
	// ModeRead reads and decodes every supported group.
	ModeRead Mode = iota
	// ModeWrite writes the groups that carry a value and leaves the others
	// unchanged.
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Target addresses the AVR being programmed.
type Target struct {
	Bus       int
	ResetLine int
	BaudRate  int
}

// Config is the immutable request handed to a Programmer.
type Config struct {
	Bus       int
	ResetLine int
	BaudRate  int
	Mode      Mode
	Writes    []fuse.WriteRequest
	// Verify reads written groups back after a fresh programming-enable.
	Verify bool
}

// Target returns the addressing part of the configuration.
func (c Config) Target() Target {
	return Target{Bus: c.Bus, ResetLine: c.ResetLine, BaudRate: c.BaudRate}
}

// Value returns the value requested for g, if any.
func (c Config) Value(g fuse.Group) (uint8, bool) {
	for _, w := range c.Writes {
		if w.Group == g && w.Present {
			return w.Value, true
		}
	}
	return 0, false
}

// Request returns the write request for g, or an omitted request.
func (c Config) Request(g fuse.Group) fuse.WriteRequest {
	if v, ok := c.Value(g); ok {
		return fuse.Set(g, v)
	}
	return fuse.Omit(g)
}

// Validate checks addressing and that each group is requested at most once.
func (c Config) Validate() error {
	if c.Bus < 0 {
		return fmt.Errorf("isp: invalid bus %d", c.Bus)
	}
	if c.ResetLine < 0 {
		return fmt.Errorf("isp: invalid reset line %d", c.ResetLine)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("isp: invalid baud rate %d", c.BaudRate)
	}

	seen := make(map[fuse.Group]bool)
	for _, w := range c.Writes {
		if fuse.ReadCommand(w.Group) == nil {
			return fmt.Errorf("isp: invalid group %s", w.Group)
		}
		if seen[w.Group] {
			return fmt.Errorf("isp: %s requested more than once", w.Group.Label())
		}
		seen[w.Group] = true
		if w.Present && c.Mode == ModeRead {
			return fmt.Errorf("isp: %s value given in read mode", w.Group.Label())
		}
	}
	return nil
}
