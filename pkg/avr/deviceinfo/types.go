package deviceinfo

import (
	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

// DeviceInfo describes one AVR part and its configuration bytes.
type DeviceInfo struct {
	Name        string        // "ATmega328P"
	Family      string        // "megaAVR"
	Description string        // "8-bit AVR, 32 KiB flash"
	Signature   avr.Signature // 1E 95 0F

	// Fuses holds the documented fields of every byte the part has. A
	// missing group means the part has no such byte.
	Fuses map[fuse.Group][]fuse.BitField

	DatasheetURL string
}

// Layout builds the decode layout for the part.
func (d DeviceInfo) Layout() (*fuse.Layout, error) {
	return fuse.NewLayout(d.Fuses)
}
