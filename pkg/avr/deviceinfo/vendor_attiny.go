package deviceinfo

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

// tinyAVR device entries
func init() {
	const family = "tinyAVR"

	x5Fuses := map[fuse.Group][]fuse.BitField{
		fuse.GroupLow: megaLowFuse,
		fuse.GroupHigh: {
			bit("RSTDISBL", "External reset disable", 0x80),
			bit("DWEN", "debugWIRE enable", 0x40),
			bit("SPIEN", "Serial programming enable", 0x20),
			bit("WDTON", "Watchdog always on", 0x10),
			bit("EESAVE", "Preserve EEPROM through chip erase", 0x08),
			bit("BODLEVEL", "Brown-out detector trigger level", 0x07),
		},
		fuse.GroupExtended: {
			bit("SELFPRGEN", "Self-programming enable", 0x01),
		},
		fuse.GroupLock: {
			bit("LB", "Memory lock", 0x03),
		},
	}

	for _, d := range []struct {
		name string
		sig  avr.Signature
		kib  int
	}{
		{"ATtiny25", avr.Signature{0x1E, 0x91, 0x08}, 2},
		{"ATtiny45", avr.Signature{0x1E, 0x92, 0x06}, 4},
		{"ATtiny85", avr.Signature{0x1E, 0x93, 0x0B}, 8},
	} {
		register(DeviceInfo{
			Name:        d.name,
			Family:      family,
			Description: describeFlash(d.kib),
			Signature:   d.sig,
			Fuses:       x5Fuses,
		})
	}

	// ATtiny13A packs SPIEN into the low fuse and has no extended fuse.
	register(DeviceInfo{
		Name:        "ATtiny13A",
		Family:      family,
		Description: describeFlash(1),
		Signature:   avr.Signature{0x1E, 0x90, 0x07},
		Fuses: map[fuse.Group][]fuse.BitField{
			fuse.GroupLow: {
				bit("SPIEN", "Serial programming enable", 0x80),
				bit("EESAVE", "Preserve EEPROM through chip erase", 0x40),
				bit("WDTON", "Watchdog always on", 0x20),
				bit("CKDIV8", "Divide clock by 8", 0x10),
				bit("SUT", "Start-up time", 0x0C),
				bit("CKSEL", "Clock source", 0x03),
			},
			fuse.GroupHigh: {
				bit("SELFPRGEN", "Self-programming enable", 0x10),
				bit("DWEN", "debugWIRE enable", 0x08),
				bit("BODLEVEL", "Brown-out detector trigger level", 0x06),
				bit("RSTDISBL", "External reset disable", 0x01),
			},
			fuse.GroupLock: {
				bit("LB", "Memory lock", 0x03),
			},
		},
	})
}

func describeFlash(kib int) string {
	return fmt.Sprintf("8-bit AVR, %d KiB flash", kib)
}
