package deviceinfo

import (
	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

// Every AVR fuse and lock field is programmed by writing 0.
func bit(name, desc string, mask uint8) fuse.BitField {
	return fuse.BitField{Name: name, Description: desc, Mask: mask, ActiveLow: true}
}

var (
	megaLowFuse = []fuse.BitField{
		bit("CKDIV8", "Divide clock by 8", 0x80),
		bit("CKOUT", "Clock output on CLKO", 0x40),
		bit("SUT", "Start-up time", 0x30),
		bit("CKSEL", "Clock source", 0x0F),
	}

	megaLockBits = []fuse.BitField{
		bit("BLB1", "Boot loader section protection", 0x30),
		bit("BLB0", "Application section protection", 0x0C),
		bit("LB", "Memory lock", 0x03),
	}
)

// megaAVR device entries
func init() {
	const family = "megaAVR"

	m328High := []fuse.BitField{
		bit("RSTDISBL", "External reset disable", 0x80),
		bit("DWEN", "debugWIRE enable", 0x40),
		bit("SPIEN", "Serial programming enable", 0x20),
		bit("WDTON", "Watchdog always on", 0x10),
		bit("EESAVE", "Preserve EEPROM through chip erase", 0x08),
		bit("BOOTSZ", "Boot section size", 0x06),
		bit("BOOTRST", "Reset into boot section", 0x01),
	}
	bodExtended := []fuse.BitField{
		bit("BODLEVEL", "Brown-out detector trigger level", 0x07),
	}

	register(DeviceInfo{
		Name:        "ATmega328P",
		Family:      family,
		Description: "8-bit AVR, 32 KiB flash, picoPower",
		Signature:   avr.Signature{0x1E, 0x95, 0x0F},
		Fuses: map[fuse.Group][]fuse.BitField{
			fuse.GroupLow:      megaLowFuse,
			fuse.GroupHigh:     m328High,
			fuse.GroupExtended: bodExtended,
			fuse.GroupLock:     megaLockBits,
		},
		DatasheetURL: "https://ww1.microchip.com/downloads/en/DeviceDoc/Atmel-7810-Automotive-Microcontrollers-ATmega328P_Datasheet.pdf",
	})

	register(DeviceInfo{
		Name:        "ATmega328",
		Family:      family,
		Description: "8-bit AVR, 32 KiB flash",
		Signature:   avr.Signature{0x1E, 0x95, 0x14},
		Fuses: map[fuse.Group][]fuse.BitField{
			fuse.GroupLow:      megaLowFuse,
			fuse.GroupHigh:     m328High,
			fuse.GroupExtended: bodExtended,
			fuse.GroupLock:     megaLockBits,
		},
	})

	register(DeviceInfo{
		Name:        "ATmega168A",
		Family:      family,
		Description: "8-bit AVR, 16 KiB flash",
		Signature:   avr.Signature{0x1E, 0x94, 0x06},
		Fuses: map[fuse.Group][]fuse.BitField{
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
				bit("BOOTSZ", "Boot section size", 0x06),
				bit("BOOTRST", "Reset into boot section", 0x01),
			},
			fuse.GroupLock: megaLockBits,
		},
	})

	// ATmega8A predates CKDIV8 and the extended fuse.
	register(DeviceInfo{
		Name:        "ATmega8A",
		Family:      family,
		Description: "8-bit AVR, 8 KiB flash",
		Signature:   avr.Signature{0x1E, 0x93, 0x07},
		Fuses: map[fuse.Group][]fuse.BitField{
			fuse.GroupLow: {
				bit("BODLEVEL", "Brown-out detector trigger level", 0x80),
				bit("BODEN", "Brown-out detector enable", 0x40),
				bit("SUT", "Start-up time", 0x30),
				bit("CKSEL", "Clock source", 0x0F),
			},
			fuse.GroupHigh: {
				bit("RSTDISBL", "External reset disable", 0x80),
				bit("WDTON", "Watchdog always on", 0x40),
				bit("SPIEN", "Serial programming enable", 0x20),
				bit("CKOPT", "Oscillator options", 0x10),
				bit("EESAVE", "Preserve EEPROM through chip erase", 0x08),
				bit("BOOTSZ", "Boot section size", 0x06),
				bit("BOOTRST", "Reset into boot section", 0x01),
			},
			fuse.GroupLock: megaLockBits,
		},
	})

	jtagHigh := []fuse.BitField{
		bit("OCDEN", "On-chip debug enable", 0x80),
		bit("JTAGEN", "JTAG interface enable", 0x40),
		bit("SPIEN", "Serial programming enable", 0x20),
		bit("WDTON", "Watchdog always on", 0x10),
		bit("EESAVE", "Preserve EEPROM through chip erase", 0x08),
		bit("BOOTSZ", "Boot section size", 0x06),
		bit("BOOTRST", "Reset into boot section", 0x01),
	}

	register(DeviceInfo{
		Name:        "ATmega32U4",
		Family:      family,
		Description: "8-bit AVR with USB device, 32 KiB flash",
		Signature:   avr.Signature{0x1E, 0x95, 0x87},
		Fuses: map[fuse.Group][]fuse.BitField{
			fuse.GroupLow:  megaLowFuse,
			fuse.GroupHigh: jtagHigh,
			fuse.GroupExtended: {
				bit("HWBE", "Hardware boot enable", 0x08),
				bit("BODLEVEL", "Brown-out detector trigger level", 0x07),
			},
			fuse.GroupLock: megaLockBits,
		},
	})

	register(DeviceInfo{
		Name:        "ATmega2560",
		Family:      family,
		Description: "8-bit AVR, 256 KiB flash",
		Signature:   avr.Signature{0x1E, 0x98, 0x01},
		Fuses: map[fuse.Group][]fuse.BitField{
			fuse.GroupLow:      megaLowFuse,
			fuse.GroupHigh:     jtagHigh,
			fuse.GroupExtended: bodExtended,
			fuse.GroupLock:     megaLockBits,
		},
	})
}
