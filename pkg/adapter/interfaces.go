package adapter

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/gousb"
)

// InterfaceKind categorizes programmer families.
type InterfaceKind string

const (
	InterfaceKindSim        InterfaceKind = "simulator"
	InterfaceKindUSBasp     InterfaceKind = "usbasp"
	InterfaceKindCMSISDAP   InterfaceKind = "cmsis-dap"
	InterfaceKindArduinoISP InterfaceKind = "arduinoisp"
	InterfaceKindLinux      InterfaceKind = "linux"
	InterfaceKindUnknown    InterfaceKind = "unknown"
)

// Kinds lists the selectable programmer families.
var Kinds = []InterfaceKind{
	InterfaceKindSim,
	InterfaceKindUSBasp,
	InterfaceKindCMSISDAP,
	InterfaceKindArduinoISP,
	InterfaceKindLinux,
}

// ParseKind accepts a kind name and a few common aliases.
func ParseKind(s string) (InterfaceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sim", "simulator":
		return InterfaceKindSim, nil
	case "usbasp":
		return InterfaceKindUSBasp, nil
	case "cmsis-dap", "cmsisdap", "dap":
		return InterfaceKindCMSISDAP, nil
	case "arduinoisp", "arduino", "stk500v1":
		return InterfaceKindArduinoISP, nil
	case "linux", "spidev", "periph":
		return InterfaceKindLinux, nil
	}
	return InterfaceKindUnknown, fmt.Errorf("unknown adapter type %q", s)
}

// InterfaceInfo describes a detected programmer.
type InterfaceInfo struct {
	Kind        InterfaceKind `json:"kind"`
	Description string        `json:"description"`
	VendorID    uint16        `json:"vendor_id,omitempty"`
	ProductID   uint16        `json:"product_id,omitempty"`
	Serial      string        `json:"serial,omitempty"`
	Path        string        `json:"path,omitempty"`
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	if i.Description != "" {
		return i.Description
	}
	if i.Path != "" {
		return fmt.Sprintf("%s (%s)", string(i.Kind), i.Path)
	}
	if i.Kind != "" {
		return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
	}
	return fmt.Sprintf("Interface %04X:%04X", i.VendorID, i.ProductID)
}

// serialGlobs and spidevGlob locate candidate ArduinoISP boards and Linux SPI
// controllers. Overridden in tests.
var (
	serialGlobs = []string{"/dev/ttyACM*", "/dev/ttyUSB*", "/dev/cu.usbmodem*", "/dev/cu.usbserial*"}
	spidevGlob  = "/dev/spidev*"
)

// DiscoverInterfaces enumerates connected USB programmers matching known
// VID/PID pairs, serial ports that may carry an ArduinoISP, and Linux spidev
// nodes. It always returns the simulator entry so the tool can be exercised
// without hardware.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	var results []InterfaceInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, discoverPaths(InterfaceKindArduinoISP, "Serial port (ArduinoISP)", serialGlobs...)...)
	results = append(results, discoverPaths(InterfaceKindLinux, "Linux spidev", spidevGlob)...)

	results = append(results, InterfaceInfo{
		Kind:        InterfaceKindSim,
		Description: "Simulator (no hardware)",
	})

	return results, ctx.Err()
}

func discoverPaths(kind InterfaceKind, what string, globs ...string) []InterfaceInfo {
	var paths []string
	for _, g := range globs {
		matches, _ := filepath.Glob(g)
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	out := make([]InterfaceInfo, 0, len(paths))
	for _, p := range paths {
		out = append(out, InterfaceInfo{
			Kind:        kind,
			Description: fmt.Sprintf("%s %s", what, p),
			Path:        p,
		})
	}
	return out
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (InterfaceInfo, bool) {
	for _, known := range knownUSBaspVIDPIDs {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return known.info(InterfaceKindUSBasp), true
		}
	}
	for _, known := range knownCMSISDAPVIDPIDs {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return known.info(InterfaceKindCMSISDAP), true
		}
	}
	return InterfaceInfo{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

func (k knownUSBDevice) info(kind InterfaceKind) InterfaceInfo {
	return InterfaceInfo{
		Kind:        kind,
		Description: k.Description,
		VendorID:    k.VendorID,
		ProductID:   k.ProductID,
	}
}

var knownUSBaspVIDPIDs = []knownUSBDevice{
	{VendorID: VendorIDUSBasp, ProductID: ProductIDUSBasp, Description: "USBasp"},
}

var knownCMSISDAPVIDPIDs = []knownUSBDevice{
	{VendorID: VendorIDRaspberryPi, ProductID: ProductIDCMSISDAP, Description: "Raspberry Pi CMSIS-DAP"},
	{VendorID: 0x0d28, ProductID: 0x0204, Description: "DAPLink CMSIS-DAP"},
	{VendorID: 0x1366, ProductID: 0x0101, Description: "SEGGER J-Link CMSIS-DAP"},
}
