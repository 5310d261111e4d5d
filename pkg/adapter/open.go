package adapter

import (
	"fmt"
	"runtime"
)

// Options selects and parameterizes a programmer for Open.
type Options struct {
	Kind InterfaceKind

	// Port is the serial device of an ArduinoISP.
	Port string
	// Baud is the serial speed of an ArduinoISP.
	Baud int

	// VendorID and ProductID pick a CMSIS-DAP probe. Zero means the first
	// known probe found.
	VendorID  uint16
	ProductID uint16

	// Sim is the target behind the simulator. Nil creates a fresh ATmega328P.
	Sim *SimTarget
}

// Open creates the programmer described by opts.
func Open(opts Options) (Adapter, error) {
	switch opts.Kind {
	case InterfaceKindSim, "":
		return NewSimAdapter(opts.Sim), nil
	case InterfaceKindUSBasp:
		a, err := NewUSBaspAdapter()
		if err != nil {
			return nil, err
		}
		return a, nil
	case InterfaceKindCMSISDAP:
		return openCMSISDAP(opts.VendorID, opts.ProductID)
	case InterfaceKindArduinoISP:
		if opts.Port == "" {
			return nil, fmt.Errorf("arduinoisp requires a serial port")
		}
		a, err := NewArduinoISPAdapter(opts.Port, opts.Baud)
		if err != nil {
			return nil, err
		}
		return a, nil
	case InterfaceKindLinux:
		if runtime.GOOS != "linux" {
			return nil, fmt.Errorf("%w: spidev on %s", ErrNotImplemented, runtime.GOOS)
		}
		a, err := NewPeriphAdapter()
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported adapter type %q", opts.Kind)
	}
}

func openCMSISDAP(vid, pid uint16) (Adapter, error) {
	if vid != 0 || pid != 0 {
		a, err := NewCMSISDAPAdapter(vid, pid)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	var lastErr error
	for _, known := range knownCMSISDAPVIDPIDs {
		a, err := NewCMSISDAPAdapter(known.VendorID, known.ProductID)
		if err == nil {
			return a, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no CMSIS-DAP probe found: %w", lastErr)
}
