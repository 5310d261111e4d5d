package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// Raspberry Pi debug probe running CMSIS-DAP firmware
	VendorIDRaspberryPi = 0x2E8A
	ProductIDCMSISDAP   = 0x000C

	// DefaultPacketSize is the CMSIS-DAP v1 report size, used until the bulk
	// endpoint reports its own.
	DefaultPacketSize = 64
	DefaultTimeout    = 5 * time.Second
)

// packetTransport exchanges one CMSIS-DAP command for one response packet.
type packetTransport interface {
	WriteRead(cmd []byte) ([]byte, error)
	Close() error
}

// USBTransport talks to the vendor-class bulk interface of a CMSIS-DAP v2
// probe.
type USBTransport struct {
	usb     *gousb.Context
	dev     *gousb.Device
	release func()

	out *gousb.OutEndpoint
	in  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
}

// NewUSBTransport opens the probe with the given VID/PID and claims its
// CMSIS-DAP interface.
func NewUSBTransport(vid, pid uint16) (*USBTransport, error) {
	usb := gousb.NewContext()
	dev, err := usb.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	switch {
	case err != nil:
		usb.Close()
		return nil, fmt.Errorf("USB error: %w", err)
	case dev == nil:
		usb.Close()
		return nil, fmt.Errorf("probe %04X:%04X not found", vid, pid)
	}
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{usb: usb, dev: dev, packetSize: DefaultPacketSize, timeout: DefaultTimeout}
	if err := t.open(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *USBTransport) open() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("select configuration: %w", err)
	}

	num := vendorInterface(cfg.Desc)
	intf, err := cfg.Interface(num, 0)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("claim interface %d: %w", num, err)
	}
	t.release = func() {
		intf.Close()
		cfg.Close()
	}

	outDesc, inDesc, err := bulkPair(intf.Setting)
	if err != nil {
		return err
	}
	if t.out, err = intf.OutEndpoint(outDesc.Number); err != nil {
		return fmt.Errorf("open OUT endpoint: %w", err)
	}
	if t.in, err = intf.InEndpoint(inDesc.Number); err != nil {
		return fmt.Errorf("open IN endpoint: %w", err)
	}
	t.packetSize = inDesc.MaxPacketSize
	return nil
}

// vendorInterface returns the first vendor-specific interface, where v2
// probes expose CMSIS-DAP, or 0.
func vendorInterface(desc gousb.ConfigDesc) int {
	for _, intf := range desc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			return intf.Number
		}
	}
	return 0
}

// bulkPair picks the first bulk OUT and IN endpoints of a setting.
func bulkPair(setting gousb.InterfaceSetting) (out, in gousb.EndpointDesc, err error) {
	var haveOut, haveIn bool
	for _, ep := range setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionOut && !haveOut {
			out, haveOut = ep, true
		}
		if ep.Direction == gousb.EndpointDirectionIn && !haveIn {
			in, haveIn = ep, true
		}
	}
	if !haveOut || !haveIn {
		return out, in, errors.New("CMSIS-DAP interface has no bulk endpoint pair")
	}
	return out, in, nil
}

// WriteRead sends one command, padded to the packet size, and waits for the
// response.
func (t *USBTransport) WriteRead(cmd []byte) ([]byte, error) {
	packet := make([]byte, t.packetSize)
	copy(packet, cmd)
	if _, err := t.out.Write(packet); err != nil {
		return nil, fmt.Errorf("USB write failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	n, err := t.in.ReadContext(ctx, packet)
	if err != nil {
		return nil, fmt.Errorf("USB read failed: %w", err)
	}
	return packet[:n], nil
}

// Close releases the interface, the device and the libusb context. It is
// safe to call more than once.
func (t *USBTransport) Close() error {
	if t.release != nil {
		t.release()
		t.release = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.usb != nil {
		t.usb.Close()
		t.usb = nil
	}
	return nil
}
