package adapter

import (
	"fmt"
	"sync"

	"github.com/google/gousb"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

const (
	// USBasp (V-USB shared VID/PID)
	VendorIDUSBasp  = 0x16C0
	ProductIDUSBasp = 0x05DC
)

// USBasp vendor requests
const (
	usbaspFuncConnect    = 1
	usbaspFuncDisconnect = 2
	usbaspFuncTransmit   = 3
	usbaspFuncSetISPSCK  = 10
)

const usbaspRequestType = uint8(gousb.ControlIn | gousb.ControlVendor | gousb.ControlDevice)

// usbaspClocks maps SETISPSCK option codes to SCK frequencies, fastest first.
var usbaspClocks = []struct {
	option byte
	hz     int
}{
	{12, 1_500_000},
	{11, 750_000},
	{10, 375_000},
	{9, 187_500},
	{8, 93_750},
	{7, 32_000},
	{6, 16_000},
	{5, 8_000},
	{4, 4_000},
	{3, 2_000},
	{2, 1_000},
	{1, 500},
}

// controlDevice is the part of *gousb.Device the USBasp driver needs.
type controlDevice interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
}

// USBaspAdapter talks to USBasp firmware through vendor control requests.
// The firmware only exchanges whole 4-byte instructions, so SPI traffic is
// framed. Asserting reset connects the programmer; releasing it disconnects.
type USBaspAdapter struct {
	dev    controlDevice
	closer func()

	info      Info
	frames    *framer
	clockHz   int
	connected bool

	mu sync.Mutex
}

// NewUSBaspAdapter opens the first USBasp on the bus.
func NewUSBaspAdapter() (*USBaspAdapter, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(VendorIDUSBasp, ProductIDUSBasp)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("USB error: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("device not found (VID:0x%04X PID:0x%04X)", VendorIDUSBasp, ProductIDUSBasp)
	}

	manufacturer, _ := dev.Manufacturer()
	product, _ := dev.Product()
	serial, _ := dev.SerialNumber()

	a := newUSBaspAdapter(dev, func() {
		dev.Close()
		ctx.Close()
	})
	a.info.Vendor = manufacturer
	a.info.Model = product
	a.info.SerialNumber = serial
	a.info.Firmware = dev.Desc.Device.String()
	return a, nil
}

func newUSBaspAdapter(dev controlDevice, closer func()) *USBaspAdapter {
	a := &USBaspAdapter{
		dev:    dev,
		closer: closer,
		info: Info{
			Name:         "USBasp",
			MinFrequency: 500,
			MaxFrequency: 1_500_000,
			Buses:        1,
			ResetLines:   1,
		},
	}
	a.frames = newFramer(a.exchange)
	return a
}

// Info returns adapter capabilities
func (a *USBaspAdapter) Info() (Info, error) {
	return a.info, nil
}

func (a *USBaspAdapter) SPI(bus int) (isp.SPI, error) {
	if bus != 0 {
		return nil, fmt.Errorf("%w: spi bus %d", ErrNoSuchBus, bus)
	}
	return a, nil
}

func (a *USBaspAdapter) ResetLine(line int) (isp.ResetLine, error) {
	if line != 0 {
		return nil, fmt.Errorf("%w: reset line %d", ErrNoSuchBus, line)
	}
	return a, nil
}

// Configure selects the fastest firmware clock not above baudRate.
func (a *USBaspAdapter) Configure(baudRate int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	option, hz := usbaspClock(baudRate)
	status := make([]byte, 4)
	if _, err := a.dev.Control(usbaspRequestType, usbaspFuncSetISPSCK, uint16(option), 0, status); err != nil {
		return fmt.Errorf("set clock failed: %w", err)
	}
	if status[0] != 0 {
		return fmt.Errorf("set clock failed: status 0x%02X", status[0])
	}
	a.clockHz = hz
	return nil
}

// Clock returns the SCK frequency selected by the last Configure.
func (a *USBaspAdapter) Clock() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clockHz
}

func usbaspClock(baudRate int) (byte, int) {
	for _, c := range usbaspClocks {
		if c.hz <= baudRate {
			return c.option, c.hz
		}
	}
	last := usbaspClocks[len(usbaspClocks)-1]
	return last.option, last.hz
}

func (a *USBaspAdapter) Transmit(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames.transmit(data)
}

func (a *USBaspAdapter) Receive(n int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames.receive(n)
}

func (a *USBaspAdapter) exchange(frame [FrameLen]byte) ([FrameLen]byte, error) {
	var resp [FrameLen]byte
	val := uint16(frame[1])<<8 | uint16(frame[0])
	idx := uint16(frame[3])<<8 | uint16(frame[2])
	n, err := a.dev.Control(usbaspRequestType, usbaspFuncTransmit, val, idx, resp[:])
	if err != nil {
		return resp, fmt.Errorf("transmit failed: %w", err)
	}
	if n != FrameLen {
		return resp, fmt.Errorf("transmit failed: got %d bytes, want %d", n, FrameLen)
	}
	return resp, nil
}

// SetDirection is a no-op for Output; Input releases the target.
func (a *USBaspAdapter) SetDirection(d isp.Direction) error {
	if d == isp.Input {
		return a.SetLevel(isp.High)
	}
	return nil
}

// SetLevel connects the programmer (reset low) or disconnects it (reset
// released).
func (a *USBaspAdapter) SetLevel(l isp.Level) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if l == isp.High {
		a.frames.reset()
		if !a.connected {
			return nil
		}
		if _, err := a.dev.Control(usbaspRequestType, usbaspFuncDisconnect, 0, 0, make([]byte, 4)); err != nil {
			return fmt.Errorf("disconnect failed: %w", err)
		}
		a.connected = false
		return nil
	}

	if a.connected {
		return nil
	}
	if _, err := a.dev.Control(usbaspRequestType, usbaspFuncConnect, 0, 0, make([]byte, 4)); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	a.connected = true
	return nil
}

// Close releases the target and the USB device.
func (a *USBaspAdapter) Close() error {
	err := a.SetLevel(isp.High)
	if a.closer != nil {
		a.closer()
		a.closer = nil
	}
	return err
}
