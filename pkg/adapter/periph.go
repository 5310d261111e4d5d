package adapter

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

// PeriphAdapter drives a target wired straight to a Linux board's SPI
// controller and a GPIO (Raspberry Pi and similar), through periph.io.
// Bus n opens "SPI<n>.0"; reset line n opens "GPIO<n>".
type PeriphAdapter struct {
	mu    sync.Mutex
	ports map[int]*periphSPI
	pins  map[int]*periphReset
}

// NewPeriphAdapter loads the periph.io host drivers.
func NewPeriphAdapter() (*PeriphAdapter, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph: host init: %w", err)
	}
	return &PeriphAdapter{
		ports: make(map[int]*periphSPI),
		pins:  make(map[int]*periphReset),
	}, nil
}

func (a *PeriphAdapter) Info() (Info, error) {
	return Info{
		Name:         "Linux SPI/GPIO",
		Vendor:       "periph.io",
		MinFrequency: 100,
		MaxFrequency: 50_000_000,
		Buses:        len(spireg.All()),
		ResetLines:   len(gpioreg.All()),
		Notes:        "spidev and GPIO through periph.io",
	}, nil
}

func (a *PeriphAdapter) SPI(bus int) (isp.SPI, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.ports[bus]; ok {
		return p, nil
	}
	name := fmt.Sprintf("SPI%d.0", bus)
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoSuchBus, name, err)
	}
	p := &periphSPI{name: name, port: port}
	a.ports[bus] = p
	return p, nil
}

func (a *PeriphAdapter) ResetLine(line int) (isp.ResetLine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r, ok := a.pins[line]; ok {
		return r, nil
	}
	name := fmt.Sprintf("GPIO%d", line)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchBus, name)
	}
	r := &periphReset{pin: pin}
	a.pins[line] = r
	return r, nil
}

// Close releases the reset lines and closes the SPI ports.
func (a *PeriphAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for _, r := range a.pins {
		if err := r.SetDirection(isp.Input); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, p := range a.ports {
		if err := p.port.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.pins = map[int]*periphReset{}
	a.ports = map[int]*periphSPI{}
	return firstErr
}

// periphSPI connects lazily: spidev ports accept a single Connect, so the
// clock is fixed by the first Configure.
type periphSPI struct {
	name string
	port spi.PortCloser
	conn spi.Conn
	hz   int
}

func (p *periphSPI) Configure(baudRate int) error {
	if baudRate <= 0 {
		return fmt.Errorf("periph: invalid baud rate %d", baudRate)
	}
	if p.conn != nil {
		if baudRate != p.hz {
			return fmt.Errorf("periph: %s already connected at %d Hz", p.name, p.hz)
		}
		return nil
	}
	conn, err := p.port.Connect(physic.Frequency(baudRate)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		return fmt.Errorf("periph: %s connect: %w", p.name, err)
	}
	p.conn = conn
	p.hz = baudRate
	return nil
}

func (p *periphSPI) Transmit(data []byte) error {
	if p.conn == nil {
		return fmt.Errorf("periph: %s not configured", p.name)
	}
	return p.conn.Tx(data, nil)
}

func (p *periphSPI) Receive(n int) ([]byte, error) {
	if p.conn == nil {
		return nil, fmt.Errorf("periph: %s not configured", p.name)
	}
	w := make([]byte, n)
	r := make([]byte, n)
	if err := p.conn.Tx(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

type periphReset struct {
	pin gpio.PinIO
}

// SetDirection makes the pin an output driven high, or floats it.
func (r *periphReset) SetDirection(d isp.Direction) error {
	if d == isp.Output {
		return r.pin.Out(gpio.High)
	}
	return r.pin.In(gpio.PullNoChange, gpio.NoEdge)
}

func (r *periphReset) SetLevel(l isp.Level) error {
	return r.pin.Out(l == isp.High)
}
