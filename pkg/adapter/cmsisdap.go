package adapter

import (
	"fmt"
	"sync"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

// CMSISDAPAdapter drives AVR ISP through a CMSIS-DAP probe's JTAG pins:
// TCK is SCK, TDI is MOSI, TDO is MISO and nRESET is the target reset.
type CMSISDAPAdapter struct {
	transport packetTransport

	info      Info
	speedHz   int
	connected bool

	mu sync.Mutex // Protect concurrent access
}

// NewCMSISDAPAdapter opens the probe with the given VID/PID.
func NewCMSISDAPAdapter(vid, pid uint16) (*CMSISDAPAdapter, error) {
	transport, err := NewUSBTransport(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}
	a, err := newCMSISDAPAdapter(transport)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return a, nil
}

func newCMSISDAPAdapter(transport packetTransport) (*CMSISDAPAdapter, error) {
	a := &CMSISDAPAdapter{
		transport: transport,
		speedHz:   isp.DefaultBaudRate,
	}

	if err := a.queryInfo(); err != nil {
		return nil, fmt.Errorf("failed to query device info: %w", err)
	}
	if err := a.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return a, nil
}

// queryInfo retrieves device information from the probe
func (a *CMSISDAPAdapter) queryInfo() error {
	vendor, err := a.infoString(dapInfoVendor)
	if err != nil {
		return err
	}
	product, _ := a.infoString(dapInfoProduct)
	serial, _ := a.infoString(dapInfoSerial)
	firmware, _ := a.infoString(dapInfoFirmware)

	a.info = Info{
		Name:         "CMSIS-DAP Probe",
		Vendor:       vendor,
		Model:        product,
		SerialNumber: serial,
		Firmware:     firmware,
		MinFrequency: 1000,       // 1 kHz
		MaxFrequency: 10_000_000, // 10 MHz (typical for CMSIS-DAP)
		Buses:        1,
		ResetLines:   1,
		Notes:        "SPI on TCK/TDI/TDO, reset on nRESET",
	}
	return nil
}

func (a *CMSISDAPAdapter) infoString(id byte) (string, error) {
	resp, err := a.transport.WriteRead(encodeInfo(id))
	if err != nil {
		return "", err
	}
	return decodeInfo(resp)
}

// connect selects the JTAG port so the probe drives TCK/TDI and samples TDO.
func (a *CMSISDAPAdapter) connect() error {
	resp, err := a.transport.WriteRead(encodeConnect(dapPortJTAG))
	if err != nil {
		return err
	}

	port, err := decodeConnect(resp)
	if err != nil {
		return err
	}
	if port != dapPortJTAG {
		return fmt.Errorf("failed to connect to JTAG (got port %d)", port)
	}

	a.connected = true
	return nil
}

// Info returns adapter capabilities
func (a *CMSISDAPAdapter) Info() (Info, error) {
	return a.info, nil
}

// SPI returns the probe itself; it has a single bus.
func (a *CMSISDAPAdapter) SPI(bus int) (isp.SPI, error) {
	if bus != 0 {
		return nil, fmt.Errorf("%w: spi bus %d", ErrNoSuchBus, bus)
	}
	return a, nil
}

// ResetLine returns the nRESET pin.
func (a *CMSISDAPAdapter) ResetLine(line int) (isp.ResetLine, error) {
	if line != 0 {
		return nil, fmt.Errorf("%w: reset line %d", ErrNoSuchBus, line)
	}
	return a, nil
}

// Speed returns the configured SCK frequency.
func (a *CMSISDAPAdapter) Speed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speedHz
}

// Configure sets the SCK frequency.
func (a *CMSISDAPAdapter) Configure(baudRate int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if baudRate < a.info.MinFrequency || baudRate > a.info.MaxFrequency {
		return fmt.Errorf("frequency %d Hz out of range [%d, %d]",
			baudRate, a.info.MinFrequency, a.info.MaxFrequency)
	}

	resp, err := a.transport.WriteRead(encodeClock(uint32(baudRate)))
	if err != nil {
		return fmt.Errorf("set speed failed: %w", err)
	}
	if err := checkStatus(resp, dapSWJClock); err != nil {
		return err
	}

	a.speedHz = baudRate
	return nil
}

// Transmit shifts data out MSB first and discards what comes back.
func (a *CMSISDAPAdapter) Transmit(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.shift(data, false)
	return err
}

// Receive clocks n zero bytes and returns what the target shifted out.
func (a *CMSISDAPAdapter) Receive(n int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n < 0 {
		return nil, fmt.Errorf("invalid receive length %d", n)
	}
	return a.shift(make([]byte, n), true)
}

// shift clocks data through in transfers of at most eight bytes.
func (a *CMSISDAPAdapter) shift(data []byte, capture bool) ([]byte, error) {
	var out []byte
	for len(data) > 0 {
		n := min(len(data), maxShiftBytes)
		s := spiShift{mosi: data[:n], capture: capture}
		data = data[n:]

		resp, err := a.transport.WriteRead(encodeShift(s))
		if err != nil {
			return nil, fmt.Errorf("shift failed: %w", err)
		}
		miso, err := decodeShift(resp, s)
		if err != nil {
			return nil, err
		}
		out = append(out, miso...)
	}
	return out, nil
}

// SetDirection releases nRESET for Input and leaves it driven for Output.
func (a *CMSISDAPAdapter) SetDirection(d isp.Direction) error {
	if d == isp.Input {
		return a.SetLevel(isp.High)
	}
	return nil
}

// SetLevel drives nRESET.
func (a *CMSISDAPAdapter) SetLevel(l isp.Level) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out byte
	if l == isp.High {
		out = pinNRESET
	}
	resp, err := a.transport.WriteRead(encodeSWJPins(out, pinNRESET, 0))
	if err != nil {
		return fmt.Errorf("set reset failed: %w", err)
	}
	_, err = decodeSWJPins(resp)
	return err
}

// Close disconnects and releases resources
func (a *CMSISDAPAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		_, _ = a.transport.WriteRead(encodeDisconnect())
		a.connected = false
	}

	return a.transport.Close()
}
