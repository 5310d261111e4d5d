package adapter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

// STK500v1 command bytes spoken by the ArduinoISP sketch.
const (
	stkGetSync       = 0x30
	stkEnterProgMode = 0x50
	stkLeaveProgMode = 0x51
	stkUniversal     = 0x56

	stkCRCEOP  = 0x20
	stkInSync  = 0x14
	stkOK      = 0x10
	stkNoSync  = 0x15
	stkFailed  = 0x11
	stkUnknown = 0x12
)

const (
	// DefaultArduinoISPBaud is the serial speed of the stock ArduinoISP sketch.
	DefaultArduinoISPBaud = 19200

	arduinoISPReadTimeout = 500 * time.Millisecond
	arduinoISPBootDelay   = 2 * time.Second
	arduinoISPSyncTries   = 5
)

// ArduinoISPAdapter drives an Arduino running the ArduinoISP sketch over a
// serial port. Instructions go through STK_UNIVERSAL; reset is handled by
// the sketch when entering and leaving programming mode.
type ArduinoISPAdapter struct {
	port   io.ReadWriteCloser
	info   Info
	frames *framer

	inProgMode bool

	mu sync.Mutex
}

// NewArduinoISPAdapter opens the serial device and synchronizes with the
// sketch. Opening the port resets most Arduino boards, so it waits for the
// bootloader before syncing.
func NewArduinoISPAdapter(device string, baud int) (*ArduinoISPAdapter, error) {
	if baud <= 0 {
		baud = DefaultArduinoISPBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: arduinoISPReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	time.Sleep(arduinoISPBootDelay)

	a := newArduinoISPAdapter(port)
	a.info.SerialNumber = device
	if err := a.sync(); err != nil {
		port.Close()
		return nil, err
	}
	return a, nil
}

func newArduinoISPAdapter(port io.ReadWriteCloser) *ArduinoISPAdapter {
	a := &ArduinoISPAdapter{
		port: port,
		info: Info{
			Name:         "ArduinoISP",
			Vendor:       "Arduino",
			Model:        "STK500v1",
			MinFrequency: 1,
			MaxFrequency: 1_000_000,
			Buses:        1,
			ResetLines:   1,
			Notes:        "SPI clock is fixed by the sketch",
		},
	}
	a.frames = newFramer(a.exchange)
	return a
}

func (a *ArduinoISPAdapter) sync() error {
	var err error
	for i := 0; i < arduinoISPSyncTries; i++ {
		if _, err = a.command([]byte{stkGetSync}, 0); err == nil {
			return nil
		}
	}
	return fmt.Errorf("arduinoisp: no sync: %w", err)
}

// command sends cmd followed by Sync_CRC_EOP and returns the n payload bytes
// framed by STK_INSYNC and STK_OK.
func (a *ArduinoISPAdapter) command(cmd []byte, n int) ([]byte, error) {
	if _, err := a.port.Write(append(append([]byte(nil), cmd...), stkCRCEOP)); err != nil {
		return nil, fmt.Errorf("arduinoisp: write: %w", err)
	}

	var head [1]byte
	if _, err := io.ReadFull(a.port, head[:]); err != nil {
		return nil, fmt.Errorf("arduinoisp: read: %w", err)
	}
	if head[0] != stkInSync {
		return nil, fmt.Errorf("arduinoisp: command 0x%02X: %s", cmd[0], stkStatus(head[0]))
	}

	buf := make([]byte, n+1)
	if _, err := io.ReadFull(a.port, buf); err != nil {
		return nil, fmt.Errorf("arduinoisp: read: %w", err)
	}
	if status := buf[n]; status != stkOK {
		return nil, fmt.Errorf("arduinoisp: command 0x%02X: %s", cmd[0], stkStatus(status))
	}
	return buf[:n], nil
}

func stkStatus(b byte) string {
	switch b {
	case stkInSync:
		return "in sync"
	case stkOK:
		return "ok"
	case stkNoSync:
		return "not in sync"
	case stkFailed:
		return "failed"
	case stkUnknown:
		return "unknown command"
	default:
		return fmt.Sprintf("unexpected reply 0x%02X", b)
	}
}

// Info returns adapter capabilities
func (a *ArduinoISPAdapter) Info() (Info, error) {
	return a.info, nil
}

func (a *ArduinoISPAdapter) SPI(bus int) (isp.SPI, error) {
	if bus != 0 {
		return nil, fmt.Errorf("%w: spi bus %d", ErrNoSuchBus, bus)
	}
	return a, nil
}

func (a *ArduinoISPAdapter) ResetLine(line int) (isp.ResetLine, error) {
	if line != 0 {
		return nil, fmt.Errorf("%w: reset line %d", ErrNoSuchBus, line)
	}
	return a, nil
}

// Configure only validates the rate; the sketch's clock is fixed.
func (a *ArduinoISPAdapter) Configure(baudRate int) error {
	if baudRate <= 0 {
		return fmt.Errorf("arduinoisp: invalid baud rate %d", baudRate)
	}
	return nil
}

func (a *ArduinoISPAdapter) Transmit(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames.transmit(data)
}

func (a *ArduinoISPAdapter) Receive(n int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames.receive(n)
}

// exchange runs one instruction through STK_UNIVERSAL. Only the last
// response byte is returned by the sketch.
func (a *ArduinoISPAdapter) exchange(frame [FrameLen]byte) ([FrameLen]byte, error) {
	var resp [FrameLen]byte
	out, err := a.command([]byte{stkUniversal, frame[0], frame[1], frame[2], frame[3]}, 1)
	if err != nil {
		return resp, err
	}
	resp[FrameLen-1] = out[0]
	return resp, nil
}

func (a *ArduinoISPAdapter) SetDirection(d isp.Direction) error {
	if d == isp.Input {
		return a.SetLevel(isp.High)
	}
	return nil
}

// SetLevel enters programming mode on Low and leaves it on High.
func (a *ArduinoISPAdapter) SetLevel(l isp.Level) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if l == isp.High {
		a.frames.reset()
		if !a.inProgMode {
			return nil
		}
		if _, err := a.command([]byte{stkLeaveProgMode}, 0); err != nil {
			return err
		}
		a.inProgMode = false
		return nil
	}

	if a.inProgMode {
		return nil
	}
	if _, err := a.command([]byte{stkEnterProgMode}, 0); err != nil {
		return err
	}
	a.inProgMode = true
	return nil
}

// Close leaves programming mode and closes the port.
func (a *ArduinoISPAdapter) Close() error {
	err := a.SetLevel(isp.High)
	if cerr := a.port.Close(); err == nil {
		err = cerr
	}
	return err
}
