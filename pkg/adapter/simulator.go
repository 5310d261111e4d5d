package adapter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

// OpKind identifies the transport call a simulator operation records.
type OpKind uint8

const (
	OpConfigure OpKind = iota
	OpTransmit
	OpReceive
	OpSetDirection
	OpSetLevel
)

var opKindNames = map[OpKind]string{
	OpConfigure:    "Configure",
	OpTransmit:     "Transmit",
	OpReceive:      "Receive",
	OpSetDirection: "SetDirection",
	OpSetLevel:     "SetLevel",
}

func (k OpKind) String() string {
	if name, ok := opKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OpKind(%d)", k)
}

// Op captures one transport call for inspection within tests.
type Op struct {
	Kind      OpKind
	BaudRate  int
	Data      []byte
	Count     int
	Direction isp.Direction
	Level     isp.Level
}

func (o Op) String() string {
	switch o.Kind {
	case OpConfigure:
		return fmt.Sprintf("Configure(%d)", o.BaudRate)
	case OpTransmit:
		return fmt.Sprintf("Transmit(% X)", o.Data)
	case OpReceive:
		return fmt.Sprintf("Receive(%d)", o.Count)
	case OpSetDirection:
		return fmt.Sprintf("SetDirection(%s)", o.Direction)
	case OpSetLevel:
		return fmt.Sprintf("SetLevel(%s)", o.Level)
	}
	return o.Kind.String()
}

// FailHook lets tests inject transport failures. A non-nil return aborts the
// call before it has any effect.
type FailHook func(op Op) error

// SimTarget is an in-memory AVR that answers the serial programming
// instruction set. It serves as both the SPI bus and the reset line, records
// every call, and keeps its configuration bytes across sessions.
//
// The programming-enable latch is set by the enable instruction while reset is
// low and holds until PowerCycle. Configuration writes only land while reset
// is low. Lock writes can only clear bits, like the real lock byte.
type SimTarget struct {
	Signature [3]byte
	FailOn    FailHook

	mu       sync.Mutex
	bytes    map[fuse.Group]uint8
	level    isp.Level
	dir      isp.Direction
	baudRate int
	enabled  bool
	frames   *framer
	ops      []Op
}

// NewSimTarget returns a target with the given signature. Configuration
// bytes start erased (0xFF) until SetByte is called.
func NewSimTarget(signature [3]byte) *SimTarget {
	t := &SimTarget{
		Signature: signature,
		bytes:     make(map[fuse.Group]uint8, len(fuse.AllGroups)),
		level:     isp.High,
		dir:       isp.Input,
	}
	for _, g := range fuse.AllGroups {
		t.bytes[g] = 0xFF
	}
	t.frames = newFramer(t.execute)
	return t
}

// SetByte presets a configuration byte.
func (t *SimTarget) SetByte(g fuse.Group, v uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bytes[g] = v
}

// Byte returns the current value of a configuration byte.
func (t *SimTarget) Byte(g fuse.Group) uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytes[g]
}

// Level reports the reset line level.
func (t *SimTarget) Level() isp.Level {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level
}

// Enabled reports whether the programming-enable latch is set.
func (t *SimTarget) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// BaudRate returns the last configured SPI clock.
func (t *SimTarget) BaudRate() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baudRate
}

// Ops returns a copy of the recorded calls.
func (t *SimTarget) Ops() []Op {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Op, len(t.ops))
	for i, op := range t.ops {
		op.Data = append([]byte(nil), op.Data...)
		out[i] = op
	}
	return out
}

// Trace renders the recorded calls one per line.
func (t *SimTarget) Trace() string {
	ops := t.Ops()
	lines := make([]string, len(ops))
	for i, op := range ops {
		lines[i] = op.String()
	}
	return strings.Join(lines, "\n")
}

// ResetOps clears the recorded calls.
func (t *SimTarget) ResetOps() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = nil
}

// PowerCycle clears the programming-enable latch and any partial instruction.
func (t *SimTarget) PowerCycle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
	t.frames.reset()
}

// Configure implements isp.SPI.
func (t *SimTarget) Configure(baudRate int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record(Op{Kind: OpConfigure, BaudRate: baudRate}); err != nil {
		return err
	}
	if baudRate <= 0 {
		return fmt.Errorf("adapter: invalid baud rate %d", baudRate)
	}
	t.baudRate = baudRate
	return nil
}

// Transmit implements isp.SPI.
func (t *SimTarget) Transmit(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record(Op{Kind: OpTransmit, Data: append([]byte(nil), data...)}); err != nil {
		return err
	}
	return t.frames.transmit(data)
}

// Receive implements isp.SPI.
func (t *SimTarget) Receive(n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record(Op{Kind: OpReceive, Count: n}); err != nil {
		return nil, err
	}
	return t.frames.receive(n)
}

// Exchange clocks one whole instruction and returns the four response bytes,
// the way USBasp and ArduinoISP firmware drive the target. It is recorded as
// a Transmit of the frame.
func (t *SimTarget) Exchange(frame [FrameLen]byte) ([FrameLen]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record(Op{Kind: OpTransmit, Data: append([]byte(nil), frame[:]...)}); err != nil {
		return [FrameLen]byte{}, err
	}
	t.frames.reset()
	return t.execute(frame)
}

// SetDirection implements isp.ResetLine.
func (t *SimTarget) SetDirection(d isp.Direction) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record(Op{Kind: OpSetDirection, Direction: d}); err != nil {
		return err
	}
	t.dir = d
	return nil
}

// SetLevel implements isp.ResetLine.
func (t *SimTarget) SetLevel(l isp.Level) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record(Op{Kind: OpSetLevel, Level: l}); err != nil {
		return err
	}
	if t.dir != isp.Output {
		return fmt.Errorf("adapter: reset line is not an output")
	}
	if l == isp.High {
		t.frames.reset()
	}
	t.level = l
	return nil
}

func (t *SimTarget) record(op Op) error {
	if t.FailOn != nil {
		if err := t.FailOn(op); err != nil {
			return err
		}
	}
	t.ops = append(t.ops, op)
	return nil
}

// execute answers one instruction. Caller holds t.mu.
func (t *SimTarget) execute(frame [FrameLen]byte) ([FrameLen]byte, error) {
	resp := [FrameLen]byte{0x00, frame[0], frame[1], 0x00}
	if t.level != isp.Low {
		return [FrameLen]byte{0xFF, 0xFF, 0xFF, 0xFF}, nil
	}
	if frame[0] == fuse.ProgrammingEnable[0] && frame[1] == fuse.ProgrammingEnable[1] {
		t.enabled = true
		resp[2] = fuse.ProgrammingEnable[1]
		return resp, nil
	}
	if !t.enabled {
		return [FrameLen]byte{0xFF, 0xFF, 0xFF, 0xFF}, nil
	}

	for _, g := range fuse.AllGroups {
		if cmd := fuse.ReadCommand(g); frame[0] == cmd[0] && frame[1] == cmd[1] && frame[2] == cmd[2] {
			resp[3] = t.bytes[g]
			return resp, nil
		}
		if prefix := fuse.WritePrefix(g); frame[0] == prefix[0] && frame[1] == prefix[1] && frame[2] == prefix[2] {
			if g == fuse.GroupLock {
				t.bytes[g] &= frame[3]
			} else {
				t.bytes[g] = frame[3]
			}
			return resp, nil
		}
	}
	if frame[0] == 0x30 {
		if addr := frame[2] & 0x03; int(addr) < len(t.Signature) {
			resp[3] = t.Signature[addr]
		}
	}
	return resp, nil
}

// SimAdapter is an in-memory programmer wired to a single SimTarget. It hands
// out the target for bus 0 and reset line 0.
type SimAdapter struct {
	InfoData Info
	Target   *SimTarget

	closed bool
}

// NewSimAdapter constructs a simulator around target. A nil target gets an
// ATmega328P signature.
func NewSimAdapter(target *SimTarget) *SimAdapter {
	if target == nil {
		target = NewSimTarget([3]byte{0x1E, 0x95, 0x0F})
	}
	return &SimAdapter{
		InfoData: Info{
			Name:         "Simulator",
			Vendor:       "OpenTraceLab",
			Model:        "sim-avr",
			MinFrequency: 1,
			MaxFrequency: 50_000_000,
			Buses:        1,
			ResetLines:   1,
			Notes:        "In-memory AVR target",
		},
		Target: target,
	}
}

func (s *SimAdapter) Info() (Info, error) {
	return s.InfoData, nil
}

func (s *SimAdapter) SPI(bus int) (isp.SPI, error) {
	if s.closed {
		return nil, fmt.Errorf("adapter: simulator closed")
	}
	if bus != 0 {
		return nil, fmt.Errorf("%w: spi bus %d", ErrNoSuchBus, bus)
	}
	return s.Target, nil
}

func (s *SimAdapter) ResetLine(line int) (isp.ResetLine, error) {
	if s.closed {
		return nil, fmt.Errorf("adapter: simulator closed")
	}
	if line != 0 {
		return nil, fmt.Errorf("%w: reset line %d", ErrNoSuchBus, line)
	}
	return s.Target, nil
}

func (s *SimAdapter) Close() error {
	s.closed = true
	return nil
}
