package isp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

// Reading is one decoded configuration byte.
type Reading struct {
	Group  fuse.Group         `json:"group"`
	Raw    uint8              `json:"raw"`
	Fields []fuse.FieldReport `json:"fields"`
}

// Session drives the ISP instruction sequence for one target. It owns the
// SPI and reset handles for its lifetime and must not be shared between
// goroutines.
type Session struct {
	spi      SPI
	reset    ResetLine
	layout   *fuse.Layout
	baudRate int

	opts  options
	log   *slog.Logger
	state State
}

// NewSession creates an idle session. A nil layout behaves like an empty one:
// every group is unsupported, but signature reads still work.
func NewSession(spi SPI, reset ResetLine, layout *fuse.Layout, baudRate int, opts ...Option) *Session {
	if layout == nil {
		layout = fuse.EmptyLayout()
	}
	o := buildOptions(opts)
	return &Session{
		spi:      spi,
		reset:    reset,
		layout:   layout,
		baudRate: baudRate,
		opts:     o,
		log:      o.logger,
		state:    StateIdle,
	}
}

// State reports the current protocol state.
func (s *Session) State() State {
	return s.state
}

// Layout returns the device layout the session decodes with.
func (s *Session) Layout() *fuse.Layout {
	return s.layout
}

// EnterProgrammingMode performs the programming-enable handshake: reset as
// output, driven high for a clean falling edge, SPI configured, reset
// asserted, enable instruction sent, then the enable delay.
func (s *Session) EnterProgrammingMode(ctx context.Context) error {
	const op = "enable"
	if err := ctx.Err(); err != nil {
		return &OpError{Op: op, Err: err}
	}

	s.log.Debug("entering programming mode", slog.Int("baudrate", s.baudRate))

	if err := s.reset.SetDirection(Output); err != nil {
		return s.fault(op, "", "reset.SetDirection", err)
	}
	if err := s.reset.SetLevel(High); err != nil {
		return s.fault(op, "", "reset.SetLevel", err)
	}
	if err := s.spi.Configure(s.baudRate); err != nil {
		return s.fault(op, "", "spi.Configure", err)
	}
	if err := s.reset.SetLevel(Low); err != nil {
		return s.fault(op, "", "reset.SetLevel", err)
	}
	s.state = StateResetAsserted

	if err := s.spi.Transmit(fuse.ProgrammingEnable[:]); err != nil {
		return s.fault(op, "", "spi.Transmit", err)
	}
	if err := s.opts.sleep(ctx, s.opts.enableDelay); err != nil {
		s.state = StateFaulted
		return &OpError{Op: op, Err: err}
	}

	s.state = StateProgrammingEnabled
	return nil
}

// ReadFuseGroup reads one configuration byte and decodes it with the
// device's fields. Unsupported groups return ErrUnsupportedGroup without any
// bus traffic.
func (s *Session) ReadFuseGroup(ctx context.Context, g fuse.Group) (*Reading, error) {
	const op = "read"
	if !s.layout.Supports(g) {
		return nil, &OpError{Op: op, Group: g.String(), Err: ErrUnsupportedGroup}
	}
	if err := s.ready(ctx, op, g.String()); err != nil {
		return nil, err
	}

	raw, err := s.readByte(op, g.String(), fuse.ReadCommand(g))
	if err != nil {
		return nil, err
	}

	s.log.Debug("read configuration byte", slog.String("group", g.String()), slog.String("value", hexByte(raw)))
	return &Reading{
		Group:  g,
		Raw:    raw,
		Fields: fuse.Decode(raw, s.layout.Fields(g)),
	}, nil
}

// ReadLockBits reads and decodes the lock byte.
func (s *Session) ReadLockBits(ctx context.Context) (*Reading, error) {
	return s.ReadFuseGroup(ctx, fuse.GroupLock)
}

// ReadSignature reads the three device signature bytes. It does not depend
// on the layout, so it works before the device is known.
func (s *Session) ReadSignature(ctx context.Context) ([3]byte, error) {
	const op = "signature"
	var sig [3]byte
	if err := s.ready(ctx, op, ""); err != nil {
		return sig, err
	}
	for addr := range sig {
		b, err := s.readByte(op, "", fuse.ReadSignatureCommand(uint8(addr)))
		if err != nil {
			return sig, err
		}
		sig[addr] = b
	}
	s.log.Debug("read signature", slog.String("signature", fmt.Sprintf("%02X %02X %02X", sig[0], sig[1], sig[2])))
	return sig, nil
}

// Write applies a write request. Requests without a value return
// ErrValueOmitted and touch nothing.
func (s *Session) Write(ctx context.Context, req fuse.WriteRequest) error {
	if !s.layout.Supports(req.Group) {
		return &OpError{Op: "write", Group: req.Group.String(), Err: ErrUnsupportedGroup}
	}
	if !req.Present {
		return &OpError{Op: "write", Group: req.Group.String(), Err: ErrValueOmitted}
	}
	if req.Group == fuse.GroupLock {
		return s.WriteLockBits(ctx, req.Value)
	}
	return s.WriteFuseGroup(ctx, req.Group, req.Value)
}

// WriteFuseGroup writes one fuse byte. The write is strobed with its own
// reset pulse: reset low, instruction, reset high, then the write delay.
func (s *Session) WriteFuseGroup(ctx context.Context, g fuse.Group, value uint8) error {
	const op = "write"
	if g == fuse.GroupLock {
		return s.WriteLockBits(ctx, value)
	}
	if !s.layout.Supports(g) {
		return &OpError{Op: op, Group: g.String(), Err: ErrUnsupportedGroup}
	}
	if err := s.ready(ctx, op, g.String()); err != nil {
		return err
	}

	s.log.Debug("writing fuse", slog.String("group", g.String()), slog.String("value", hexByte(value)))
	s.state = StateWriting

	if err := s.reset.SetLevel(Low); err != nil {
		return s.fault(op, g.String(), "reset.SetLevel", err)
	}
	if err := s.spi.Transmit(fuse.WriteCommand(g, value)); err != nil {
		return s.fault(op, g.String(), "spi.Transmit", err)
	}
	if err := s.reset.SetLevel(High); err != nil {
		return s.fault(op, g.String(), "reset.SetLevel", err)
	}
	s.state = StateResetReleased

	if err := s.opts.sleep(ctx, s.opts.writeDelay); err != nil {
		s.state = StateFaulted
		return &OpError{Op: op, Group: g.String(), Err: err}
	}
	s.state = StateProgrammingEnabled
	return nil
}

// WriteLockBits writes the lock byte. Unlike fuse writes, reset is asserted
// and left asserted: it is released by ExitProgrammingMode at the end of the
// session.
func (s *Session) WriteLockBits(ctx context.Context, value uint8) error {
	const op = "write"
	g := fuse.GroupLock
	if !s.layout.Supports(g) {
		return &OpError{Op: op, Group: g.String(), Err: ErrUnsupportedGroup}
	}
	if err := s.ready(ctx, op, g.String()); err != nil {
		return err
	}

	s.log.Debug("writing lock bits", slog.String("value", hexByte(value)))
	s.state = StateWriting

	if err := s.reset.SetLevel(Low); err != nil {
		return s.fault(op, g.String(), "reset.SetLevel", err)
	}
	if err := s.spi.Transmit(fuse.WriteCommand(g, value)); err != nil {
		return s.fault(op, g.String(), "spi.Transmit", err)
	}
	if err := s.opts.sleep(ctx, s.opts.writeDelay); err != nil {
		s.state = StateFaulted
		return &OpError{Op: op, Group: g.String(), Err: err}
	}
	s.state = StateProgrammingEnabled
	return nil
}

// ExitProgrammingMode releases reset. It is valid from any state, including
// StateFaulted, so callers can always restore the line.
func (s *Session) ExitProgrammingMode() error {
	s.log.Debug("leaving programming mode", slog.String("from", s.state.String()))
	if err := s.reset.SetLevel(High); err != nil {
		return s.fault("exit", "", "reset.SetLevel", err)
	}
	s.state = StateIdle
	return nil
}

func (s *Session) ready(ctx context.Context, op, group string) error {
	if s.state != StateProgrammingEnabled {
		return &OpError{Op: op, Group: group, Err: fmt.Errorf("%w: %s", ErrInvalidState, s.state)}
	}
	if err := ctx.Err(); err != nil {
		return &OpError{Op: op, Group: group, Err: err}
	}
	return nil
}

func (s *Session) readByte(op, group string, cmd []byte) (uint8, error) {
	s.state = StateReading
	if err := s.spi.Transmit(cmd); err != nil {
		return 0, s.fault(op, group, "spi.Transmit", err)
	}
	resp, err := s.spi.Receive(1)
	if err != nil {
		return 0, s.fault(op, group, "spi.Receive", err)
	}
	if len(resp) != 1 {
		return 0, s.fault(op, group, "spi.Receive", fmt.Errorf("got %d bytes, want 1", len(resp)))
	}
	s.state = StateProgrammingEnabled
	return resp[0], nil
}

func (s *Session) fault(op, group, call string, err error) error {
	s.state = StateFaulted
	s.log.Error("transport call failed",
		slog.String("op", op),
		slog.String("group", group),
		slog.String("call", call),
		slog.Any("error", err),
	)
	return &OpError{Op: op, Group: group, Err: &TransportError{Call: call, Err: err}}
}

func hexByte(b uint8) string {
	return fmt.Sprintf("0x%02X", b)
}
