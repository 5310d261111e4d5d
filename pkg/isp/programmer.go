package isp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

// Skip records a group that was deliberately left alone.
type Skip struct {
	Group  fuse.Group `json:"group"`
	Reason error      `json:"-"`
}

// Result collects what a Programmer run did.
type Result struct {
	Device   *Device             `json:"-"`
	Readings []Reading           `json:"readings,omitempty"`
	Written  []fuse.WriteRequest `json:"-"`
	Verified []Reading           `json:"verified,omitempty"`
	Skipped  []Skip              `json:"-"`
}

// Programmer sequences identify, programming enable, the requested reads or
// writes, and reset release for one target.
type Programmer struct {
	port       Port
	identifier Identifier
	cfg        Config
	opts       []Option
	log        *slog.Logger

	session *Session
}

// NewProgrammer validates cfg and returns a programmer bound to port.
func NewProgrammer(port Port, identifier Identifier, cfg Config, opts ...Option) (*Programmer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Programmer{
		port:       port,
		identifier: identifier,
		cfg:        cfg,
		opts:       opts,
		log:        o.logger,
	}, nil
}

// Session returns the session of the last run, or nil before identification
// succeeded.
func (p *Programmer) Session() *Session {
	return p.session
}

// Run executes the configured operation. On a transport failure it returns
// immediately with the partial result; the reset line is then in an unknown
// state and the caller should call Restore.
func (p *Programmer) Run(ctx context.Context) (*Result, error) {
	dev, err := p.identify(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Device: dev}

	p.log.Info("device identified", slog.String("device", dev.Name), slog.String("signature", dev.SignatureString()))

	spi, err := p.port.SPI(p.cfg.Bus)
	if err != nil {
		return res, &OpError{Op: "open", Err: &TransportError{Call: "port.SPI", Err: err}}
	}
	reset, err := p.port.ResetLine(p.cfg.ResetLine)
	if err != nil {
		return res, &OpError{Op: "open", Err: &TransportError{Call: "port.ResetLine", Err: err}}
	}

	p.session = NewSession(spi, reset, dev.Layout, p.cfg.BaudRate, p.opts...)
	if err := p.session.EnterProgrammingMode(ctx); err != nil {
		return res, err
	}

	switch p.cfg.Mode {
	case ModeRead:
		err = p.readAll(ctx, res)
	case ModeWrite:
		err = p.writeAll(ctx, res)
	}
	if err != nil {
		return res, err
	}

	if err := p.session.ExitProgrammingMode(); err != nil {
		return res, err
	}

	if p.cfg.Mode == ModeWrite && p.cfg.Verify && len(res.Written) > 0 {
		if err := p.verify(ctx, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Restore releases the reset line after a failed run. It is a no-op when no
// session was opened.
func (p *Programmer) Restore() error {
	if p.session == nil {
		return nil
	}
	return p.session.ExitProgrammingMode()
}

func (p *Programmer) identify(ctx context.Context) (*Device, error) {
	dev, err := p.identifier.Identify(ctx, p.cfg.Target())
	if err != nil {
		return nil, &OpError{Op: "identify", Err: err}
	}
	if dev == nil {
		return nil, &OpError{Op: "identify", Err: ErrDeviceNotFound}
	}
	return dev, nil
}

func (p *Programmer) readAll(ctx context.Context, res *Result) error {
	for _, g := range fuse.AllGroups {
		reading, err := p.session.ReadFuseGroup(ctx, g)
		if err != nil {
			if p.skip(res, g, err) {
				continue
			}
			return err
		}
		res.Readings = append(res.Readings, *reading)
	}
	return nil
}

func (p *Programmer) writeAll(ctx context.Context, res *Result) error {
	for _, g := range fuse.AllGroups {
		req := p.cfg.Request(g)
		if err := p.session.Write(ctx, req); err != nil {
			if p.skip(res, g, err) {
				continue
			}
			return err
		}
		p.log.Info("configuration byte written", slog.String("group", g.String()), slog.String("value", hexByte(req.Value)))
		res.Written = append(res.Written, req)
	}
	return nil
}

func (p *Programmer) verify(ctx context.Context, res *Result) error {
	if err := p.session.EnterProgrammingMode(ctx); err != nil {
		return err
	}
	for _, w := range res.Written {
		reading, err := p.session.ReadFuseGroup(ctx, w.Group)
		if err != nil {
			return err
		}
		res.Verified = append(res.Verified, *reading)
		if reading.Raw != w.Value {
			if exitErr := p.session.ExitProgrammingMode(); exitErr != nil {
				return exitErr
			}
			return &OpError{Op: "verify", Group: w.Group.String(), Err: &VerifyError{Group: w.Group, Want: w.Value, Got: reading.Raw}}
		}
	}
	return p.session.ExitProgrammingMode()
}

// skip records err when it only means "nothing to do" and reports whether it
// did.
func (p *Programmer) skip(res *Result, g fuse.Group, err error) bool {
	if !IsSkip(err) {
		return false
	}
	reason := ErrValueOmitted
	if errors.Is(err, ErrUnsupportedGroup) {
		reason = ErrUnsupportedGroup
	}
	p.log.Info("skipping group", slog.String("group", g.String()), slog.String("reason", reason.Error()))
	res.Skipped = append(res.Skipped, Skip{Group: g, Reason: reason})
	return true
}
