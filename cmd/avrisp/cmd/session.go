package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/adapter"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr/deviceinfo"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/trace"
)

// programmerSession bundles everything one command needs to talk to a
// target. close releases it in reverse order.
type programmerSession struct {
	adapter adapter.Adapter
	port    isp.Port
	tracer  *trace.Tracer
	db      *deviceinfo.DB
	logger  *slog.Logger
	opts    []isp.Option

	closers []func() error
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadDeviceDB() (*deviceinfo.DB, error) {
	db := deviceinfo.Default()
	if devicesFile == "" {
		return db, nil
	}
	n, err := db.LoadFile(devicesFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d device definition(s) from %s\n", n, devicesFile)
	}
	return db, nil
}

// newSimTarget builds the simulated chip from the --sim-* flags.
func newSimTarget() (*adapter.SimTarget, error) {
	sig, err := avr.ParseSignatureString(simSignature)
	if err != nil {
		return nil, fmt.Errorf("invalid --sim-signature: %w", err)
	}
	target := adapter.NewSimTarget(sig)

	presets := []struct {
		flag  string
		value string
		group fuse.Group
	}{
		{"sim-low", simLow, fuse.GroupLow},
		{"sim-high", simHigh, fuse.GroupHigh},
		{"sim-extended", simExtended, fuse.GroupExtended},
		{"sim-lock", simLock, fuse.GroupLock},
	}
	for _, p := range presets {
		v, err := fuse.ParseByte(p.value)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", p.flag, err)
		}
		target.SetByte(p.group, v)
	}
	return target, nil
}

func openSession() (*programmerSession, error) {
	kind, err := adapter.ParseKind(adapterType)
	if err != nil {
		return nil, err
	}

	s := &programmerSession{logger: newLogger()}
	if s.db, err = loadDeviceDB(); err != nil {
		return nil, err
	}

	opts := adapter.Options{Kind: kind, Port: serialPort}
	if kind == adapter.InterfaceKindSim {
		if opts.Sim, err = newSimTarget(); err != nil {
			return nil, err
		}
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Opening %s adapter...\n", kind)
	}
	a, err := adapter.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s adapter: %w", kind, err)
	}
	s.adapter = a
	s.port = a
	s.closers = append(s.closers, a.Close)

	if verbose {
		if info, err := a.Info(); err == nil {
			fmt.Fprintf(os.Stderr, "Connected to: %s %s\n", info.Vendor, info.Model)
		}
	}

	s.opts = []isp.Option{isp.WithLogger(s.logger)}
	if kind == adapter.InterfaceKindSim {
		// simulated targets settle instantly
		s.opts = append(s.opts, isp.WithSleep(func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		}))
	}

	var recorders trace.Multi
	if tracePath != "" {
		rec, err := trace.NewFileRecorder(tracePath)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("open trace: %w", err)
		}
		recorders = append(recorders, rec)
		s.closers = append(s.closers, rec.Close)
	}
	if verbose {
		recorders = append(recorders, trace.NewSlogRecorder(s.logger))
	}
	if len(recorders) > 0 {
		s.tracer = trace.NewTracer(recorders)
		s.port = s.tracer.WrapPort(a)
		s.logger = s.logger.With(slog.String("session", s.tracer.Session()))
		s.opts[0] = isp.WithLogger(s.logger)
	}
	return s, nil
}

func (s *programmerSession) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *programmerSession) note(format string, args ...any) {
	if s.tracer != nil {
		s.tracer.Note(format, args...)
	}
}

func (s *programmerSession) target() isp.Target {
	return isp.Target{Bus: busIndex, ResetLine: resetLine, BaudRate: baudRate}
}

// identifier reads the signature unless --part names the device.
func (s *programmerSession) identifier() (isp.Identifier, error) {
	if partName == "" {
		return &avr.SignatureIdentifier{Port: s.port, Catalog: s.db, Options: s.opts}, nil
	}
	info, ok := s.db.LookupName(partName)
	if !ok {
		return nil, fmt.Errorf("unknown part %q (see 'avrisp devices')", partName)
	}
	dev, err := info.Device()
	if err != nil {
		return nil, err
	}
	return isp.StaticIdentifier(dev), nil
}

// run executes one programmer pass and always leaves reset released.
func (s *programmerSession) run(ctx context.Context, cfg isp.Config) (*isp.Result, error) {
	id, err := s.identifier()
	if err != nil {
		return nil, err
	}
	prog, err := isp.NewProgrammer(s.port, id, cfg, s.opts...)
	if err != nil {
		return nil, err
	}

	s.note("%s on bus %d, reset line %d, %d Hz", cfg.Mode, cfg.Bus, cfg.ResetLine, cfg.BaudRate)
	res, err := prog.Run(ctx)
	if err != nil {
		if restoreErr := prog.Restore(); restoreErr != nil {
			s.logger.Error("failed to release reset", slog.Any("error", restoreErr))
		}
		return res, err
	}
	s.note("%s done for %s", cfg.Mode, res.Device.Name)
	return res, nil
}

// withSession opens a session, runs fn and closes the session, keeping the
// first error.
func withSession(fn func(s *programmerSession) error) (err error) {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.close(); err == nil {
			err = closeErr
		}
	}()
	return fn(s)
}
