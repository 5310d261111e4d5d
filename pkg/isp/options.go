package isp

import (
	"context"
	"log/slog"
	"time"
)

const (
	// EnableDelay follows the programming-enable instruction. The value is
	// empirical; it covers the target's reset and power-up requirement.
	EnableDelay = 500 * time.Millisecond

	// WriteDelay follows every fuse or lock-bit write.
	WriteDelay = 100 * time.Millisecond
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type options struct {
	logger      *slog.Logger
	sleep       SleepFunc
	enableDelay time.Duration
	writeDelay  time.Duration
}

func defaultOptions() options {
	return options{
		logger:      slog.Default(),
		sleep:       sleepContext,
		enableDelay: EnableDelay,
		writeDelay:  WriteDelay,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Session or Programmer.
type Option func(*options)

// WithLogger sets the structured logger for protocol steps.
//
// Example:
//
//	sess := isp.NewSession(spi, reset, layout, 1_000_000, isp.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSleep replaces the delay implementation. Tests use it to observe the
// requested delays without waiting.
func WithSleep(fn SleepFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithEnableDelay lengthens the settle delay after programming enable. It
// cannot go below EnableDelay.
func WithEnableDelay(d time.Duration) Option {
	return func(o *options) {
		if d > EnableDelay {
			o.enableDelay = d
		}
	}
}

// WithWriteDelay lengthens the settle delay after each write. It cannot go
// below WriteDelay.
func WithWriteDelay(d time.Duration) Option {
	return func(o *options) {
		if d > WriteDelay {
			o.writeDelay = d
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
