package trace

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Recorder receives transport events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(event Event)
}

// NoopRecorder discards all events.
type NoopRecorder struct{}

// Record discards the event.
func (NoopRecorder) Record(Event) {}

// FileRecorder writes events to a file as a CBOR stream.
type FileRecorder struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
	err     error
}

// NewFileRecorder creates or truncates path.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Record appends the event. A write failure is kept and reported by Close;
// it never interrupts programming.
func (r *FileRecorder) Record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.err != nil {
		return
	}
	r.err = r.encoder.Encode(event)
}

// Close closes the file and returns the first write error, if any. It is
// safe to call more than once.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return r.err
	}
	r.closed = true
	if err := r.file.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

// SlogRecorder logs events at Debug level.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder creates a recorder logging to logger.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	return &SlogRecorder{logger: logger}
}

// Record logs the event.
func (r *SlogRecorder) Record(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.Session),
		slog.Uint64("seq", event.Seq),
		slog.String("kind", event.Kind.String()),
	}

	switch event.Kind {
	case KindConfigure:
		attrs = append(attrs, slog.Int("baudrate", event.BaudRate))
	case KindTransmit, KindReceive:
		attrs = append(attrs, slog.String("data", hexBytes(event.Data)))
	case KindSetDirection:
		attrs = append(attrs, slog.String("direction", event.Direction.String()))
	case KindSetLevel:
		attrs = append(attrs, slog.String("level", event.Level.String()))
	case KindNote:
		attrs = append(attrs, slog.String("note", event.Note))
	}
	if event.Err != "" {
		attrs = append(attrs, slog.String("error", event.Err))
	}

	r.logger.LogAttrs(context.Background(), slog.LevelDebug, "isp", attrs...)
}

// Multi sends events to several recorders.
type Multi []Recorder

// Record forwards the event to every recorder.
func (m Multi) Record(event Event) {
	for _, r := range m {
		r.Record(event)
	}
}

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*FileRecorder)(nil)
	_ Recorder = (*SlogRecorder)(nil)
	_ Recorder = Multi(nil)
)
