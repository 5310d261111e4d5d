package trace

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

// Tracer stamps events with a session ID and sequence number and hands them
// to a Recorder.
type Tracer struct {
	rec     Recorder
	session string
	now     func() time.Time

	mu  sync.Mutex
	seq uint64
}

// NewTracer starts a traced session with a fresh UUID.
func NewTracer(rec Recorder) *Tracer {
	if rec == nil {
		rec = NoopRecorder{}
	}
	return &Tracer{
		rec:     rec,
		session: uuid.New().String(),
		now:     time.Now,
	}
}

// Session returns the session ID stamped on every event.
func (t *Tracer) Session() string {
	return t.session
}

// Note records free text in the trace.
func (t *Tracer) Note(format string, args ...any) {
	t.emit(Event{Kind: KindNote, Note: fmt.Sprintf(format, args...)})
}

func (t *Tracer) emit(ev Event) {
	t.mu.Lock()
	t.seq++
	ev.Seq = t.seq
	ev.Session = t.session
	ev.Timestamp = t.now()
	t.mu.Unlock()

	t.rec.Record(ev)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func hexBytes(b []byte) string {
	return fmt.Sprintf("% X", b)
}

// WrapPort returns a port whose SPI and reset handles are traced.
func (t *Tracer) WrapPort(p isp.Port) isp.Port {
	return &tracedPort{Port: p, t: t}
}

// WrapSPI returns spi with every call recorded.
func (t *Tracer) WrapSPI(spi isp.SPI) isp.SPI {
	return &tracedSPI{spi: spi, t: t}
}

// WrapResetLine returns reset with every call recorded.
func (t *Tracer) WrapResetLine(reset isp.ResetLine) isp.ResetLine {
	return &tracedReset{reset: reset, t: t}
}

type tracedPort struct {
	isp.Port
	t *Tracer
}

func (p *tracedPort) SPI(bus int) (isp.SPI, error) {
	spi, err := p.Port.SPI(bus)
	if err != nil {
		return nil, err
	}
	return p.t.WrapSPI(spi), nil
}

func (p *tracedPort) ResetLine(line int) (isp.ResetLine, error) {
	reset, err := p.Port.ResetLine(line)
	if err != nil {
		return nil, err
	}
	return p.t.WrapResetLine(reset), nil
}

type tracedSPI struct {
	spi isp.SPI
	t   *Tracer
}

func (s *tracedSPI) Configure(baudRate int) error {
	err := s.spi.Configure(baudRate)
	s.t.emit(Event{Kind: KindConfigure, BaudRate: baudRate, Err: errText(err)})
	return err
}

func (s *tracedSPI) Transmit(data []byte) error {
	err := s.spi.Transmit(data)
	s.t.emit(Event{Kind: KindTransmit, Data: append([]byte(nil), data...), Err: errText(err)})
	return err
}

func (s *tracedSPI) Receive(n int) ([]byte, error) {
	data, err := s.spi.Receive(n)
	s.t.emit(Event{Kind: KindReceive, Count: n, Data: append([]byte(nil), data...), Err: errText(err)})
	return data, err
}

type tracedReset struct {
	reset isp.ResetLine
	t     *Tracer
}

func (r *tracedReset) SetDirection(d isp.Direction) error {
	err := r.reset.SetDirection(d)
	r.t.emit(Event{Kind: KindSetDirection, Direction: d, Err: errText(err)})
	return err
}

func (r *tracedReset) SetLevel(l isp.Level) error {
	err := r.reset.SetLevel(l)
	r.t.emit(Event{Kind: KindSetLevel, Level: l, Err: errText(err)})
	return err
}
