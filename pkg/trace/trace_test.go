package trace

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/adapter"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

type memRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (m *memRecorder) Record(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)

func newFixedTracer(rec Recorder) *Tracer {
	tr := NewTracer(rec)
	tr.now = func() time.Time { return fixedTime }
	return tr
}

func runSession(t *testing.T, port isp.Port) {
	t.Helper()
	spi, err := port.SPI(0)
	require.NoError(t, err)
	reset, err := port.ResetLine(0)
	require.NoError(t, err)

	noSleep := isp.WithSleep(func(context.Context, time.Duration) error { return nil })
	sess := isp.NewSession(spi, reset, nil, 125_000, noSleep)
	require.NoError(t, sess.EnterProgrammingMode(context.Background()))
	_, err = sess.ReadSignature(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.ExitProgrammingMode())
}

func TestTracerRecordsSession(t *testing.T) {
	rec := &memRecorder{}
	tr := newFixedTracer(rec)
	runSession(t, tr.WrapPort(adapter.NewSimAdapter(nil)))

	_, err := uuid.Parse(tr.Session())
	require.NoError(t, err)

	wantKinds := []Kind{
		KindSetDirection, KindSetLevel, KindConfigure, KindSetLevel, KindTransmit,
		KindTransmit, KindReceive, KindTransmit, KindReceive, KindTransmit, KindReceive,
		KindSetLevel,
	}
	require.Len(t, rec.events, len(wantKinds))
	for i, ev := range rec.events {
		assert.Equal(t, wantKinds[i], ev.Kind, "event %d", i)
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, tr.Session(), ev.Session)
	}

	assert.Equal(t, 125_000, rec.events[2].BaudRate)
	assert.Equal(t, isp.Low, rec.events[3].Level)
	assert.Equal(t, []byte{0xAC, 0x53, 0x00, 0x00}, rec.events[4].Data)
	assert.Equal(t, []byte{0x30, 0x00, 0x01}, rec.events[7].Data)
	assert.Equal(t, []byte{0x95}, rec.events[8].Data)
	assert.Equal(t, isp.High, rec.events[11].Level)
}

func TestTracerRecordsErrors(t *testing.T) {
	rec := &memRecorder{}
	tr := newFixedTracer(rec)

	target := adapter.NewSimTarget([3]byte{0x1E, 0x95, 0x0F})
	target.FailOn = func(op adapter.Op) error {
		if op.Kind == adapter.OpConfigure {
			return errors.New("clock rejected")
		}
		return nil
	}
	spi := tr.WrapSPI(target)
	require.Error(t, spi.Configure(1))

	require.Len(t, rec.events, 1)
	assert.Equal(t, "clock rejected", rec.events[0].Err)
	assert.Equal(t, "   1 Configure    1 Hz error: clock rejected", rec.events[0].String())
}

func TestFileRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.cbor")
	rec, err := NewFileRecorder(path)
	require.NoError(t, err)

	tr := newFixedTracer(rec)
	tr.Note("device %s", "ATmega328P")
	runSession(t, tr.WrapPort(adapter.NewSimAdapter(nil)))
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	events, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, events, 13)

	assert.Equal(t, KindNote, events[0].Kind)
	assert.Equal(t, "device ATmega328P", events[0].Note)
	assert.True(t, fixedTime.Equal(events[0].Timestamp))

	assert.Equal(t, KindSetLevel, events[4].Kind)
	assert.Equal(t, isp.Low, events[4].Level)
	assert.Equal(t, []byte{0xAC, 0x53, 0x00, 0x00}, events[5].Data)
	assert.Equal(t, 1, events[7].Count)
	assert.Equal(t, []byte{0x1E}, events[7].Data)
	assert.Equal(t, tr.Session(), events[12].Session)
}

func TestReaderFiltersSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.cbor")
	rec, err := NewFileRecorder(path)
	require.NoError(t, err)

	first := NewTracer(rec)
	second := NewTracer(rec)
	first.Note("a")
	second.Note("b")
	first.Note("c")
	require.NoError(t, rec.Close())

	r, err := NewReader(path, first.Session())
	require.NoError(t, err)
	defer r.Close()

	var notes []string
	for {
		ev, err := r.Next()
		if err != nil {
			break
		}
		notes = append(notes, ev.Note)
	}
	assert.Equal(t, []string{"a", "c"}, notes)
}

func TestReadFileTruncated(t *testing.T) {
	data, err := EncodeEvent(Event{Seq: 1, Kind: KindTransmit, Data: []byte{1, 2, 3, 4}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cut.cbor")
	require.NoError(t, os.WriteFile(path, append(data, data[:len(data)-2]...), 0o600))

	events, err := ReadFile(path)
	assert.Error(t, err)
	assert.Len(t, events, 1)
}

func TestSlogRecorderAndMulti(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mem := &memRecorder{}

	tr := newFixedTracer(Multi{NewSlogRecorder(logger), mem})
	require.NoError(t, tr.WrapSPI(adapter.NewSimTarget([3]byte{})).Transmit([]byte{0xAC, 0x53, 0x00, 0x00}))

	assert.Len(t, mem.events, 1)
	out := buf.String()
	assert.Contains(t, out, "kind=Transmit")
	assert.Contains(t, out, "AC 53 00 00")
	assert.Contains(t, out, tr.Session())
}

func TestEventString(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Seq: 2, Kind: KindTransmit, Data: []byte{0x50, 0x00, 0x00}}, "   2 Transmit     50 00 00"},
		{Event{Seq: 3, Kind: KindReceive, Count: 1, Data: []byte{0x62}}, "   3 Receive      1 -> 62"},
		{Event{Seq: 4, Kind: KindSetLevel, Level: isp.High}, "   4 SetLevel     1"},
		{Event{Seq: 5, Kind: KindSetDirection, Direction: isp.Output}, "   5 SetDirection output"},
		{Event{Seq: 6, Kind: KindNote, Note: "hello"}, "   6 Note         hello"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ev.String())
	}
	assert.True(t, strings.HasPrefix(Kind(42).String(), "Kind("))
}
