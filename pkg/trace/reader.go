package trace

import (
	"errors"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader iterates over the events of a trace file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	session string
}

// NewReader opens a trace file. A non-empty session keeps only that
// session's events.
func NewReader(path, session string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		session: session,
	}, nil
}

// Next returns the next event, or io.EOF at the end of the trace.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.session == "" || event.Session == r.session {
			return event, nil
		}
	}
}

// Close closes the trace file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadFile returns every event in path.
func ReadFile(path string) ([]Event, error) {
	r, err := NewReader(path, "")
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
