package trace

import (
	"fmt"
	"strings"
	"time"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

// Kind is the transport call an event records.
type Kind uint8

const (
	KindConfigure Kind = iota
	KindTransmit
	KindReceive
	KindSetDirection
	KindSetLevel
	// KindNote carries free text such as the identified device.
	KindNote
)

var kindNames = map[Kind]string{
	KindConfigure:    "Configure",
	KindTransmit:     "Transmit",
	KindReceive:      "Receive",
	KindSetDirection: "SetDirection",
	KindSetLevel:     "SetLevel",
	KindNote:         "Note",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Event is one recorded transport call. CBOR encoding uses integer keys.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`

	// Session identifies one programmer run (UUID).
	Session string `cbor:"2,keyasint"`

	// Seq orders events within a session, starting at 1.
	Seq uint64 `cbor:"3,keyasint"`

	Kind Kind `cbor:"4,keyasint"`

	// Data is the bytes sent for Transmit and the bytes returned for
	// Receive.
	Data []byte `cbor:"5,keyasint,omitempty"`

	Count     int           `cbor:"6,keyasint,omitempty"` // Receive length
	Level     isp.Level     `cbor:"7,keyasint,omitempty"`
	Direction isp.Direction `cbor:"8,keyasint,omitempty"`
	BaudRate  int           `cbor:"9,keyasint,omitempty"`

	// Err is the error text of a failed call.
	Err string `cbor:"10,keyasint,omitempty"`

	Note string `cbor:"11,keyasint,omitempty"`
}

// String renders the event the way `avrisp trace` prints it.
func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%4d %-12s ", e.Seq, e.Kind)
	switch e.Kind {
	case KindConfigure:
		fmt.Fprintf(&b, "%d Hz", e.BaudRate)
	case KindTransmit:
		fmt.Fprintf(&b, "% X", e.Data)
	case KindReceive:
		fmt.Fprintf(&b, "%d -> % X", e.Count, e.Data)
	case KindSetDirection:
		b.WriteString(e.Direction.String())
	case KindSetLevel:
		b.WriteString(e.Level.String())
	case KindNote:
		b.WriteString(e.Note)
	}
	if e.Err != "" {
		fmt.Fprintf(&b, " error: %s", e.Err)
	}
	return strings.TrimRight(b.String(), " ")
}
