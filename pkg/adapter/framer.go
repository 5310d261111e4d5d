package adapter

import "fmt"

// FrameLen is the length of one ISP serial programming instruction.
const FrameLen = 4

// exchangeFunc clocks one complete instruction and returns the four bytes
// the target shifted back.
type exchangeFunc func(frame [FrameLen]byte) ([FrameLen]byte, error)

// framer turns the byte stream of isp.SPI into whole instructions for
// programmers whose firmware only exchanges complete 4-byte frames (USBasp,
// ArduinoISP, the simulator).
//
// Transmitted bytes accumulate until a frame is full. Receive pads the
// pending frame with zeros, exchanges it and returns the bytes clocked back
// at the requested positions.
type framer struct {
	pending  []byte
	exchange exchangeFunc
}

func newFramer(exchange exchangeFunc) *framer {
	return &framer{exchange: exchange}
}

func (f *framer) transmit(data []byte) error {
	for _, b := range data {
		f.pending = append(f.pending, b)
		if len(f.pending) == FrameLen {
			if _, err := f.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *framer) receive(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("adapter: invalid receive length %d", n)
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		start := len(f.pending)
		take := FrameLen - start
		if rest := n - len(out); rest < take {
			take = rest
		}
		for len(f.pending) < FrameLen {
			f.pending = append(f.pending, 0x00)
		}
		resp, err := f.flush()
		if err != nil {
			return nil, err
		}
		out = append(out, resp[start:start+take]...)
	}
	return out, nil
}

// reset drops a partially transmitted frame. Programmers call it when the
// target's reset line is released.
func (f *framer) reset() {
	f.pending = f.pending[:0]
}

func (f *framer) flush() ([FrameLen]byte, error) {
	var frame [FrameLen]byte
	copy(frame[:], f.pending)
	f.pending = f.pending[:0]
	return f.exchange(frame)
}
