package adapter

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// DAP commands the ISP bridge needs.
const (
	dapInfo         = 0x00
	dapConnect      = 0x02
	dapDisconnect   = 0x03
	dapSWJPins      = 0x10
	dapSWJClock     = 0x11
	dapJTAGSequence = 0x14
)

// DAP_Info string IDs.
const (
	dapInfoVendor   = 0x01
	dapInfoProduct  = 0x02
	dapInfoSerial   = 0x03
	dapInfoFirmware = 0x04
)

// DAP_Connect ports. Only the JTAG port drives TCK/TDI and samples TDO.
const (
	dapPortSWD  = 1
	dapPortJTAG = 2
)

const (
	dapOK    = 0x00
	dapError = 0xFF
)

// pinNRESET is the DAP_SWJ_Pins bit wired to the AVR RESET pin.
const pinNRESET = 1 << 7

// Sequence info byte: clock count in bits [5:0] (0 means 64), TMS in bit 6,
// TDO capture in bit 7.
const (
	seqClockMask = 0x3F
	seqTMS       = 0x40
	seqCapture   = 0x80
)

// maxShiftBytes is what one JTAG sequence can clock (64 bits).
const maxShiftBytes = 8

// ProtocolError is a malformed or failed CMSIS-DAP response.
type ProtocolError struct {
	Command byte
	Reason  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("cmsis-dap: command 0x%02X: %s", e.Command, e.Reason)
}

func checkResponse(resp []byte, cmd byte) error {
	if len(resp) < 2 {
		return &ProtocolError{Command: cmd, Reason: "response too short"}
	}
	if resp[0] != cmd {
		return &ProtocolError{Command: cmd, Reason: fmt.Sprintf("answered by command 0x%02X", resp[0])}
	}
	return nil
}

func checkStatus(resp []byte, cmd byte) error {
	if err := checkResponse(resp, cmd); err != nil {
		return err
	}
	if resp[1] != dapOK {
		return &ProtocolError{Command: cmd, Reason: fmt.Sprintf("status 0x%02X", resp[1])}
	}
	return nil
}

func encodeInfo(id byte) []byte {
	return []byte{dapInfo, id}
}

func decodeInfo(resp []byte) (string, error) {
	if err := checkResponse(resp, dapInfo); err != nil {
		return "", err
	}
	n := int(resp[1])
	if len(resp) < 2+n {
		return "", &ProtocolError{Command: dapInfo, Reason: "truncated string"}
	}
	return string(resp[2 : 2+n]), nil
}

func encodeConnect(port byte) []byte {
	return []byte{dapConnect, port}
}

// decodeConnect returns the port the probe switched to. 0 means it refused.
func decodeConnect(resp []byte) (byte, error) {
	if err := checkResponse(resp, dapConnect); err != nil {
		return 0, err
	}
	if resp[1] == 0 {
		return 0, &ProtocolError{Command: dapConnect, Reason: "port not available"}
	}
	return resp[1], nil
}

func encodeDisconnect() []byte {
	return []byte{dapDisconnect}
}

// encodeSWJPins drives the pins in sel to the levels in out and waits up to
// waitUS microseconds for them to settle.
func encodeSWJPins(out, sel byte, waitUS uint32) []byte {
	cmd := []byte{dapSWJPins, out, sel, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(cmd[3:], waitUS)
	return cmd
}

// decodeSWJPins returns the pin levels sampled after the update.
func decodeSWJPins(resp []byte) (byte, error) {
	if err := checkResponse(resp, dapSWJPins); err != nil {
		return 0, err
	}
	return resp[1], nil
}

func encodeClock(hz uint32) []byte {
	cmd := []byte{dapSWJClock, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}

// spiShift is one SPI transfer of up to eight bytes, clocked as a single JTAG
// sequence with TMS held low.
type spiShift struct {
	mosi    []byte // MSB first, as the AVR expects
	capture bool   // return MISO
}

func (s spiShift) info() byte {
	info := byte(len(s.mosi)*8) & seqClockMask
	if s.capture {
		info |= seqCapture
	}
	return info
}

// seqBytes returns the TDI payload length of a sequence info byte.
func seqBytes(info byte) int {
	clocks := int(info & seqClockMask)
	if clocks == 0 {
		clocks = 64
	}
	return (clocks + 7) / 8
}

// encodeShift builds a DAP_JTAG_Sequence for s. JTAG shifts LSB first, so
// every byte is bit-reversed.
func encodeShift(s spiShift) []byte {
	cmd := make([]byte, 0, 3+len(s.mosi))
	cmd = append(cmd, dapJTAGSequence, 1, s.info())
	for _, b := range s.mosi {
		cmd = append(cmd, bits.Reverse8(b))
	}
	return cmd
}

// decodeShift returns the MISO bytes of a captured shift, MSB first. It
// returns nil for shifts without capture.
func decodeShift(resp []byte, s spiShift) ([]byte, error) {
	if err := checkStatus(resp, dapJTAGSequence); err != nil {
		return nil, err
	}
	if !s.capture {
		return nil, nil
	}
	if len(resp) < 2+len(s.mosi) {
		return nil, &ProtocolError{Command: dapJTAGSequence, Reason: "truncated TDO data"}
	}
	miso := make([]byte, len(s.mosi))
	for i, b := range resp[2 : 2+len(s.mosi)] {
		miso[i] = bits.Reverse8(b)
	}
	return miso, nil
}
