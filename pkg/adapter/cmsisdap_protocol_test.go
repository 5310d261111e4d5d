package adapter

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeInfo(t *testing.T) {
	if got := encodeInfo(dapInfoFirmware); !bytes.Equal(got, []byte{0x00, 0x04}) {
		t.Errorf("encodeInfo() = % X", got)
	}

	tests := []struct {
		name    string
		resp    []byte
		want    string
		wantErr bool
	}{
		{name: "vendor", resp: []byte{0x00, 0x04, 'A', 'R', 'M', 0x00}, want: "ARM\x00"},
		{name: "empty", resp: []byte{0x00, 0x00}, want: ""},
		{name: "too short", resp: []byte{0x00}, wantErr: true},
		{name: "wrong command", resp: []byte{0x02, 0x01, 'x'}, wantErr: true},
		{name: "truncated", resp: []byte{0x00, 0x08, 'D', 'A', 'P'}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeInfo(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeInfo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("decodeInfo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeConnect(t *testing.T) {
	if port, err := decodeConnect([]byte{dapConnect, dapPortJTAG}); err != nil || port != dapPortJTAG {
		t.Errorf("decodeConnect(JTAG) = %d, %v", port, err)
	}
	if port, err := decodeConnect([]byte{dapConnect, dapPortSWD}); err != nil || port != dapPortSWD {
		t.Errorf("decodeConnect(SWD) = %d, %v", port, err)
	}

	_, err := decodeConnect([]byte{dapConnect, 0x00})
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Command != dapConnect {
		t.Errorf("refused connect: error = %v, want *ProtocolError", err)
	}
}

func TestSWJPinsDrivesReset(t *testing.T) {
	got := encodeSWJPins(0x00, pinNRESET, 100)
	want := []byte{0x10, 0x00, 0x80, 0x64, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeSWJPins() = % X, want % X", got, want)
	}

	pins, err := decodeSWJPins([]byte{dapSWJPins, 0x8B})
	if err != nil {
		t.Fatalf("decodeSWJPins() error = %v", err)
	}
	if pins&pinNRESET == 0 {
		t.Errorf("nRESET should read high in 0x%02X", pins)
	}
	if _, err := decodeSWJPins([]byte{dapSWJClock, 0x00}); err == nil {
		t.Errorf("expected error for wrong command ID")
	}
}

func TestEncodeClock(t *testing.T) {
	tests := []struct {
		hz   uint32
		want []byte
	}{
		{1_000_000, []byte{0x11, 0x40, 0x42, 0x0F, 0x00}},
		{125_000, []byte{0x11, 0x48, 0xE8, 0x01, 0x00}},
	}
	for _, tt := range tests {
		if got := encodeClock(tt.hz); !bytes.Equal(got, tt.want) {
			t.Errorf("encodeClock(%d) = % X, want % X", tt.hz, got, tt.want)
		}
	}

	if err := checkStatus([]byte{dapSWJClock, dapOK}, dapSWJClock); err != nil {
		t.Errorf("checkStatus(ok) error = %v", err)
	}
	if err := checkStatus([]byte{dapSWJClock, dapError}, dapSWJClock); err == nil {
		t.Errorf("expected error for failed status")
	}
}

func TestShiftInfoByte(t *testing.T) {
	tests := []struct {
		name  string
		shift spiShift
		want  byte
	}{
		{"one byte", spiShift{mosi: []byte{0xAC}}, 0x08},
		{"instruction with capture", spiShift{mosi: make([]byte, 4), capture: true}, 0x20 | seqCapture},
		{"full sequence", spiShift{mosi: make([]byte, maxShiftBytes)}, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.shift.info()
			if info != tt.want {
				t.Errorf("info() = 0x%02X, want 0x%02X", info, tt.want)
			}
			if info&seqTMS != 0 {
				t.Errorf("TMS must stay low during SPI shifts")
			}
			if n := seqBytes(info); n != len(tt.shift.mosi) {
				t.Errorf("seqBytes(0x%02X) = %d, want %d", info, n, len(tt.shift.mosi))
			}
		})
	}
}

func TestEncodeShiftReversesBits(t *testing.T) {
	got := encodeShift(spiShift{mosi: []byte{0x30, 0x00, 0x01}, capture: true})
	want := []byte{dapJTAGSequence, 0x01, 0x98, 0x0C, 0x00, 0x80}
	if !bytes.Equal(got, want) {
		t.Errorf("encodeShift() = % X, want % X", got, want)
	}
}

func TestDecodeShift(t *testing.T) {
	capture := spiShift{mosi: make([]byte, 2), capture: true}

	tests := []struct {
		name    string
		resp    []byte
		shift   spiShift
		want    []byte
		wantErr bool
	}{
		{name: "captured", resp: []byte{dapJTAGSequence, dapOK, 0x78, 0x01}, shift: capture, want: []byte{0x1E, 0x80}},
		{name: "no capture", resp: []byte{dapJTAGSequence, dapOK}, shift: spiShift{mosi: []byte{0xAC}}},
		{name: "error status", resp: []byte{dapJTAGSequence, dapError}, shift: capture, wantErr: true},
		{name: "truncated", resp: []byte{dapJTAGSequence, dapOK, 0x78}, shift: capture, wantErr: true},
		{name: "wrong command", resp: []byte{dapSWJPins, dapOK, 0, 0}, shift: capture, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeShift(tt.resp, tt.shift)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeShift() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("decodeShift() = % X, want % X", got, tt.want)
			}
		})
	}
}
