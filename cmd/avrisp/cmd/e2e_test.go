package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

// resetFlags restores every flag to its default so runs do not leak into
// each other.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}

// executeCommand runs avrisp with args against an empty home directory and returns
// what it printed on stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APPDATA", "")

	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// Read in background to prevent pipe buffer from blocking on Windows
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(done)
	}()

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	w.Close()
	os.Stdout = old
	<-done

	return buf.String(), err
}

func TestCommandsE2E(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
		wantMissing []string
	}{
		{
			name: "read simulated ATmega328P",
			args: []string{"read"},
			wantContain: []string{
				"Device:    ATmega328P",
				"Signature: 1E 95 0F (Atmel/Microchip)",
				"Low fuse: 0x62",
				"Fuse name",
				"CKDIV8",
				"CKSEL",
				"High fuse: 0xD9",
				"SPIEN",
				"Extended fuse: 0xFF",
				"Lock bits: 0xFF",
				"Lock bit name",
				"BLB1",
			},
		},
		{
			name: "read device without extended fuse",
			args: []string{"read", "--sim-signature", "1E 90 07", "--sim-low", "0x6A"},
			wantContain: []string{
				"Device:    ATtiny13A",
				"Low fuse: 0x6A",
				"Extended fuse: not present on this device",
			},
		},
		{
			name:        "read selected memories",
			args:        []string{"read", "-U", "hfuse:r"},
			wantContain: []string{"High fuse: 0xD9"},
			wantMissing: []string{"Low fuse", "Lock bits"},
		},
		{
			name:        "read and verify",
			args:        []string{"read", "-U", "lock:v:0xFF:m"},
			wantContain: []string{"Lock bits verified: 0xFF"},
		},
		{
			name:    "read verify mismatch",
			args:    []string{"read", "-U", "lfuse:v:0xE2"},
			wantErr: true,
		},
		{
			name:    "read rejects write operations",
			args:    []string{"read", "-U", "lfuse:w:0xE2"},
			wantErr: true,
		},
		{
			name:    "read unknown device",
			args:    []string{"read", "--sim-signature", "1E 99 99"},
			wantErr: true,
		},
		{
			name:        "read with explicit part",
			args:        []string{"read", "--part", "attiny85"},
			wantContain: []string{"Device:    ATtiny85", "SELFPRGEN"},
		},
		{
			name: "write low fuse only",
			args: []string{"write", "--low", "0xE2", "--verify"},
			wantContain: []string{
				"Wrote Low fuse = 0xE2",
				"High fuse: unchanged",
				"Extended fuse: unchanged",
				"Lock bits: unchanged",
				"Low fuse verified: 0xE2",
			},
			wantMissing: []string{"Wrote High fuse"},
		},
		{
			name: "write with memory operations",
			args: []string{"write", "-U", "hfuse:w:0xDE:m", "-U", "lock:w:0xFC:m", "--verify"},
			wantContain: []string{
				"Wrote High fuse = 0xDE",
				"Wrote Lock bits = 0xFC",
				"Lock bits verified: 0xFC",
			},
		},
		{
			name:        "write skips missing extended fuse",
			args:        []string{"write", "--sim-signature", "1E 93 07", "--extended", "0xFD", "--low", "0xE4"},
			wantContain: []string{"ATmega8A", "Wrote Low fuse = 0xE4", "Extended fuse: not present on this device, skipped"},
		},
		{
			name:    "write nothing",
			args:    []string{"write"},
			wantErr: true,
		},
		{
			name:    "write conflicting values",
			args:    []string{"write", "--low", "0x62", "-U", "lfuse:w:0xE2"},
			wantErr: true,
		},
		{
			name:    "write out of range value",
			args:    []string{"write", "--low", "0x1FF"},
			wantErr: true,
		},
		{
			name: "identify",
			args: []string{"identify"},
			wantContain: []string{
				"Signature: 1E 95 0F",
				"Flash:     32 KiB",
				"Device:    ATmega328P (megaAVR)",
			},
		},
		{
			name:        "identify unknown signature",
			args:        []string{"identify", "--sim-signature", "1E 99 99"},
			wantContain: []string{"Device:    unknown"},
		},
		{
			name:    "identify without target",
			args:    []string{"identify", "--sim-signature", "FF FF FF"},
			wantErr: true,
		},
		{
			name:        "devices",
			args:        []string{"devices"},
			wantContain: []string{"Name", "ATmega2560", "1E 98 01", "ATtiny13A", "low,high,lock"},
		},
		{
			name:        "devices as yaml",
			args:        []string{"devices", "--yaml"},
			wantContain: []string{"devices:", "name: ATmega32U4", "HWBE"},
		},
		{
			name:        "decode",
			args:        []string{"decode", "low", "0x62", "--part", "ATmega328P"},
			wantContain: []string{"Low fuse: 0x62", "CKSEL", "0x02", "0x0F"},
		},
		{
			name:    "decode unsupported group",
			args:    []string{"decode", "efuse", "0xFF", "--part", "ATtiny13A"},
			wantErr: true,
		},
		{
			name:    "decode without part",
			args:    []string{"decode", "low", "0x62"},
			wantErr: true,
		},
		{
			name:    "unknown adapter",
			args:    []string{"read", "--adapter", "jlink"},
			wantErr: true,
		},
		{
			name:    "bus not on simulator",
			args:    []string{"read", "--bus", "1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeCommand(t, tt.args...)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none\nOutput: %s", output)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
			}

			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
			for _, unwanted := range tt.wantMissing {
				if strings.Contains(output, unwanted) {
					t.Errorf("Output contains unexpected string: %q\nGot:\n%s", unwanted, output)
				}
			}
		})
	}
}

func TestReadJSON(t *testing.T) {
	output, err := executeCommand(t, "read", "--json")
	if err != nil {
		t.Fatalf("read --json: %v", err)
	}

	var report struct {
		Device struct {
			Name      string `json:"name"`
			Signature string `json:"signature"`
		} `json:"device"`
		Readings []isp.Reading `json:"readings"`
	}
	if err := json.Unmarshal([]byte(output), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, output)
	}
	if report.Device.Name != "ATmega328P" || report.Device.Signature != "1E 95 0F" {
		t.Errorf("device = %+v", report.Device)
	}
	if len(report.Readings) != 4 {
		t.Fatalf("got %d readings, want 4", len(report.Readings))
	}
	if r := report.Readings[0]; r.Raw != 0x62 || r.Fields[0].Name != "CKDIV8" || !r.Fields[0].Enabled {
		t.Errorf("low reading = %+v", r)
	}
}

func TestVerifyMismatchError(t *testing.T) {
	_, err := executeCommand(t, "read", "-U", "lfuse:v:0xE2")
	if !errors.Is(err, isp.ErrVerifyMismatch) {
		t.Errorf("error = %v, want verify mismatch", err)
	}

	_, err = executeCommand(t, "read", "--sim-signature", "1E 99 99")
	if !errors.Is(err, isp.ErrDeviceNotFound) {
		t.Errorf("error = %v, want device not found", err)
	}
}

func TestTraceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.cbor")

	if _, err := executeCommand(t, "write", "--lock", "0xFC", "--trace", path); err != nil {
		t.Fatalf("write: %v", err)
	}

	output, err := executeCommand(t, "trace", path)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	for _, want := range []string{
		"Session ",
		"Note         write on bus 0, reset line 0, 1000000 Hz",
		"Transmit     AC 53 00 00",
		"Transmit     30 00 00",
		"Transmit     AC E0 00 FC",
		"SetLevel     0",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("trace missing %q\nGot:\n%s", want, output)
		}
	}

	if _, err := executeCommand(t, "trace", filepath.Join(t.TempDir(), "missing.cbor")); err == nil {
		t.Errorf("expected error for missing trace file")
	}
}

func TestDevicesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	def := `devices:
  - name: ATmega88PA
    family: megaAVR
    signature: "1E 93 0F"
    fuses:
      low:
        - {name: CKDIV8, mask: 0x80, active_low: true}
        - {name: CKSEL, mask: 0x0F, active_low: true}
`
	if err := os.WriteFile(path, []byte(def), 0o600); err != nil {
		t.Fatal(err)
	}

	output, err := executeCommand(t, "read", "--devices", path, "--sim-signature", "1E 93 0F")
	if err != nil {
		t.Fatalf("read: %v\n%s", err, output)
	}
	for _, want := range []string{"Device:    ATmega88PA", "Low fuse: 0x62", "High fuse: not present on this device"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\nGot:\n%s", want, output)
		}
	}
}
