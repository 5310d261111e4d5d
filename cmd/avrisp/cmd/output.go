package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mattn/go-isatty"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func statusText(r fuse.FieldReport) string {
	if !colorEnabled() {
		return r.Status()
	}
	if r.Enabled {
		return ansiGreen + r.Status() + ansiReset
	}
	return ansiRed + r.Status() + ansiReset
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDevice(dev *isp.Device) {
	sig := avr.Signature(dev.Signature)
	fmt.Printf("Device:    %s\n", dev.Name)
	fmt.Printf("Signature: %s", sig)
	if sig.Valid() {
		fmt.Printf(" (%s)", sig.Vendor())
	}
	fmt.Println()
}

// printReading prints one decoded byte as a table in field order.
func printReading(r isp.Reading) {
	fmt.Printf("\n%s: 0x%02X\n", r.Group.Label(), r.Raw)

	nameHeader := "Fuse name"
	if r.Group == fuse.GroupLock {
		nameHeader = "Lock bit name"
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  %s\tStatus\tValue\tMask\n", nameHeader)
	for _, f := range r.Fields {
		fmt.Fprintf(w, "  %s\t%s\t0x%02X\t0x%02X", f.Name, statusText(f), f.RawValue, f.Mask)
		if verbose && f.Description != "" {
			fmt.Fprintf(w, "\t%s", f.Description)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

// deviceReport is the JSON form of an identified device.
type deviceReport struct {
	Name      string        `json:"name"`
	Signature avr.Signature `json:"signature"`
	Vendor    string        `json:"vendor"`
	FlashSize int           `json:"flash_size,omitempty"`
}

func newDeviceReport(dev *isp.Device) deviceReport {
	sig := avr.Signature(dev.Signature)
	return deviceReport{
		Name:      dev.Name,
		Signature: sig,
		Vendor:    sig.Vendor(),
		FlashSize: sig.FlashSize(),
	}
}
