package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/opspec"
)

var (
	writeLow      string
	writeHigh     string
	writeExtended string
	writeLock     string
	writeOps      []string
	writeVerify   bool
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write fuse and lock bits",
	Long: `Identify the target and write the configuration bytes that were given a
value. Bytes without a value are left unchanged. Values are not checked
against the device: a wrong fuse can disable ISP or the reset pin.

Lock bits are written last and can only be cleared again by a chip erase.

Examples:
  avrisp write --low 0xE2
  avrisp write --high 0xD9 --extended 0xFD --verify
  avrisp write -U lfuse:w:0xE2:m -U lock:w:0xFC:m`,
	Args: cobra.NoArgs,
	RunE: runWrite,
}

func init() {
	rootCmd.AddCommand(writeCmd)

	f := writeCmd.Flags()
	f.StringVar(&writeLow, "low", "", "low fuse value (hex 0xNN, binary 0bNNNNNNNN or decimal)")
	f.StringVar(&writeHigh, "high", "", "high fuse value")
	f.StringVar(&writeExtended, "extended", "", "extended fuse value")
	f.StringVar(&writeLock, "lock", "", "lock bits value")
	f.StringArrayVarP(&writeOps, "memory", "U", nil, "memory operation memtype:w:value[:m]")
	f.BoolVar(&writeVerify, "verify", false, "read every written byte back and compare")
}

// writeRequests merges the value flags and -U operations into one request
// per group.
func writeRequests() ([]fuse.WriteRequest, error) {
	values := map[fuse.Group]string{
		fuse.GroupLow:      writeLow,
		fuse.GroupHigh:     writeHigh,
		fuse.GroupExtended: writeExtended,
		fuse.GroupLock:     writeLock,
	}

	reqs := make(map[fuse.Group]fuse.WriteRequest)
	for g, s := range values {
		if s == "" {
			continue
		}
		v, err := fuse.ParseByte(s)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", g, err)
		}
		reqs[g] = fuse.Set(g, v)
	}

	ops, err := opspec.ParseAll(writeOps)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if op.Kind != opspec.Write {
			return nil, fmt.Errorf("%s: only write operations are allowed here", op)
		}
		if prev, ok := reqs[op.Group]; ok && prev.Value != op.Value {
			return nil, fmt.Errorf("%s: conflicts with --%s 0x%02X", op, op.Group, prev.Value)
		}
		reqs[op.Group] = op.Request()
	}

	if len(reqs) == 0 {
		return nil, errors.New("nothing to write: give --low, --high, --extended, --lock or -U")
	}

	out := make([]fuse.WriteRequest, 0, len(fuse.AllGroups))
	for _, g := range fuse.AllGroups {
		if req, ok := reqs[g]; ok {
			out = append(out, req)
		} else {
			out = append(out, fuse.Omit(g))
		}
	}
	return out, nil
}

type writeReport struct {
	Device    deviceReport  `json:"device"`
	Written   []writtenByte `json:"written"`
	Unchanged []fuse.Group  `json:"unchanged,omitempty"`
	Missing   []fuse.Group  `json:"missing,omitempty"`
	Verified  []isp.Reading `json:"verified,omitempty"`
}

type writtenByte struct {
	Group fuse.Group `json:"group"`
	Value uint8      `json:"value"`
}

func runWrite(cmd *cobra.Command, args []string) error {
	reqs, err := writeRequests()
	if err != nil {
		return err
	}

	cfg := isp.Config{
		Bus:       busIndex,
		ResetLine: resetLine,
		BaudRate:  baudRate,
		Mode:      isp.ModeWrite,
		Writes:    reqs,
		Verify:    writeVerify,
	}

	var res *isp.Result
	runErr := withSession(func(s *programmerSession) error {
		var err error
		res, err = s.run(cmd.Context(), cfg)
		return err
	})
	if res == nil || res.Device == nil {
		return runErr
	}

	report := writeReport{Device: newDeviceReport(res.Device), Verified: res.Verified}
	for _, w := range res.Written {
		report.Written = append(report.Written, writtenByte{Group: w.Group, Value: w.Value})
	}
	for _, skip := range res.Skipped {
		switch {
		case errors.Is(skip.Reason, isp.ErrValueOmitted):
			report.Unchanged = append(report.Unchanged, skip.Group)
		case errors.Is(skip.Reason, isp.ErrUnsupportedGroup):
			report.Missing = append(report.Missing, skip.Group)
		}
	}

	if jsonOutput {
		if err := printJSON(report); err != nil {
			return err
		}
		return runErr
	}

	printDevice(res.Device)
	fmt.Println()
	for _, w := range report.Written {
		fmt.Printf("Wrote %s = 0x%02X\n", w.Group.Label(), w.Value)
	}
	for _, g := range report.Unchanged {
		fmt.Printf("%s: unchanged\n", g.Label())
	}
	for _, g := range report.Missing {
		fmt.Printf("%s: not present on this device, skipped\n", g.Label())
	}
	for _, r := range report.Verified {
		fmt.Printf("%s verified: 0x%02X\n", r.Group.Label(), r.Raw)
	}
	return runErr
}
