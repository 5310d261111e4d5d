package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/opspec"
)

var readOps []string

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read and decode fuse and lock bits",
	Long: `Identify the target, read every configuration byte it has and print each
field with its status, raw value and mask.

-U accepts avrdude-style read and verify operations. Read operations limit the
output to the listed memories; verify operations fail unless the memory holds
the given value.

Examples:
  avrisp read --adapter usbasp
  avrisp read -U lfuse:r -U hfuse:r
  avrisp read -U lock:v:0xFF:m`,
	Args: cobra.NoArgs,
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().StringArrayVarP(&readOps, "memory", "U", nil,
		"memory operation memtype:r or memtype:v:value[:m]")
}

type readReport struct {
	Device   deviceReport  `json:"device"`
	Readings []isp.Reading `json:"readings"`
	Missing  []fuse.Group  `json:"missing,omitempty"`
}

func runRead(cmd *cobra.Command, args []string) error {
	ops, err := opspec.ParseAll(readOps)
	if err != nil {
		return err
	}
	show := make(map[fuse.Group]bool)
	for _, op := range ops {
		if op.Kind == opspec.Write {
			return fmt.Errorf("%s: use 'avrisp write' to change fuses", op)
		}
		show[op.Group] = true
	}

	cfg := isp.Config{
		Bus:       busIndex,
		ResetLine: resetLine,
		BaudRate:  baudRate,
		Mode:      isp.ModeRead,
	}

	var res *isp.Result
	err = withSession(func(s *programmerSession) error {
		var err error
		res, err = s.run(cmd.Context(), cfg)
		return err
	})
	if err != nil {
		return err
	}

	report := readReport{Device: newDeviceReport(res.Device)}
	for _, r := range res.Readings {
		if len(show) == 0 || show[r.Group] {
			report.Readings = append(report.Readings, r)
		}
	}
	for _, skip := range res.Skipped {
		if errors.Is(skip.Reason, isp.ErrUnsupportedGroup) && (len(show) == 0 || show[skip.Group]) {
			report.Missing = append(report.Missing, skip.Group)
		}
	}

	if jsonOutput {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printDevice(res.Device)
		for _, r := range report.Readings {
			printReading(r)
		}
		for _, g := range report.Missing {
			fmt.Printf("\n%s: not present on this device\n", g.Label())
		}
	}

	return verifyReadings(res.Readings, ops)
}

// verifyReadings checks the v operations against what was read.
func verifyReadings(readings []isp.Reading, ops []opspec.Operation) error {
	var errs []error
	for _, op := range ops {
		if op.Kind != opspec.Verify {
			continue
		}
		found := false
		for _, r := range readings {
			if r.Group != op.Group {
				continue
			}
			found = true
			if r.Raw != op.Value {
				errs = append(errs, &isp.VerifyError{Group: op.Group, Want: op.Value, Got: r.Raw})
			} else if !jsonOutput {
				fmt.Printf("%s verified: 0x%02X\n", op.Group.Label(), r.Raw)
			}
		}
		if !found {
			errs = append(errs, fmt.Errorf("%s: %w", op.Group.Label(), isp.ErrUnsupportedGroup))
		}
	}
	return errors.Join(errs...)
}
