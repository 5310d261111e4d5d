package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Read the device signature",
	Long: `Enter programming mode, read the three signature bytes and look them up in
the device database. Unknown signatures are printed rather than rejected, so
new parts can be added with --devices.`,
	Args: cobra.NoArgs,
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}

type identifyReport struct {
	Signature avr.Signature `json:"signature"`
	Vendor    string        `json:"vendor"`
	FlashSize int           `json:"flash_size,omitempty"`
	Name      string        `json:"name,omitempty"`
	Family    string        `json:"family,omitempty"`
	Known     bool          `json:"known"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	return withSession(func(s *programmerSession) error {
		id := &avr.SignatureIdentifier{Port: s.port, Catalog: s.db, Options: s.opts}
		sig, err := id.ReadSignature(cmd.Context(), s.target())
		if err != nil {
			return err
		}
		if !sig.Valid() {
			return fmt.Errorf("%w: signature %s, check wiring and target power", isp.ErrDeviceNotFound, sig)
		}
		s.note("signature %s", sig)

		report := identifyReport{Signature: sig, Vendor: sig.Vendor(), FlashSize: sig.FlashSize()}
		if info, ok := s.db.Lookup(sig); ok {
			report.Name, report.Family, report.Known = info.Name, info.Family, true
		}

		if jsonOutput {
			return printJSON(report)
		}

		fmt.Printf("Signature: %s\n", sig)
		fmt.Printf("Vendor:    %s\n", report.Vendor)
		if report.FlashSize > 0 {
			fmt.Printf("Flash:     %d KiB\n", report.FlashSize/1024)
		}
		if report.Known {
			fmt.Printf("Device:    %s (%s)\n", report.Name, report.Family)
		} else {
			fmt.Println("Device:    unknown (not in device database)")
		}
		return nil
	})
}
