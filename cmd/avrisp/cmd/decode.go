package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <group> <value>",
	Short: "Decode a fuse or lock byte without hardware",
	Long: `Decode a configuration byte with the field table of a device from the
database. The group is low, high, extended or lock (or lfuse, hfuse, efuse).

Examples:
  avrisp decode low 0x62 --part ATmega328P
  avrisp decode hfuse 0xDF --part ATtiny85`,
	Args: cobra.ExactArgs(2),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	if partName == "" {
		return errors.New("--part is required")
	}
	g, err := fuse.ParseGroup(args[0])
	if err != nil {
		return err
	}
	v, err := fuse.ParseByte(args[1])
	if err != nil {
		return err
	}

	db, err := loadDeviceDB()
	if err != nil {
		return err
	}
	info, ok := db.LookupName(partName)
	if !ok {
		return fmt.Errorf("unknown part %q (see 'avrisp devices')", partName)
	}
	layout, err := info.Layout()
	if err != nil {
		return err
	}
	if !layout.Supports(g) {
		return fmt.Errorf("%s: %s: %w", info.Name, g.Label(), isp.ErrUnsupportedGroup)
	}

	reading := isp.Reading{Group: g, Raw: v, Fields: fuse.Decode(v, layout.Fields(g))}
	if jsonOutput {
		return printJSON(reading)
	}
	fmt.Printf("Device:    %s\n", info.Name)
	printReading(reading)
	return nil
}
