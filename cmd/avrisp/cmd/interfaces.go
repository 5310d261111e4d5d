package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/adapter"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available ISP programmers",
	Long: `Scan the host for ISP programmers (USBasp, CMSIS-DAP probes, serial ports for
ArduinoISP, Linux spidev buses) and print a summary. The simulator is always
listed.`,
	Args: cobra.NoArgs,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	infos, err := adapter.DiscoverInterfaces(ctx)
	if err != nil {
		return fmt.Errorf("discover interfaces: %w", err)
	}

	if jsonOutput {
		return printJSON(infos)
	}

	fmt.Println("Detected ISP programmers:")
	for _, iface := range infos {
		switch {
		case iface.Path != "":
			fmt.Printf("  - %s [%s] (%s)\n", iface.Label(), iface.Kind, iface.Path)
		case iface.VendorID != 0 || iface.ProductID != 0:
			fmt.Printf("  - %s [%s] (VID:PID %04X:%04X)\n", iface.Label(), iface.Kind, iface.VendorID, iface.ProductID)
		default:
			fmt.Printf("  - %s [%s]\n", iface.Label(), iface.Kind)
		}
	}
	return nil
}
