package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/avr/deviceinfo"
	"github.com/OpenTraceLab/OpenTraceISP/pkg/fuse"
)

var devicesYAML bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List known devices",
	Long: `List the devices in the built-in database plus any loaded with --devices.

--yaml prints the database in the --devices file format, a starting point for
describing new parts.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.Flags().BoolVar(&devicesYAML, "yaml", false, "print definitions as YAML")
}

type deviceListEntry struct {
	Name      string       `json:"name"`
	Family    string       `json:"family,omitempty"`
	Signature string       `json:"signature"`
	Groups    []fuse.Group `json:"groups"`
}

func runDevices(cmd *cobra.Command, args []string) error {
	db, err := loadDeviceDB()
	if err != nil {
		return err
	}
	all := db.All()

	if devicesYAML {
		data, err := deviceinfo.Marshal(all)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	entries := make([]deviceListEntry, 0, len(all))
	for _, info := range all {
		layout, err := info.Layout()
		if err != nil {
			return fmt.Errorf("%s: %w", info.Name, err)
		}
		entries = append(entries, deviceListEntry{
			Name:      info.Name,
			Family:    info.Family,
			Signature: info.Signature.String(),
			Groups:    layout.Groups(),
		})
	}

	if jsonOutput {
		return printJSON(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Name\tSignature\tFamily\tBytes")
	for _, e := range entries {
		groups := make([]string, len(e.Groups))
		for i, g := range e.Groups {
			groups[i] = g.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Signature, e.Family, strings.Join(groups, ","))
	}
	return w.Flush()
}
