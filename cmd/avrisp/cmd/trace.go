package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/trace"
)

var traceSession string

var traceCmd = &cobra.Command{
	Use:   "trace <file>",
	Short: "Print a recorded protocol trace",
	Long: `Print the SPI and reset-line calls recorded with --trace, one per line.

Example:
  avrisp write --low 0xE2 --trace run.cbor
  avrisp trace run.cbor`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringVar(&traceSession, "session", "", "only show events of this session ID")
}

func runTrace(cmd *cobra.Command, args []string) error {
	r, err := trace.NewReader(args[0], traceSession)
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer r.Close()

	var events []trace.Event
	session := ""
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read trace: %w", err)
		}

		if jsonOutput {
			events = append(events, ev)
			continue
		}
		if ev.Session != session {
			session = ev.Session
			fmt.Printf("Session %s (%s)\n", session, ev.Timestamp.Format("2006-01-02 15:04:05"))
		}
		fmt.Println(ev.String())
	}

	if jsonOutput {
		return printJSON(events)
	}
	return nil
}
