package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceISP/pkg/isp"
)

var (
	// Global flags
	verbose     bool
	jsonOutput  bool
	configPath  string
	adapterType string
	serialPort  string
	busIndex    int
	resetLine   int
	baudRate    int
	devicesFile string
	tracePath   string
	partName    string

	// Simulator target
	simSignature string
	simLow       string
	simHigh      string
	simExtended  string
	simLock      string
)

var rootCmd = &cobra.Command{
	Use:   "avrisp",
	Short: "AVR ISP fuse and lock-bit programmer",
	Long: `Read, decode and write the fuse and lock bytes of AVR microcontrollers
over the ISP (SPI + RESET) interface.

Examples:
  avrisp read                                       # Read fuses of the simulated ATmega328P
  avrisp read --adapter usbasp                      # Read through a USBasp
  avrisp write --adapter usbasp --low 0xE2          # Write only the low fuse
  avrisp write -a arduinoisp -p /dev/ttyACM0 -U lfuse:w:0xE2:m
  avrisp decode high 0xD9 --part ATmega328P         # Decode a byte offline`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: applyConfig,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output (protocol steps on stderr)")
	pf.BoolVar(&jsonOutput, "json", false, "print results as JSON")
	pf.StringVar(&configPath, "config", "", "config file (default ~/.config/opentraceisp/config.yaml)")

	pf.StringVarP(&adapterType, "adapter", "a", "simulator",
		"programmer type (simulator, usbasp, cmsisdap, arduinoisp, linux)")
	pf.StringVarP(&serialPort, "port", "p", "", "serial port of an ArduinoISP programmer")
	pf.IntVar(&busIndex, "bus", 0, "SPI bus index")
	pf.IntVar(&resetLine, "reset-line", 0, "GPIO line wired to the target RESET pin")
	pf.IntVarP(&baudRate, "baudrate", "b", isp.DefaultBaudRate, "SPI clock in Hz")
	pf.StringVar(&devicesFile, "devices", "", "YAML file with extra device definitions")
	pf.StringVar(&tracePath, "trace", "", "record every SPI and reset call to this CBOR file")
	pf.StringVar(&partName, "part", "", "skip the signature read and assume this device")

	pf.StringVar(&simSignature, "sim-signature", "1E 95 0F", "simulator: device signature")
	pf.StringVar(&simLow, "sim-low", "0x62", "simulator: initial low fuse")
	pf.StringVar(&simHigh, "sim-high", "0xD9", "simulator: initial high fuse")
	pf.StringVar(&simExtended, "sim-extended", "0xFF", "simulator: initial extended fuse")
	pf.StringVar(&simLock, "sim-lock", "0xFF", "simulator: initial lock bits")
}
