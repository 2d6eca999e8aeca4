package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/smazurov/marvin/internal/logging"
	"github.com/smazurov/marvin/internal/picoborg"
)

// initCommandLogging sets up plain text logging for one-shot commands.
func initCommandLogging(verbose bool) {
	cfg := logging.Config{Level: "info", Format: "text"}
	if verbose {
		cfg.Level = "debug"
	}
	logging.Initialize(cfg)
}

// CreateScanCmd creates the scan command.
func CreateScanCmd() *cobra.Command {
	var busName string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find PicoBorg Reverse boards on an I2C bus",
		Long: `Probes every valid I2C address on the bus and lists the ones answering ` +
			`with the PicoBorg Reverse identity.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			initCommandLogging(verbose)
			logger := logging.GetLogger("picoborg")

			if _, err := host.Init(); err != nil {
				logger.Error("Failed to initialise host drivers", "error", err)
				os.Exit(1)
			}

			bus, err := i2creg.Open(busName)
			if err != nil {
				logger.Error("Failed to open I2C bus", "bus", busName, "error", err)
				os.Exit(1)
			}
			defer bus.Close()

			for _, addr := range picoborg.Scan(bus, logger) {
				fmt.Printf("0x%02X\n", addr)
			}
		},
	}

	cmd.Flags().StringVarP(&busName, "bus", "b", "", "I2C bus name or number (empty for the first bus)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}
