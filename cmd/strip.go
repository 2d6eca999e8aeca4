package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"periph.io/x/host/v3"

	"github.com/smazurov/marvin/internal/blinkt"
	"github.com/smazurov/marvin/internal/logging"
)

// parseColor parses an RRGGBB hex colour, with or without a leading '#'.
func parseColor(s string) (r, g, b uint8, err error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil || len(raw) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid colour %q, expected RRGGBB", s)
	}
	return raw[0], raw[1], raw[2], nil
}

// CreateStripCmd creates the strip command.
func CreateStripCmd() *cobra.Command {
	var dataPin, clockPin, color string
	var duration time.Duration
	var verbose bool

	cmd := &cobra.Command{
		Use:   "strip",
		Short: "Light the LED strip to check its wiring",
		Long: `Sets every pixel of the LED strip to one colour, holds it for the given ` +
			`duration and then clears the strip.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			initCommandLogging(verbose)
			logger := logging.GetLogger("blinkt")

			r, g, b, err := parseColor(color)
			if err != nil {
				logger.Error("Invalid colour", "error", err)
				os.Exit(1)
			}

			if _, err := host.Init(); err != nil {
				logger.Error("Failed to initialise host drivers", "error", err)
				os.Exit(1)
			}

			strip, err := blinkt.Open(dataPin, clockPin, logger)
			if err != nil {
				logger.Error("Failed to open LED strip", "data", dataPin, "clock", clockPin, "error", err)
				os.Exit(1)
			}
			defer strip.Release()

			strip.SetAll(r, g, b)
			if err := strip.Show(); err != nil {
				logger.Error("Failed to update LED strip", "error", err)
				return
			}
			logger.Info("LED strip lit", "color", color, "duration", duration)
			time.Sleep(duration)
		},
	}

	cmd.Flags().StringVar(&dataPin, "data", "GPIO23", "Data GPIO")
	cmd.Flags().StringVar(&clockPin, "clock", "GPIO24", "Clock GPIO")
	cmd.Flags().StringVar(&color, "color", "ff0000", "Colour as RRGGBB")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 2*time.Second, "How long to keep the strip lit")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}
