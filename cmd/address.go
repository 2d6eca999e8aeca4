package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"periph.io/x/host/v3"

	"github.com/smazurov/marvin/internal/logging"
	"github.com/smazurov/marvin/internal/picoborg"
)

// readdressable is the part of the board driver set-address needs.
type readdressable interface {
	SetAddress(newAddr uint16) error
	Release()
}

// CreateSetAddressCmd creates the set-address command.
func CreateSetAddressCmd() *cobra.Command {
	var busName, from, to string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "set-address",
		Short: "Move a PicoBorg Reverse to a new I2C address",
		Long: `Writes a new I2C address to the board. The board stores it, so the change ` +
			`survives power cycles. Run scan first if the current address is unknown.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			initCommandLogging(verbose)
			logger := logging.GetLogger("picoborg")

			if err := setAddress(busName, from, to, logger); err != nil {
				logger.Error("Failed to change address", "error", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&busName, "bus", "b", "", "I2C bus name or number (empty for the first bus)")
	cmd.Flags().StringVar(&from, "from", "0x44", "Current board address")
	cmd.Flags().StringVar(&to, "to", "", "New board address")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func setAddress(busName, from, to string, logger *slog.Logger) error {
	oldAddr, err := picoborg.ParseAddress(from)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	newAddr, err := picoborg.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initialise host drivers: %w", err)
	}

	board, err := picoborg.Open(busName, oldAddr, logger)
	if err != nil {
		return err
	}
	if err := moveBoard(board, newAddr); err != nil {
		return err
	}
	fmt.Printf("Board moved from 0x%02X to 0x%02X\n", oldAddr, newAddr)
	return nil
}

// moveBoard re-addresses board and always releases it, so the motors are
// switched off and the bus closed even when the move fails.
func moveBoard(board readdressable, newAddr uint16) error {
	defer board.Release()
	return board.SetAddress(newAddr)
}
