package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// boards maps a device tree model substring to its LED names under
// /sys/class/leds.
var boards = []struct {
	model string
	leds  map[string]string
}{
	{"Raspberry Pi", map[string]string{StatusLED: "ACT", "power": "PWR"}},
	{"NanoPC-T6", map[string]string{StatusLED: "sys_led", "user": "usr_led"}},
	{"Orange Pi", map[string]string{StatusLED: "green_led", "blue": "blue_led"}},
}

// New creates a controller for the board it is running on, or a no-op
// controller when the board is not recognised.
func New(logger *slog.Logger) Controller {
	return forModel(detectBoard(), logger)
}

func forModel(model string, logger *slog.Logger) Controller {
	for _, b := range boards {
		if strings.Contains(model, b.model) {
			logger.Info("Using sysfs LED controller", "board_model", model)
			return newSysfs(b.leds)
		}
	}
	logger.Info("No LED support detected, using no-op controller", "board_model", model)
	return newNoop(logger)
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	// the model string is NUL terminated
	return strings.TrimRight(string(data), "\x00")
}
