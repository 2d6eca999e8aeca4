package picoborg

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/smazurov/marvin/internal/hw"
)

// addressSettle is how long the board needs before answering at a new address.
var addressSettle = 100 * time.Millisecond

// Scan probes every valid address on bus and returns those where a board
// answers with the expected identity.
func Scan(bus i2c.Bus, logger *slog.Logger) []uint16 {
	if logger == nil {
		logger = slog.Default()
	}

	var found []uint16
	for addr := MinAddress; addr <= MaxAddress; addr++ {
		dev := i2c.Dev{Bus: bus, Addr: addr}
		buf := make([]byte, maxLen)
		if err := dev.Tx([]byte{cmdGetID}, buf); err != nil {
			continue
		}
		if buf[0] == cmdGetID && buf[1] == BoardID {
			logger.Info("Found PicoBorg Reverse", "address", fmt.Sprintf("0x%02X", addr))
			found = append(found, addr)
		}
	}

	if len(found) == 0 {
		logger.Info("No PicoBorg Reverse boards found", "bus", bus.String())
	}
	return found
}

// SetAddress moves the board to newAddr. The new address is persisted by the
// board, so the change survives power cycles. The identity is re-read at the
// new address before the driver switches over to it.
func (b *Board) SetAddress(newAddr uint16) error {
	if newAddr < MinAddress || newAddr > MaxAddress {
		return fmt.Errorf("address 0x%02X out of range 0x%02X-0x%02X", newAddr, MinAddress, MaxAddress)
	}

	if err := b.write("set address", cmdSetI2CAddress, byte(newAddr)); err != nil {
		return err
	}
	time.Sleep(addressSettle)

	probe := &Board{dev: i2c.Dev{Bus: b.dev.Bus, Addr: newAddr}, logger: b.logger}
	payload, err := probe.read("get id", cmdGetID)
	if err != nil {
		return hw.Unavailable(deviceName, "verify address", err)
	}
	if payload[0] != BoardID {
		return fmt.Errorf("device at 0x%02X reports ID 0x%02X after address change", newAddr, payload[0])
	}

	b.logger.Info("PicoBorg Reverse address changed",
		"from", fmt.Sprintf("0x%02X", b.dev.Addr),
		"to", fmt.Sprintf("0x%02X", newAddr))
	b.dev.Addr = newAddr
	return nil
}

// ParseAddress parses a bus address written in decimal, hex ("0x44") or
// octal and checks it is in the usable range.
func ParseAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid I2C address %q: %w", s, err)
	}
	addr := uint16(v)
	if addr < MinAddress || addr > MaxAddress {
		return 0, fmt.Errorf("I2C address 0x%02X out of range 0x%02X..0x%02X", addr, MinAddress, MaxAddress)
	}
	return addr, nil
}
