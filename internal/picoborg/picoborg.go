// Package picoborg drives a PicoBorg Reverse motor controller over I2C.
//
// Every setter issues exactly one bus write and returns the value it
// commanded; nothing is read back or cached. Reads are register-style: the
// command byte is written and maxLen bytes are read, the first of which
// echoes the command.
package picoborg

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/smazurov/marvin/internal/hw"
	"github.com/smazurov/marvin/internal/metrics"
)

const deviceName = "picoborg"

// Board is an open PicoBorg Reverse. It owns the bus exclusively.
type Board struct {
	dev      i2c.Dev
	closer   io.Closer
	logger   *slog.Logger
	id       byte
	released bool
}

// Open opens the named I2C bus ("" selects the first one) and connects to
// the board at addr. The bus is closed on Release.
func Open(busName string, addr uint16, logger *slog.Logger) (*Board, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, hw.Unavailable(deviceName, "open bus", err)
	}

	b, err := New(bus, addr, logger)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	b.closer = bus
	return b, nil
}

// New connects to the board at addr on an already open bus and verifies its
// identity. An identity mismatch is logged but not fatal, so compatible
// boards keep working. A failed identity read means nothing answered.
func New(bus i2c.Bus, addr uint16, logger *slog.Logger) (*Board, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Board{
		dev:    i2c.Dev{Bus: bus, Addr: addr},
		logger: logger,
	}

	payload, err := b.read("get id", cmdGetID)
	if err != nil {
		return nil, hw.Unavailable(deviceName, "identify", err)
	}
	b.id = payload[0]

	if b.id != BoardID {
		logger.Warn("Found a device that is not a PicoBorg Reverse",
			"address", fmt.Sprintf("0x%02X", addr),
			"id", fmt.Sprintf("0x%02X", b.id),
			"expected", fmt.Sprintf("0x%02X", BoardID))
	} else {
		logger.Info("Found PicoBorg Reverse", "address", fmt.Sprintf("0x%02X", addr))
	}
	return b, nil
}

// ID returns the identity byte reported at construction.
func (b *Board) ID() byte {
	return b.id
}

// Address returns the board's current bus address.
func (b *Board) Address() uint16 {
	return b.dev.Addr
}

// SetMotor drives one motor. Power is nominally in [-1, 1]; the PWM byte
// saturates at PWMMax for larger magnitudes. Returns the commanded power.
func (b *Board) SetMotor(m Motor, power float64) (float64, error) {
	cmds, ok := motorTable[m]
	if !ok {
		return 0, fmt.Errorf("unknown motor %d", m)
	}

	cmd, pwm := cmds.fwd, pwmFor(power)
	if power < 0 {
		cmd = cmds.rev
	}
	if err := b.write("set "+m.String(), cmd, pwm); err != nil {
		return 0, err
	}

	metrics.SetCommandedPower(m.String(), power)
	b.logger.Debug("Set motor power", "motor", m.String(), "power", power, "pwm", pwm)
	return power, nil
}

// SetMotors drives both motors with a single write.
func (b *Board) SetMotors(power float64) (float64, error) {
	cmd, pwm := cmdSetAllFwd, pwmFor(power)
	if power < 0 {
		cmd = cmdSetAllRev
	}
	if err := b.write("set motors", cmd, pwm); err != nil {
		return 0, err
	}

	metrics.SetCommandedPower(Motor1.String(), power)
	metrics.SetCommandedPower(Motor2.String(), power)
	b.logger.Debug("Set all motors power", "power", power, "pwm", pwm)
	return power, nil
}

// GetMotor reads a motor's drive level in [-1, 1]. Anything the board
// reports other than forward or reverse reads as 0.
func (b *Board) GetMotor(m Motor) (float64, error) {
	cmds, ok := motorTable[m]
	if !ok {
		return 0, fmt.Errorf("unknown motor %d", m)
	}

	payload, err := b.read("get "+m.String(), cmds.get)
	if err != nil {
		return 0, err
	}
	return decodePower(payload[0], payload[1]), nil
}

// GetMotors reads both motors.
func (b *Board) GetMotors() (motor1, motor2 float64, err error) {
	if motor1, err = b.GetMotor(Motor1); err != nil {
		return 0, 0, err
	}
	if motor2, err = b.GetMotor(Motor2); err != nil {
		return 0, 0, err
	}
	return motor1, motor2, nil
}

// MotorsOff switches every output off.
func (b *Board) MotorsOff() error {
	if err := b.write("motors off", cmdAllOff, 0); err != nil {
		return err
	}
	metrics.SetCommandedPower(Motor1.String(), 0)
	metrics.SetCommandedPower(Motor2.String(), 0)
	return nil
}

// SetLED switches the onboard LED.
func (b *Board) SetLED(on bool) error {
	return b.write("set led", cmdSetLED, boolValue(on))
}

// GetLED reads the onboard LED state.
func (b *Board) GetLED() (bool, error) {
	return b.readFlag("get led", cmdGetLED)
}

// GetEPO reads the emergency power off latch. When true the board ignores
// motor commands until ResetEPO is called, unless the EPO is ignored.
func (b *Board) GetEPO() (bool, error) {
	return b.readFlag("get epo", cmdGetEPO)
}

// ResetEPO clears the EPO latch. The latch is never cleared implicitly.
func (b *Board) ResetEPO() error {
	return b.write("reset epo", cmdResetEPO, 0)
}

// SetEPOIgnore lets the board drive motors without an EPO switch fitted.
func (b *Board) SetEPOIgnore(ignore bool) error {
	return b.write("set epo ignore", cmdSetEPOIgnore, boolValue(ignore))
}

// GetEPOIgnore reads the EPO ignore flag.
func (b *Board) GetEPOIgnore() (bool, error) {
	return b.readFlag("get epo ignore", cmdGetEPOIgnore)
}

// GetDriveFault reads the drive fault flag (short circuit, under voltage).
func (b *Board) GetDriveFault() (bool, error) {
	return b.readFlag("get drive fault", cmdGetDriveFault)
}

// SetCommsFailsafe makes the board stop the motors if it stops hearing
// from the host.
func (b *Board) SetCommsFailsafe(enabled bool) error {
	return b.write("set failsafe", cmdSetFailsafe, boolValue(enabled))
}

// GetCommsFailsafe reads the failsafe flag.
func (b *Board) GetCommsFailsafe() (bool, error) {
	return b.readFlag("get failsafe", cmdGetFailsafe)
}

// Release switches the motors off and closes the bus if Open created it.
// Failures are logged, never returned. Calls after the first do nothing.
func (b *Board) Release() {
	if b.released {
		return
	}
	b.released = true

	if err := b.MotorsOff(); err != nil {
		b.logger.Error("Failed to switch motors off during release", "error", err)
	}
	if b.closer != nil {
		if err := b.closer.Close(); err != nil {
			b.logger.Warn("Failed to close I2C bus", "error", err)
		}
	}
}

func (b *Board) write(op string, data ...byte) error {
	err := b.dev.Tx(data, nil)
	metrics.ObserveBusTransfer(deviceName, op, err)
	if err != nil {
		return hw.Transport(deviceName, op, err)
	}
	return nil
}

// read returns the payload of a register read, without the echoed command.
func (b *Board) read(op string, cmd byte) ([]byte, error) {
	buf := make([]byte, maxLen)
	err := b.dev.Tx([]byte{cmd}, buf)
	metrics.ObserveBusTransfer(deviceName, op, err)
	if err != nil {
		return nil, hw.Transport(deviceName, op, err)
	}
	if buf[0] != cmd {
		b.logger.Debug("Reply does not echo command",
			"op", op, "command", cmd, "echo", buf[0])
	}
	return buf[1:], nil
}

func (b *Board) readFlag(op string, cmd byte) (bool, error) {
	payload, err := b.read(op, cmd)
	if err != nil {
		return false, err
	}
	return payload[0] == valueOn, nil
}

// pwmFor scales |power| to a PWM byte, saturating at PWMMax.
func pwmFor(power float64) byte {
	if math.IsNaN(power) {
		return 0
	}
	pwm := math.Round(math.Abs(power) * PWMMax)
	if pwm > PWMMax {
		pwm = PWMMax
	}
	return byte(pwm)
}

func decodePower(direction, pwm byte) float64 {
	power := float64(pwm) / PWMMax
	switch direction {
	case valueFwd:
		return power
	case valueRev:
		return -power
	default:
		return 0
	}
}

func boolValue(on bool) byte {
	if on {
		return valueOn
	}
	return valueOff
}
