package picoborg

// Board constants.
const (
	// DefaultAddress is the factory I2C address of the board.
	DefaultAddress uint16 = 0x44
	// BoardID is the value of the identity register on a genuine board.
	BoardID byte = 0x15

	// MinAddress and MaxAddress bound the addresses the board accepts.
	MinAddress uint16 = 0x03
	MaxAddress uint16 = 0x77

	// PWMMax is the full-scale PWM byte.
	PWMMax = 255

	// maxLen is the length of every register read. Byte 0 echoes the command.
	maxLen = 4
)

// Command codes.
const (
	cmdSetLED        byte = 1  // set the LED status
	cmdGetLED        byte = 2  // get the LED status
	cmdSetAFwd       byte = 3  // motor 2 PWM, forwards
	cmdSetARev       byte = 4  // motor 2 PWM, reverse
	cmdGetA          byte = 5  // motor 2 direction and PWM
	cmdSetBFwd       byte = 6  // motor 1 PWM, forwards
	cmdSetBRev       byte = 7  // motor 1 PWM, reverse
	cmdGetB          byte = 8  // motor 1 direction and PWM
	cmdAllOff        byte = 9  // switch everything off
	cmdResetEPO      byte = 10 // reset the EPO latch once the switch is clear
	cmdGetEPO        byte = 11 // EPO latched flag
	cmdSetEPOIgnore  byte = 12 // run without an EPO switch fitted
	cmdGetEPOIgnore  byte = 13
	cmdGetDriveFault byte = 14 // short-circuit / under-voltage flag
	cmdSetAllFwd     byte = 15 // all motors PWM, forwards
	cmdSetAllRev     byte = 16 // all motors PWM, reverse
	cmdSetFailsafe   byte = 17 // stop motors if communication is interrupted
	cmdGetFailsafe   byte = 18
	cmdSetEncMode    byte = 19 // encoder or speed mode
	cmdGetEncMode    byte = 20
	cmdMoveAFwd      byte = 21 // motor 2 forward by n ticks
	cmdMoveARev      byte = 22
	cmdMoveBFwd      byte = 23 // motor 1 forward by n ticks
	cmdMoveBRev      byte = 24
	cmdMoveAllFwd    byte = 25
	cmdMoveAllRev    byte = 26
	cmdGetEncMoving  byte = 27
	cmdSetEncSpeed   byte = 28 // PWM cap in encoder mode
	cmdGetEncSpeed   byte = 29
	cmdGetID         byte = 0x99
	cmdSetI2CAddress byte = 0xAA
)

// Register values.
const (
	valueFwd byte = 1
	valueRev byte = 2

	valueOn  byte = 1
	valueOff byte = 0
)

// Motor selects one drive channel.
type Motor int

// Motor channels. Motor 1 is driven by the board's "B" outputs.
const (
	Motor1 Motor = iota + 1
	Motor2
)

func (m Motor) String() string {
	switch m {
	case Motor1:
		return "motor1"
	case Motor2:
		return "motor2"
	default:
		return "motor?"
	}
}

type motorCommands struct {
	fwd, rev, get, moveFwd, moveRev byte
}

var motorTable = map[Motor]motorCommands{
	Motor1: {fwd: cmdSetBFwd, rev: cmdSetBRev, get: cmdGetB, moveFwd: cmdMoveBFwd, moveRev: cmdMoveBRev},
	Motor2: {fwd: cmdSetAFwd, rev: cmdSetARev, get: cmdGetA, moveFwd: cmdMoveAFwd, moveRev: cmdMoveARev},
}
