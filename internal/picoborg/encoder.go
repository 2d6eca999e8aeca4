package picoborg

import (
	"fmt"
	"time"

	"github.com/smazurov/marvin/internal/metrics"
)

// EncoderPollInterval is how often WaitWhileEncoderMoving polls the board.
const EncoderPollInterval = 100 * time.Millisecond

// SetEncoderMoveMode switches the board between encoder (closed loop tick
// counting) and speed mode.
func (b *Board) SetEncoderMoveMode(enabled bool) error {
	return b.write("set encoder mode", cmdSetEncMode, boolValue(enabled))
}

// GetEncoderMoveMode reports whether the board is in encoder mode.
func (b *Board) GetEncoderMoveMode() (bool, error) {
	return b.readFlag("get encoder mode", cmdGetEncMode)
}

// EncoderMoveMotor moves one motor by counts encoder ticks. Negative counts
// move in reverse.
func (b *Board) EncoderMoveMotor(m Motor, counts int16) error {
	cmds, ok := motorTable[m]
	if !ok {
		return fmt.Errorf("unknown motor %d", m)
	}
	cmd := cmds.moveFwd
	if counts < 0 {
		cmd = cmds.moveRev
	}
	hi, lo := tickBytes(counts)
	return b.write("encoder move "+m.String(), cmd, hi, lo)
}

// EncoderMoveMotors moves both motors by counts encoder ticks.
func (b *Board) EncoderMoveMotors(counts int16) error {
	cmd := cmdMoveAllFwd
	if counts < 0 {
		cmd = cmdMoveAllRev
	}
	hi, lo := tickBytes(counts)
	return b.write("encoder move all", cmd, hi, lo)
}

// IsEncoderMoving reports whether an encoder move is still in progress.
func (b *Board) IsEncoderMoving() (bool, error) {
	return b.readFlag("get encoder moving", cmdGetEncMoving)
}

// WaitWhileEncoderMoving blocks until the current encoder move finishes or
// timeout elapses, polling every EncoderPollInterval. It returns true when
// the move finished and false when it timed out.
func (b *Board) WaitWhileEncoderMoving(timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		moving, err := b.IsEncoderMoving()
		if err != nil {
			metrics.ObserveEncoderWait(false, err)
			return false, err
		}
		if !moving {
			metrics.ObserveEncoderWait(true, nil)
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			metrics.ObserveEncoderWait(false, nil)
			return false, nil
		}
		time.Sleep(min(EncoderPollInterval, remaining))
	}
}

// SetEncoderSpeed caps the drive level used in encoder mode, from 0 to 1.
func (b *Board) SetEncoderSpeed(power float64) (float64, error) {
	if err := b.write("set encoder speed", cmdSetEncSpeed, pwmFor(power)); err != nil {
		return 0, err
	}
	return power, nil
}

// GetEncoderSpeed reads the encoder mode drive cap.
func (b *Board) GetEncoderSpeed() (float64, error) {
	payload, err := b.read("get encoder speed", cmdGetEncSpeed)
	if err != nil {
		return 0, err
	}
	return float64(payload[0]) / PWMMax, nil
}

// tickBytes encodes the magnitude of counts big-endian.
func tickBytes(counts int16) (hi, lo byte) {
	mag := uint16(counts)
	if counts < 0 {
		mag = uint16(-int32(counts))
	}
	return byte(mag >> 8), byte(mag)
}
