package robot

import (
	"github.com/smazurov/marvin/internal/picoborg"
)

// Board is the part of the motor controller driver the robot uses.
type Board interface {
	SetMotor(m picoborg.Motor, power float64) (float64, error)
	SetMotors(power float64) (float64, error)
	GetMotor(m picoborg.Motor) (float64, error)
	SetLED(on bool) error
	GetLED() (bool, error)
	GetEPO() (bool, error)
	ResetEPO() error
	GetDriveFault() (bool, error)
	SetEPOIgnore(ignore bool) error
	SetCommsFailsafe(enabled bool) error
	Release()
}

// Controller adapts a motor controller board to Motion, Indicator and
// Safety.
type Controller struct {
	board Board
}

// NewController wraps board.
func NewController(board Board) *Controller {
	return &Controller{board: board}
}

// Forward runs both motors forward.
func (c *Controller) Forward(speed float64) error {
	_, err := c.board.SetMotors(speed)
	return err
}

// Backward runs both motors backward.
func (c *Controller) Backward(speed float64) error {
	_, err := c.board.SetMotors(-speed)
	return err
}

func (c *Controller) Left(speed float64) error {
	return c.drive(speed, -speed)
}

func (c *Controller) Right(speed float64) error {
	return c.drive(-speed, speed)
}

// Reverse reads both motors back and commands each one negated.
func (c *Controller) Reverse() error {
	m1, err := c.board.GetMotor(picoborg.Motor1)
	if err != nil {
		return err
	}
	m2, err := c.board.GetMotor(picoborg.Motor2)
	if err != nil {
		return err
	}
	return c.drive(-m1, -m2)
}

func (c *Controller) Stop() error {
	_, err := c.board.SetMotors(0)
	return err
}

func (c *Controller) drive(m1, m2 float64) error {
	if _, err := c.board.SetMotor(picoborg.Motor1, m1); err != nil {
		return err
	}
	_, err := c.board.SetMotor(picoborg.Motor2, m2)
	return err
}

// On switches the onboard LED on.
func (c *Controller) On() error { return c.board.SetLED(true) }

// Off switches the onboard LED off.
func (c *Controller) Off() error { return c.board.SetLED(false) }

// Lit reads the onboard LED.
func (c *Controller) Lit() (bool, error) { return c.board.GetLED() }

func (c *Controller) EPO() (bool, error)        { return c.board.GetEPO() }
func (c *Controller) ResetEPO() error           { return c.board.ResetEPO() }
func (c *Controller) DriveFault() (bool, error) { return c.board.GetDriveFault() }
