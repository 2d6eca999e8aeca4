// Package robot exposes the drivers as capabilities and assembles whichever
// devices are present into one Robot.
package robot

import "errors"

var errNoState = errors.New("indicator cannot report its state")

// Motion drives the chassis. Speeds are normalized to [-1, 1].
type Motion interface {
	Forward(speed float64) error
	Backward(speed float64) error
	// Left turns on the spot: motor 1 forward, motor 2 backward.
	Left(speed float64) error
	Right(speed float64) error
	// Reverse flips the current direction of both motors at their current
	// speed. A stopped robot stays stopped.
	Reverse() error
	Stop() error
}

// Indicator is a light that can be switched on and off.
type Indicator interface {
	On() error
	Off() error
}

// LitReporter is implemented by indicators that can report their state.
type LitReporter interface {
	Lit() (bool, error)
}

// ColorIndicator is an indicator that can show an arbitrary colour.
type ColorIndicator interface {
	Indicator
	Color(r, g, b uint8) error
}

// Safety exposes the controller's emergency power off latch.
type Safety interface {
	EPO() (bool, error)
	ResetEPO() error
	DriveFault() (bool, error)
}

// Toggle flips an indicator that can report its state and returns the new
// state.
func Toggle(ind Indicator) (bool, error) {
	lr, ok := ind.(LitReporter)
	if !ok {
		return false, errNoState
	}
	lit, err := lr.Lit()
	if err != nil {
		return false, err
	}
	if lit {
		return false, ind.Off()
	}
	return true, ind.On()
}
