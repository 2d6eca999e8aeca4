// Package led drives the host board's own status LED from robot state.
package led

// StatusLED is the LED type the Manager drives. Every supported board maps
// it to a physical LED.
const StatusLED = "status"

// Patterns understood by Set.
const (
	PatternSolid     = "solid"
	PatternHeartbeat = "heartbeat"
	PatternOff       = "none"
)

// Controller abstracts LED hardware control across different SBC boards.
type Controller interface {
	// Set switches ledType on or off. pattern selects a kernel trigger
	// ("solid", "heartbeat", "none" or a raw trigger name); empty leaves
	// the trigger unchanged.
	Set(ledType string, enabled bool, pattern string) error

	// Available returns the LED types this board maps.
	Available() []string

	// Patterns returns the patterns this controller supports.
	Patterns() []string
}
