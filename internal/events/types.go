package events

// Event type constants for kelindar/event.
const (
	TypeDeviceStatus uint32 = iota + 1
	TypeEPO
	TypeCommand
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceStatusEvent reports whether a device made it into the assembly.
type DeviceStatusEvent struct {
	Device    string `json:"device" example:"picoborg" doc:"Device name"`
	Available bool   `json:"available" example:"true" doc:"Whether the device is present"`
	Error     string `json:"error,omitempty" doc:"Why the device is absent"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceStatusEvent.
func (e DeviceStatusEvent) Type() uint32 { return TypeDeviceStatus }

// EPOEvent reports the controller's emergency power off latch as last read.
type EPOEvent struct {
	Tripped   bool   `json:"tripped" example:"false" doc:"Whether the EPO latch is set"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EPOEvent.
func (e EPOEvent) Type() uint32 { return TypeEPO }

// CommandEvent is published once per dispatched command.
type CommandEvent struct {
	Group     string `json:"group" example:"robot" doc:"Capability group"`
	Verb      string `json:"verb" example:"forward" doc:"Verb within the group"`
	Outcome   string `json:"outcome" example:"ok" doc:"ok, unavailable, unrecognized, invalid or error"`
	Code      string `json:"code,omitempty" example:"SAFETY_LATCH_TRIPPED" doc:"Error code when the command did not fully succeed"`
	Response  string `json:"response" example:"[robot] moving forward at 0.5" doc:"Response text"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CommandEvent.
func (e CommandEvent) Type() uint32 { return TypeCommand }
