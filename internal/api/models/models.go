// Package models holds the request and response shapes of the HTTP API.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Operating system and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Command models

// CommandInput is a verb within a group with its optional arguments. The
// arguments are strings so that malformed values reach the dispatcher and
// come back as response text rather than a validation error.
type CommandInput struct {
	Verb     string `path:"verb" example:"forward" doc:"Verb within the group"`
	Speed    string `query:"speed" example:"0.5" doc:"Optional speed or power, -1 to 1"`
	Duration string `query:"duration" example:"2s" doc:"Optional duration for timed verbs"`
}

// CommandOutput is the plain-text response line.
type CommandOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// Robot status models
type DeviceData struct {
	Name       string `json:"name" example:"picoborg" doc:"Device name"`
	Configured bool   `json:"configured" example:"true" doc:"Whether the device is enabled in config"`
	Available  bool   `json:"available" example:"true" doc:"Whether the device was found"`
	Error      string `json:"error,omitempty" doc:"Why the device is absent"`
}

type RobotData struct {
	Devices      []DeviceData `json:"devices" doc:"Configured devices and their availability"`
	Capabilities []string     `json:"capabilities" example:"[\"motion\",\"indicator\"]" doc:"Capabilities currently present"`
	Degraded     bool         `json:"degraded" example:"false" doc:"True when a configured device is absent"`
	EPOTripped   *bool        `json:"epo_tripped,omitempty" doc:"EPO latch as last read, absent until read"`
}

type RobotResponse struct {
	Body RobotData
}

// Status LED models
type LEDData struct {
	AvailableTypes    []string `json:"available_types" doc:"LED types mapped on this board"`
	AvailablePatterns []string `json:"available_patterns" doc:"Patterns supported on this board"`
	Pattern           string   `json:"pattern" example:"solid" doc:"Pattern currently shown on the status LED"`
}

type LEDResponse struct {
	Body LEDData
}

// StreamOpened is the first event on a new event stream.
type StreamOpened struct {
	Message   string `json:"message" example:"SSE connection established" doc:"Greeting"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}
