package robot

import (
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/marvin/internal/events"
	"github.com/smazurov/marvin/internal/metrics"
)

// Device names used in logs, metrics and events.
const (
	DeviceController = "picoborg"
	DeviceStrip      = "blinkt"
)

// SafetyOptions are applied to the controller right after it opens.
type SafetyOptions struct {
	ResetEPO      bool
	CommsFailsafe bool
	EPOIgnore     bool
}

// Config describes which devices to try. A nil opener means the device is
// disabled.
type Config struct {
	OpenController func() (Board, error)
	OpenStrip      func() (Strip, error)
	Safety         SafetyOptions
	Bus            *events.Bus
	Logger         *slog.Logger
}

// DeviceStatus describes one device slot after assembly.
type DeviceStatus struct {
	Name       string `json:"name" example:"picoborg" doc:"Device name"`
	Configured bool   `json:"configured" doc:"Whether the device was enabled"`
	Available  bool   `json:"available" doc:"Whether the device opened"`
	Error      string `json:"error,omitempty" doc:"Why the device is absent"`
}

// Robot holds whichever capabilities assembled. Every slot may be nil.
type Robot struct {
	// Motion drives the chassis.
	Motion Motion
	// Indicator is the general purpose light: the strip when present,
	// otherwise the controller's onboard LED.
	Indicator Indicator
	// Strip is the LED strip.
	Strip ColorIndicator
	// BoardLED is the controller's onboard LED.
	BoardLED Indicator
	// Safety is the controller's EPO latch.
	Safety Safety

	devices   []DeviceStatus
	releasers []func()
	logger    *slog.Logger
	once      sync.Once
}

// Assemble opens each configured device independently. A device that fails
// to open is left out and the robot runs degraded; Assemble never fails.
func Assemble(cfg Config) *Robot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Robot{logger: logger}

	status := DeviceStatus{Name: DeviceController, Configured: cfg.OpenController != nil}
	if status.Configured {
		board, err := cfg.OpenController()
		if err != nil {
			status.Error = err.Error()
			logger.Warn("Motor controller not available, running without motion", "error", err)
		} else {
			status.Available = true
			applySafety(board, cfg.Safety, logger)

			ctrl := NewController(board)
			r.Motion = ctrl
			r.BoardLED = ctrl
			r.Indicator = ctrl
			r.Safety = ctrl
			r.releasers = append(r.releasers, board.Release)
		}
	}
	r.record(status, cfg.Bus)

	status = DeviceStatus{Name: DeviceStrip, Configured: cfg.OpenStrip != nil}
	if status.Configured {
		strip, err := cfg.OpenStrip()
		if err != nil {
			status.Error = err.Error()
			logger.Warn("LED strip not available", "error", err)
		} else {
			status.Available = true

			ls := NewLightStrip(strip)
			r.Strip = ls
			r.Indicator = ls
			r.releasers = append(r.releasers, strip.Release)
		}
	}
	r.record(status, cfg.Bus)

	if r.Safety != nil && cfg.Bus != nil {
		if tripped, err := r.Safety.EPO(); err == nil {
			cfg.Bus.Publish(events.EPOEvent{Tripped: tripped, Timestamp: time.Now().Format(time.RFC3339)})
		}
	}

	if r.Degraded() {
		logger.Warn("Running in degraded mode", "motion", r.Motion != nil, "indicator", r.Indicator != nil)
	} else {
		logger.Info("All devices assembled")
	}
	return r
}

func applySafety(board Board, opts SafetyOptions, logger *slog.Logger) {
	if opts.ResetEPO {
		if err := board.ResetEPO(); err != nil {
			logger.Warn("Failed to reset EPO at startup", "error", err)
		}
	}
	if err := board.SetCommsFailsafe(opts.CommsFailsafe); err != nil {
		logger.Warn("Failed to set comms failsafe", "enabled", opts.CommsFailsafe, "error", err)
	}
	if opts.EPOIgnore {
		if err := board.SetEPOIgnore(true); err != nil {
			logger.Warn("Failed to set EPO ignore", "error", err)
		}
	}
}

func (r *Robot) record(status DeviceStatus, bus *events.Bus) {
	r.devices = append(r.devices, status)
	if !status.Configured {
		r.logger.Info("Device disabled", "device", status.Name)
		return
	}
	metrics.SetDeviceAvailable(status.Name, status.Available)
	if bus != nil {
		bus.Publish(events.DeviceStatusEvent{
			Device:    status.Name,
			Available: status.Available,
			Error:     status.Error,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// Devices returns the status of every device slot.
func (r *Robot) Devices() []DeviceStatus {
	return append([]DeviceStatus(nil), r.devices...)
}

// Degraded reports whether any configured device failed to open.
func (r *Robot) Degraded() bool {
	for _, d := range r.devices {
		if d.Configured && !d.Available {
			return true
		}
	}
	return false
}

// Capabilities names the capability slots that are filled.
func (r *Robot) Capabilities() []string {
	var caps []string
	for _, c := range []struct {
		name    string
		present bool
	}{
		{"motion", r.Motion != nil},
		{"indicator", r.Indicator != nil},
		{"strip", r.Strip != nil},
		{"board_led", r.BoardLED != nil},
		{"safety", r.Safety != nil},
	} {
		if c.present {
			caps = append(caps, c.name)
		}
	}
	return caps
}

// Release releases every assembled driver once, in assembly order. The
// controller goes first so the motors stop before anything else.
func (r *Robot) Release() {
	r.once.Do(func() {
		for _, release := range r.releasers {
			release()
		}
		if r.logger != nil {
			r.logger.Info("Devices released")
		}
	})
}
