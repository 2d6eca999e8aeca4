package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/marvin/internal/events"
)

// Manager shows robot health on the status LED: solid when every configured
// device is present and the EPO latch is clear, heartbeat otherwise.
type Manager struct {
	controller Controller
	eventBus   *events.Bus
	logger     *slog.Logger
	unsubs     []func()

	mu         sync.Mutex
	devices    map[string]bool // device -> available
	epoTripped bool
	pattern    string
	stopped    bool
}

// NewManager creates a manager. Start it before devices are assembled so it
// sees their status events.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		devices:    make(map[string]bool),
	}
}

// Start subscribes to device and EPO events and shows the heartbeat until
// devices report in.
func (m *Manager) Start() {
	m.unsubs = append(m.unsubs,
		m.eventBus.Subscribe(func(e events.DeviceStatusEvent) {
			m.mu.Lock()
			m.devices[e.Device] = e.Available
			m.mu.Unlock()
			m.logger.Debug("Device status changed", "device", e.Device, "available", e.Available)
			m.update()
		}),
		m.eventBus.Subscribe(func(e events.EPOEvent) {
			m.mu.Lock()
			m.epoTripped = e.Tripped
			m.mu.Unlock()
			m.update()
		}),
	)
	m.update()
	m.logger.Info("LED manager started")
}

// Stop unsubscribes and switches the LED off.
func (m *Manager) Stop() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.controller.Set(StatusLED, false, PatternOff); err != nil {
		m.logger.Warn("Failed to switch status LED off", "error", err)
	}
	m.pattern = PatternOff
	m.stopped = true
	m.logger.Info("LED manager stopped")
}

// Pattern returns the pattern last applied.
func (m *Manager) Pattern() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pattern
}

// GetController returns the underlying LED controller.
func (m *Manager) GetController() Controller {
	return m.controller
}

func (m *Manager) update() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	pattern := PatternSolid
	if m.epoTripped || len(m.devices) == 0 {
		pattern = PatternHeartbeat
	}
	for _, available := range m.devices {
		if !available {
			pattern = PatternHeartbeat
			break
		}
	}

	if pattern == m.pattern {
		return
	}
	if err := m.controller.Set(StatusLED, true, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", pattern, "error", err)
		return
	}
	m.pattern = pattern
	m.logger.Debug("Status LED updated", "pattern", pattern)
}
