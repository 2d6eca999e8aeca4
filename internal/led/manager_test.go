package led

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/marvin/internal/events"
)

type setCall struct {
	ledType string
	enabled bool
	pattern string
}

type mockController struct {
	mu    sync.Mutex
	calls []setCall
}

func (m *mockController) Set(ledType string, enabled bool, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, setCall{ledType, enabled, pattern})
	return nil
}

func (m *mockController) Available() []string { return []string{StatusLED} }

func (m *mockController) Patterns() []string { return []string{PatternSolid, PatternHeartbeat} }

func (m *mockController) last() setCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return setCall{}
	}
	return m.calls[len(m.calls)-1]
}

func startManager(t *testing.T) (*Manager, *mockController, *events.Bus) {
	t.Helper()
	ctrl := &mockController{}
	bus := events.New()
	mgr := NewManager(ctrl, bus, testLogger())
	mgr.Start()
	return mgr, ctrl, bus
}

func waitPattern(t *testing.T, mgr *Manager, want string) {
	t.Helper()
	require.Eventually(t, func() bool { return mgr.Pattern() == want },
		time.Second, 5*time.Millisecond, "pattern never became %q (is %q)", want, mgr.Pattern())
}

func TestManager_HeartbeatUntilDevicesReport(t *testing.T) {
	mgr, ctrl, _ := startManager(t)
	defer mgr.Stop()

	assert.Equal(t, PatternHeartbeat, mgr.Pattern())
	assert.Equal(t, setCall{StatusLED, true, PatternHeartbeat}, ctrl.last())
}

func TestManager_AllDevicesPresent(t *testing.T) {
	mgr, ctrl, bus := startManager(t)
	defer mgr.Stop()

	bus.Publish(events.DeviceStatusEvent{Device: "picoborg", Available: true})
	bus.Publish(events.DeviceStatusEvent{Device: "blinkt", Available: true})

	waitPattern(t, mgr, PatternSolid)
	assert.Equal(t, setCall{StatusLED, true, PatternSolid}, ctrl.last())
}

func TestManager_Degraded(t *testing.T) {
	mgr, _, bus := startManager(t)
	defer mgr.Stop()

	bus.Publish(events.DeviceStatusEvent{Device: "picoborg", Available: true})
	waitPattern(t, mgr, PatternSolid)

	bus.Publish(events.DeviceStatusEvent{Device: "blinkt", Available: false, Error: "no pins"})
	waitPattern(t, mgr, PatternHeartbeat)
}

func TestManager_EPOTripped(t *testing.T) {
	mgr, _, bus := startManager(t)
	defer mgr.Stop()

	bus.Publish(events.DeviceStatusEvent{Device: "picoborg", Available: true})
	waitPattern(t, mgr, PatternSolid)

	bus.Publish(events.EPOEvent{Tripped: true})
	waitPattern(t, mgr, PatternHeartbeat)

	bus.Publish(events.EPOEvent{Tripped: false})
	waitPattern(t, mgr, PatternSolid)
}

func TestManager_StopSwitchesOff(t *testing.T) {
	mgr, ctrl, bus := startManager(t)

	mgr.Stop()
	assert.Equal(t, setCall{StatusLED, false, PatternOff}, ctrl.last())

	// events after Stop change nothing
	bus.Publish(events.DeviceStatusEvent{Device: "picoborg", Available: true})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, PatternOff, mgr.Pattern())
	assert.Equal(t, setCall{StatusLED, false, PatternOff}, ctrl.last())
}

func TestManager_GetController(t *testing.T) {
	ctrl := &mockController{}
	mgr := NewManager(ctrl, events.New(), testLogger())

	assert.Same(t, ctrl, mgr.GetController())
}
