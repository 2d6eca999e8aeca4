package robot

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/marvin/internal/events"
	"github.com/smazurov/marvin/internal/hw"
	"github.com/smazurov/marvin/internal/picoborg"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type motorSet struct {
	motor picoborg.Motor // 0 means both
	power float64
}

type fakeBoard struct {
	sets      []motorSet
	motors    map[picoborg.Motor]float64
	led       bool
	epo       bool
	failsafe  bool
	epoIgnore bool
	resets    int
	releases  int
	err       error
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{motors: map[picoborg.Motor]float64{}}
}

func (f *fakeBoard) SetMotor(m picoborg.Motor, power float64) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.sets = append(f.sets, motorSet{m, power})
	f.motors[m] = power
	return power, nil
}

func (f *fakeBoard) SetMotors(power float64) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.sets = append(f.sets, motorSet{0, power})
	f.motors[picoborg.Motor1] = power
	f.motors[picoborg.Motor2] = power
	return power, nil
}

func (f *fakeBoard) GetMotor(m picoborg.Motor) (float64, error) { return f.motors[m], f.err }
func (f *fakeBoard) SetLED(on bool) error                       { f.led = on; return f.err }
func (f *fakeBoard) GetLED() (bool, error)                      { return f.led, f.err }
func (f *fakeBoard) GetEPO() (bool, error)                      { return f.epo, f.err }
func (f *fakeBoard) ResetEPO() error                            { f.resets++; f.epo = false; return f.err }
func (f *fakeBoard) GetDriveFault() (bool, error)               { return false, f.err }
func (f *fakeBoard) SetEPOIgnore(ignore bool) error             { f.epoIgnore = ignore; return f.err }
func (f *fakeBoard) SetCommsFailsafe(enabled bool) error        { f.failsafe = enabled; return f.err }
func (f *fakeBoard) Release()                                   { f.releases++ }

type fakeStrip struct {
	r, g, b  uint8
	shows    int
	releases int
}

func (f *fakeStrip) SetAll(r, g, b uint8) { f.r, f.g, f.b = r, g, b }
func (f *fakeStrip) Clear()               { f.SetAll(0, 0, 0) }
func (f *fakeStrip) Show() error          { f.shows++; return nil }
func (f *fakeStrip) Lit() bool            { return f.r != 0 || f.g != 0 || f.b != 0 }
func (f *fakeStrip) Release()             { f.releases++ }

func TestControllerMotion(t *testing.T) {
	tests := []struct {
		name string
		do   func(c *Controller) error
		want []motorSet
	}{
		{"forward", func(c *Controller) error { return c.Forward(0.5) }, []motorSet{{0, 0.5}}},
		{"backward", func(c *Controller) error { return c.Backward(0.5) }, []motorSet{{0, -0.5}}},
		{"left", func(c *Controller) error { return c.Left(0.3) }, []motorSet{{picoborg.Motor1, 0.3}, {picoborg.Motor2, -0.3}}},
		{"right", func(c *Controller) error { return c.Right(0.3) }, []motorSet{{picoborg.Motor1, -0.3}, {picoborg.Motor2, 0.3}}},
		{"stop", func(c *Controller) error { return c.Stop() }, []motorSet{{0, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := newFakeBoard()
			require.NoError(t, tt.do(NewController(board)))
			assert.Equal(t, tt.want, board.sets)
		})
	}
}

func TestControllerReverse(t *testing.T) {
	t.Run("turning left becomes turning right", func(t *testing.T) {
		board := newFakeBoard()
		c := NewController(board)
		require.NoError(t, c.Left(0.5))
		board.sets = nil

		require.NoError(t, c.Reverse())
		assert.Equal(t, []motorSet{{picoborg.Motor1, -0.5}, {picoborg.Motor2, 0.5}}, board.sets)
	})

	t.Run("stopped stays stopped", func(t *testing.T) {
		board := newFakeBoard()
		require.NoError(t, NewController(board).Reverse())
		assert.Equal(t, 0.0, board.motors[picoborg.Motor1])
		assert.Equal(t, 0.0, board.motors[picoborg.Motor2])
	})

	t.Run("read failure", func(t *testing.T) {
		board := newFakeBoard()
		board.err = hw.Transport("picoborg", "get motor1", errors.New("nack"))
		assert.ErrorIs(t, NewController(board).Reverse(), hw.ErrTransport)
	})
}

func TestToggle(t *testing.T) {
	board := newFakeBoard()
	c := NewController(board)

	on, err := Toggle(c)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, board.led)

	on, err = Toggle(c)
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, board.led)
}

type plainIndicator struct{}

func (plainIndicator) On() error  { return nil }
func (plainIndicator) Off() error { return nil }

func TestToggleWithoutState(t *testing.T) {
	_, err := Toggle(plainIndicator{})
	assert.Error(t, err)
}

func TestLightStrip(t *testing.T) {
	strip := &fakeStrip{}
	ls := NewLightStrip(strip)

	require.NoError(t, ls.On())
	assert.Equal(t, [3]uint8{255, 255, 255}, [3]uint8{strip.r, strip.g, strip.b})
	lit, _ := ls.Lit()
	assert.True(t, lit)

	require.NoError(t, ls.Off())
	lit, _ = ls.Lit()
	assert.False(t, lit)

	ls.SetOnColor(255, 0, 0)
	require.NoError(t, ls.On())
	assert.Equal(t, uint8(255), strip.r)
	assert.Zero(t, strip.g)

	require.NoError(t, ls.Color(0, 255, 255))
	assert.Equal(t, 4, strip.shows)
}

func TestAssemble(t *testing.T) {
	unavailable := func(device string) error {
		return hw.Unavailable(device, "open", errors.New("no such device"))
	}

	t.Run("both devices", func(t *testing.T) {
		board, strip := newFakeBoard(), &fakeStrip{}
		r := Assemble(Config{
			OpenController: func() (Board, error) { return board, nil },
			OpenStrip:      func() (Strip, error) { return strip, nil },
			Logger:         testLogger,
		})

		assert.NotNil(t, r.Motion)
		assert.NotNil(t, r.Safety)
		assert.NotNil(t, r.BoardLED)
		assert.NotNil(t, r.Strip)
		assert.IsType(t, &LightStrip{}, r.Indicator)
		assert.False(t, r.Degraded())
		assert.Equal(t, []string{"motion", "indicator", "strip", "board_led", "safety"}, r.Capabilities())
	})

	t.Run("controller only", func(t *testing.T) {
		r := Assemble(Config{
			OpenController: func() (Board, error) { return newFakeBoard(), nil },
			OpenStrip:      func() (Strip, error) { return nil, unavailable("blinkt") },
			Logger:         testLogger,
		})

		assert.NotNil(t, r.Motion)
		assert.Nil(t, r.Strip)
		assert.IsType(t, &Controller{}, r.Indicator)
		assert.True(t, r.Degraded())
	})

	t.Run("nothing present", func(t *testing.T) {
		r := Assemble(Config{
			OpenController: func() (Board, error) { return nil, unavailable("picoborg") },
			OpenStrip:      func() (Strip, error) { return nil, unavailable("blinkt") },
			Logger:         testLogger,
		})

		assert.Nil(t, r.Motion)
		assert.Nil(t, r.Indicator)
		assert.Nil(t, r.Safety)
		assert.Empty(t, r.Capabilities())
		devices := r.Devices()
		require.Len(t, devices, 2)
		assert.False(t, devices[0].Available)
		assert.Contains(t, devices[0].Error, "DEVICE_UNAVAILABLE")
		r.Release()
	})

	t.Run("disabled is not degraded", func(t *testing.T) {
		r := Assemble(Config{
			OpenController: func() (Board, error) { return newFakeBoard(), nil },
			Logger:         testLogger,
		})

		assert.False(t, r.Degraded())
		assert.False(t, r.Devices()[1].Configured)
	})
}

func TestAssembleSafetyOptions(t *testing.T) {
	board := newFakeBoard()
	board.epo = true

	r := Assemble(Config{
		OpenController: func() (Board, error) { return board, nil },
		Safety:         SafetyOptions{ResetEPO: true, CommsFailsafe: true, EPOIgnore: true},
		Logger:         testLogger,
	})

	assert.Equal(t, 1, board.resets)
	assert.True(t, board.failsafe)
	assert.True(t, board.epoIgnore)
	tripped, err := r.Safety.EPO()
	require.NoError(t, err)
	assert.False(t, tripped)
}

func TestAssemblePublishesEvents(t *testing.T) {
	bus := events.New()
	statuses := make(chan events.DeviceStatusEvent, 2)
	epo := make(chan events.EPOEvent, 1)
	defer bus.Subscribe(func(e events.DeviceStatusEvent) { statuses <- e })()
	defer bus.Subscribe(func(e events.EPOEvent) { epo <- e })()

	board := newFakeBoard()
	board.epo = true
	Assemble(Config{
		OpenController: func() (Board, error) { return board, nil },
		OpenStrip:      func() (Strip, error) { return nil, errors.New("gpio busy") },
		Bus:            bus,
		Logger:         testLogger,
	})

	got := map[string]bool{}
	for range 2 {
		select {
		case e := <-statuses:
			got[e.Device] = e.Available
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for device status")
		}
	}
	assert.Equal(t, map[string]bool{DeviceController: true, DeviceStrip: false}, got)

	select {
	case e := <-epo:
		assert.True(t, e.Tripped)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for EPO event")
	}
}

func TestRelease(t *testing.T) {
	board, strip := newFakeBoard(), &fakeStrip{}
	r := Assemble(Config{
		OpenController: func() (Board, error) { return board, nil },
		OpenStrip:      func() (Strip, error) { return strip, nil },
		Logger:         testLogger,
	})

	r.Release()
	r.Release()

	assert.Equal(t, 1, board.releases)
	assert.Equal(t, 1, strip.releases)
}
