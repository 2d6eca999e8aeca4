package blinkt

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/smazurov/marvin/internal/hw"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// tracePin records every level written to it.
type tracePin struct {
	gpiotest.Pin
	levels  []gpio.Level
	rises   int
	halts   int
	failOut bool
	failAt  int
}

func newTracePin(name string) *tracePin {
	return &tracePin{Pin: gpiotest.Pin{N: name}, failAt: -1}
}

func (p *tracePin) Out(l gpio.Level) error {
	if p.failOut || len(p.levels) == p.failAt {
		return errors.New("write failed")
	}
	if l && !p.L {
		p.rises++
	}
	p.L = l
	p.levels = append(p.levels, l)
	return nil
}

func (p *tracePin) Halt() error {
	p.halts++
	return nil
}

func newTestStrip(t *testing.T) (*Strip, *tracePin, *tracePin) {
	t.Helper()
	data, clock := newTracePin("data"), newTracePin("clock")
	s, err := New(data, clock, testLogger)
	require.NoError(t, err)
	s.SetBitDelay(0)
	return s, data, clock
}

// sampled returns the data level at each rising clock edge.
func sampled(t *testing.T, s *Strip) []gpio.Level {
	t.Helper()
	var bits []gpio.Level
	data := &samplingPin{}
	clock := &samplingPin{onRise: func() { bits = append(bits, data.level) }}
	s.data, s.clock = data, clock
	require.NoError(t, s.Show())
	return bits
}

type samplingPin struct {
	level  gpio.Level
	onRise func()
}

func (p *samplingPin) Out(l gpio.Level) error {
	if l && !p.level && p.onRise != nil {
		p.onRise()
	}
	p.level = l
	return nil
}
func (p *samplingPin) Halt() error    { return nil }
func (p *samplingPin) String() string { return "sampling" }

func bitsOf(bytes ...byte) []gpio.Level {
	var out []gpio.Level
	for _, v := range bytes {
		for bit := 7; bit >= 0; bit-- {
			out = append(out, gpio.Level(v&(1<<bit) != 0))
		}
	}
	return out
}

func TestNew(t *testing.T) {
	s, data, clock := newTestStrip(t)

	assert.Equal(t, []gpio.Level{gpio.Low}, data.levels)
	assert.Equal(t, []gpio.Level{gpio.Low}, clock.levels)
	for i := range NumPixels {
		r, g, b, brightness, err := s.GetPixel(i)
		require.NoError(t, err)
		assert.Zero(t, r+g+b)
		assert.InDelta(t, 7.0/31.0, brightness, 1e-9)
	}
}

func TestNewPinFailure(t *testing.T) {
	data, clock := newTracePin("data"), newTracePin("clock")
	clock.failOut = true

	_, err := New(data, clock, testLogger)
	require.Error(t, err)
	assert.ErrorIs(t, err, hw.ErrDeviceUnavailable)
}

func TestSetPixel(t *testing.T) {
	t.Run("keeps brightness when omitted", func(t *testing.T) {
		s, _, _ := newTestStrip(t)
		require.NoError(t, s.SetPixelBrightness(2, 1, 2, 3, 1.0))
		require.NoError(t, s.SetPixel(2, 10, 20, 30))

		assert.Equal(t, pixel{r: 10, g: 20, b: 30, brightness: 31}, s.pixels[2])
	})

	t.Run("quantizes brightness", func(t *testing.T) {
		tests := []struct {
			in   float64
			want byte
		}{
			{0, 0},
			{0.2, 6},
			{0.5, 16},
			{1, 31},
			{-1, 0},
		}
		s, _, _ := newTestStrip(t)
		for _, tt := range tests {
			require.NoError(t, s.SetPixelBrightness(0, 0, 0, 0, tt.in))
			assert.Equal(t, tt.want, s.pixels[0].brightness, "brightness %v", tt.in)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		s, _, _ := newTestStrip(t)
		assert.Error(t, s.SetPixel(NumPixels, 1, 1, 1))
		assert.Error(t, s.SetPixel(-1, 1, 1, 1))
		_, _, _, _, err := s.GetPixel(NumPixels)
		assert.Error(t, err)
	})
}

func TestSetAllAndClear(t *testing.T) {
	s, _, _ := newTestStrip(t)
	require.NoError(t, s.SetPixelBrightness(3, 0, 0, 0, 1))

	s.SetAll(0, 255, 255)
	assert.True(t, s.Lit())
	for i, p := range s.pixels {
		assert.Equal(t, uint8(255), p.g, "pixel %d", i)
	}
	assert.Equal(t, byte(31), s.pixels[3].brightness)

	s.Clear()
	assert.False(t, s.Lit())
	assert.Equal(t, byte(31), s.pixels[3].brightness)
	assert.Equal(t, DefaultBrightness, s.pixels[0].brightness)
}

func TestSetBrightness(t *testing.T) {
	s, _, _ := newTestStrip(t)
	s.SetBrightness(1)
	for _, p := range s.pixels {
		assert.Equal(t, byte(31), p.brightness)
	}
}

// frameClocks is one full frame: start, eight pixels of 32 bits, end.
const frameClocks = sofClocks + 8*4*NumPixels + eofClocks

func TestShowClockCount(t *testing.T) {
	s, _, clock := newTestStrip(t)
	s.SetAll(255, 0, 0)

	require.NoError(t, s.Show())
	assert.Equal(t, sofClocks+8*4*NumPixels+eofClocks, clock.rises)
	assert.Equal(t, 324, clock.rises)
}

func TestShowFraming(t *testing.T) {
	s, _, _ := newTestStrip(t)
	require.NoError(t, s.SetPixelBrightness(0, 0x11, 0x22, 0x33, 1))

	bits := sampled(t, s)
	require.Len(t, bits, frameClocks)

	for i, l := range bits[:sofClocks] {
		assert.False(t, bool(l), "start frame bit %d", i)
	}
	assert.Equal(t, bitsOf(0xFF, 0x33, 0x22, 0x11), bits[sofClocks:sofClocks+32])
	assert.Equal(t, bitsOf(0xE7, 0, 0, 0), bits[sofClocks+32:sofClocks+64])
	for i, l := range bits[len(bits)-eofClocks:] {
		assert.False(t, bool(l), "end frame bit %d", i)
	}
}

func TestShowTransportError(t *testing.T) {
	s, _, clock := newTestStrip(t)
	clock.failAt = 40

	err := s.Show()
	require.Error(t, err)
	assert.ErrorIs(t, err, hw.ErrTransport)
}

func TestRelease(t *testing.T) {
	t.Run("clears once and halts pins", func(t *testing.T) {
		s, data, clock := newTestStrip(t)
		s.SetAll(255, 255, 255)

		s.Release()
		s.Release()

		assert.False(t, s.Lit())
		assert.Equal(t, frameClocks, clock.rises)
		assert.Equal(t, 1, data.halts)
		assert.Equal(t, 1, clock.halts)
	})

	t.Run("halts pins after failed clear", func(t *testing.T) {
		s, data, clock := newTestStrip(t)
		clock.failOut = true

		s.Release()

		assert.Equal(t, 1, data.halts)
		assert.Equal(t, 1, clock.halts)
	})

	t.Run("clear on exit disabled", func(t *testing.T) {
		s, _, clock := newTestStrip(t)
		s.SetAll(1, 1, 1)
		s.SetClearOnExit(false)

		s.Release()

		assert.True(t, s.Lit())
		assert.Zero(t, clock.rises)
		assert.Equal(t, 1, clock.halts)
	})
}
