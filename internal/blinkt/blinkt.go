// Package blinkt drives an 8 pixel APA102 strip by bit-banging two GPIO
// pins.
//
// Pixel setters only touch the in-memory buffer. Show is the only call that
// clocks anything out to the strip.
package blinkt

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/smazurov/marvin/internal/hw"
	"github.com/smazurov/marvin/internal/metrics"
)

const deviceName = "blinkt"

const (
	// NumPixels is the length of the strip.
	NumPixels = 8
	// DefaultBrightness is the 5-bit brightness every pixel starts with.
	DefaultBrightness byte = 7

	// DefaultDataPin and DefaultClockPin are the header pins the strip is
	// wired to.
	DefaultDataPin  = "GPIO23"
	DefaultClockPin = "GPIO24"

	sofClocks = 32
	// The chipset needs more than NumPixels/2 trailing clocks to latch.
	eofClocks = 36

	brightnessMask  byte = 0x1F
	pixelHeaderBits byte = 0xE0
)

// DefaultBitDelay is how long each clock phase is held.
const DefaultBitDelay = 500 * time.Nanosecond

// Pin is the part of a GPIO output the strip needs.
type Pin interface {
	Out(l gpio.Level) error
	Halt() error
	String() string
}

type pixel struct {
	r, g, b    uint8
	brightness byte
}

// Strip is an open LED strip. It owns both pins exclusively.
type Strip struct {
	data, clock Pin
	logger      *slog.Logger
	pixels      [NumPixels]pixel

	bitDelay    time.Duration
	clearOnExit bool
	released    bool
}

// Open looks up the named pins and configures them as outputs.
func Open(dataName, clockName string, logger *slog.Logger) (*Strip, error) {
	data := gpioreg.ByName(dataName)
	if data == nil {
		return nil, hw.Unavailable(deviceName, "open data pin", fmt.Errorf("no pin named %q", dataName))
	}
	clock := gpioreg.ByName(clockName)
	if clock == nil {
		return nil, hw.Unavailable(deviceName, "open clock pin", fmt.Errorf("no pin named %q", clockName))
	}
	return New(data, clock, logger)
}

// New takes ownership of two pins, drives both low and fills the buffer
// with black pixels at DefaultBrightness.
func New(data, clock Pin, logger *slog.Logger) (*Strip, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := data.Out(gpio.Low); err != nil {
		return nil, hw.Unavailable(deviceName, "configure data pin", err)
	}
	if err := clock.Out(gpio.Low); err != nil {
		return nil, hw.Unavailable(deviceName, "configure clock pin", err)
	}

	s := &Strip{
		data:        data,
		clock:       clock,
		logger:      logger,
		bitDelay:    DefaultBitDelay,
		clearOnExit: true,
	}
	for i := range s.pixels {
		s.pixels[i].brightness = DefaultBrightness
	}

	logger.Info("LED strip ready", "data", data.String(), "clock", clock.String(), "pixels", NumPixels)
	return s, nil
}

// SetPixel sets a pixel's colour and keeps its stored brightness.
func (s *Strip) SetPixel(i int, r, g, b uint8) error {
	if i < 0 || i >= NumPixels {
		return fmt.Errorf("pixel %d out of range 0-%d", i, NumPixels-1)
	}
	p := &s.pixels[i]
	p.r, p.g, p.b = r, g, b
	return nil
}

// SetPixelBrightness sets a pixel's colour and brightness (0.0 to 1.0).
func (s *Strip) SetPixelBrightness(i int, r, g, b uint8, brightness float64) error {
	if err := s.SetPixel(i, r, g, b); err != nil {
		return err
	}
	s.pixels[i].brightness = quantize(brightness)
	return nil
}

// GetPixel returns a pixel's colour and brightness (0.0 to 1.0).
func (s *Strip) GetPixel(i int) (r, g, b uint8, brightness float64, err error) {
	if i < 0 || i >= NumPixels {
		return 0, 0, 0, 0, fmt.Errorf("pixel %d out of range 0-%d", i, NumPixels-1)
	}
	p := s.pixels[i]
	return p.r, p.g, p.b, float64(p.brightness) / float64(brightnessMask), nil
}

// SetAll sets every pixel's colour and keeps each pixel's brightness.
func (s *Strip) SetAll(r, g, b uint8) {
	for i := range s.pixels {
		_ = s.SetPixel(i, r, g, b)
	}
}

// SetBrightness sets the brightness of every pixel.
func (s *Strip) SetBrightness(brightness float64) {
	q := quantize(brightness)
	for i := range s.pixels {
		s.pixels[i].brightness = q
	}
}

// Clear blacks out the buffer. Brightness is kept.
func (s *Strip) Clear() {
	s.SetAll(0, 0, 0)
}

// Lit reports whether any pixel in the buffer is not black.
func (s *Strip) Lit() bool {
	for _, p := range s.pixels {
		if p.r != 0 || p.g != 0 || p.b != 0 {
			return true
		}
	}
	return false
}

// SetClearOnExit controls whether Release blanks the strip.
func (s *Strip) SetClearOnExit(clear bool) {
	s.clearOnExit = clear
}

// SetBitDelay changes how long each clock phase is held.
func (s *Strip) SetBitDelay(d time.Duration) {
	s.bitDelay = d
}

// Show clocks the buffer out to the strip: start frame, one record per
// pixel, end frame.
func (s *Strip) Show() error {
	err := s.show()
	metrics.ObserveBusTransfer(deviceName, "show", err)
	if err != nil {
		return hw.Transport(deviceName, "show", err)
	}
	return nil
}

func (s *Strip) show() error {
	if err := s.frame(sofClocks); err != nil {
		return err
	}
	for _, p := range s.pixels {
		for _, v := range [4]byte{pixelHeaderBits | p.brightness, p.b, p.g, p.r} {
			if err := s.writeByte(v); err != nil {
				return err
			}
		}
	}
	return s.frame(eofClocks)
}

// Release blanks the strip if clear on exit is set, then halts both pins.
// Failures are logged, never returned. Calls after the first do nothing.
func (s *Strip) Release() {
	if s.released {
		return
	}
	s.released = true

	if s.clearOnExit {
		s.Clear()
		if err := s.Show(); err != nil {
			s.logger.Warn("Failed to clear LED strip during release", "error", err)
		}
	}
	for _, p := range []Pin{s.data, s.clock} {
		if err := p.Halt(); err != nil {
			s.logger.Warn("Failed to release pin", "pin", p.String(), "error", err)
		}
	}
}

// frame holds data low for n clock pulses.
func (s *Strip) frame(n int) error {
	if err := s.data.Out(gpio.Low); err != nil {
		return err
	}
	for range n {
		if err := s.pulse(); err != nil {
			return err
		}
	}
	return nil
}

// writeByte shifts v out most significant bit first.
func (s *Strip) writeByte(v byte) error {
	for bit := 7; bit >= 0; bit-- {
		if err := s.data.Out(gpio.Level(v&(1<<bit) != 0)); err != nil {
			return err
		}
		if err := s.pulse(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Strip) pulse() error {
	if err := s.clock.Out(gpio.High); err != nil {
		return err
	}
	spin(s.bitDelay)
	if err := s.clock.Out(gpio.Low); err != nil {
		return err
	}
	spin(s.bitDelay)
	return nil
}

// spin busy-waits for d. time.Sleep cannot resolve sub-microsecond delays.
func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}

func quantize(brightness float64) byte {
	if math.IsNaN(brightness) || brightness < 0 {
		return 0
	}
	return byte(int(math.Round(float64(brightnessMask)*brightness))) & brightnessMask
}
