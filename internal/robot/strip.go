package robot

// Strip is the part of the LED strip driver the robot uses.
type Strip interface {
	SetAll(r, g, b uint8)
	Clear()
	Show() error
	Lit() bool
	Release()
}

// LightStrip adapts an LED strip to ColorIndicator. On shows the configured
// colour, white unless changed.
type LightStrip struct {
	strip   Strip
	r, g, b uint8
}

// NewLightStrip wraps strip.
func NewLightStrip(strip Strip) *LightStrip {
	return &LightStrip{strip: strip, r: 255, g: 255, b: 255}
}

// SetOnColor changes the colour On shows.
func (l *LightStrip) SetOnColor(r, g, b uint8) {
	l.r, l.g, l.b = r, g, b
}

func (l *LightStrip) On() error {
	return l.Color(l.r, l.g, l.b)
}

func (l *LightStrip) Off() error {
	l.strip.Clear()
	return l.strip.Show()
}

// Color lights every pixel with the given colour.
func (l *LightStrip) Color(r, g, b uint8) error {
	l.strip.SetAll(r, g, b)
	return l.strip.Show()
}

// Lit reports whether any pixel is lit.
func (l *LightStrip) Lit() (bool, error) {
	return l.strip.Lit(), nil
}
