package dispatch

import (
	"math"
	"net/url"
	"strconv"
	"time"
)

// Policy holds the defaults the verbs run with when a command does not
// override them.
type Policy struct {
	ForwardSpeed   float64
	DemoPower      float64
	DemoDuration   time.Duration
	StrobeDuration time.Duration
	MaxDuration    time.Duration
}

// DefaultPolicy returns the stock policy: half speed, ten second motor demo,
// two second strobe.
func DefaultPolicy() Policy {
	return Policy{
		ForwardSpeed:   0.5,
		DemoPower:      0.5,
		DemoDuration:   10 * time.Second,
		StrobeDuration: 2 * time.Second,
		MaxDuration:    30 * time.Second,
	}
}

// strobe colour: cyan
const strobeR, strobeG, strobeB = 0, 255, 255

// args are a command's parsed overrides.
type args struct {
	speed    float64
	hasSpeed bool
	duration time.Duration
}

func parseArgs(q url.Values) (args, error) {
	var a args
	if s := q.Get("speed"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) {
			return a, &argError{name: "speed", value: s}
		}
		a.speed = math.Max(-1, math.Min(1, v))
		a.hasSpeed = true
	}
	if s := q.Get("duration"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return a, &argError{name: "duration", value: s}
		}
		a.duration = d
	}
	return a, nil
}

type argError struct {
	name, value string
}

func (e *argError) Error() string {
	return "invalid " + e.name + " " + strconv.Quote(e.value)
}

func (a args) speedOr(def float64) float64 {
	if a.hasSpeed {
		return a.speed
	}
	return def
}

// durationOr returns the requested duration, or def, capped at limit.
func (a args) durationOr(def, limit time.Duration) time.Duration {
	d := def
	if a.duration > 0 {
		d = a.duration
	}
	if limit > 0 && d > limit {
		d = limit
	}
	return d
}
