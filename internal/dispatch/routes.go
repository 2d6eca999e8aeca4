package dispatch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smazurov/marvin/internal/robot"
)

// call carries what a verb needs to run.
type call struct {
	policy Policy
	args   args
}

type route struct {
	// needs reports whether the capability behind the verb is present.
	needs func(r *robot.Robot) bool
	run   func(d *Dispatcher, c call) (string, error)
	// motion verbs get the EPO latch checked afterwards.
	motion bool
}

type group struct {
	// present reports whether the device behind the group assembled. An
	// absent group answers unavailable for any verb that needs it.
	present     func(r *robot.Robot) bool
	unavailable string
	routes      map[string]route
}

func hasMotion(r *robot.Robot) bool    { return r.Motion != nil }
func hasIndicator(r *robot.Robot) bool { return r.Indicator != nil }
func hasStrip(r *robot.Robot) bool     { return r.Strip != nil }
func hasBoardLED(r *robot.Robot) bool  { return r.BoardLED != nil }
func hasSafety(r *robot.Robot) bool    { return r.Safety != nil }

// hasController reports whether any capability of the motor controller
// assembled.
func hasController(r *robot.Robot) bool {
	return r.Motion != nil || r.BoardLED != nil || r.Safety != nil
}

var groups = map[string]group{
	"robot": {
		present:     hasMotion,
		unavailable: "Robot not available",
		routes: map[string]route{
			"forward":  {needs: hasMotion, run: forward, motion: true},
			"backward": {needs: hasMotion, run: backward, motion: true},
			"left":     {needs: hasMotion, run: left, motion: true},
			"right":    {needs: hasMotion, run: right, motion: true},
			"reverse":  {needs: hasMotion, run: reverse, motion: true},
			"stop":     {needs: hasMotion, run: stop, motion: true},
			"status":   {run: status},
		},
	},
	"led": {
		present:     hasIndicator,
		unavailable: "LED not available",
		routes: map[string]route{
			"led_on":     {needs: hasIndicator, run: indicatorOn},
			"led_off":    {needs: hasIndicator, run: indicatorOff},
			"toggle_led": {needs: hasIndicator, run: indicatorToggle},
		},
	},
	"blinkt": {
		present:     hasStrip,
		unavailable: "LED strip not available",
		routes: map[string]route{
			"strobe_led": {needs: hasStrip, run: strobe},
			"led_on":     {needs: hasStrip, run: stripOn},
			"led_off":    {needs: hasStrip, run: stripOff},
		},
	},
	"borg": {
		present:     hasController,
		unavailable: "PicoBorg Reverse not available",
		routes: map[string]route{
			"toggle_led":   {needs: hasBoardLED, run: boardToggle},
			"set_motors":   {needs: hasMotion, run: motorDemo, motion: true},
			"clear_motors": {needs: hasMotion, run: clearMotors, motion: true},
			"epo":          {needs: hasSafety, run: epo},
			"reset_epo":    {needs: hasSafety, run: resetEPO},
		},
	},
}

// Groups returns the command groups in sorted order.
func Groups() []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Verbs returns the verbs of group in sorted order, or nil for an unknown
// group.
func Verbs(group string) []string {
	g, ok := groups[group]
	if !ok {
		return nil
	}
	verbs := make([]string, 0, len(g.routes))
	for verb := range g.routes {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	return verbs
}

func forward(d *Dispatcher, c call) (string, error) {
	speed := c.args.speedOr(c.policy.ForwardSpeed)
	return fmt.Sprintf("moving forward at %g", speed), d.robot.Motion.Forward(speed)
}

func backward(d *Dispatcher, c call) (string, error) {
	speed := c.args.speedOr(c.policy.ForwardSpeed)
	return fmt.Sprintf("moving backward at %g", speed), d.robot.Motion.Backward(speed)
}

func left(d *Dispatcher, c call) (string, error) {
	speed := c.args.speedOr(c.policy.ForwardSpeed)
	return fmt.Sprintf("turning left at %g", speed), d.robot.Motion.Left(speed)
}

func right(d *Dispatcher, c call) (string, error) {
	speed := c.args.speedOr(c.policy.ForwardSpeed)
	return fmt.Sprintf("turning right at %g", speed), d.robot.Motion.Right(speed)
}

func reverse(d *Dispatcher, _ call) (string, error) {
	return "reversing direction", d.robot.Motion.Reverse()
}

func stop(d *Dispatcher, _ call) (string, error) {
	return "stopping robot", d.robot.Motion.Stop()
}

// status reports which capabilities are present. It works with none.
func status(d *Dispatcher, _ call) (string, error) {
	r := d.robot
	parts := []string{
		"motion " + availability(r.Motion != nil),
		"indicator " + availability(r.Indicator != nil),
		"strip " + availability(r.Strip != nil),
	}
	if r.Safety != nil {
		tripped, err := r.Safety.EPO()
		switch {
		case err != nil:
			parts = append(parts, "EPO unknown")
		case tripped:
			d.noteEPO(true)
			parts = append(parts, "EPO tripped")
		default:
			d.noteEPO(false)
			parts = append(parts, "EPO clear")
		}
	}
	return strings.Join(parts, ", "), nil
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "not available"
}

func indicatorOn(d *Dispatcher, _ call) (string, error) {
	return "turning LED on", d.robot.Indicator.On()
}

func indicatorOff(d *Dispatcher, _ call) (string, error) {
	return "turning LED off", d.robot.Indicator.Off()
}

func indicatorToggle(d *Dispatcher, _ call) (string, error) {
	return toggle(d.robot.Indicator)
}

func boardToggle(d *Dispatcher, _ call) (string, error) {
	return toggle(d.robot.BoardLED)
}

func toggle(ind robot.Indicator) (string, error) {
	on, err := robot.Toggle(ind)
	if err != nil {
		return "", err
	}
	if on {
		return "LED is now on", nil
	}
	return "LED is now off", nil
}

func stripOn(d *Dispatcher, _ call) (string, error) {
	return "turning LED strip on", d.robot.Strip.On()
}

func stripOff(d *Dispatcher, _ call) (string, error) {
	return "turning LED strip off", d.robot.Strip.Off()
}

// strobe lights the strip cyan for the strobe duration, then switches it off.
func strobe(d *Dispatcher, c call) (string, error) {
	dur := c.args.durationOr(c.policy.StrobeDuration, c.policy.MaxDuration)
	if err := d.robot.Strip.Color(strobeR, strobeG, strobeB); err != nil {
		return "", err
	}
	d.hold(dur)
	if err := d.robot.Strip.Off(); err != nil {
		return "", err
	}
	return fmt.Sprintf("strobed LED for %s", dur), nil
}

// motorDemo drives both motors for the demo duration, then stops them.
func motorDemo(d *Dispatcher, c call) (string, error) {
	power := c.args.speedOr(c.policy.DemoPower)
	dur := c.args.durationOr(c.policy.DemoDuration, c.policy.MaxDuration)
	if err := d.robot.Motion.Forward(power); err != nil {
		return "", err
	}
	d.hold(dur)
	if err := d.robot.Motion.Stop(); err != nil {
		return "", err
	}
	return fmt.Sprintf("ran motors at %g for %s", power, dur), nil
}

func clearMotors(d *Dispatcher, _ call) (string, error) {
	return "motors stopped", d.robot.Motion.Stop()
}

func epo(d *Dispatcher, _ call) (string, error) {
	tripped, err := d.robot.Safety.EPO()
	if err != nil {
		return "", err
	}
	d.noteEPO(tripped)
	if tripped {
		return "EPO tripped", nil
	}
	return "EPO clear", nil
}

// resetEPO clears the latch. This is the only path that does.
func resetEPO(d *Dispatcher, _ call) (string, error) {
	if err := d.robot.Safety.ResetEPO(); err != nil {
		return "", err
	}
	tripped, err := d.robot.Safety.EPO()
	if err != nil {
		return "", err
	}
	d.noteEPO(tripped)
	if tripped {
		return "EPO reset requested, latch still set (is the switch clear?)", nil
	}
	return "EPO reset", nil
}
