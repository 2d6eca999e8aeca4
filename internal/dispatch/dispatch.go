// Package dispatch maps path-structured commands onto robot capabilities.
//
// Commands are served one at a time by a single loop goroutine. A command is
// fully handled, including any timed demo, before the next one is read.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/smazurov/marvin/internal/events"
	"github.com/smazurov/marvin/internal/hw"
	"github.com/smazurov/marvin/internal/metrics"
	"github.com/smazurov/marvin/internal/robot"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("dispatcher stopped")

// Outcome classifies how a command was handled.
type Outcome string

// Outcome values.
const (
	OutcomeOK           Outcome = "ok"
	OutcomeUnavailable  Outcome = "unavailable"
	OutcomeUnrecognized Outcome = "unrecognized"
	OutcomeInvalid      Outcome = "invalid"
	OutcomeError        Outcome = "error"
)

// Command is one inbound request: a path such as "/robot/forward" and its
// query parameters ("speed", "duration").
type Command struct {
	Path  string
	Query url.Values
}

// Response is the text sent back for a command. Failures are reported in the
// text, never as an error returned from Do. Err carries the classified
// failure, if any, for logging and events.
type Response struct {
	Text    string
	Group   string
	Verb    string
	Outcome Outcome
	Err     error
}

type request struct {
	cmd   Command
	reply chan Response
}

// Dispatcher owns the robot for the lifetime of its loop.
type Dispatcher struct {
	robot    *robot.Robot
	bus      *events.Bus
	logger   *slog.Logger
	policy   atomic.Pointer[Policy]
	requests chan request
	done     chan struct{}

	// loop-owned
	ctx     context.Context
	lastEPO *bool
}

// New creates a dispatcher for r. bus may be nil.
func New(r *robot.Robot, bus *events.Bus, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		robot:    r,
		bus:      bus,
		logger:   logger,
		requests: make(chan request),
		done:     make(chan struct{}),
		ctx:      context.Background(),
	}
	p := DefaultPolicy()
	d.policy.Store(&p)
	return d
}

// SetPolicy replaces the policy. Commands already running keep the policy
// they started with.
func (d *Dispatcher) SetPolicy(p Policy) {
	d.policy.Store(&p)
	d.logger.Info("Dispatch policy updated",
		"forward_speed", p.ForwardSpeed,
		"demo_power", p.DemoPower,
		"demo_duration", p.DemoDuration,
		"strobe_duration", p.StrobeDuration,
		"max_duration", p.MaxDuration)
}

// Policy returns the current policy.
func (d *Dispatcher) Policy() Policy {
	return *d.policy.Load()
}

// Run serves commands until ctx is cancelled. A timed demo in progress is
// cut short when ctx is cancelled. Run must be called once.
func (d *Dispatcher) Run(ctx context.Context) {
	d.ctx = ctx
	defer close(d.done)

	d.logger.Info("Dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopped")
			return
		case req := <-d.requests:
			req.reply <- d.handle(req.cmd)
		}
	}
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Do queues cmd and waits for its response.
func (d *Dispatcher) Do(ctx context.Context, cmd Command) (Response, error) {
	req := request{cmd: cmd, reply: make(chan Response, 1)}
	select {
	case d.requests <- req:
	case <-d.done:
		return Response{}, ErrStopped
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// handle runs one command. It never panics.
func (d *Dispatcher) handle(cmd Command) (resp Response) {
	start := time.Now()
	segments := strings.Split(cmd.Path, "/")

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Command handler panicked", "path", cmd.Path, "panic", r)
			resp = Response{
				Text:    fmt.Sprintf("[%s] internal error handling %s", resp.Group, cmd.Path),
				Group:   resp.Group,
				Verb:    resp.Verb,
				Outcome: OutcomeError,
			}
		}
		d.finish(cmd, resp, time.Since(start))
	}()

	if len(segments) < 2 || segments[0] != "" {
		return unrecognized(cmd.Path)
	}
	group, ok := groups[segments[1]]
	if !ok {
		return unrecognized(cmd.Path)
	}
	resp.Group = segments[1]

	verb := ""
	if len(segments) > 2 {
		verb = segments[2]
	}
	rt, known := group.routes[verb]
	known = known && len(segments) <= 3
	if known {
		resp.Verb = verb
	}

	// verbs without a requirement (robot/status) answer even when the group
	// is absent
	if !(known && rt.needs == nil) && group.present != nil && !group.present(d.robot) {
		return unavailable(resp, group)
	}
	if !known {
		resp.Text = fmt.Sprintf("[%s] Request not recognised: %s", resp.Group, cmd.Path)
		resp.Outcome = OutcomeUnrecognized
		resp.Err = &hw.Error{Code: hw.CodeUnrecognizedCommand, Op: cmd.Path}
		return resp
	}
	if rt.needs != nil && !rt.needs(d.robot) {
		return unavailable(resp, group)
	}

	a, err := parseArgs(cmd.Query)
	if err != nil {
		resp.Text = fmt.Sprintf("[%s] %v", resp.Group, err)
		resp.Outcome = OutcomeInvalid
		resp.Err = err
		return resp
	}

	text, err := rt.run(d, call{policy: d.Policy(), args: a})
	if err != nil {
		d.logger.Warn("Command failed", "group", resp.Group, "verb", verb, "error", err)
		resp.Text = fmt.Sprintf("[%s] %s failed: %v", resp.Group, verb, err)
		resp.Outcome = OutcomeError
		resp.Err = err
		return resp
	}

	resp.Text = fmt.Sprintf("[%s] %s", resp.Group, text)
	resp.Outcome = OutcomeOK
	if rt.motion {
		if latchErr := d.checkEPO(verb); latchErr != nil {
			resp.Text += fmt.Sprintf(" (%s: motors are disabled until the EPO is reset)", hw.CodeOf(latchErr))
			resp.Err = latchErr
		}
	}
	return resp
}

func unrecognized(path string) Response {
	return Response{
		Text:    "Request not recognised: " + path,
		Outcome: OutcomeUnrecognized,
		Err:     &hw.Error{Code: hw.CodeUnrecognizedCommand, Op: path},
	}
}

func unavailable(resp Response, g group) Response {
	resp.Text = fmt.Sprintf("[%s] %s", resp.Group, g.unavailable)
	resp.Outcome = OutcomeUnavailable
	resp.Err = &hw.Error{Code: hw.CodeDeviceUnavailable, Device: resp.Group, Op: resp.Verb}
	return resp
}

func (d *Dispatcher) finish(cmd Command, resp Response, elapsed time.Duration) {
	group, verb := resp.Group, resp.Verb
	if group == "" {
		group = "unknown"
	}
	if verb == "" {
		verb = "unknown"
	}
	metrics.ObserveCommand(group, verb, string(resp.Outcome), elapsed)

	code := hw.CodeOf(resp.Err)
	d.logger.Debug("Command handled",
		"path", cmd.Path,
		"outcome", resp.Outcome,
		"code", code,
		"duration", elapsed,
		"response", resp.Text)

	if d.bus != nil {
		d.bus.Publish(events.CommandEvent{
			Group:     resp.Group,
			Verb:      resp.Verb,
			Outcome:   string(resp.Outcome),
			Code:      string(code),
			Response:  resp.Text,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// checkEPO reads the EPO latch after a motion command and returns a
// SAFETY_LATCH_TRIPPED error when it is set. The command was sent regardless;
// a set latch means the board is ignoring it.
func (d *Dispatcher) checkEPO(verb string) error {
	if d.robot.Safety == nil {
		return nil
	}
	tripped, err := d.robot.Safety.EPO()
	if err != nil {
		d.logger.Debug("Failed to read EPO latch", "error", err)
		return nil
	}
	d.noteEPO(tripped)
	if !tripped {
		return nil
	}
	return &hw.Error{Code: hw.CodeSafetyLatchTripped, Device: robot.DeviceController, Op: verb}
}

// noteEPO publishes the latch state when it changes.
func (d *Dispatcher) noteEPO(tripped bool) {
	if d.lastEPO != nil && *d.lastEPO == tripped {
		return
	}
	d.lastEPO = &tripped
	if tripped {
		d.logger.Warn("EPO latch is tripped")
	}
	if d.bus != nil {
		d.bus.Publish(events.EPOEvent{Tripped: tripped, Timestamp: time.Now().Format(time.RFC3339)})
	}
}

// hold waits for dur or until the loop is stopped.
func (d *Dispatcher) hold(dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-d.ctx.Done():
	}
}
