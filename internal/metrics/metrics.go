// Package metrics provides Prometheus instruments for bus traffic, dispatched
// commands and device availability.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marvin"

var (
	busTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bus",
		Name:      "transfers_total",
		Help:      "Bus and pin transfers by device, operation and result",
	}, []string{"device", "op", "result"})

	commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "commands_total",
		Help:      "Dispatched commands by group, verb and outcome",
	}, []string{"group", "verb", "outcome"})

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "command_duration_seconds",
		Help:      "Time spent handling a command, including timed demos",
		Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 2.5, 10, 30},
	}, []string{"group"})

	commandedPower = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "motion",
		Name:      "commanded_power",
		Help:      "Last power written to a motor channel (-1..1)",
	}, []string{"motor"})

	deviceAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "devices",
		Name:      "available",
		Help:      "1 when the device was assembled at startup",
	}, []string{"device"})

	encoderWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "waits_total",
		Help:      "Encoder move waits by result",
	}, []string{"result"})
)

// ObserveBusTransfer counts one transfer on a device.
func ObserveBusTransfer(device, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	busTransfers.WithLabelValues(device, op, result).Inc()
}

// ObserveCommand records the outcome and duration of a dispatched command.
func ObserveCommand(group, verb, outcome string, d time.Duration) {
	commands.WithLabelValues(group, verb, outcome).Inc()
	commandDuration.WithLabelValues(group).Observe(d.Seconds())
}

// SetCommandedPower records the last power written to a motor.
func SetCommandedPower(motor string, power float64) {
	commandedPower.WithLabelValues(motor).Set(power)
}

// SetDeviceAvailable records whether a device is part of the assembly.
func SetDeviceAvailable(device string, available bool) {
	v := 0.0
	if available {
		v = 1
	}
	deviceAvailable.WithLabelValues(device).Set(v)
}

// ObserveEncoderWait counts one encoder wait.
func ObserveEncoderWait(finished bool, err error) {
	switch {
	case err != nil:
		encoderWaits.WithLabelValues("error").Inc()
	case finished:
		encoderWaits.WithLabelValues("finished").Inc()
	default:
		encoderWaits.WithLabelValues("timeout").Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func Handler() http.Handler {
	return promhttp.Handler()
}
