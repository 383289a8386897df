package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "scanner"

// Frame outcomes recorded by the gate and the frame source.
const (
	OutcomeAdmitted    = "admitted"
	OutcomeDropped     = "dropped"
	OutcomeOverwritten = "overwritten"
	OutcomeEmpty       = "empty"
	OutcomeFailed      = "failed"
	OutcomeDetected    = "detected"
	OutcomeDiscarded   = "discarded"
)

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	frameCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "frames_total",
			Help:      "Count of camera frames by gate outcome.",
		},
		[]string{"outcome"},
	)
	decodeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "decode_duration_seconds",
			Help:      "Time from admitting a frame to its decode completing.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"decoder"},
	)
	gateBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "gate_busy",
			Help:      "1 while a decode is in flight or a detection awaits dismissal, 0 otherwise.",
		},
	)
)

var registerMetrics sync.Once

// Register all metrics.
func Register() {
	registerMetrics.Do(func() {
		Registry.MustRegister(frameCounter)
		Registry.MustRegister(decodeLatency)
		Registry.MustRegister(gateBusy)
	})
}

// RecordFrame counts one frame with the given outcome.
func RecordFrame(outcome string) {
	frameCounter.WithLabelValues(outcome).Inc()
}

// RecordDecodeLatency records how long a decode took.
func RecordDecodeLatency(decoder string, d time.Duration) {
	decodeLatency.WithLabelValues(decoder).Observe(d.Seconds())
}

// RecordGateBusy reflects the gate state.
func RecordGateBusy(busy bool) {
	if busy {
		gateBusy.Set(1)
		return
	}
	gateBusy.Set(0)
}
