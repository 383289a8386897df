package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/intothevoid/keenonqr/pkg/barcode"
	"github.com/intothevoid/keenonqr/pkg/camera"
	"github.com/intothevoid/keenonqr/pkg/logging"
	"github.com/intothevoid/keenonqr/pkg/metrics"
)

// ErrDoubleRelease is logged if a frame reaches a second release point.
var ErrDoubleRelease = errors.New("frame already released")

// State of the gate.
type State int

const (
	// Idle admits the next frame.
	Idle State = iota
	// Busy drops every frame.
	Busy
)

func (s State) String() string {
	if s == Busy {
		return "busy"
	}
	return "idle"
}

const (
	eventAdmit  = "admit"
	eventSettle = "settle"
)

// Policy decides what a dismissed detection does to the gate.
type Policy int

const (
	// PolicyHalt leaves the gate Busy after a detection until the session
	// is torn down.
	PolicyHalt Policy = iota
	// PolicyResume returns the gate to Idle when the detection is dismissed.
	PolicyResume
)

func (p Policy) String() string {
	if p == PolicyResume {
		return "resume"
	}
	return "halt"
}

// ParsePolicy maps "halt" and "resume" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "halt":
		return PolicyHalt, nil
	case "resume":
		return PolicyResume, nil
	}
	return PolicyHalt, fmt.Errorf("unknown policy %q", s)
}

// Notifier receives detections. Notify runs on the worker executor and
// must hand off to the UI without blocking.
type Notifier interface {
	Notify(Detection)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Detection)

func (f NotifierFunc) Notify(d Detection) { f(d) }

// GateStats counts frames by outcome.
type GateStats struct {
	Admitted  uint64 `json:"admitted"`
	Dropped   uint64 `json:"dropped"`
	Detected  uint64 `json:"detected"`
	Empty     uint64 `json:"empty"`
	Failed    uint64 `json:"failed"`
	Discarded uint64 `json:"discarded"`
}

// GateOptions configures a Gate.
type GateOptions struct {
	Policy    Policy
	SessionID uuid.UUID
	Logger    logr.Logger
}

// Gate admits at most one frame at a time into the decoder.
//
// Analyze and every state transition run on the executor passed to
// NewGate. Decodes run on their own goroutine and post their completion
// back to that executor, so the state is only ever changed from one
// goroutine.
type Gate struct {
	exec      *camera.Executor
	decoder   barcode.Decoder
	notifier  Notifier
	policy    Policy
	sessionID uuid.UUID
	logger    logr.Logger

	state *fsm.FSM

	// ctx is canceled by Close and passed to every decode.
	ctx      context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool
	inflight sync.WaitGroup

	// awaitingDismiss is set while Busy because of a detection rather than
	// a running decode. Executor only.
	awaitingDismiss bool

	admitted  atomic.Uint64
	dropped   atomic.Uint64
	detected  atomic.Uint64
	empty     atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
}

// NewGate returns an Idle gate.
func NewGate(exec *camera.Executor, decoder barcode.Decoder, notifier Notifier, opts GateOptions) *Gate {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gate{
		exec:      exec,
		decoder:   decoder,
		notifier:  notifier,
		policy:    opts.Policy,
		sessionID: opts.SessionID,
		logger:    opts.Logger.WithName("gate"),
		ctx:       ctx,
		cancel:    cancel,
	}
	g.state = fsm.NewFSM(
		Idle.String(),
		fsm.Events{
			{Name: eventAdmit, Src: []string{Idle.String()}, Dst: Busy.String()},
			{Name: eventSettle, Src: []string{Busy.String()}, Dst: Idle.String()},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				metrics.RecordGateBusy(e.Dst == Busy.String())
				g.logger.V(logging.TRACE).Info("Gate transition", "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return g
}

// State returns the current state. Safe from any goroutine.
func (g *Gate) State() State {
	if g.state.Is(Busy.String()) {
		return Busy
	}
	return Idle
}

// Analyze is the camera.Analyzer of the gate. It either forwards frame to
// the decoder (Idle) or releases it unprocessed (Busy).
func (g *Gate) Analyze(frame *camera.Frame) {
	if g.closed.Load() || frame.Image == nil {
		g.release(frame)
		return
	}

	if err := g.state.Event(context.Background(), eventAdmit); err != nil {
		g.dropped.Add(1)
		metrics.RecordFrame(metrics.OutcomeDropped)
		g.logger.V(logging.TRACE).Info("Dropping frame", "seq", frame.Seq, "reason", err.Error())
		g.release(frame)
		return
	}

	g.admitted.Add(1)
	metrics.RecordFrame(metrics.OutcomeAdmitted)
	g.logger.V(logging.DEBUG).Info("Processing frame", "seq", frame.Seq, "rotation", frame.RotationDegrees)

	g.inflight.Add(1)
	task := barcode.Process(g.ctx, g.decoder, frame.Image, frame.RotationDegrees)
	go g.await(frame, task, time.Now())
}

// Resume settles a dismissed detection back to Idle under PolicyResume. It
// never settles a running decode. Reports whether the request was queued.
func (g *Gate) Resume() bool {
	if g.policy != PolicyResume || g.closed.Load() {
		return false
	}
	return g.exec.Execute(func() {
		if g.closed.Load() || !g.awaitingDismiss {
			return
		}
		g.awaitingDismiss = false
		g.settle()
		g.logger.V(logging.DEFAULT).Info("Scanning resumed")
	})
}

// Close cancels in-flight decodes. Their completions release the frame and
// are otherwise ignored.
func (g *Gate) Close() {
	if g.closed.CompareAndSwap(false, true) {
		g.cancel()
	}
}

// Wait blocks until every admitted frame has completed.
func (g *Gate) Wait() {
	g.inflight.Wait()
}

// Stats returns a snapshot of the gate counters.
func (g *Gate) Stats() GateStats {
	return GateStats{
		Admitted:  g.admitted.Load(),
		Dropped:   g.dropped.Load(),
		Detected:  g.detected.Load(),
		Empty:     g.empty.Load(),
		Failed:    g.failed.Load(),
		Discarded: g.discarded.Load(),
	}
}

func (g *Gate) await(frame *camera.Frame, task *barcode.Task, start time.Time) {
	defer g.inflight.Done()

	barcodes, err := task.Result()
	metrics.RecordDecodeLatency(g.decoder.Name(), time.Since(start))

	if !g.exec.Execute(func() { g.complete(frame, barcodes, err) }) {
		// The executor is gone with the session.
		g.discard(frame)
	}
}

func (g *Gate) complete(frame *camera.Frame, barcodes []barcode.Barcode, err error) {
	if g.closed.Load() {
		g.discard(frame)
		return
	}
	g.release(frame)

	if err != nil {
		g.failed.Add(1)
		metrics.RecordFrame(metrics.OutcomeFailed)
		g.logger.Error(err, "Failed to decode frame", "seq", frame.Seq, "decoder", g.decoder.Name())
		g.settle()
		return
	}

	hit, ok := barcode.FirstNonEmpty(barcodes)
	if !ok {
		g.empty.Add(1)
		metrics.RecordFrame(metrics.OutcomeEmpty)
		g.settle()
		return
	}

	g.detected.Add(1)
	metrics.RecordFrame(metrics.OutcomeDetected)
	g.awaitingDismiss = true

	d := Detection{
		ID:         uuid.New(),
		SessionID:  g.sessionID,
		FrameSeq:   frame.Seq,
		CapturedAt: frame.Timestamp,
		DetectedAt: time.Now(),
		Barcode:    hit,
		Barcodes:   barcodes,
	}
	g.logger.V(logging.DEFAULT).Info("Barcode detected", "seq", frame.Seq, "format", hit.Format, "type", hit.Type.String(), "policy", g.policy.String())
	g.notifier.Notify(d)
}

func (g *Gate) discard(frame *camera.Frame) {
	g.release(frame)
	g.discarded.Add(1)
	metrics.RecordFrame(metrics.OutcomeDiscarded)
	g.logger.V(logging.DEBUG).Info("Discarding decode result after teardown", "seq", frame.Seq)
}

func (g *Gate) settle() {
	if err := g.state.Event(context.Background(), eventSettle); err != nil {
		g.logger.Error(err, "Failed to return gate to idle")
	}
}

func (g *Gate) release(frame *camera.Frame) {
	if !frame.Release() {
		g.logger.Error(ErrDoubleRelease, "Frame reached a second release point", "seq", frame.Seq)
	}
}
