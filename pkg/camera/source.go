package camera

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/intothevoid/keenonqr/pkg/logging"
	"github.com/intothevoid/keenonqr/pkg/metrics"
)

// ErrAlreadyBound is returned by Bind when an analyzer is already attached.
var ErrAlreadyBound = errors.New("source is already bound")

// readErrorBackoff is how long the capture loop waits after a failed read.
const readErrorBackoff = 10 * time.Millisecond

// Analyzer receives frames on the executor the source was bound with.
// It owns the frame and must release it.
type Analyzer func(*Frame)

// SourceStats is a snapshot of the source counters.
type SourceStats struct {
	Captured    uint64 `json:"captured"`
	Delivered   uint64 `json:"delivered"`
	Overwritten uint64 `json:"overwritten"`
	ReadErrors  uint64 `json:"readErrors"`
	Outstanding int64  `json:"outstanding"`
}

// Source pulls images from a Capturer and delivers them to an Analyzer.
//
// Delivery keeps only the latest frame: while a delivery is queued on the
// executor, a newer capture replaces the pending frame and the replaced one
// is released without being analyzed.
type Source struct {
	capturer Capturer
	rotation int
	interval time.Duration
	logger   logr.Logger

	previewMu sync.RWMutex
	preview   func(image.Image)

	mu        sync.Mutex
	bound     bool
	pending   *Frame
	scheduled bool
	cancel    context.CancelFunc
	loopDone  chan struct{}

	seq         atomic.Uint64
	captured    atomic.Uint64
	delivered   atomic.Uint64
	overwritten atomic.Uint64
	readErrors  atomic.Uint64
	outstanding atomic.Int64
}

// NewSource wraps capturer. rotation is attached to every frame; interval
// is the pause between reads (0 reads as fast as the device allows).
func NewSource(capturer Capturer, rotation int, interval time.Duration, logger logr.Logger) *Source {
	return &Source{
		capturer: capturer,
		rotation: rotation,
		interval: interval,
		logger:   logger.WithName("source"),
	}
}

// SetPreview registers fn to receive every captured image, including the
// ones that are never analyzed. fn runs on the capture goroutine.
func (s *Source) SetPreview(fn func(image.Image)) {
	s.previewMu.Lock()
	s.preview = fn
	s.previewMu.Unlock()
}

// Bind starts capturing and delivers frames to analyzer on exec.
func (s *Source) Bind(ctx context.Context, exec *Executor, analyzer Analyzer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound {
		return ErrAlreadyBound
	}
	ctx, cancel := context.WithCancel(ctx)
	s.bound = true
	s.cancel = cancel
	s.loopDone = make(chan struct{})

	go s.captureLoop(ctx, exec, analyzer, s.loopDone)
	s.logger.V(logging.DEFAULT).Info("Frame source bound", "rotation", s.rotation, "interval", s.interval)
	return nil
}

// Unbind stops the capture loop. Frames not yet handed to the analyzer are
// released instead of delivered. Safe to call more than once.
func (s *Source) Unbind() {
	s.mu.Lock()
	if !s.bound {
		s.mu.Unlock()
		return
	}
	s.bound = false
	cancel, done := s.cancel, s.loopDone
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	cancel()
	<-done
	if pending != nil {
		pending.Release()
	}
	s.logger.V(logging.DEFAULT).Info("Frame source unbound")
}

// Stats returns a snapshot of the source counters.
func (s *Source) Stats() SourceStats {
	return SourceStats{
		Captured:    s.captured.Load(),
		Delivered:   s.delivered.Load(),
		Overwritten: s.overwritten.Load(),
		ReadErrors:  s.readErrors.Load(),
		Outstanding: s.outstanding.Load(),
	}
}

func (s *Source) captureLoop(ctx context.Context, exec *Executor, analyzer Analyzer, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		img, err := s.capturer.Read()
		if err != nil {
			s.readErrors.Add(1)
			s.logger.V(logging.DEBUG).Info("Failed to read frame", "err", err)
			if !sleep(ctx, readErrorBackoff) {
				return
			}
			continue
		}
		s.captured.Add(1)

		s.previewMu.RLock()
		preview := s.preview
		s.previewMu.RUnlock()
		if preview != nil {
			preview(img)
		}

		frame := NewFrame(s.seq.Add(1), time.Now(), s.rotation, img, s.onRelease)
		s.outstanding.Add(1)
		s.publish(frame, exec, analyzer)

		if s.interval > 0 && !sleep(ctx, s.interval) {
			return
		}
	}
}

func (s *Source) publish(frame *Frame, exec *Executor, analyzer Analyzer) {
	s.mu.Lock()
	if !s.bound {
		s.mu.Unlock()
		frame.Release()
		return
	}
	replaced := s.pending
	s.pending = frame
	schedule := !s.scheduled
	s.scheduled = true
	s.mu.Unlock()

	if replaced != nil {
		s.overwritten.Add(1)
		metrics.RecordFrame(metrics.OutcomeOverwritten)
		replaced.Release()
	}
	if !schedule {
		return
	}
	if exec.Execute(func() { s.deliver(analyzer) }) {
		return
	}

	// Worker context is gone.
	s.mu.Lock()
	s.scheduled = false
	orphan := s.pending
	s.pending = nil
	s.mu.Unlock()
	if orphan != nil {
		orphan.Release()
	}
}

func (s *Source) deliver(analyzer Analyzer) {
	s.mu.Lock()
	frame := s.pending
	s.pending = nil
	s.scheduled = false
	bound := s.bound
	s.mu.Unlock()

	if frame == nil {
		return
	}
	if !bound {
		frame.Release()
		return
	}
	s.delivered.Add(1)
	analyzer(frame)
}

func (s *Source) onRelease(*Frame) {
	s.outstanding.Add(-1)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
