package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/intothevoid/keenonqr/pkg/barcode"
	"github.com/intothevoid/keenonqr/pkg/camera"
	"github.com/intothevoid/keenonqr/pkg/history"
	"github.com/intothevoid/keenonqr/pkg/logging"
)

var (
	ErrSessionStarted    = errors.New("session already started")
	ErrSessionClosed     = errors.New("session is closed")
	ErrFramesOutstanding = errors.New("frames not released after teardown")
)

// Options configures a Session.
type Options struct {
	Capturer      camera.Capturer
	Decoder       barcode.Decoder
	Notifier      Notifier
	Policy        Policy
	Rotation      int
	FrameInterval time.Duration
	// History is optional.
	History *history.Store
	Logger  logr.Logger
}

// Stats describes a running session.
type Stats struct {
	SessionID string             `json:"sessionId"`
	State     string             `json:"state"`
	Policy    string             `json:"policy"`
	Decoder   string             `json:"decoder"`
	Source    camera.SourceStats `json:"source"`
	Gate      GateStats          `json:"gate"`
}

// Session is the lifetime of one scan screen: a camera source feeding the
// gate on a single worker executor.
type Session struct {
	id       uuid.UUID
	capturer camera.Capturer
	decoder  barcode.Decoder
	notifier Notifier
	history  *history.Store
	policy   Policy
	logger   logr.Logger

	exec   *camera.Executor
	source *camera.Source
	gate   *Gate

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewSession wires the components; nothing runs until Start.
func NewSession(opts Options) *Session {
	s := &Session{
		id:       uuid.New(),
		capturer: opts.Capturer,
		decoder:  opts.Decoder,
		notifier: opts.Notifier,
		history:  opts.History,
		policy:   opts.Policy,
		exec:     camera.NewExecutor(0),
	}
	s.logger = opts.Logger.WithValues("session", s.id.String())
	s.source = camera.NewSource(opts.Capturer, opts.Rotation, opts.FrameInterval, s.logger)
	s.gate = NewGate(s.exec, opts.Decoder, NotifierFunc(s.notify), GateOptions{
		Policy:    opts.Policy,
		SessionID: s.id,
		Logger:    s.logger,
	})
	return s
}

// ID identifies the session in logs, history and detections.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Source exposes the frame source, e.g. to attach a preview.
func (s *Session) Source() *camera.Source {
	return s.source
}

// Start binds the camera source to the gate.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return ErrSessionClosed
	case s.started:
		return ErrSessionStarted
	}
	if err := s.source.Bind(ctx, s.exec, s.gate.Analyze); err != nil {
		return fmt.Errorf("failed to bind frame source: %w", err)
	}
	s.started = true
	s.logger.V(logging.DEFAULT).Info("Scan session started", "policy", s.policy.String(), "decoder", s.decoder.Name())
	return nil
}

// Resume is called when the user dismisses a detection.
func (s *Session) Resume() bool {
	return s.gate.Resume()
}

// State of the gate.
func (s *Session) State() State {
	return s.gate.State()
}

// Stats returns a snapshot of the session.
func (s *Session) Stats() Stats {
	return Stats{
		SessionID: s.id.String(),
		State:     s.gate.State().String(),
		Policy:    s.policy.String(),
		Decoder:   s.decoder.Name(),
		Source:    s.source.Stats(),
		Gate:      s.gate.Stats(),
	}
}

// Close tears the session down: the source is detached, the worker
// executor shut down, in-flight decodes waited for and the camera
// released. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.source.Unbind()
	s.gate.Close()
	s.exec.Shutdown()
	s.exec.Wait()
	s.gate.Wait()

	var err error
	if n := s.source.Stats().Outstanding; n != 0 {
		err = multierr.Append(err, fmt.Errorf("%w: %d", ErrFramesOutstanding, n))
	}
	if s.capturer != nil {
		if cerr := s.capturer.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close camera: %w", cerr))
		}
	}

	stats := s.gate.Stats()
	s.logger.V(logging.DEFAULT).Info("Scan session closed",
		"admitted", stats.Admitted, "dropped", stats.Dropped, "detected", stats.Detected,
		"empty", stats.Empty, "failed", stats.Failed, "discarded", stats.Discarded)
	return err
}

// notify runs on the worker executor.
func (s *Session) notify(d Detection) {
	if s.history != nil {
		_, err := s.history.Save(history.Record{
			ID:         d.ID.String(),
			SessionID:  d.SessionID.String(),
			Value:      d.Barcode.RawValue,
			Format:     d.Barcode.Format,
			Type:       d.Barcode.Type.String(),
			DetectedAt: d.DetectedAt,
		})
		if err != nil {
			s.logger.Error(err, "Failed to record detection", "detection", d.ID.String())
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(d)
	}
}
