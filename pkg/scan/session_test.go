package scan

import (
	"context"
	"image"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intothevoid/keenonqr/pkg/barcode"
	"github.com/intothevoid/keenonqr/pkg/history"
	"github.com/intothevoid/keenonqr/pkg/logging"
)

// stillCamera keeps returning the same picture.
type stillCamera struct {
	img    image.Image
	closed atomic.Bool
}

func (c *stillCamera) Read() (image.Image, error) { return c.img, nil }

func (c *stillCamera) Close() error {
	c.closed.Store(true)
	return nil
}

func qrImage(t *testing.T, content string) image.Image {
	t.Helper()
	img, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
	require.NoError(t, err)
	return img
}

func TestSessionDetectsAndRecords(t *testing.T) {
	cam := &stillCamera{img: qrImage(t, "https://example.com/table/12")}
	store, err := history.Open(filepath.Join(t.TempDir(), "history.json"), 0)
	require.NoError(t, err)
	notifier := &recordingNotifier{}

	s := NewSession(Options{
		Capturer:      cam,
		Decoder:       barcode.NewZXingDecoder(),
		Notifier:      notifier,
		Policy:        PolicyHalt,
		FrameInterval: 5 * time.Millisecond,
		History:       store,
		Logger:        logging.NewTestLogger(),
	})

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSessionStarted)

	require.Eventually(t, func() bool { return len(notifier.all()) == 1 }, 5*time.Second, 5*time.Millisecond)

	// Halted: frames keep coming but none is decoded.
	require.Eventually(t, func() bool { return s.Stats().Gate.Dropped > 3 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, Busy, s.State())

	d := notifier.all()[0]
	assert.Equal(t, s.ID(), d.SessionID)
	assert.Equal(t, barcode.TypeURL, d.Barcode.Type)
	assert.Equal(t, "https://example.com/table/12", d.Message(true))

	rec, ok := store.Get(d.ID.String())
	require.True(t, ok)
	assert.Equal(t, "https://example.com/table/12", rec.Value)
	assert.Equal(t, "url", rec.Type)
	assert.Equal(t, s.ID().String(), rec.SessionID)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, cam.closed.Load())
	assert.Zero(t, s.Stats().Source.Outstanding)
	assert.Equal(t, uint64(1), s.Stats().Gate.Detected)

	assert.ErrorIs(t, s.Start(context.Background()), ErrSessionClosed)
}

func TestSessionResumePolicyKeepsScanning(t *testing.T) {
	cam := &stillCamera{img: qrImage(t, "TABLE-3")}
	var s *Session
	var notified atomic.Int32
	s = NewSession(Options{
		Capturer: cam,
		Decoder:  barcode.NewZXingDecoder(),
		Notifier: NotifierFunc(func(Detection) {
			notified.Add(1)
			go s.Resume()
		}),
		Policy:        PolicyResume,
		FrameInterval: 2 * time.Millisecond,
		Logger:        logging.NewTestLogger(),
	})

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return notified.Load() >= 3 }, 10*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close())

	stats := s.Stats()
	assert.Equal(t, "resume", stats.Policy)
	assert.Equal(t, "zxing", stats.Decoder)
	assert.GreaterOrEqual(t, stats.Gate.Detected, uint64(3))
}

func TestSessionCloseWithoutStart(t *testing.T) {
	cam := &stillCamera{}
	s := NewSession(Options{
		Capturer: cam,
		Decoder:  barcode.NewZXingDecoder(),
		Logger:   logging.NewTestLogger(),
	})
	require.NoError(t, s.Close())
	assert.True(t, cam.closed.Load())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("resume")
	require.NoError(t, err)
	assert.Equal(t, PolicyResume, p)

	p, err = ParsePolicy("halt")
	require.NoError(t, err)
	assert.Equal(t, PolicyHalt, p)

	_, err = ParsePolicy("pause")
	assert.Error(t, err)
}
