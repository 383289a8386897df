package ui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/go-logr/logr"

	"github.com/intothevoid/keenonqr/pkg/barcode"
	"github.com/intothevoid/keenonqr/pkg/logging"
	"github.com/intothevoid/keenonqr/pkg/scan"
	"github.com/intothevoid/keenonqr/pkg/vision"
)

const (
	statusScanning = "Point the camera at a code"
	statusDetected = "Code detected"
)

// Controller is what the screen needs from the running session.
type Controller interface {
	Resume() bool
}

// ScreenOptions configures a ScanScreen.
type ScreenOptions struct {
	// RawValues shows the raw barcode value instead of a typed description.
	RawValues bool
	// ResumeOnDismiss keeps scanning after the dialog is closed. Otherwise
	// dismissing the dialog closes the window.
	ResumeOnDismiss bool
	// Rotation applied to preview frames so they match detection corners.
	Rotation int
	Outline  *vision.Outline
	Logger   logr.Logger
}

// ScanScreen is the scan window: a live preview, a status line and the
// detection dialog. It implements scan.Notifier.
type ScanScreen struct {
	window  fyne.Window
	preview *VideoDisplay
	status  *widget.Label
	opts    ScreenOptions
	logger  logr.Logger

	controller Controller
}

// NewScanScreen builds the screen and sets it as the window content.
func NewScanScreen(window fyne.Window, opts ScreenOptions) *ScanScreen {
	if opts.Outline == nil {
		opts.Outline = vision.NewOutline(0)
	}
	s := &ScanScreen{
		window:  window,
		preview: NewVideoDisplay(),
		status:  widget.NewLabel(statusScanning),
		opts:    opts,
		logger:  opts.Logger.WithName("ui"),
	}
	window.SetContent(container.NewBorder(nil, s.status, nil, nil, s.preview))
	return s
}

// SetController attaches the session that dismissals are reported to.
func (s *ScanScreen) SetController(c Controller) {
	s.controller = c
}

// UpdatePreview shows a captured frame. Called on the capture goroutine.
func (s *ScanScreen) UpdatePreview(img image.Image) {
	upright, err := barcode.Upright(img, s.opts.Rotation)
	if err != nil {
		s.logger.V(logging.DEBUG).Info("Failed to rotate preview", "err", err)
		upright = img
	}
	if corners := s.opts.Outline.Corners(); corners != nil {
		if annotated, err := vision.Annotate(upright, corners); err == nil {
			upright = annotated
		}
	}
	s.preview.UpdateFrame(upright)
}

// Notify implements scan.Notifier. The dialog is shown on the UI goroutine;
// Notify itself returns immediately.
func (s *ScanScreen) Notify(d scan.Detection) {
	message := d.Message(s.opts.RawValues)
	s.logger.V(logging.VERBOSE).Info("Showing detection", "detection", d.ID.String(), "type", d.Barcode.Type.String())
	s.opts.Outline.Set(d.Barcode.Corners)

	fyne.Do(func() {
		s.status.SetText(statusDetected)
		dlg := dialog.NewInformation("QR Detected", message, s.window)
		dlg.SetDismissText("OK")
		dlg.SetOnClosed(s.dismissed)
		dlg.Show()
	})
}

// ShowError surfaces a failure, such as a camera that could not be opened.
func (s *ScanScreen) ShowError(err error) {
	fyne.Do(func() {
		s.status.SetText(err.Error())
		dialog.ShowError(err, s.window)
	})
}

func (s *ScanScreen) dismissed() {
	s.opts.Outline.Clear()
	if s.opts.ResumeOnDismiss && s.controller != nil && s.controller.Resume() {
		s.status.SetText(statusScanning)
		return
	}
	s.window.Close()
}
