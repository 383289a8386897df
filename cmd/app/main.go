package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"github.com/intothevoid/keenonqr/pkg/barcode"
	"github.com/intothevoid/keenonqr/pkg/camera"
	"github.com/intothevoid/keenonqr/pkg/config"
	"github.com/intothevoid/keenonqr/pkg/history"
	"github.com/intothevoid/keenonqr/pkg/logging"
	"github.com/intothevoid/keenonqr/pkg/metrics"
	"github.com/intothevoid/keenonqr/pkg/scan"
	"github.com/intothevoid/keenonqr/pkg/server"
	"github.com/intothevoid/keenonqr/pkg/ui"
	"github.com/intothevoid/keenonqr/pkg/vision"
)

// outlineTTL is how long a detected code stays outlined on the preview.
const outlineTTL = 3 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.NewLogger(cfg.LogDevelopment, cfg.Verbosity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	metrics.Register()

	decoder, err := barcode.NewDecoder(cfg.Decoder)
	if err != nil {
		logging.Fatal(logger, err, "Invalid decoder")
	}
	policy, err := scan.ParsePolicy(cfg.Policy)
	if err != nil {
		logging.Fatal(logger, err, "Invalid policy")
	}

	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath, 0)
		if err != nil {
			logging.Fatal(logger, err, "Could not open scan history", "path", cfg.HistoryPath)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Setup the Fyne UI App
	myApp := app.New()
	window := myApp.NewWindow("Keenon QR - Scan")
	window.Resize(fyne.NewSize(1280, 760))

	screen := ui.NewScanScreen(window, ui.ScreenOptions{
		RawValues:       cfg.Display == config.DisplayRaw,
		ResumeOnDismiss: policy == scan.PolicyResume,
		Rotation:        cfg.Rotation,
		Outline:         vision.NewOutline(outlineTTL),
		Logger:          logger,
	})

	// 2. Open the camera and start scanning
	var session *scan.Session
	stream, err := camera.NewVideoStream(cfg.DeviceID, cfg.Width, cfg.Height)
	if err != nil {
		logger.Error(err, "Could not open camera", "device", cfg.DeviceID)
		screen.ShowError(fmt.Errorf("could not open camera: %w", err))
	} else {
		session = scan.NewSession(scan.Options{
			Capturer:      stream,
			Decoder:       decoder,
			Notifier:      screen,
			Policy:        policy,
			Rotation:      cfg.Rotation,
			FrameInterval: cfg.FrameInterval,
			History:       store,
			Logger:        logger,
		})
		session.Source().SetPreview(screen.UpdatePreview)
		screen.SetController(session)

		if err := session.Start(ctx); err != nil {
			logger.Error(err, "Could not start scanning")
			screen.ShowError(err)
		}
	}

	closeSession := func() {
		if session == nil {
			return
		}
		if err := session.Close(); err != nil {
			logger.Error(err, "Scan session did not shut down cleanly")
		}
	}
	window.SetOnClosed(closeSession)

	// 3. Optional status server
	if cfg.HTTPAddr != "" {
		var stats server.StatsProvider
		if session != nil {
			stats = session
		}
		router := server.NewRouter(stats, store, metrics.Registry)
		go func() {
			if err := server.Serve(ctx, cfg.HTTPAddr, router, logger.WithName("server")); err != nil {
				logger.Error(err, "Status server stopped")
			}
		}()
	}

	// Ctrl-C closes the window like the user would.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			fyne.Do(window.Close)
		}
	}()

	// 4. Run
	window.ShowAndRun()

	signal.Stop(sigCh)
	close(sigCh)
	cancel()
	closeSession()
}
