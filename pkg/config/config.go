package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

const (
	DecoderZXing  = "zxing"
	DecoderOpenCV = "opencv"

	// PolicyHalt keeps the gate busy after a detection; dismissing the
	// dialog closes the scan screen.
	PolicyHalt = "halt"
	// PolicyResume returns the gate to idle once the dialog is dismissed.
	PolicyResume = "resume"

	DisplayTyped = "typed"
	DisplayRaw   = "raw"
)

// Config holds everything the scanner needs at startup.
type Config struct {
	DeviceID      int
	Width         int
	Height        int
	Rotation      int
	FrameInterval time.Duration

	Decoder string
	Policy  string
	Display string

	HistoryPath string
	HTTPAddr    string

	Verbosity      int
	LogDevelopment bool
}

// Default returns the configuration used when no flags are given. The
// resolution matches the 1280x720 analysis target of the scan screen.
func Default() Config {
	return Config{
		DeviceID:      0,
		Width:         1280,
		Height:        720,
		FrameInterval: 33 * time.Millisecond, // ~30 FPS
		Decoder:       DecoderZXing,
		Policy:        PolicyHalt,
		Display:       DisplayTyped,
	}
}

// Load parses args into a Config and validates the result.
func Load(args []string) (Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("keenonqr", pflag.ContinueOnError)
	fs.IntVar(&cfg.DeviceID, "device", cfg.DeviceID, "Camera device index.")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Requested capture width in pixels.")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Requested capture height in pixels.")
	fs.IntVar(&cfg.Rotation, "rotation", cfg.Rotation, "Clockwise rotation of captured frames in degrees (0, 90, 180, 270).")
	fs.DurationVar(&cfg.FrameInterval, "frame-interval", cfg.FrameInterval, "Delay between camera reads.")
	fs.StringVar(&cfg.Decoder, "decoder", cfg.Decoder, "Barcode decoder: zxing or opencv.")
	fs.StringVar(&cfg.Policy, "policy", cfg.Policy, "What happens after a detection is dismissed: halt or resume.")
	fs.StringVar(&cfg.Display, "display", cfg.Display, "Dialog content: typed or raw.")
	fs.StringVar(&cfg.HistoryPath, "history", cfg.HistoryPath, "Path of the JSON scan history. Empty disables history.")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "Address of the status server, e.g. :9090. Empty disables it.")
	fs.IntVar(&cfg.Verbosity, "v", cfg.Verbosity, "Log verbosity.")
	fs.BoolVar(&cfg.LogDevelopment, "log-dev", cfg.LogDevelopment, "Use the human readable development log encoder.")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.DeviceID < 0 {
		errs = append(errs, fmt.Errorf("device must be >= 0, got %d", c.DeviceID))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("resolution must be positive, got %dx%d", c.Width, c.Height))
	}
	switch c.Rotation {
	case 0, 90, 180, 270:
	default:
		errs = append(errs, fmt.Errorf("rotation must be one of 0, 90, 180, 270, got %d", c.Rotation))
	}
	if c.FrameInterval < 0 {
		errs = append(errs, fmt.Errorf("frame-interval must not be negative, got %s", c.FrameInterval))
	}
	switch c.Decoder {
	case DecoderZXing, DecoderOpenCV:
	default:
		errs = append(errs, fmt.Errorf("unknown decoder %q", c.Decoder))
	}
	switch c.Policy {
	case PolicyHalt, PolicyResume:
	default:
		errs = append(errs, fmt.Errorf("unknown policy %q", c.Policy))
	}
	switch c.Display {
	case DisplayTyped, DisplayRaw:
	default:
		errs = append(errs, fmt.Errorf("unknown display mode %q", c.Display))
	}
	if c.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("v must be >= 0, got %d", c.Verbosity))
	}

	return errors.Join(errs...)
}
