package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"--device=2",
		"--rotation=90",
		"--frame-interval=50ms",
		"--decoder=opencv",
		"--policy=resume",
		"--display=raw",
		"--history=/tmp/scans.json",
		"--http-addr=:9090",
		"--v=4",
	})
	require.NoError(t, err)

	want := Default()
	want.DeviceID = 2
	want.Rotation = 90
	want.FrameInterval = 50 * time.Millisecond
	want.Decoder = DecoderOpenCV
	want.Policy = PolicyResume
	want.Display = DisplayRaw
	want.HistoryPath = "/tmp/scans.json"
	want.HTTPAddr = ":9090"
	want.Verbosity = 4

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative device", func(c *Config) { c.DeviceID = -1 }, "device must be >= 0"},
		{"zero width", func(c *Config) { c.Width = 0 }, "resolution must be positive"},
		{"odd rotation", func(c *Config) { c.Rotation = 45 }, "rotation must be one of"},
		{"negative interval", func(c *Config) { c.FrameInterval = -time.Second }, "frame-interval"},
		{"bad decoder", func(c *Config) { c.Decoder = "mlkit" }, `unknown decoder "mlkit"`},
		{"bad policy", func(c *Config) { c.Policy = "later" }, `unknown policy "later"`},
		{"bad display", func(c *Config) { c.Display = "fancy" }, `unknown display mode "fancy"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRejectsUnknownFlag(t *testing.T) {
	_, err := Load([]string{"--lens=front"})
	assert.Error(t, err)
}
