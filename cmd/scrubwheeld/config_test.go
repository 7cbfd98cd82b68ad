package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100.0, cfg.Wheel.Radius)
	assert.Equal(t, 0.0, cfg.Wheel.OpenThreshold)
	assert.Empty(t, cfg.Touch.Devices)
	assert.Equal(t, "/ws", cfg.HTTP.WSPath)
	assert.Equal(t, 250, cfg.Rate.WindowMS)
	assert.Equal(t, 0, cfg.Broadcast.CoalesceMS)
}

func TestParseConfig_OverlaysDefaults(t *testing.T) {
	cfg, err := parseConfig([]byte(`
touch:
  devices: [/dev/input/event3, /dev/input/event4]
  scale_x: 0.5
  swap_xy: true
wheel:
  radius: 80
broadcast:
  coalesce_ms: 20
logging:
  level: debug
process:
  pid_file: /run/scrubwheeld.pid
  log_file: ~/scrubwheeld.log
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"/dev/input/event3", "/dev/input/event4"}, cfg.Touch.Devices)
	assert.Equal(t, 0.5, cfg.Touch.ScaleX)
	assert.Equal(t, 1.0, cfg.Touch.ScaleY, "unset keys keep their default")
	assert.True(t, cfg.Touch.SwapXY)
	assert.Equal(t, 80.0, cfg.Wheel.Radius)
	assert.Equal(t, 20, cfg.Broadcast.CoalesceMS)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, defaultIPCSocket, cfg.IPC.SocketPath)
	assert.False(t, cfg.Process.Detach)
	assert.Equal(t, "/run/scrubwheeld.pid", cfg.Process.PIDFile)
	assert.Equal(t, "~/scrubwheeld.log", cfg.Process.LogFile)

	ec := cfg.ToEngineConfig()
	assert.Equal(t, 80.0, ec.Radius)
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := parseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfig_RejectsUnknownField(t *testing.T) {
	_, err := parseConfig([]byte("wheel:\n  raduis: 80\n"))
	assert.Error(t, err)
}

func TestParseConfig_RejectsTrailingDocument(t *testing.T) {
	_, err := parseConfig([]byte("wheel:\n  radius: 80\n---\nwheel:\n  radius: 90\n"))
	assert.ErrorContains(t, err, "trailing document")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrubwheel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wheel:\n  open_threshold: 40\n"), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 40.0, cfg.Wheel.OpenThreshold)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfigFile("")
	assert.Error(t, err)
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Touch.Devices = []string{"/dev/input/event1", "/dev/input/event2"}

	dev := "/dev/input/event9"
	radius := 42.0
	zero := 0
	level := "warn"
	FlagOverrides{
		TouchDevice: &dev,
		Radius:      &radius,
		CoalesceMS:  &zero,
		LogLevel:    &level,
	}.Apply(&cfg)

	assert.Equal(t, []string{dev}, cfg.Touch.Devices)
	assert.Equal(t, 42.0, cfg.Wheel.Radius)
	assert.Equal(t, 0, cfg.Broadcast.CoalesceMS)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, defaultWSPath, cfg.HTTP.WSPath, "nil overrides leave values alone")

	assert.False(t, cfg.Process.Detach)

	yes := true
	pid := "/tmp/sw.pid"
	FlagOverrides{Detach: &yes, PIDFile: &pid}.Apply(&cfg)
	assert.True(t, cfg.Process.Detach)
	assert.Equal(t, pid, cfg.Process.PIDFile)

	empty := ""
	FlagOverrides{TouchDevice: &empty}.Apply(&cfg)
	assert.Empty(t, cfg.Touch.Devices)

	FlagOverrides{}.Apply(nil)
}

func TestConfigValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero radius", func(c *Config) { c.Wheel.Radius = 0 }},
		{"nan radius", func(c *Config) { c.Wheel.Radius = math.NaN() }},
		{"negative threshold", func(c *Config) { c.Wheel.OpenThreshold = -1 }},
		{"empty device", func(c *Config) { c.Touch.Devices = []string{""} }},
		{"zero scale", func(c *Config) { c.Touch.ScaleY = 0 }},
		{"zero rate window", func(c *Config) { c.Rate.WindowMS = 0 }},
		{"empty socket", func(c *Config) { c.IPC.SocketPath = "" }},
		{"empty listen", func(c *Config) { c.HTTP.Listen = "" }},
		{"relative ws path", func(c *Config) { c.HTTP.WSPath = "ws" }},
		{"ws path collides with healthz", func(c *Config) { c.HTTP.WSPath = healthzPath }},
		{"ws path collides with input", func(c *Config) { c.HTTP.WSPath = inputPath }},
		{"negative coalesce", func(c *Config) { c.Broadcast.CoalesceMS = -1 }},
		{"zero send buffer", func(c *Config) { c.Broadcast.SendBuf = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigValidate_NegativeScaleMirrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Touch.ScaleY = -1
	assert.NoError(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/etc/scrubwheel.yaml", ExpandPath("/etc/scrubwheel.yaml"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, ".config/scrubwheel.yaml"), ExpandPath("~/.config/scrubwheel.yaml"))
	assert.Equal(t, "~other/x", ExpandPath("~other/x"))
}

func TestLoadConfig_Flags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wheel:\n  radius: 60\nhttp:\n  ws_path: /events\n"), 0o644))

	cfg, err := loadConfig([]string{"-config", path, "-radius", "75", "-coalesce-ms", "10"})
	require.NoError(t, err)
	assert.Equal(t, 75.0, cfg.Wheel.Radius, "flag beats file")
	assert.Equal(t, "/events", cfg.HTTP.WSPath, "file beats default")
	assert.Equal(t, 10, cfg.Broadcast.CoalesceMS)

	cfg, err = loadConfig([]string{"-detach", "-pid-file", "/run/scrubwheeld.pid"})
	require.NoError(t, err)
	assert.True(t, cfg.Process.Detach)
	assert.Equal(t, "/run/scrubwheeld.pid", cfg.Process.PIDFile)

	_, err = loadConfig([]string{"-radius", "-5"})
	assert.Error(t, err)

	_, err = loadConfig([]string{"extra"})
	assert.Error(t, err)
}
