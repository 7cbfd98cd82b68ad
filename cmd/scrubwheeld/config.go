package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"scrubwheel/wheel"
)

// Config is the top-level YAML configuration for the scrubwheel daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume
// a well-formed config.
type Config struct {
	// Touch input devices and coordinate mapping
	Touch TouchConfig `yaml:"touch"`

	// Wheel geometry
	Wheel WheelConfig `yaml:"wheel"`

	// Scrub rate estimation
	Rate RateConfig `yaml:"rate"`

	// IPC socket for synthetic input
	IPC IPCConfig `yaml:"ipc"`

	// HTTP server hosting the state websocket
	HTTP HTTPConfig `yaml:"http"`

	// Websocket broadcast tuning
	Broadcast BroadcastConfig `yaml:"broadcast"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Background operation
	Process ProcessConfig `yaml:"process"`
}

type TouchConfig struct {
	// Devices lists evdev nodes to read. Empty runs the daemon with IPC input only.
	Devices []string `yaml:"devices"`
	ScaleX  float64  `yaml:"scale_x"`
	ScaleY  float64  `yaml:"scale_y"`
	SwapXY  bool     `yaml:"swap_xy"`
}

type WheelConfig struct {
	Radius float64 `yaml:"radius"`
	// OpenThreshold of 0 means "same as radius".
	OpenThreshold float64 `yaml:"open_threshold"`
}

type RateConfig struct {
	WindowMS int `yaml:"window_ms"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
	WSPath string `yaml:"ws_path"`
}

type BroadcastConfig struct {
	CoalesceMS int `yaml:"coalesce_ms"`
	SendBuf    int `yaml:"send_buf"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ProcessConfig controls detaching from the terminal. PIDFile and LogFile
// are optional; without LogFile the detached daemon's logs are discarded.
type ProcessConfig struct {
	Detach  bool   `yaml:"detach"`
	PIDFile string `yaml:"pid_file"`
	LogFile string `yaml:"log_file"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	wc := wheel.DefaultConfig()
	return Config{
		Touch: TouchConfig{
			ScaleX: 1,
			ScaleY: 1,
		},
		Wheel: WheelConfig{
			Radius:        wc.Radius,
			OpenThreshold: wc.OpenThreshold,
		},
		Rate: RateConfig{
			WindowMS: defaultRateWindowMS,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		HTTP: HTTPConfig{
			Listen: defaultHTTPListen,
			WSPath: defaultWSPath,
		},
		Broadcast: BroadcastConfig{
			CoalesceMS: defaultCoalesceMS,
			SendBuf:    defaultWSSendBuf,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: defaults only.
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only one document is allowed.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values from command-line flags. Each override is only
// applied if its pointer is non-nil; main.go decides which flags exist.
type FlagOverrides struct {
	TouchDevice *string

	Radius        *float64
	OpenThreshold *float64

	IPCSocketPath *string
	HTTPListen    *string
	WSPath        *string
	CoalesceMS    *int

	LogLevel *string

	Detach  *bool
	PIDFile *string
}

// Apply merges the overrides into cfg. A non-nil pointer is applied even if it
// holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.TouchDevice != nil {
		if *o.TouchDevice == "" {
			cfg.Touch.Devices = nil
		} else {
			cfg.Touch.Devices = []string{*o.TouchDevice}
		}
	}
	if o.Radius != nil {
		cfg.Wheel.Radius = *o.Radius
	}
	if o.OpenThreshold != nil {
		cfg.Wheel.OpenThreshold = *o.OpenThreshold
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}
	if o.WSPath != nil {
		cfg.HTTP.WSPath = *o.WSPath
	}
	if o.CoalesceMS != nil {
		cfg.Broadcast.CoalesceMS = *o.CoalesceMS
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.Detach != nil {
		cfg.Process.Detach = *o.Detach
	}
	if o.PIDFile != nil {
		cfg.Process.PIDFile = *o.PIDFile
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	for i, dev := range c.Touch.Devices {
		if dev == "" {
			return fmt.Errorf("touch.devices[%d] is empty", i)
		}
	}
	if c.Touch.ScaleX == 0 || c.Touch.ScaleY == 0 ||
		math.IsNaN(c.Touch.ScaleX) || math.IsNaN(c.Touch.ScaleY) {
		return errors.New("touch.scale_x and touch.scale_y must be non-zero numbers")
	}

	if err := c.ToEngineConfig().Validate(); err != nil {
		return fmt.Errorf("wheel: %w", err)
	}

	if c.Rate.WindowMS <= 0 {
		return errors.New("rate.window_ms must be > 0")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	if c.HTTP.Listen == "" {
		return errors.New("http.listen must not be empty")
	}
	if c.HTTP.WSPath == "" || c.HTTP.WSPath[0] != '/' {
		return errors.New("http.ws_path must start with /")
	}
	if c.HTTP.WSPath == healthzPath || c.HTTP.WSPath == inputPath {
		return fmt.Errorf("http.ws_path must not be %s", c.HTTP.WSPath)
	}

	if c.Broadcast.CoalesceMS < 0 {
		return errors.New("broadcast.coalesce_ms must be >= 0")
	}
	if c.Broadcast.SendBuf <= 0 {
		return errors.New("broadcast.send_buf must be > 0")
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// ToEngineConfig converts the file config into the wheel engine config.
func (c *Config) ToEngineConfig() wheel.Config {
	return wheel.Config{
		Radius:        c.Wheel.Radius,
		OpenThreshold: c.Wheel.OpenThreshold,
	}
}

func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.Rate.WindowMS) * time.Millisecond
}

func (c *Config) CoalesceWindow() time.Duration {
	return time.Duration(c.Broadcast.CoalesceMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
