package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "0.3.0"

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "scrubwheeld v%s\n", version)
	fmt.Fprintln(w, "Touch scrub wheel gesture daemon")
}

func printUsage(w io.Writer) {
	printVersion(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  scrubwheeld [OPTIONS]")
	fmt.Fprintln(w, "  scrubwheeld probe -device PATH [OPTIONS]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DESCRIPTION:")
	fmt.Fprintln(w, "  Reads touch or mouse input from Linux input devices (and synthetic input")
	fmt.Fprintln(w, "  over a Unix socket), interprets it as scrub wheel gestures, and publishes")
	fmt.Fprintln(w, "  started/opened/advanced/closed events to websocket clients.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -config string")
	fmt.Fprintln(w, "        YAML config file (defaults are used when omitted)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -touch-device string")
	fmt.Fprintln(w, "        Single input device, replaces touch.devices (\"\" = IPC input only)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -radius float")
	fmt.Fprintf(w, "        Wheel ring radius (default %.0f)\n", DefaultConfig().Wheel.Radius)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -open-threshold float")
	fmt.Fprintln(w, "        Distance from the center that opens the wheel (default: radius)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -ipc-socket string")
	fmt.Fprintf(w, "        Unix domain socket path for IPC (default %q)\n", defaultIPCSocket)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -http-listen string")
	fmt.Fprintf(w, "        HTTP listen address for websocket and health (default %q)\n", defaultHTTPListen)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -ws-path string")
	fmt.Fprintf(w, "        Websocket path (default %q)\n", defaultWSPath)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -coalesce-ms int")
	fmt.Fprintln(w, "        Sum advanced events over this window before broadcasting (default 0 = off)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -log-level string")
	fmt.Fprintln(w, "        Log level: error, warn, info, debug (default \"info\")")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -detach")
	fmt.Fprintln(w, "        Run in the background")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -pid-file string")
	fmt.Fprintln(w, "        PID file written while running (with -detach)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -version")
	fmt.Fprintln(w, "        Print version and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SUBCOMMANDS:")
	fmt.Fprintln(w, "  probe")
	fmt.Fprintln(w, "        Decode one input device and print pointer events (no daemon)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "NOTES:")
	fmt.Fprintln(w, "  - Requires read access to input devices (run as root or add user to 'input' group)")
	fmt.Fprintln(w, "  - Flags override values from the config file")
	fmt.Fprintln(w, "  - HTTP serves the websocket, GET /healthz and POST /input (IPC envelopes)")
	fmt.Fprintln(w)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "probe" {
		if err := runProbe(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) || errors.Is(err, errVersion) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	release := func() {}
	if cfg.Process.Detach {
		child, rel, err := detach(cfg.Process)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		if child != nil {
			fmt.Printf("scrubwheeld running in background (pid %d)\n", child.Pid)
			return
		}
		release = rel
	}

	level, _ := parseLogLevel(cfg.Logging.Level) // validated
	logger := setupLogger(os.Stderr, level, cfg.Logging.Format)

	err = run(cfg, logger)
	release()
	if err != nil {
		logger.Error("scrubwheeld stopped", "error", err)
		os.Exit(1)
	}
}

var errVersion = errors.New("version requested")

// loadConfig parses flags, loads the config file and applies flag overrides.
// Only flags given explicitly override the file.
func loadConfig(args []string) (Config, error) {
	fs := flag.NewFlagSet("scrubwheeld", flag.ContinueOnError)
	fs.Usage = func() { printUsage(os.Stdout) }

	var (
		configPath    = fs.String("config", "", "YAML config file")
		touchDevice   = fs.String("touch-device", "", "Single input device (replaces touch.devices)")
		radius        = fs.Float64("radius", 0, "Wheel ring radius")
		openThreshold = fs.Float64("open-threshold", 0, "Open threshold (0 = radius)")
		ipcSocket     = fs.String("ipc-socket", "", "Unix domain socket path for IPC")
		httpListen    = fs.String("http-listen", "", "HTTP listen address")
		wsPath        = fs.String("ws-path", "", "Websocket path")
		coalesceMS    = fs.Int("coalesce-ms", 0, "Advanced-event coalescing window (ms)")
		logLevel      = fs.String("log-level", "", "Log level: error, warn, info, debug")
		detachFlag    = fs.Bool("detach", false, "Run in the background")
		pidFile       = fs.String("pid-file", "", "PID file (with -detach)")
		showVersion   = fs.Bool("version", false, "Print version and exit")
	)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if *showVersion {
		printVersion(os.Stdout)
		return Config{}, errVersion
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfigFile(*configPath); err != nil {
			return Config{}, err
		}
	}

	var o FlagOverrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "touch-device":
			o.TouchDevice = touchDevice
		case "radius":
			o.Radius = radius
		case "open-threshold":
			o.OpenThreshold = openThreshold
		case "ipc-socket":
			o.IPCSocketPath = ipcSocket
		case "http-listen":
			o.HTTPListen = httpListen
		case "ws-path":
			o.WSPath = wsPath
		case "coalesce-ms":
			o.CoalesceMS = coalesceMS
		case "log-level":
			o.LogLevel = logLevel
		case "detach":
			o.Detach = detachFlag
		case "pid-file":
			o.PIDFile = pidFile
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// run wires all components and blocks until SIGINT/SIGTERM or a fatal error.
func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, err := NewDaemonState(cfg.ToEngineConfig())
	if err != nil {
		return err
	}

	files, err := openInputDevices(cfg.Touch.Devices)
	if err != nil {
		logger.Error("failed to open input device", "error", err, "tip", "run as root or add user to 'input' group")
		return err
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	events := make(chan Event, eventQueueSize)
	broadcasts := make(chan StateBroadcast, broadcastQueueSize)

	wsServer := NewServer(logger, events, HubConfig{SendBuf: cfg.Broadcast.SendBuf})
	mux := newHTTPMux(wsServer, cfg.HTTP.WSPath)

	reducerCfg := ReducerConfig{RateWindow: cfg.RateWindow()}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(gctx, events, state, reducerCfg, broadcasts, logger)
		return nil
	})
	g.Go(func() error {
		wsServer.Hub().Run(gctx)
		return nil
	})
	g.Go(func() error {
		RunBroadcaster(gctx, wsServer.Hub(), broadcasts, cfg.CoalesceWindow(), logger)
		return nil
	})
	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger)
	})
	g.Go(func() error {
		return runHTTPServer(gctx, cfg.HTTP.Listen, mux, logger)
	})

	if len(files) > 0 {
		raw := make(chan deviceEvent, eventQueueSize)
		readErr := make(chan error, len(files))
		decoders := make([]*touchDecoder, len(files))
		for i := range decoders {
			decoders[i] = newTouchDecoder(cfg.Touch)
		}

		// Readers block in syscalls and are not part of the group; they end
		// with the process.
		startInputReaders(files, raw, readErr)

		g.Go(func() error {
			return runTouchInput(gctx, raw, readErr, decoders, events, logger)
		})
	} else {
		logger.Warn("no touch devices configured; accepting IPC input only")
	}

	logger.Debug("configuration",
		"touch_devices", cfg.Touch.Devices,
		"scale_x", cfg.Touch.ScaleX,
		"scale_y", cfg.Touch.ScaleY,
		"swap_xy", cfg.Touch.SwapXY,
		"radius", cfg.Wheel.Radius,
		"open_threshold", cfg.Wheel.OpenThreshold,
		"rate_window_ms", cfg.Rate.WindowMS,
		"coalesce_ms", cfg.Broadcast.CoalesceMS)
	logger.Info("listening",
		"devices", len(files),
		"ipc", cfg.IPC.SocketPath,
		"http", cfg.HTTP.Listen,
		"ws_path", cfg.HTTP.WSPath,
		"version", version)

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
