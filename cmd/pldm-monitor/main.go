// Command pldm-monitor runs the PLDM platform monitoring control plane.
//
// It discovers termini, polls their numeric sensors round-robin, and
// dispatches platform events, either against simulated in-process
// termini or endpoints advertised over mDNS.
//
// Usage:
//
//	pldm-monitor [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-interval duration  Sensor polling interval (default 10s)
//	-log string         CBOR event log file path
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-simulate           Run against simulated termini (default true)
//	-termini int        Simulated terminus count (default 1)
//	-sensors int        Sensors per simulated terminus (default 4)
//	-interactive        Start the interactive console (default true)
//	-listen string      UDP bind address for real endpoints (default ":0")
//
// Examples:
//
//	# Monitor two simulated termini with eight sensors each
//	pldm-monitor -termini 2 -sensors 8
//
//	# Monitor real endpoints discovered over mDNS
//	pldm-monitor -simulate=false -config /etc/pldm/monitor.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pldm-stack/pldm-go/internal/sim"
	"github.com/pldm-stack/pldm-go/pkg/config"
	"github.com/pldm-stack/pldm-go/pkg/connection"
	"github.com/pldm-stack/pldm-go/pkg/discovery"
	"github.com/pldm-stack/pldm-go/pkg/log"
	"github.com/pldm-stack/pldm-go/pkg/platform"
	"github.com/pldm-stack/pldm-go/pkg/requester"
	"github.com/pldm-stack/pldm-go/pkg/terminus"
	"github.com/pldm-stack/pldm-go/pkg/transport"
	"github.com/pldm-stack/pldm-go/pkg/version"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

var flags struct {
	configFile  string
	interval    time.Duration
	logPath     string
	logLevel    string
	simulate    bool
	termini     int
	sensors     int
	interactive bool
	listenAddr  string
}

func init() {
	flag.StringVar(&flags.configFile, "config", "", "Configuration file path (YAML)")
	flag.DurationVar(&flags.interval, "interval", 0, "Sensor polling interval (overrides config)")
	flag.StringVar(&flags.logPath, "log", "", "CBOR event log file path (overrides config)")
	flag.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.simulate, "simulate", true, "Run against simulated termini")
	flag.IntVar(&flags.termini, "termini", 0, "Simulated terminus count (overrides config)")
	flag.IntVar(&flags.sensors, "sensors", 0, "Sensors per simulated terminus (overrides config)")
	flag.BoolVar(&flags.interactive, "interactive", true, "Start the interactive console")
	flag.StringVar(&flags.listenAddr, "listen", ":0", "UDP bind address for real endpoints")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		stdlog.Fatalf("Configuration error: %v", err)
	}

	setupLogging(flags.logLevel)
	stdlog.Printf("PLDM platform monitor %s", version.Current)

	logger, closeLogger, err := buildLogger(cfg)
	if err != nil {
		stdlog.Fatalf("Failed to set up event log: %v", err)
	}
	defer closeLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mgr    *platform.Manager
		fabric *sim.Fabric
		udp    *transport.UDPTransport
	)
	if cfg.Simulator.Enabled {
		fabric = buildFabric(cfg.Simulator)
		mgr = platform.NewManager(terminus.NewRegistry(), fabric, platform.Config{
			PollInterval: cfg.PollInterval,
			Initializer:  fabric.Initializer(),
			Logger:       logger,
		})
		registerPollFollowup(mgr)

		var eps []discovery.EndpointInfo
		for eid := uint8(10); eid < uint8(10+cfg.Simulator.Termini); eid++ {
			if t, ok := fabric.Terminus(eid); ok {
				eps = append(eps, t.EndpointInfo())
			}
		}
		mgr.HandleMctpEndpoints(ctx, eps)
		stdlog.Printf("Simulating %d termini, %d sensors each", cfg.Simulator.Termini, cfg.Simulator.SensorsPerTerminus)
	} else {
		// No datagram reaches the handler until an endpoint is mapped,
		// which happens only after the client below exists.
		var client *requester.Client
		udp, err = transport.NewUDPTransport(flags.listenAddr, func(eid uint8, data []byte) error {
			return client.HandleResponse(eid, data)
		}, logger)
		if err != nil {
			stdlog.Fatalf("Failed to open UDP transport: %v", err)
		}
		defer udp.Close()
		client = requester.NewClient(udp)
		client.SetTimeout(cfg.RequestTimeout)
		client.SetLogger(logger)
		defer client.Close()

		mgr = platform.NewManager(terminus.NewRegistry(), client, platform.Config{
			PollInterval: cfg.PollInterval,
			Initializer:  endpointInitializer(),
			Logger:       logger,
		})
		registerPollFollowup(mgr)
		stdlog.Printf("Listening for PLDM endpoints on %s", udp.LocalAddr())
	}

	go runDiscovery(ctx, mgr, udp, cfg)

	if flags.interactive {
		console, err := newConsole(mgr, fabric)
		if err != nil {
			stdlog.Fatalf("Failed to start console: %v", err)
		}
		// Route log output through readline so the prompt stays intact.
		stdlog.SetOutput(console.Stdout())
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	stdlog.Println("Shutting down...")
	cancel()
	mgr.Stop()
	stdlog.Println("Goodbye!")
}

// loadConfig merges the config file with flag overrides.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if flags.configFile != "" {
		loaded, err := config.Load(flags.configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if flags.interval > 0 {
		cfg.PollInterval = flags.interval
	}
	if flags.logPath != "" {
		cfg.LogPath = flags.logPath
	}
	if flags.simulate {
		cfg.Simulator.Enabled = true
	}
	if flags.termini > 0 {
		cfg.Simulator.Termini = flags.termini
	}
	if flags.sensors > 0 {
		cfg.Simulator.SensorsPerTerminus = flags.sensors
	}
	return cfg, cfg.Validate()
}

func setupLogging(level string) {
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	switch level {
	case "debug":
		stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	case "warn", "error":
		stdlog.SetFlags(stdlog.Ltime)
	}
}

// buildLogger assembles the event logger: CBOR file log when configured,
// plus an slog mirror at debug level.
func buildLogger(cfg config.Config) (log.Logger, func(), error) {
	var loggers []log.Logger

	closeLogger := func() {}
	if cfg.LogPath != "" {
		fl, err := log.NewFileLogger(cfg.LogPath)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closeLogger = func() { _ = fl.Close() }
	}

	if flags.logLevel == "debug" {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, log.NewSlogAdapter(slog.New(handler)))
	}

	if len(loggers) == 0 {
		return log.NoopLogger{}, closeLogger, nil
	}
	return log.NewMultiLogger(loggers...), closeLogger, nil
}

// buildFabric creates the simulated termini, EIDs starting at 10.
func buildFabric(simCfg config.SimulatorConfig) *sim.Fabric {
	fabric := sim.NewFabric()
	for i := 0; i < simCfg.Termini; i++ {
		t := sim.NewTerminus(uint8(10+i), uint8(1+i), fmt.Sprintf("sim%d", i))
		sim.DefaultSensors(t, simCfg.SensorsPerTerminus)
		fabric.Add(t)
	}
	return fabric
}

// registerPollFollowup makes message poll announcements trigger the pull
// retrieval of the announced event body.
func registerPollFollowup(mgr *platform.Manager) {
	mgr.RegisterPolledEventHandler(wire.ClassMessagePollEvent,
		func(ctx context.Context, tid terminus.TID, eventID uint16, class wire.EventClass, data []byte) error {
			ev, err := wire.DecodeMessagePollEvent(data)
			if err != nil {
				return err
			}
			cc, err := mgr.PollForPlatformEvent(ctx, tid, ev.EventID, ev.DataTransferHandle)
			if err != nil {
				return err
			}
			if !cc.OK() {
				return fmt.Errorf("poll for event 0x%04x: %s", ev.EventID, cc)
			}
			return nil
		})

	mgr.RegisterPolledEventHandler(wire.ClassCPEREvent,
		func(ctx context.Context, tid terminus.TID, eventID uint16, class wire.EventClass, data []byte) error {
			stdlog.Printf("[EVENT] TID %d: CPER record, %d bytes (event 0x%04x)", tid, len(data), eventID)
			return nil
		})
}

// endpointInitializer builds a terminus straight from its discovery
// advertisement, after checking the advertised command set against the
// manifest for the advertised version. Sensors arrive later through
// platform events; PDR retrieval would populate them here.
func endpointInitializer() platform.Initializer {
	return platform.InitializerFunc(func(ctx context.Context, tid terminus.TID, ep discovery.EndpointInfo) (*terminus.Terminus, error) {
		if len(ep.Commands) > 0 {
			result, err := version.CheckDeclaredCommands(ep.Version, ep.Commands)
			if err != nil {
				return nil, err
			}
			for _, w := range result.Warnings {
				stdlog.Printf("EID %d: %s", ep.EID, w)
			}
			if !result.Valid {
				return nil, fmt.Errorf("EID %d: %s", ep.EID, strings.Join(result.Errors, "; "))
			}
		}

		name := ep.Name
		if name == "" {
			name = fmt.Sprintf("terminus-%d", ep.EID)
		}
		return terminus.New(tid, ep.EID, name), nil
	})
}

// runDiscovery keeps an mDNS browse session alive, restarting it with
// backoff when it fails, and feeds endpoint changes into the manager.
// udp is nil in simulated runs; real endpoints are also mapped into the
// transport's address table.
func runDiscovery(ctx context.Context, mgr *platform.Manager, udp *transport.UDPTransport, cfg config.Config) {
	err := connection.Retry(ctx, connection.NewBackoff(), func(ctx context.Context) error {
		return browseOnce(ctx, mgr, udp, cfg)
	})
	if err != nil && ctx.Err() == nil {
		stdlog.Printf("Discovery stopped: %v", err)
	}
}

// browseOnce runs one browse session until it ends or ctx is canceled.
func browseOnce(ctx context.Context, mgr *platform.Manager, udp *transport.UDPTransport, cfg config.Config) error {
	browser, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: cfg.Interface})
	if err != nil {
		return err
	}
	defer browser.Stop()

	added, removed, err := browser.BrowseEndpoints(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ep, ok := <-added:
			if !ok {
				return nil
			}
			stdlog.Printf("Discovered endpoint EID %d (%s)", ep.EID, ep.Name)
			if udp != nil {
				if err := udp.AddDiscoveredEndpoint(*ep); err != nil {
					stdlog.Printf("Cannot map endpoint EID %d: %v", ep.EID, err)
					continue
				}
			}
			mgr.HandleMctpEndpoints(ctx, []discovery.EndpointInfo{*ep})
		case ep, ok := <-removed:
			if !ok {
				return nil
			}
			stdlog.Printf("Endpoint EID %d (%s) disappeared", ep.EID, ep.Name)
			mgr.HandleRemovedMctpEndpoints(ctx, []discovery.EndpointInfo{*ep})
			if udp != nil {
				udp.RemoveEndpoint(ep.EID)
			}
		}
	}
}
