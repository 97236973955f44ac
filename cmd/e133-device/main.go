// Command e133-device runs an E1.33 (RDM over IP) device.
//
// The device listens for controllers on the E1.33 port over TCP and UDP
// and answers RDM requests from software responders, one per endpoint.
// Replies always go out over UDP to the requesting address.
//
// Usage:
//
//	e133-device [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-ip string            IP address to listen on (default all interfaces)
//	-source-name string   E1.33 source name used in replies
//	-endpoints int        Number of endpoints besides the root endpoint
//	-heartbeat duration   TCP heartbeat interval
//	-log-level string     Log level: debug, info, warn, error
//	-log-format string    Log format: text, json
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-mqtt-broker string   Publish status to this MQTT broker
//	-capture string       Write a protocol capture (.elog) to this file
//	-interactive          Start the interactive console
//
// Environment variables (E133_IP_ADDRESS, E133_ENDPOINTS, ...) override the
// configuration file; flags override both.
//
// Examples:
//
//	# Device with four endpoints on one interface
//	e133-device -ip 192.168.1.10 -endpoints 4
//
//	# Capture traffic and inspect it later with e133-log
//	e133-device -capture device.elog -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/e133-protocol/e133-go/cmd/e133-device/interactive"
	"github.com/e133-protocol/e133-go/internal/config"
	"github.com/e133-protocol/e133-go/pkg/device"
	"github.com/e133-protocol/e133-go/pkg/endpoint"
	"github.com/e133-protocol/e133-go/pkg/log"
	"github.com/e133-protocol/e133-go/pkg/responder"
	"github.com/e133-protocol/e133-go/pkg/status"
)

type flags struct {
	configFile  string
	ip          string
	sourceName  string
	endpoints   int
	heartbeat   time.Duration
	logLevel    string
	logFormat   string
	metricsAddr string
	mqttBroker  string
	capture     string
	interactive bool
}

var opts flags

func init() {
	flag.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	flag.StringVar(&opts.ip, "ip", "", "IP address to listen on (default all interfaces)")
	flag.StringVar(&opts.sourceName, "source-name", device.DefaultSourceName, "E1.33 source name used in replies")
	flag.IntVar(&opts.endpoints, "endpoints", 1, "Number of endpoints besides the root endpoint")
	flag.DurationVar(&opts.heartbeat, "heartbeat", 0, "TCP heartbeat interval (default from config)")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.logFormat, "log-format", "text", "Log format: text, json")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.StringVar(&opts.mqttBroker, "mqtt-broker", "", "Publish status to this MQTT broker")
	flag.StringVar(&opts.capture, "capture", "", "Write a protocol capture (.elog) to this file")
	flag.BoolVar(&opts.interactive, "interactive", false, "Start the interactive console")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags copies the flags set on the command line over cfg.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ip":
			cfg.Device.IPAddress = opts.ip
		case "source-name":
			cfg.Device.SourceName = opts.sourceName
		case "endpoints":
			cfg.Endpoints.Count = opts.endpoints
		case "heartbeat":
			cfg.Device.HeartbeatInterval = opts.heartbeat
		case "log-level":
			cfg.Logging.Level = opts.logLevel
		case "log-format":
			cfg.Logging.Format = opts.logFormat
		case "metrics-addr":
			cfg.Metrics.Enabled = opts.metricsAddr != ""
			cfg.Metrics.Address = opts.metricsAddr
		case "mqtt-broker":
			cfg.MQTT.Enabled = opts.mqttBroker != ""
			cfg.MQTT.Broker = opts.mqttBroker
		case "capture":
			cfg.Capture.Path = opts.capture
		}
	})
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := endpoint.NewManager()
	stats := device.NewTCPConnectionStats()
	set := newEndpointSet(manager, stats, cfg.RootUID(), responder.Config{
		ManufacturerLabel: cfg.Endpoints.ManufacturerLabel,
		DeviceLabel:       cfg.Endpoints.DeviceLabel,
	})

	var console *interactive.Console
	logOutput := io.Writer(os.Stderr)
	if opts.interactive {
		c, err := interactive.New(set)
		if err != nil {
			return err
		}
		console = c
		logOutput = console.Stderr()
	}
	logger := newLogger(cfg, logOutput)
	manager.SetLogger(logger)

	// Protocol events go to the debug log and, if set, the capture file.
	var protocolLogger log.Logger = log.NewSlogAdapter(logger)
	if cfg.Capture.Path != "" {
		capture, err := log.NewFileLogger(cfg.Capture.Path)
		if err != nil {
			return fmt.Errorf("opening capture: %w", err)
		}
		defer func() {
			_ = capture.Close()
			written, failed := capture.Stats()
			logger.Info("capture closed", "path", cfg.Capture.Path, "events", written, "failed", failed)
		}()
		protocolLogger = log.NewMultiLogger(protocolLogger, capture)
	}

	reg := prometheus.NewRegistry()
	metrics, err := device.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	reg.MustRegister(
		device.NewStatsCollector(stats),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dc := cfg.DeviceConfig()
	dc.Logger = logger
	dc.ProtocolLogger = protocolLogger
	dc.Metrics = metrics

	dev, err := device.New(dc, manager, stats)
	if err != nil {
		return err
	}
	if err := dev.SetRootEndpoint(set.root()); err != nil {
		_ = dev.Close()
		return err
	}
	for i := 0; i < cfg.Endpoints.Count; i++ {
		if _, err := set.AddEndpoint(); err != nil {
			set.RemoveAll()
			_ = dev.Close()
			return fmt.Errorf("adding endpoint: %w", err)
		}
	}

	if err := dev.Start(ctx); err != nil {
		set.RemoveAll()
		_ = dev.Close()
		return err
	}
	logger.Info("E1.33 device started",
		"cid", dev.CID().String(),
		"tcp", dev.TCPAddr().String(),
		"endpoints", len(manager.EndpointIDs()))

	if cfg.Metrics.Enabled {
		srv := serveMetrics(cfg, reg, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.MQTT.Enabled {
		client, err := status.Connect(cfg.StatusConfig())
		if err != nil {
			logger.Warn("status bridge unavailable", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			defer client.Close()
			reporter := status.NewReporter(client, status.Topics{Prefix: cfg.MQTT.TopicPrefix}, stats)
			reporter.SetLogger(logger)
			sub := manager.Subscribe(reporter.EndpointChanged)
			defer manager.Unsubscribe(sub)
			for _, id := range manager.EndpointIDs() {
				reporter.EndpointChanged(endpoint.EventAdded, id)
			}

			reporterDone := make(chan struct{})
			go func() {
				defer close(reporterDone)
				reporter.Run(ctx, cfg.MQTT.StatsInterval)
			}()
			defer func() { <-reporterDone }()
			logger.Info("status bridge connected", "broker", cfg.MQTT.Broker)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if console != nil {
		go console.Run(ctx, cancel)
	}

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	set.RemoveAll()
	err = dev.Close()
	// Stops the reporter, which then drains the removal events.
	cancel()
	return err
}

func serveMetrics(cfg *config.Config, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
	return srv
}
