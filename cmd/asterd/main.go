// asterd drives a NAO or Pepper robot through its motion daemon: it runs
// the fixed-rate joint control loop and serves telemetry and commands over
// HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/asterworks/go-aster/internal/config"
	"github.com/asterworks/go-aster/internal/daemon"
	"github.com/asterworks/go-aster/internal/log"
	"github.com/asterworks/go-aster/internal/recorder"
	"github.com/asterworks/go-aster/pkg/driver"
	"github.com/asterworks/go-aster/pkg/telemetry"
	"github.com/asterworks/go-aster/pkg/web"
)

func main() {
	cfg := loadConfig()
	log.Init(cfg.LogLevel)
	logger := log.Component("asterd")

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.UseDCM {
		logger.Warn("low-level DCM writes enabled, positions bypass the daemon's own arbitration")
	}

	session := daemon.NewSession(cfg.DaemonURL)
	state, err := session.Health()
	if err != nil {
		logger.Error("motion daemon unreachable", "url", cfg.DaemonURL, "error", err)
		os.Exit(1)
	}
	logger.Info("daemon reachable", "url", cfg.DaemonURL, "state", state)

	backends := driver.Backends{
		Motion: daemon.NewMotion(session),
		Memory: daemon.NewMemory(session),
	}
	if cfg.UseDCM {
		backends.LowLevel = daemon.NewDCM(session, cfg.ControllerFreq)
	}

	publisher := telemetry.NewPublisher(cfg.TopicPrefix(), cfg.TopicQueue)
	publisher.Start()
	defer publisher.Close()

	var sink driver.TelemetrySink = publisher
	if cfg.RecordPath != "" {
		rec, err := recorder.Open(cfg.RecordPath, cfg.BodyType)
		if err != nil {
			logger.Error("flight recorder unavailable", "path", cfg.RecordPath, "error", err)
			os.Exit(1)
		}
		rec.Start()
		defer rec.Close()
		sink = teeSink{publisher, rec}
		logger.Info("flight recorder enabled", "path", cfg.RecordPath, "run", rec.RunID())
	}

	d, err := driver.New(&cfg, backends, sink, publisher)
	if err != nil {
		logger.Error("driver setup failed", "error", err)
		os.Exit(1)
	}

	if err := d.Connect(); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer d.Stop()

	srv := web.NewServer(cfg.Listen, d, publisher, cfg.UseCmdVel)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("web server stopped", "error", err)
		}
	}()
	defer srv.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("driver running",
		"robot", d.RobotModel(),
		"joints", len(d.Joints()),
		"freq_hz", cfg.ControllerFreq,
		"dcm", cfg.UseDCM)

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("control loop ended", "error", err)
	}
	logger.Info("shutting down")
}

// teeSink fans each telemetry sample out to every configured sink.
type teeSink []driver.TelemetrySink

func (t teeSink) JointState(js telemetry.JointState) {
	for _, s := range t {
		s.JointState(js)
	}
}

func (t teeSink) Stiffness(st telemetry.Stiffness) {
	for _, s := range t {
		s.Stiffness(st)
	}
}

// loadConfig resolves configuration in layers: compiled defaults, the JSON
// file named by -config, environment variables, then explicit flags.
func loadConfig() config.Config {
	configPath := flag.String("config", "", "Path to JSON config file")
	daemonURL := flag.String("daemon-url", config.DefaultDaemonURL, "Motion daemon base URL")
	listen := flag.String("listen", config.DefaultListen, "Web API bind address")
	bodyType := flag.String("body-type", "", "Hardware variant override, e.g. H21 or H25")
	useDCM := flag.Bool("dcm", false, "Write joint positions over the low-level bus instead of the motion API")
	cmdVel := flag.Bool("cmd-vel", false, "Mount the velocity teleop endpoint")
	groups := flag.String("groups", "", `Space-separated motor groups, e.g. "LArm RArm" or "Body"`)
	freq := flag.Float64("freq", config.DefaultControllerFreq, "Control loop frequency in Hz")
	precision := flag.Float64("precision", config.DefaultJointPrecision, "Joint change-detection threshold in radians")
	record := flag.String("record", "", "Record telemetry to this SQLite file")
	prefix := flag.String("prefix", config.DefaultPrefix, "Telemetry topic prefix")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "asterd:", err)
		os.Exit(1)
	}
	cfg.FromEnv()

	// Only flags the user actually set override the file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "daemon-url":
			cfg.DaemonURL = *daemonURL
		case "listen":
			cfg.Listen = *listen
		case "body-type":
			cfg.BodyType = *bodyType
		case "dcm":
			cfg.UseDCM = *useDCM
		case "cmd-vel":
			cfg.UseCmdVel = *cmdVel
		case "groups":
			cfg.MotorGroups = *groups
		case "freq":
			cfg.ControllerFreq = *freq
		case "precision":
			cfg.JointPrecision = *precision
		case "record":
			cfg.RecordPath = *record
		case "prefix":
			cfg.Prefix = *prefix
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	return cfg
}
