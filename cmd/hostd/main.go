// Command hostd is the tinyforge host daemon: it loads a printer
// configuration, opens the serial link to an MCU, plans motion, and relays
// resolved step commands across the negotiated wire protocol. The link is
// dialed once at startup through a transport.Reconnector: a failed dial
// ends the daemon, and a link that drops later is not redialed. It does not parse G-code itself — see SPEC_FULL.md's
// Non-goals — a frontend in front of Runner.SubmitMove owns that.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/tinyforge/tinyforge/internal/config"
	"github.com/tinyforge/tinyforge/internal/glue"
	"github.com/tinyforge/tinyforge/internal/kinematics"
	"github.com/tinyforge/tinyforge/internal/motion"
	"github.com/tinyforge/tinyforge/internal/safety"
	"github.com/tinyforge/tinyforge/internal/stepqueue"
	"github.com/tinyforge/tinyforge/internal/transport"
)

const (
	reconnectInitialBackoff = 250 * time.Millisecond
	reconnectMaxBackoff     = 10 * time.Second
	statusPollInterval      = 500 * time.Millisecond
	stepRelayPollInterval   = 2 * time.Millisecond
)

func main() {
	var configPath = pflag.StringP("config", "c", "printer.yaml", "Printer configuration file.")
	var device = pflag.StringP("device", "d", "", "Serial device path, overriding the config file's serial.device.")
	var baud = pflag.IntP("baud", "b", 0, "Serial baud rate, overriding the config file's serial.baud.")
	var logLevel = pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "hostd - tinyforge host daemon.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: hostd [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if level, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warn("unrecognized log level, defaulting to info", "value", *logLevel)
	}

	if err := run(logger, *configPath, *device, *baud); err != nil {
		logger.Fatal("hostd exiting", "err", err)
	}
}

func run(logger *log.Logger, configPath, deviceOverride string, baudOverride int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("hostd: %w", err)
	}

	device := cfg.Serial.Device
	if deviceOverride != "" {
		device = deviceOverride
	}
	baud := cfg.Serial.Baud
	if baudOverride != 0 {
		baud = baudOverride
	}

	kin, err := buildKinematics(cfg)
	if err != nil {
		return fmt.Errorf("hostd: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dial := func() (transport.Stream, error) {
		logger.Info("dialing MCU", "device", device, "baud", baud)
		return transport.OpenSerial(device, baud)
	}
	reconnector := transport.NewReconnector(dial, reconnectInitialBackoff, reconnectMaxBackoff)
	go watchHotplug(ctx, device, reconnector, logger)

	stream, err := reconnector.Stream(ctx)
	if err != nil {
		return fmt.Errorf("hostd: connect to MCU: %w", err)
	}

	registry, err := glue.NegotiateCommands(ctx, stream)
	if err != nil {
		return fmt.Errorf("hostd: negotiate commands: %w", err)
	}
	logger.Info("negotiated command registry with MCU")

	watchdogWindow := cfg.WatchdogWindow
	if watchdogWindow <= 0 {
		watchdogWindow = 5 * time.Second
	}
	monitor := safety.NewMonitor(nil, nil, safety.NewSimulatedWatchdog(watchdogWindow, func() {
		logger.Error("host-side watchdog expired: MCU link presumed dead")
	}))

	link := glue.New(stream, registry, monitor, logger)

	queue := stepqueue.New(stepqueue.DefaultCapacity)
	planner := motion.NewPlanner(kin, cfg.JunctionDeviationMM, cfg.ClockHz)
	runner := NewRunner(kin, planner, queue, link, logger)

	go func() {
		if err := link.Run(ctx, handleInbound(logger)); err != nil && ctx.Err() == nil {
			logger.Error("link read loop exited", "err", err)
		}
	}()
	go link.PollStatus(ctx, statusPollInterval)
	go func() {
		if err := runner.RelayStepQueue(ctx, stepRelayPollInterval); err != nil && ctx.Err() == nil {
			logger.Error("step relay exited", "err", err)
		}
	}()

	logger.Info("hostd ready", "config", configPath, "device", device)
	<-ctx.Done()
	logger.Info("shutting down")
	runner.Finalize()
	return nil
}

func buildKinematics(cfg *config.Printer) (kinematics.Kinematics, error) {
	switch cfg.Kinematics {
	case config.KinematicsCartesian:
		x, y, z := cfg.Axes["x"], cfg.Axes["y"], cfg.Axes["z"]
		return kinematics.NewCartesian(x.StepsPerMM, y.StepsPerMM, z.StepsPerMM), nil
	case config.KinematicsCoreXY:
		a, z := cfg.Axes["a"], cfg.Axes["z"]
		return kinematics.NewCoreXY(a.StepsPerMM, z.StepsPerMM), nil
	default:
		return kinematics.Kinematics{}, fmt.Errorf("unsupported kinematics kind %q", cfg.Kinematics)
	}
}
