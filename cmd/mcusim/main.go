// Command mcusim stands in for real stepper-and-heater firmware: it holds
// the terminal end of a pty pair (SPEC_FULL.md §2) and runs the
// ISR-equivalent step generator, the PID heater loops, and the safety
// supervisor in a single process, the way cmd/atest and cmd/tnctest stand
// in for radio hardware in the teacher's own test harnesses.
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
	"github.com/tinyforge/tinyforge/internal/gpio"
	"github.com/tinyforge/tinyforge/internal/pid"
	"github.com/tinyforge/tinyforge/internal/safety"
	"github.com/tinyforge/tinyforge/internal/stepper"
	"github.com/tinyforge/tinyforge/internal/stepqueue"
	"github.com/tinyforge/tinyforge/internal/transport"
)

const (
	heaterLoopPeriod      = 100 * time.Millisecond
	defaultWatchdogWindow = 5 * time.Second
)

func main() {
	var configPath = pflag.StringP("config", "c", "printer.yaml", "Printer configuration file.")
	var incidentDir = pflag.StringP("incident-dir", "i", ".", "Directory to write emergency-stop post-mortem reports into.")
	var logLevel = pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mcusim - tinyforge simulated MCU.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: mcusim [options]\n\n")
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
	}

	if err := run(logger, *configPath, *incidentDir); err != nil {
		logger.Fatal("mcusim exiting", "err", err)
	}
}

func run(logger *log.Logger, configPath, incidentDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("mcusim: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := gpio.NewSimulatedPort()

	monitor, heaters := buildMonitorAndHeaters(cfg, port, logger)

	queue := stepqueue.New(stepqueue.DefaultCapacity)
	var gen *stepper.Generator
	timer := NewRealtimeTimer(cfg.ClockHz, func() { gen.OnInterrupt() })
	gen = stepper.New(queue, port, timer)

	pair, err := transport.OpenPtyPair()
	if err != nil {
		return fmt.Errorf("mcusim: open pty pair: %w", err)
	}
	defer pair.Close()
	logger.Info("mcusim ready", "device", pair.SlavePath())

	registry := glue.DefaultRegistry()
	link := glue.New(pair.Master(), registry, monitor, logger)
	session := NewSession(link, queue, gen, port, monitor, heaters, logger)

	go func() {
		if err := link.Run(ctx, session.HandleMessage); err != nil && ctx.Err() == nil {
			logger.Error("link read loop exited", "err", err)
		}
	}()
	go runHeaterLoop(ctx, heaters)
	go runWatchdogFeed(ctx, monitor, watchdogWindowOrDefault(cfg), logger)

	<-ctx.Done()
	logger.Info("shutting down")
	if _, ok := monitor.Reason(); ok {
		if path, err := monitor.WriteIncidentReport(incidentDir, time.Now()); err == nil {
			logger.Warn("wrote incident report", "path", path)
		}
	}
	return nil
}

func buildMonitorAndHeaters(cfg *config.Printer, port *gpio.SimulatedPort, logger *log.Logger) (*safety.Monitor, []*Heater) {
	thermal := make([]*safety.ThermalMonitor, len(cfg.Heaters))
	for i, h := range cfg.Heaters {
		thermal[i] = safety.NewThermalMonitor(h.MaxRateCPerS, h.MinTempC, h.MaxTempC)
	}

	watchdog := safety.NewSimulatedWatchdog(watchdogWindowOrDefault(cfg), func() {
		logger.Error("watchdog expired: host link presumed dead")
	})
	monitor := safety.NewMonitor(thermal, nil, watchdog)

	heaters := make([]*Heater, len(cfg.Heaters))
	for i, h := range cfg.Heaters {
		controller := pid.New(h.Kp, h.Ki, h.Kd, h.OutputMax, i, monitor)
		heaters[i] = NewHeater(h, controller, port)
	}
	return monitor, heaters
}

func watchdogWindowOrDefault(cfg *config.Printer) time.Duration {
	if cfg.WatchdogWindow > 0 {
		return cfg.WatchdogWindow
	}
	return defaultWatchdogWindow
}

func runHeaterLoop(ctx context.Context, heaters []*Heater) {
	ticker := time.NewTicker(heaterLoopPeriod)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			for _, h := range heaters {
				h.Step(now, dt)
			}
		}
	}
}

func runWatchdogFeed(ctx context.Context, monitor *safety.Monitor, window time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(window / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := monitor.FeedWatchdog(); err != nil {
				logger.Debug("watchdog feed skipped", "err", err)
			}
		}
	}
}
