// v3
// cmd/home-controller/main.go
// home-controller is the composition root: it loads configuration and the
// house topology, builds the state store, control loop, action ledger and
// HTTP API, and supervises them until an authenticated stop command or an
// OS signal arrives. A restart command tears the runtime down and rebuilds
// it in-process so configuration and topology edits take effect.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maxmcoste/home-controller/internal/actions"
	"github.com/maxmcoste/home-controller/internal/api"
	"github.com/maxmcoste/home-controller/internal/auth"
	"github.com/maxmcoste/home-controller/internal/config"
	"github.com/maxmcoste/home-controller/internal/control"
	"github.com/maxmcoste/home-controller/internal/device"
	"github.com/maxmcoste/home-controller/internal/logging"
	"github.com/maxmcoste/home-controller/internal/metrics"
	"github.com/maxmcoste/home-controller/internal/store"
	"github.com/maxmcoste/home-controller/internal/topology"
)

// lifecycle funnels stop/restart requests from the API and OS signals into
// one channel; the first request wins.
type lifecycle struct {
	once sync.Once
	ch   chan string
}

func newLifecycle() *lifecycle {
	return &lifecycle{ch: make(chan string, 1)}
}

func (l *lifecycle) request(what string) {
	l.once.Do(func() { l.ch <- what })
}

func (l *lifecycle) RequestStop()    { l.request("stop") }
func (l *lifecycle) RequestRestart() { l.request("restart") }

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("HC_CONFIG", "./config.yaml"), "path to config.yaml")
	flag.Parse()

	for {
		restart, err := run(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "home-controller: %v\n", err)
			os.Exit(1)
		}
		if !restart {
			return
		}
	}
}

// run builds and supervises one full runtime generation. It returns true
// when the caller should rebuild and go again.
func run(configPath string) (restart bool, err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return false, err
	}

	logger, logFile := logging.Init(cfg.Logging.Dir, cfg.Logging.Level)
	defer func() {
		if logFile != os.Stdout {
			_ = logFile.Close()
		}
	}()
	log := logger.With(slog.String("component", "main"))

	topo, err := topology.Load(cfg.TopologyPath)
	if err != nil {
		return false, fmt.Errorf("load topology: %w", err)
	}

	st := store.New(cfg.MinAllowedTemperature, cfg.MaxAllowedTemperature)
	if err := st.Register(topo, cfg.DefaultTemperatures, cfg.TargetOverrides()); err != nil {
		return false, fmt.Errorf("register rooms: %w", err)
	}
	metrics.RoomsRegistered.Set(float64(st.Len()))
	log.Info("rooms registered", "count", st.Len(), "topology", cfg.TopologyPath)

	rec, closeRec, err := buildRecorder(cfg, logger)
	if err != nil {
		return false, err
	}
	defer closeRec()

	httpDevices := device.NewHTTP(cfg.Devices.SensorPattern, cfg.Devices.HeaterPattern, cfg.DeviceTimeout(), logger)
	var actuator control.Actuator = httpDevices
	if cfg.Devices.Transport == "mqtt" {
		mq, err := device.NewMQTTActuator(cfg.MQTT, cfg.DeviceTimeout(), logger)
		if err != nil {
			return false, fmt.Errorf("mqtt actuator: %w", err)
		}
		defer mq.Close()
		actuator = mq
	}

	var sensor control.Sensor
	if cfg.Devices.SensorPattern != "" {
		sensor = httpDevices
	}

	ctrl := control.New(st, control.Options{
		Interval:  cfg.CheckInterval(),
		Deadband:  cfg.DeadbandCelsius,
		IOTimeout: cfg.DeviceTimeout(),
		Sensor:    sensor,
		Actuator:  actuator,
		Recorder:  rec,
	}, logger)

	authenticator := auth.New(cfg.API.ControlPIN, cfg.AuthWindow(), logger)
	if !authenticator.Enabled() {
		log.Warn("no control PIN configured; stop/restart commands will be refused")
	}

	life := newLifecycle()
	server := api.New(cfg, st, ctrl, authenticator, rec, life, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctrl.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	rec.Record(ctx, actions.SystemEvent("startup", true, map[string]any{
		"rooms":            st.Len(),
		"interval_seconds": int(cfg.CheckInterval().Seconds()),
		"addr":             cfg.BindAddr(),
	}))
	log.Info("home-controller running", "addr", cfg.BindAddr(),
		"interval", cfg.CheckInterval().String(), "transport", cfg.Devices.Transport)

	reason := "stop"
	select {
	case sig := <-sigCh:
		log.Info("signal received, shutting down", "signal", sig.String())
	case err := <-serverErr:
		cancel()
		wg.Wait()
		return false, fmt.Errorf("http server: %w", err)
	case reason = <-life.ch:
		log.Info("control command received", "command", reason)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
	}
	wg.Wait()

	rec.Record(context.Background(), actions.SystemEvent("shutdown", true, map[string]any{"reason": reason}))
	log.Info("runtime stopped", "reason", reason)
	return reason == "restart", nil
}

// buildRecorder assembles the configured ledger sinks. With nothing
// configured the controller runs with a no-op ledger.
func buildRecorder(cfg *config.Config, logger *slog.Logger) (actions.Recorder, func(), error) {
	var sinks actions.Multi
	var closers []func()

	if cfg.Actions.Dir != "" {
		fr, err := actions.NewFileRecorder(cfg.Actions.Dir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("action log dir: %w", err)
		}
		sinks = append(sinks, fr)
		closers = append(closers, func() { _ = fr.Close() })
	}
	if len(cfg.Actions.KafkaBrokers) > 0 {
		kr := actions.NewKafkaRecorder(cfg.Actions.KafkaBrokers, cfg.Actions.KafkaTopic, logger)
		sinks = append(sinks, kr)
		closers = append(closers, func() { _ = kr.Close() })
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(sinks) == 0 {
		return actions.Nop{}, closeAll, nil
	}
	return sinks, closeAll, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
