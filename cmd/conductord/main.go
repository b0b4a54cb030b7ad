// Command conductord runs the dashboard time conductor as a standalone
// process: it wires the time systems and tick sources, hosts one mode
// controller, and exposes conductor metrics for scraping.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/time-conductor/conductor"
	"github.com/signalsfoundry/time-conductor/internal/logging"
	"github.com/signalsfoundry/time-conductor/internal/observability"
	"github.com/signalsfoundry/time-conductor/model"
	"github.com/signalsfoundry/time-conductor/modecontrol"
	"github.com/signalsfoundry/time-conductor/timesys"
)

// knownModes maps config mode keys to their descriptors.
var knownModes = map[string]model.Mode{
	model.FixedModeKey:     {Key: model.FixedModeKey, Name: "Fixed Timespan"},
	timesys.LocalClockMode: {Key: timesys.LocalClockMode, Name: "Local Clock"},
	timesys.RealtimeMode:   {Key: timesys.RealtimeMode, Name: "Real-time"},
}

func main() {
	configPath := flag.String("config", "", "Path to a TOML config file (defaults apply when empty)")
	flag.Parse()

	ctx := context.Background()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfig(*configPath)
		if err != nil {
			logging.NewFromEnv().Error(ctx, "failed to load config", logging.String("error", err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	}

	log := newLogger(cfg.Log)

	mode, ok := knownModes[cfg.Mode]
	if !ok {
		log.Error(ctx, "unknown mode", logging.String("mode", cfg.Mode))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}

	collector, err := observability.NewConductorCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	period, err := cfg.clockPeriod()
	if err != nil {
		log.Error(ctx, "invalid clock period", logging.String("error", err.Error()))
		os.Exit(1)
	}

	clock := timesys.NewLocalClock(period)
	feed := timesys.NewTelemetryFeed()
	catalog := []timesys.TimeSystem{
		timesys.NewUTCSystem(clock, feed),
		timesys.NewSiderealSystem(clock),
	}

	cond := conductor.New(log, collector)
	ctrl := modecontrol.New(mode, cond, catalog, log, collector)

	initial := pickTimeSystem(ctrl.AvailableTimeSystems(), cfg.TimeSystem)
	if initial == nil {
		log.Error(ctx, "no time system available for mode",
			logging.String("mode", cfg.Mode),
			logging.String("time_system", cfg.TimeSystem),
		)
		os.Exit(1)
	}
	cond.SetTimeSystem(ctx, initial)

	log.Info(ctx, "conductord running",
		logging.String("mode", mode.Key),
		logging.String("time_system", initial.Key()),
		logging.Bool("follow", cond.Follow()),
	)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down conductord")
	ctrl.Destroy()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

func newLogger(cfg LogConfig) logging.Logger {
	if cfg.Level == "" && cfg.Format == "" {
		return logging.NewFromEnv()
	}
	return logging.New(logging.Config{Level: cfg.Level, Format: cfg.Format})
}

// pickTimeSystem returns the system with the given key, falling back to the
// first available one when the key is absent or empty.
func pickTimeSystem(systems []timesys.TimeSystem, key string) timesys.TimeSystem {
	for _, ts := range systems {
		if ts.Key() == key {
			return ts
		}
	}
	if len(systems) > 0 {
		return systems[0]
	}
	return nil
}

func serveMetrics(addr string, collector *observability.ConductorCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
