//go:build !tinygo

// Station joins an access point and reports how the attempt ended.
//
// Settings come from the TOML file named by $STATION_CONFIG, a .env file and
// STATION_* environment variables.  The exit status is 0 when connected, 1
// when the attempt failed or timed out, and 2 when it could not start.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/merliot/station"
	"github.com/merliot/station/config"
	"github.com/merliot/station/metrics"
	"github.com/merliot/station/report"
	"github.com/merliot/station/server"
	"github.com/merliot/station/sim"
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "err", err)
		return 2
	}

	cfg, err := config.Load(station.GetEnv("STATION_CONFIG", ""))
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return 2
	}

	level, _ := cfg.LogLevel()
	log := station.NewLogger(level, cfg.Log.JSON)

	collector := metrics.New(prometheus.DefaultRegisterer)

	ap := sim.New(cfg.Sim.Failures, net.ParseIP(cfg.Sim.Addr))
	defer ap.Close()

	s := station.New(cfg.WiFi, ap, ap)
	s.SetLogger(log)
	s.SetObserver(collector)
	defer s.Close()

	serving := cfg.Server.Addr != "" || cfg.Server.TLSHost != ""
	if serving {
		go serve(log, cfg.Server, s)
	}

	log.Info("wifi station starting", "ssid", cfg.WiFi.SSID, "sim_failures", cfg.Sim.Failures)

	if err := s.Start(context.Background()); err != nil {
		log.Error("failed to start connection attempt", "err", err)
		return 2
	}

	outcome := s.AwaitOutcome(cfg.WaitTimeout)
	if outcome == station.OutcomeTimedOut {
		log.Warn("gave up waiting for the AP", "wait_timeout", cfg.WaitTimeout)
	}

	if reporter := reporters(log, cfg); len(reporter) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Report.Timeout)
		err := reporter.Report(ctx, report.New(cfg.WiFi, s.Attempt(), outcome))
		cancel()
		if err != nil {
			log.Error("failed to send report", "err", err)
		}
	}

	if serving {
		// keep the status server up until interrupted
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		<-ctx.Done()
		stop()
	}

	if outcome != station.OutcomeConnected {
		return 1
	}
	return 0
}

func reporters(log *slog.Logger, cfg *config.Config) report.Multi {
	var m report.Multi

	if cfg.Report.MQTTBroker != "" {
		client, err := report.DialMQTT(cfg.Report.MQTTBroker, "station-"+cfg.WiFi.SSID,
			cfg.Report.User, cfg.Report.Passwd, cfg.Report.Timeout)
		if err != nil {
			log.Error("mqtt reporter disabled", "err", err)
		} else {
			m = append(m, report.NewMQTT(client, cfg.Report.Topic))
		}
	}

	if cfg.Report.WebSocket != "" {
		m = append(m, report.NewWebSocket(cfg.Report.WebSocket, cfg.Report.User, cfg.Report.Passwd))
	}

	return m
}

func serve(log *slog.Logger, cfg config.ServerConfig, s *station.Station) {
	srv := server.New(cfg.Addr, s, promhttp.Handler())
	srv.BasicAuth(cfg.User, cfg.Passwd)

	var err error
	if cfg.TLSHost != "" {
		log.Info("serving status", "host", cfg.TLSHost)
		err = srv.ServeTLS(cfg.TLSHost)
	} else {
		log.Info("serving status", "addr", cfg.Addr)
		err = srv.ListenAndServe()
	}
	if err != nil {
		log.Error("status server stopped", "err", err)
	}
}
