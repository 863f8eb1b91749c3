//go:build tinygo && (ninafw || wioterminal || challenger_rp2040 || arduino_mkrwifi1010)

// Station-netlink joins an access point from a board with a netlink WiFi
// co-processor (wifinina, rtl8720dn, espat).  Settings are linked in:
//
//	tinygo flash -target pyportal -ldflags '-X "main.args=-ssid lab -passphrase secret" -X main.broker=10.0.0.100:1883'
package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"tinygo.org/x/drivers/netlink/probe"

	"github.com/merliot/station"
	"github.com/merliot/station/report"
)

var (
	args   string
	broker string
)

func main() {
	// wait a bit for serial
	time.Sleep(2 * time.Second)

	log := station.NewLogger(slog.LevelInfo, false)

	cfg := station.DefaultConfig()
	if err := station.ParseArgs(&cfg, args); err != nil {
		log.Error("bad args", "err", err)
		return
	}

	link, dev := probe.Probe()

	nl := station.NewNetlinkLink(link, cfg)
	nl.SetLogger(log)
	nl.Addr = func() (net.IP, error) {
		addr, err := dev.Addr()
		if err != nil {
			return nil, err
		}
		return net.IP(addr.AsSlice()), nil
	}

	s := station.New(cfg, nl, nl)
	s.SetLogger(log)

	if err := s.Start(context.Background()); err != nil {
		log.Error("failed to start connection attempt", "err", err)
		return
	}

	for {
		outcome := s.AwaitOutcome(time.Minute)
		switch outcome {
		case station.OutcomeConnected:
			if broker != "" {
				publish(log, report.New(cfg, s.Attempt(), outcome))
			}
			select {}
		case station.OutcomeFailed:
			// back off, then a fresh attempt with a full retry budget
			time.Sleep(10 * time.Second)
			if err := s.Start(context.Background()); err != nil {
				log.Error("failed to restart connection attempt", "err", err)
				return
			}
		}
	}
}

func publish(log *slog.Logger, r report.Report) {
	conn, err := net.Dial("tcp", broker)
	if err != nil {
		log.Error("mqtt dial", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := report.DialNatiu(ctx, conn, "station-"+r.SSID)
	if err != nil {
		log.Error("mqtt connect", "err", err)
		return
	}
	if err := report.NewNatiu(client, "station/outcome").Report(ctx, r); err != nil {
		log.Error("mqtt publish", "err", err)
	}
}
