//go:build tinygo && pico

// Station-picow joins an access point from a Raspberry Pi Pico W.  Settings
// are linked in:
//
//	tinygo flash -target pico -ldflags '-X "main.args=-ssid lab -passphrase secret"'
package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/soypat/cyw43439"
	"tinygo.org/x/drivers/netlink"

	"github.com/merliot/station"
)

var args string

func main() {
	// wait a bit for serial
	time.Sleep(2 * time.Second)

	log := station.NewLogger(slog.LevelInfo, false)

	cfg := station.DefaultConfig()
	if err := station.ParseArgs(&cfg, args); err != nil {
		log.Error("bad args", "err", err)
		return
	}

	spi, cs, wlreg, irq := cyw43439.PicoWSpi(0)
	cyw43 := cyw43439.NewDevice(spi, cs, wlreg, irq, irq)

	dev, ok := any(cyw43).(netlink.Netlinker)
	if !ok {
		log.Error("cyw43439 driver has no netlink support")
		return
	}

	nl := station.NewNetlinkLink(dev, cfg)
	nl.SetLogger(log)

	s := station.New(cfg, nl, nl)
	s.SetLogger(log)

	if err := s.Start(context.Background()); err != nil {
		log.Error("failed to start connection attempt", "err", err)
		return
	}

	for {
		switch s.AwaitOutcome(time.Minute) {
		case station.OutcomeConnected:
			select {}
		case station.OutcomeFailed:
			time.Sleep(10 * time.Second)
			if err := s.Start(context.Background()); err != nil {
				log.Error("failed to restart connection attempt", "err", err)
				return
			}
		}
	}
}
