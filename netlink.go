package station

import (
	"errors"
	"log/slog"
	"net"
	"sync/atomic"

	"tinygo.org/x/drivers/netlink"
)

// NetlinkLink drives a TinyGo netlink device (wifinina, rtl8720dn, espat,
// ...) as a Link, and turns what the device reports into events on its own
// bus.  A device join is blocking, so each connect request runs the join on
// its own goroutine and publishes the result.
type NetlinkLink struct {
	dev    netlink.Netlinker
	params *netlink.ConnectParams
	bus    *Bus
	log    *slog.Logger
	up     atomic.Bool

	// Addr, if set, reports the address the interface got once joined
	Addr func() (net.IP, error)
}

// NewNetlinkLink returns a link joining cfg's access point with dev
func NewNetlinkLink(dev netlink.Netlinker, cfg Config) *NetlinkLink {
	n := &NetlinkLink{
		dev:    dev,
		params: cfg.ConnectParams(),
		bus:    NewBus("netlink"),
		log:    defaultLogger(),
	}
	dev.NetNotify(n.notify)
	return n
}

func (n *NetlinkLink) SetLogger(log *slog.Logger) {
	n.log = log
}

// Subscribe implements Source
func (n *NetlinkLink) Subscribe(filters ...Filter) (Subscription, error) {
	return n.bus.Subscribe(filters...)
}

// Activate checks the device is usable and reports the interface started.
// Netlink devices come up when probed, so there is nothing else to start.
func (n *NetlinkLink) Activate() error {
	if n.params.Ssid == "" {
		return netlink.ErrMissingSSID
	}
	mac, err := n.dev.GetHardwareAddr()
	if err != nil {
		return err
	}
	n.log.Info("station interface up", "mac", mac.String())
	n.bus.Publish(InterfaceStarted())
	return nil
}

// Connect starts one join on the device
func (n *NetlinkLink) Connect() {
	go n.join()
}

func (n *NetlinkLink) join() {
	if err := n.dev.NetConnect(n.params); err != nil {
		n.log.Debug("join failed", "err", err)
		n.bus.Publish(Disconnected(joinReason(err)))
		return
	}
	n.up.Store(true)

	var addr net.IP
	if n.Addr != nil {
		ip, err := n.Addr()
		if err != nil {
			n.log.Warn("can't read interface address", "err", err)
		}
		addr = ip
	}
	n.bus.Publish(AddressAcquired(addr))
}

// notify turns device link-down notifications into Disconnected events.
// Link-up is reported by join itself, so only a drop from a joined link
// counts.
func (n *NetlinkLink) notify(e netlink.Event) {
	if e != netlink.EventNetDown {
		return
	}
	if n.up.CompareAndSwap(true, false) {
		n.bus.Publish(Disconnected(ReasonBeaconTimeout))
	}
}

// Disconnect leaves the network and closes the event bus
func (n *NetlinkLink) Disconnect() {
	n.up.Store(false)
	n.dev.NetDisconnect()
	n.bus.Close()
}

func joinReason(err error) Reason {
	switch {
	case errors.Is(err, netlink.ErrAuthFailure), errors.Is(err, netlink.ErrShortPassphrase):
		return ReasonAuthFail
	case errors.Is(err, netlink.ErrAuthTypeNoGood):
		return ReasonAssocFail
	case errors.Is(err, netlink.ErrConnectTimeout):
		return ReasonHandshakeTimeout
	case errors.Is(err, netlink.ErrConnectFailed):
		return ReasonConnectionFail
	}
	return ReasonUnspecified
}
