// Package sim is a simulated access point: a station Link and Source that
// fails a set number of joins before handing out an address.
package sim

import (
	"errors"
	"net"
	"sync"

	"github.com/merliot/station"
)

var ErrRadioOff = errors.New("radio off")

// AccessPoint fails the first Failures connect requests with Reason, then
// assigns Addr.  It implements station.Link and station.Source.
type AccessPoint struct {
	Failures int
	Reason   station.Reason
	Addr     net.IP

	bus *station.Bus

	mu       sync.Mutex
	off      bool
	connects int
}

// New returns an access point that fails failures joins then assigns addr
func New(failures int, addr net.IP) *AccessPoint {
	return &AccessPoint{
		Failures: failures,
		Reason:   station.ReasonNoAPFound,
		Addr:     addr,
		bus:      station.NewBus("sim"),
	}
}

// Subscribe implements station.Source
func (ap *AccessPoint) Subscribe(filters ...station.Filter) (station.Subscription, error) {
	return ap.bus.Subscribe(filters...)
}

// Activate implements station.Link
func (ap *AccessPoint) Activate() error {
	ap.mu.Lock()
	if ap.off {
		ap.mu.Unlock()
		return ErrRadioOff
	}
	ap.mu.Unlock()

	ap.bus.Publish(station.InterfaceStarted())
	return nil
}

// Connect implements station.Link
func (ap *AccessPoint) Connect() {
	ap.mu.Lock()
	ap.connects++
	fail := ap.connects <= ap.Failures
	ap.mu.Unlock()

	if fail {
		ap.bus.Publish(station.Disconnected(ap.Reason))
		return
	}
	ap.bus.Publish(station.AddressAcquired(ap.Addr))
}

// Connects returns how many connect requests the access point has seen
func (ap *AccessPoint) Connects() int {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.connects
}

// PowerOff makes later Activate calls fail
func (ap *AccessPoint) PowerOff() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.off = true
}

// Emit publishes e as if the network stack had raised it
func (ap *AccessPoint) Emit(e station.Event) {
	ap.bus.Publish(e)
}

// Reset forgets past connect requests and sets how many of the next ones
// fail, for a fresh attempt against the same access point
func (ap *AccessPoint) Reset(failures int) {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.Failures = failures
	ap.connects = 0
}

// Close shuts the access point's event bus
func (ap *AccessPoint) Close() {
	ap.bus.Close()
}
