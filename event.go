package station

import (
	"net"
	"strconv"
)

// Category is the upstream classification of an event: network-stack
// (link layer) or IP-stack.
type Category uint8

const (
	CategoryNet Category = iota + 1
	CategoryIP
)

func (c Category) String() string {
	switch c {
	case CategoryNet:
		return "net"
	case CategoryIP:
		return "ip"
	}
	return "category(" + strconv.Itoa(int(c)) + ")"
}

// Kind names a network lifecycle event.
type Kind uint8

const (
	// AnyKind only appears in a Filter; it matches every kind in the
	// filter's category.
	AnyKind Kind = iota
	// The station interface is up and ready to associate
	KindInterfaceStarted
	// Association was lost, or a connect request did not succeed
	KindDisconnected
	// The interface was assigned an address
	KindAddressAcquired
)

func (k Kind) String() string {
	switch k {
	case AnyKind:
		return "any"
	case KindInterfaceStarted:
		return "interface-started"
	case KindDisconnected:
		return "disconnected"
	case KindAddressAcquired:
		return "address-acquired"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Category returns the category the kind is emitted under.
func (k Kind) Category() Category {
	switch k {
	case KindInterfaceStarted, KindDisconnected:
		return CategoryNet
	case KindAddressAcquired:
		return CategoryIP
	}
	return 0
}

// Reason is the disconnect reason code carried by a Disconnected event.  The
// state machine never looks at it; it is only logged and reported.
type Reason uint16

// Reason codes follow the 802.11 reason codes for the low range and the
// vendor range (200+) that station firmwares report for failed joins.
const (
	ReasonUnspecified      Reason = 1
	ReasonAuthExpire       Reason = 2
	ReasonAssocExpire      Reason = 4
	ReasonBeaconTimeout    Reason = 200
	ReasonNoAPFound        Reason = 201
	ReasonAuthFail         Reason = 202
	ReasonAssocFail        Reason = 203
	ReasonHandshakeTimeout Reason = 204
	ReasonConnectionFail   Reason = 205
)

var reasonNames = map[Reason]string{
	ReasonUnspecified:      "unspecified",
	ReasonAuthExpire:       "auth-expire",
	ReasonAssocExpire:      "assoc-expire",
	ReasonBeaconTimeout:    "beacon-timeout",
	ReasonNoAPFound:        "no-ap-found",
	ReasonAuthFail:         "auth-fail",
	ReasonAssocFail:        "assoc-fail",
	ReasonHandshakeTimeout: "handshake-timeout",
	ReasonConnectionFail:   "connection-fail",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "reason(" + strconv.Itoa(int(r)) + ")"
}

// Event is one network lifecycle event.  Reason is only meaningful for
// Disconnected, Addr only for AddressAcquired.
type Event struct {
	Kind   Kind
	Reason Reason
	Addr   net.IP
}

// InterfaceStarted returns the event emitted once the station interface is up.
func InterfaceStarted() Event {
	return Event{Kind: KindInterfaceStarted}
}

// Disconnected returns a disconnect event carrying reason.
func Disconnected(reason Reason) Event {
	return Event{Kind: KindDisconnected, Reason: reason}
}

// AddressAcquired returns the event emitted when addr is assigned.
func AddressAcquired(addr net.IP) Event {
	return Event{Kind: KindAddressAcquired, Addr: addr}
}

func (e Event) Category() Category {
	return e.Kind.Category()
}

func (e Event) String() string {
	switch e.Kind {
	case KindDisconnected:
		return e.Category().String() + "/" + e.Kind.String() + " reason " + e.Reason.String()
	case KindAddressAcquired:
		return e.Category().String() + "/" + e.Kind.String() + " " + e.Addr.String()
	}
	return e.Category().String() + "/" + e.Kind.String()
}

// Filter selects events by category and kind.  A zero Kind (AnyKind)
// matches every kind in the category.
type Filter struct {
	Category Category
	Kind     Kind
}

func (f Filter) match(e Event) bool {
	if f.Category != e.Category() {
		return false
	}
	return f.Kind == AnyKind || f.Kind == e.Kind
}
