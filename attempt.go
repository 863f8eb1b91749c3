package station

import (
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
)

// Status is the state of a connection attempt
type Status uint8

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transition can happen from s
func (s Status) Terminal() bool {
	return s == StatusConnected || s == StatusFailed
}

// Connector is the connect-request primitive.  Connect asks the network
// stack to associate and returns at once; the result comes back later as
// an event.
type Connector interface {
	Connect()
}

// Observer is told about connect requests and resolutions.  Calls are made
// outside the attempt's lock, in event order.
type Observer interface {
	ConnectRequested(attempt string, retry int)
	Resolved(attempt string, outcome Outcome, retries int)
}

type nopObserver struct{}

func (nopObserver) ConnectRequested(string, int)  {}
func (nopObserver) Resolved(string, Outcome, int) {}

// Attempt is one bounded sequence of connect and retry requests, from the
// interface starting to a terminal outcome.  It is driven only by Handle.
type Attempt struct {
	id         uuid.UUID
	maxRetries int
	conn       Connector
	outcome    *Cell
	log        *slog.Logger
	observer   Observer

	mu      mutex
	status  Status
	retries int
	addr    net.IP

	summary sync.Once
}

// NewAttempt returns an idle attempt allowing maxRetries reconnects after
// the first connect request.  A negative maxRetries is treated as zero.
func NewAttempt(maxRetries int, conn Connector) *Attempt {
	if maxRetries < 0 {
		maxRetries = 0
	}
	id := uuid.New()
	return &Attempt{
		id:         id,
		maxRetries: maxRetries,
		conn:       conn,
		outcome:    NewCell(),
		log:        defaultLogger().With("attempt", id.String()),
		observer:   nopObserver{},
	}
}

// SetLogger replaces the attempt's logger.  Call before the first event.
func (a *Attempt) SetLogger(log *slog.Logger) {
	a.log = log.With("attempt", a.id.String())
}

// SetObserver replaces the attempt's observer.  Call before the first event.
func (a *Attempt) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	a.observer = o
}

func (a *Attempt) ID() string {
	return a.id.String()
}

func (a *Attempt) MaxRetries() int {
	return a.maxRetries
}

func (a *Attempt) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Attempt) Retries() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.retries
}

// Addr returns the address that resolved the attempt, if it connected
func (a *Attempt) Addr() net.IP {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Outcome returns the attempt's completion cell
func (a *Attempt) Outcome() *Cell {
	return a.outcome
}

// Done reports whether the attempt reached a terminal state
func (a *Attempt) Done() bool {
	_, ok := a.outcome.Outcome()
	return ok
}

// logOutcome logs the one-line summary of a finished attempt.  Only the
// first call for a terminal outcome logs.
func (a *Attempt) logOutcome(log *slog.Logger, ssid string, o Outcome) {
	if !o.Terminal() {
		return
	}
	a.summary.Do(func() {
		if o == OutcomeConnected {
			log.Info("connected to ap", "ssid", ssid, "addr", a.Addr().String())
			return
		}
		log.Info("failed to connect to ap", "ssid", ssid, "retries", a.Retries())
	})
}

// step is what one event makes the attempt do once the lock is released
type step struct {
	connect  bool
	retry    int
	resolved Outcome
	retries  int
}

// Handle advances the attempt by one event.  Events after a terminal state
// are stale and ignored.
func (a *Attempt) Handle(e Event) {
	s := a.transition(e)

	if s.connect {
		a.observer.ConnectRequested(a.ID(), s.retry)
		a.conn.Connect()
	}
	if s.resolved != OutcomePending {
		a.observer.Resolved(a.ID(), s.resolved, s.retries)
	}
}

func (a *Attempt) transition(e Event) (s step) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.status {
	case StatusIdle:
		if e.Kind != KindInterfaceStarted {
			a.log.Debug("event before interface start", "event", e.String())
			return
		}
		a.log.Info("interface started, connecting to the AP")
		a.status = StatusConnecting
		s.connect = true

	case StatusConnecting:
		switch e.Kind {
		case KindDisconnected:
			if a.retries < a.maxRetries {
				a.retries++
				a.log.Info("retry to connect to the AP",
					"retry", a.retries, "max_retries", a.maxRetries,
					"reason", e.Reason.String())
				s.connect, s.retry = true, a.retries
				return
			}
			a.status = StatusFailed
			a.outcome.Resolve(OutcomeFailed)
			a.log.Warn("connect to the AP fail",
				"retries", a.retries, "reason", e.Reason.String())
			s.resolved, s.retries = OutcomeFailed, a.retries
		case KindAddressAcquired:
			s.retries = a.retries
			a.retries = 0
			a.addr = e.Addr
			a.status = StatusConnected
			a.outcome.Resolve(OutcomeConnected)
			a.log.Info("got ip", "addr", e.Addr.String(), "retries", s.retries)
			s.resolved = OutcomeConnected
		default:
			a.log.Debug("ignoring event while connecting", "event", e.String())
		}

	default:
		a.log.Debug("ignoring stale event", "status", a.status.String(), "event", e.String())
	}

	return
}
