// Package station associates a WiFi station interface with one access point
// and reports the outcome.
//
// A Station runs connection attempts.  Each attempt subscribes a Relay to
// the network stack's events, asks the Link to bring the interface up, and
// then reacts to events: connect on interface start, reconnect on
// disconnect until the retry budget is spent, and stop at the first
// address.  The caller waits for the attempt's outcome with AwaitOutcome.
package station

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrAttemptInProgress = errors.New("connection attempt in progress")

// SetupError is a fatal failure to start an attempt: the event
// subscription or the interface activation failed.  It is never retried.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return "station setup: " + e.Op + ": " + e.Err.Error()
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Link is the network stack's control side.  Activate brings the station
// interface up; the stack reports it with an InterfaceStarted event.
type Link interface {
	Connector
	Activate() error
}

// Station runs connection attempts against one access point
type Station struct {
	cfg      Config
	link     Link
	src      Source
	log      *slog.Logger
	observer Observer

	mu      mutex
	attempt *Attempt
	relay   *Relay
	ctx     context.Context
	cancel  context.CancelFunc
}

// New returns a station joining cfg's access point through link, with
// events from src
func New(cfg Config, link Link, src Source) *Station {
	return &Station{
		cfg:      cfg,
		link:     link,
		src:      src,
		log:      defaultLogger(),
		observer: nopObserver{},
	}
}

// SetLogger sets the logger handed to later attempts
func (s *Station) SetLogger(log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log
}

// SetObserver sets the observer handed to later attempts
func (s *Station) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

func (s *Station) Config() Config {
	return s.cfg
}

// Start begins a fresh connection attempt and returns without waiting for
// it.  The attempt's relay runs until ctx is done or Close is called; an
// unfinished attempt whose relay has stopped is abandoned and can be
// replaced.  Start fails with ErrAttemptInProgress while an earlier attempt
// is still running, and with a *SetupError if the subscription or the
// interface activation fails.
func (s *Station) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running() {
		return ErrAttemptInProgress
	}
	if err := s.cfg.Validate(); err != nil {
		return &SetupError{Op: "config", Err: err}
	}

	// the previous attempt is finished; stop listening for its stale events
	s.stop()

	log := s.log.With("ssid", s.cfg.SSID)

	attempt := NewAttempt(s.cfg.MaxRetries, s.link)
	attempt.SetLogger(log)
	attempt.SetObserver(s.observer)

	relay, err := NewRelay(s.src, attempt)
	if err != nil {
		return &SetupError{Op: "subscribe", Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	go relay.Run(ctx)

	if err := s.link.Activate(); err != nil {
		cancel()
		relay.Close()
		return &SetupError{Op: "activate", Err: err}
	}

	s.attempt, s.relay, s.ctx, s.cancel = attempt, relay, ctx, cancel

	log.Info("station init finished", "attempt", attempt.ID(),
		"max_retries", s.cfg.MaxRetries, "auth_threshold", s.cfg.AuthThreshold.String(),
		"psk", s.cfg.Fingerprint())

	return nil
}

// Attempt returns the current attempt, or nil before the first Start
func (s *Station) Attempt() *Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// AwaitOutcome waits up to timeout for the current attempt's outcome.  A
// timeout only ends the wait: the attempt keeps going and a later call can
// still see it finish.  Without a started attempt there is nothing to wait
// for and the result is OutcomeTimedOut.
func (s *Station) AwaitOutcome(timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Wait(ctx)
}

// Wait is AwaitOutcome bounded by ctx
func (s *Station) Wait(ctx context.Context) Outcome {
	s.mu.Lock()
	attempt, log := s.attempt, s.log
	s.mu.Unlock()

	if attempt == nil {
		return OutcomeTimedOut
	}

	outcome := attempt.Outcome().Wait(ctx)
	attempt.logOutcome(log, s.cfg.SSID, outcome)
	return outcome
}

// Close stops relaying events to the current attempt.  An unfinished
// attempt is abandoned; a later Start begins a fresh one.
func (s *Station) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
}

// running reports whether the current attempt is unfinished and still fed
// by its relay
func (s *Station) running() bool {
	if s.attempt == nil || s.attempt.Done() {
		return false
	}
	return s.relay != nil && s.ctx.Err() == nil
}

func (s *Station) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.ctx = nil
	if s.relay != nil {
		s.relay.Close()
		s.relay = nil
	}
}
