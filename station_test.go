package station_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/stretchr/testify/mock"

	"github.com/merliot/station"
	"github.com/merliot/station/sim"
)

func testConfig(maxRetries int) station.Config {
	cfg := station.DefaultConfig()
	cfg.SSID = "MCC Corp"
	cfg.Passphrase = "not-a-real-one"
	cfg.MaxRetries = maxRetries
	return cfg
}

func newStation(cfg station.Config, link station.Link, src station.Source) *station.Station {
	s := station.New(cfg, link, src)
	s.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s
}

// mockLink is a Link whose behaviour each test scripts
type mockLink struct {
	mock.Mock
}

func (m *mockLink) Activate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockLink) Connect() {
	m.Called()
}

func TestStationGivesUp(t *testing.T) {
	c := qt.New(t)
	bus := station.NewBus("test bus")
	defer bus.Close()

	link := &mockLink{}
	link.On("Activate").Return(nil).Run(func(mock.Arguments) {
		bus.Publish(station.InterfaceStarted())
	})
	link.On("Connect").Return().Run(func(mock.Arguments) {
		bus.Publish(station.Disconnected(station.ReasonNoAPFound))
	})

	s := newStation(testConfig(5), link, bus)
	defer s.Close()
	c.Assert(s.Start(context.Background()), qt.IsNil)

	c.Assert(s.AwaitOutcome(5*time.Second), qt.Equals, station.OutcomeFailed)
	link.AssertNumberOfCalls(t, "Activate", 1)
	link.AssertNumberOfCalls(t, "Connect", 6)
	c.Assert(s.Attempt().Status(), qt.Equals, station.StatusFailed)
	c.Assert(s.Attempt().Retries(), qt.Equals, 5)
}

func TestStationConnectsAfterRetries(t *testing.T) {
	c := qt.New(t)
	ap := sim.New(2, net.IPv4(192, 168, 4, 2))
	defer ap.Close()

	s := newStation(testConfig(5), ap, ap)
	defer s.Close()
	c.Assert(s.Start(context.Background()), qt.IsNil)

	c.Assert(s.AwaitOutcome(5*time.Second), qt.Equals, station.OutcomeConnected)
	c.Assert(ap.Connects(), qt.Equals, 3)
	attempt := s.Attempt()
	c.Assert(attempt.Retries(), qt.Equals, 0)
	c.Assert(attempt.Addr().String(), qt.Equals, "192.168.4.2")
}

func TestStationDuplicateAddress(t *testing.T) {
	c := qt.New(t)
	ap := sim.New(0, net.IPv4(192, 168, 4, 2))
	defer ap.Close()

	s := newStation(testConfig(5), ap, ap)
	defer s.Close()
	c.Assert(s.Start(context.Background()), qt.IsNil)
	c.Assert(s.AwaitOutcome(5*time.Second), qt.Equals, station.OutcomeConnected)

	ap.Emit(station.AddressAcquired(net.IPv4(192, 168, 4, 3)))
	ap.Emit(station.Disconnected(station.ReasonBeaconTimeout))

	// give the relay time to deliver the stale events
	time.Sleep(50 * time.Millisecond)
	c.Assert(s.AwaitOutcome(time.Second), qt.Equals, station.OutcomeConnected)
	c.Assert(s.Attempt().Status(), qt.Equals, station.StatusConnected)
	c.Assert(s.Attempt().Addr().String(), qt.Equals, "192.168.4.2")
	c.Assert(ap.Connects(), qt.Equals, 1)
}

// silentLink starts the interface but never hears back from a connect
type silentLink struct {
	bus *station.Bus
}

func (l silentLink) Activate() error {
	l.bus.Publish(station.InterfaceStarted())
	return nil
}

func (l silentLink) Connect() {}

func TestStationTimeoutOnlyEndsWait(t *testing.T) {
	c := qt.New(t)
	bus := station.NewBus("test bus")
	defer bus.Close()

	s := newStation(testConfig(5), silentLink{bus}, bus)
	defer s.Close()
	c.Assert(s.Start(context.Background()), qt.IsNil)

	c.Assert(s.AwaitOutcome(20*time.Millisecond), qt.Equals, station.OutcomeTimedOut)
	c.Assert(s.Attempt().Status(), qt.Equals, station.StatusConnecting)

	bus.Publish(station.Disconnected(station.ReasonAuthExpire))
	bus.Publish(station.AddressAcquired(net.IPv4(10, 0, 0, 5)))

	c.Assert(s.AwaitOutcome(5*time.Second), qt.Equals, station.OutcomeConnected)
	c.Assert(s.Attempt().Retries(), qt.Equals, 0)
}

func TestStationWaitContext(t *testing.T) {
	c := qt.New(t)
	bus := station.NewBus("test bus")
	defer bus.Close()

	s := newStation(testConfig(5), silentLink{bus}, bus)
	defer s.Close()
	c.Assert(s.Start(context.Background()), qt.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Assert(s.Wait(ctx), qt.Equals, station.OutcomeTimedOut)
}

func TestStationAwaitBeforeStart(t *testing.T) {
	c := qt.New(t)
	ap := sim.New(0, nil)
	defer ap.Close()
	s := newStation(testConfig(5), ap, ap)
	c.Assert(s.Attempt(), qt.IsNil)
	c.Assert(s.AwaitOutcome(time.Millisecond), qt.Equals, station.OutcomeTimedOut)
}

func TestStationStartInProgress(t *testing.T) {
	c := qt.New(t)
	bus := station.NewBus("test bus")
	defer bus.Close()

	s := newStation(testConfig(5), silentLink{bus}, bus)
	defer s.Close()
	c.Assert(s.Start(context.Background()), qt.IsNil)
	c.Assert(s.Start(context.Background()), qt.ErrorIs, station.ErrAttemptInProgress)
}

func TestStationRestartAfterClose(t *testing.T) {
	c := qt.New(t)
	bus := station.NewBus("test bus")
	defer bus.Close()

	s := newStation(testConfig(5), silentLink{bus}, bus)
	defer s.Close()
	c.Assert(s.Start(context.Background()), qt.IsNil)
	first := s.Attempt()

	s.Close()
	c.Assert(s.Start(context.Background()), qt.IsNil)
	second := s.Attempt()
	c.Assert(second.ID(), qt.Not(qt.Equals), first.ID())

	bus.Publish(station.AddressAcquired(net.IPv4(10, 0, 0, 5)))
	c.Assert(s.AwaitOutcome(5*time.Second), qt.Equals, station.OutcomeConnected)
	c.Assert(second.Status(), qt.Equals, station.StatusConnected)
	c.Assert(first.Done(), qt.IsFalse)
}

func TestStationRestartAfterCancel(t *testing.T) {
	c := qt.New(t)
	bus := station.NewBus("test bus")
	defer bus.Close()

	s := newStation(testConfig(5), silentLink{bus}, bus)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c.Assert(s.Start(ctx), qt.IsNil)
	first := s.Attempt()
	cancel()

	c.Assert(s.Start(context.Background()), qt.IsNil)
	c.Assert(s.Attempt().ID(), qt.Not(qt.Equals), first.ID())

	bus.Publish(station.AddressAcquired(net.IPv4(10, 0, 0, 6)))
	c.Assert(s.AwaitOutcome(5*time.Second), qt.Equals, station.OutcomeConnected)
	c.Assert(first.Done(), qt.IsFalse)
}

// lockedBuffer is a log sink safe to read while the relay still writes
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStationLogsOutcomeOnce(t *testing.T) {
	c := qt.New(t)
	ap := sim.New(1, net.IPv4(192, 168, 4, 2))
	defer ap.Close()

	logs := &lockedBuffer{}
	s := station.New(testConfig(5), ap, ap)
	s.SetLogger(slog.New(slog.NewTextHandler(logs, nil)))
	defer s.Close()

	c.Assert(s.Start(context.Background()), qt.IsNil)
	for i := 0; i < 3; i++ {
		c.Assert(s.AwaitOutcome(5*time.Second), qt.Equals, station.OutcomeConnected)
	}
	c.Assert(s.Wait(context.Background()), qt.Equals, station.OutcomeConnected)
	c.Assert(strings.Count(logs.String(), `msg="connected to ap"`), qt.Equals, 1)
}

func TestStationRestartAfterFailure(t *testing.T) {
	c := qt.New(t)
	ap := sim.New(100, net.IPv4(10, 0, 0, 2))
	defer ap.Close()

	s := newStation(testConfig(1), ap, ap)
	defer s.Close()

	c.Assert(s.Start(context.Background()), qt.IsNil)
	c.Assert(s.AwaitOutcome(5*time.Second), qt.Equals, station.OutcomeFailed)
	first := s.Attempt()
	c.Assert(ap.Connects(), qt.Equals, 2)

	// the access point comes good; a fresh attempt has a fresh budget
	ap.Reset(0)
	c.Assert(s.Start(context.Background()), qt.IsNil)
	c.Assert(s.AwaitOutcome(5*time.Second), qt.Equals, station.OutcomeConnected)

	second := s.Attempt()
	c.Assert(second.ID(), qt.Not(qt.Equals), first.ID())
	c.Assert(first.Status(), qt.Equals, station.StatusFailed)
	c.Assert(ap.Connects(), qt.Equals, 1)
}

func TestStationActivateFails(t *testing.T) {
	c := qt.New(t)
	ap := sim.New(0, nil)
	defer ap.Close()
	ap.PowerOff()

	s := newStation(testConfig(5), ap, ap)
	err := s.Start(context.Background())

	var setupErr *station.SetupError
	c.Assert(errors.As(err, &setupErr), qt.IsTrue)
	c.Assert(setupErr.Op, qt.Equals, "activate")
	c.Assert(err, qt.ErrorIs, sim.ErrRadioOff)
	c.Assert(s.Attempt(), qt.IsNil)
}

type brokenSource struct{}

func (brokenSource) Subscribe(...station.Filter) (station.Subscription, error) {
	return nil, errors.New("no event loop")
}

func TestStationSubscribeFails(t *testing.T) {
	c := qt.New(t)
	link := &mockLink{}

	s := newStation(testConfig(5), link, brokenSource{})
	err := s.Start(context.Background())

	var setupErr *station.SetupError
	c.Assert(errors.As(err, &setupErr), qt.IsTrue)
	c.Assert(setupErr.Op, qt.Equals, "subscribe")
	c.Assert(err, qt.ErrorMatches, "station setup: subscribe: no event loop")
	link.AssertNotCalled(t, "Activate")
}

func TestStationInvalidConfig(t *testing.T) {
	c := qt.New(t)
	ap := sim.New(0, nil)
	defer ap.Close()

	cfg := testConfig(5)
	cfg.SSID = ""
	s := newStation(cfg, ap, ap)
	err := s.Start(context.Background())
	c.Assert(err, qt.ErrorIs, station.ErrInvalidConfig)
	c.Assert(ap.Connects(), qt.Equals, 0)
}

func TestStationsIndependent(t *testing.T) {
	c := qt.New(t)

	var wg sync.WaitGroup
	outcomes := make([]station.Outcome, 2)
	aps := []*sim.AccessPoint{
		sim.New(1, net.IPv4(10, 0, 0, 1)),
		sim.New(10, net.IPv4(10, 0, 0, 2)),
	}
	for i, ap := range aps {
		defer ap.Close()
		s := newStation(testConfig(3), ap, ap)
		defer s.Close()
		c.Assert(s.Start(context.Background()), qt.IsNil)
		wg.Add(1)
		go func(i int, s *station.Station) {
			defer wg.Done()
			outcomes[i] = s.AwaitOutcome(5 * time.Second)
		}(i, s)
	}
	wg.Wait()

	c.Assert(outcomes, qt.DeepEquals, []station.Outcome{station.OutcomeConnected, station.OutcomeFailed})
	c.Assert(aps[0].Connects(), qt.Equals, 2)
	c.Assert(aps[1].Connects(), qt.Equals, 4)
}
