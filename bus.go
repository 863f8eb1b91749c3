package station

import (
	"errors"
	"sync"
)

var ErrBusClosed = errors.New("event bus closed")

// Source delivers network lifecycle events.  Each subscription is an
// in-order stream of the events matching its filters.
type Source interface {
	Subscribe(filters ...Filter) (Subscription, error)
}

// Subscription is one ordered stream of events from a Source.  The Events
// channel is closed once the subscription is closed.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// Bus is an in-process event source.  Events published on the bus are
// fanned out to every subscription with a matching filter.  Publish never
// blocks and never drops: each subscription queues events until its reader
// takes them, so a publisher running on the reader's goroutine can't
// deadlock.
type Bus struct {
	name   string
	subsMu rwMutex
	subs   map[*subscription]bool
	closed bool
}

// NewBus returns a new, open bus
func NewBus(name string) *Bus {
	return &Bus{
		name: name,
		subs: make(map[*subscription]bool),
	}
}

func (b *Bus) Name() string {
	return b.name
}

// Subscribe registers a new subscription for events matching any of
// filters.  No filters means every event.
func (b *Bus) Subscribe(filters ...Filter) (Subscription, error) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	s := &subscription{
		bus:     b,
		filters: filters,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		events:  make(chan Event),
	}
	b.subs[s] = true
	go s.pump()

	return s, nil
}

// Publish queues e on every matching subscription, in publish order
func (b *Bus) Publish(e Event) {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	for s := range b.subs {
		if s.wants(e) {
			s.push(e)
		}
	}
}

// Close closes every subscription.  Later Subscribe calls fail with
// ErrBusClosed; later Publish calls are no-ops.
func (b *Bus) Close() {
	b.subsMu.Lock()
	b.closed = true
	subs := b.subs
	b.subs = make(map[*subscription]bool)
	b.subsMu.Unlock()

	for s := range subs {
		s.stop()
	}
}

// Subscribers returns the number of open subscriptions
func (b *Bus) Subscribers() int {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	return len(b.subs)
}

// unplug removes the subscription from the bus
func (b *Bus) unplug(s *subscription) {
	b.subsMu.Lock()
	delete(b.subs, s)
	b.subsMu.Unlock()
}

type subscription struct {
	bus     *Bus
	filters []Filter

	queueMu mutex
	queue   []Event

	wake     chan struct{}
	done     chan struct{}
	events   chan Event
	stopOnce sync.Once
}

func (s *subscription) Events() <-chan Event {
	return s.events
}

func (s *subscription) Close() {
	s.bus.unplug(s)
	s.stop()
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *subscription) wants(e Event) bool {
	if len(s.filters) == 0 {
		return true
	}
	for _, f := range s.filters {
		if f.match(e) {
			return true
		}
	}
	return false
}

func (s *subscription) push(e Event) {
	s.queueMu.Lock()
	s.queue = append(s.queue, e)
	s.queueMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
		// pump already has a wakeup pending
	}
}

func (s *subscription) pop() (Event, bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	e := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return e, true
}

// pump moves queued events onto the events channel, one at a time, until
// the subscription is stopped
func (s *subscription) pump() {
	defer close(s.events)
	for {
		e, ok := s.pop()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		select {
		case s.events <- e:
		case <-s.done:
			return
		}
	}
}
