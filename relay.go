package station

import "context"

// Handler consumes relayed events
type Handler interface {
	Handle(Event)
}

// relayFilters are the events a connection attempt reacts to.  They share
// one subscription so the source's emission order is kept across categories.
var relayFilters = []Filter{
	{CategoryNet, KindInterfaceStarted},
	{CategoryNet, KindDisconnected},
	{CategoryIP, KindAddressAcquired},
}

// Relay forwards network lifecycle events from a Source to a Handler,
// exactly once each and in order.  It keeps no state of its own.
type Relay struct {
	sub     Subscription
	handler Handler
}

// NewRelay subscribes to src on behalf of h.  A subscription error is
// returned as is; the relay never retries it.
func NewRelay(src Source, h Handler) (*Relay, error) {
	sub, err := src.Subscribe(relayFilters...)
	if err != nil {
		return nil, err
	}
	return &Relay{sub: sub, handler: h}, nil
}

// Run delivers events until ctx is done or the subscription is closed.  The
// subscription is closed when Run returns.
func (r *Relay) Run(ctx context.Context) {
	defer r.sub.Close()
	events := r.sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			r.handler.Handle(e)
		}
	}
}

// Close ends the subscription; Run returns once it notices
func (r *Relay) Close() {
	r.sub.Close()
}
