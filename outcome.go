package station

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Outcome is how a connection attempt ended, as seen by a waiter.
type Outcome uint8

const (
	// OutcomePending is the zero value; a resolved cell never holds it
	OutcomePending Outcome = iota
	OutcomeConnected
	OutcomeFailed
	// OutcomeTimedOut is only ever returned to a waiter; the attempt may
	// still be running
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeConnected:
		return "connected"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed-out"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for _, v := range []Outcome{OutcomePending, OutcomeConnected, OutcomeFailed, OutcomeTimedOut} {
		if v.String() == string(text) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Terminal reports whether o is an outcome a Cell can hold
func (o Outcome) Terminal() bool {
	return o == OutcomeConnected || o == OutcomeFailed
}

// Cell is a write-once, read-many completion cell.  The first Resolve wins;
// any number of goroutines can wait on it, and reading a resolved cell never
// blocks.
type Cell struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func NewCell() *Cell {
	return &Cell{done: make(chan struct{})}
}

// Resolve sets the outcome.  It returns false if the cell was already
// resolved, or if o is not Connected or Failed; the cell is unchanged then.
func (c *Cell) Resolve(o Outcome) bool {
	if !o.Terminal() {
		return false
	}
	resolved := false
	c.once.Do(func() {
		c.outcome = o
		close(c.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the cell is resolved
func (c *Cell) Done() <-chan struct{} {
	return c.done
}

// Outcome returns the resolved outcome, or false if the cell is unresolved
func (c *Cell) Outcome() (Outcome, bool) {
	select {
	case <-c.done:
		return c.outcome, true
	default:
		return OutcomePending, false
	}
}

// Wait blocks until the cell resolves or ctx ends, returning OutcomeTimedOut
// in the latter case.  A resolved cell always wins over a finished ctx.
func (c *Cell) Wait(ctx context.Context) Outcome {
	if o, ok := c.Outcome(); ok {
		return o
	}
	select {
	case <-c.done:
		return c.outcome
	case <-ctx.Done():
		return OutcomeTimedOut
	}
}

// WaitTimeout is Wait bounded by timeout instead of a context
func (c *Cell) WaitTimeout(timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Wait(ctx)
}
