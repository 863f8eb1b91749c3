//go:build !tinygo

package station

import (
	sync "github.com/sasha-s/go-deadlock"
)

// Host builds run with deadlock detection on every lock the package takes.
type mutex struct {
	sync.Mutex
}

type rwMutex struct {
	sync.RWMutex
}
