//go:build tinygo

package station

import (
	"sync"
)

type mutex struct {
	sync.Mutex
}

type rwMutex struct {
	sync.RWMutex
}
