// Package exclusive serializes the recorder and the replay engine: both
// mutate the same page context, so only one may be active at a time.
package exclusive

import (
	"fmt"
	"sync"
)

// BusyError indicates the gate is held by another facility
type BusyError struct {
	Holder    string
	Requested string
}

func (e BusyError) Error() string {
	return fmt.Sprintf("%s cannot start: %s is active", e.Requested, e.Holder)
}

// Gate is a named mutual-exclusion token
type Gate struct {
	mu     sync.Mutex
	holder string
}

// NewGate creates an unheld gate
func NewGate() *Gate {
	return &Gate{}
}

// TryAcquire claims the gate for the named facility. It never blocks: when
// the gate is already held it returns a BusyError naming the holder. The
// returned release func is idempotent.
func (g *Gate) TryAcquire(name string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder != "" {
		return nil, BusyError{Holder: g.holder, Requested: name}
	}
	g.holder = name

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			g.holder = ""
			g.mu.Unlock()
		})
	}
	return release, nil
}

// Holder returns the name of the current holder, or "" when unheld
func (g *Gate) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}
