package httpapi

import (
	"context"
	"sync"
	"sync/atomic"
)

// TurnRegistry tracks in-flight chat turns and supports graceful draining.
// When draining is enabled, new turns are rejected while in-flight turns
// finish naturally.
//
// The mu mutex makes the draining check and wg.Add atomic in Begin, so no
// turn can slip in between StartDraining and Wait.
type TurnRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewTurnRegistry creates a new TurnRegistry.
func NewTurnRegistry() *TurnRegistry {
	return &TurnRegistry{}
}

// Begin registers a new turn. It returns ok=false if the registry is
// draining. The returned done func releases the turn and is safe to call
// more than once.
func (tr *TurnRegistry) Begin() (done func(), ok bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.draining {
		return func() {}, false
	}
	tr.wg.Add(1)
	tr.count.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			tr.count.Add(-1)
			tr.wg.Done()
		})
	}, true
}

// StartDraining makes every later Begin fail.
func (tr *TurnRegistry) StartDraining() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (tr *TurnRegistry) IsDraining() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.draining
}

// ActiveCount returns the number of turns in flight.
func (tr *TurnRegistry) ActiveCount() int64 {
	return tr.count.Load()
}

// Wait blocks until every registered turn is done or ctx ends.
func (tr *TurnRegistry) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		tr.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
