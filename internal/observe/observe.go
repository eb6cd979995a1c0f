// Package observe provides small observable containers the UI layer can
// subscribe to. Two variants exist: Value always has a current value, while
// Delayed fails if read before the first write, which catches consumers
// reading state that was never produced.
package observe

import (
	"sync"

	"github.com/oaktrail/treetrack/internal/common"
)

// Value holds a current value of type T and broadcasts updates to
// subscribers. Subscriber channels are buffered and lossy: a slow consumer
// misses intermediate values but always observes the latest one eventually.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	subs    map[int]chan T
	nextID  int
}

// NewValue returns a Value initialised with initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{current: initial, subs: make(map[int]chan T)}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set stores the value and notifies subscribers without blocking.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = value
	for _, ch := range v.subs {
		select {
		case ch <- value:
		default:
			// drop the stale value so the latest one can go in
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- value:
			default:
			}
		}
	}
}

// Subscribe registers a listener and returns its channel plus a cancel
// function. The channel is closed on cancel.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	ch := make(chan T, 1)
	v.subs[id] = ch

	cancel := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if c, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Delayed holds a value that has no meaningful initial state. Get returns
// common.ErrNotProduced until the first Set.
type Delayed[T any] struct {
	mu       sync.Mutex
	current  T
	produced bool
}

// NewDelayed returns an empty Delayed.
func NewDelayed[T any]() *Delayed[T] {
	return &Delayed[T]{}
}

// Get returns the current value, or common.ErrNotProduced if Set has never
// been called.
func (d *Delayed[T]) Get() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.produced {
		var zero T
		return zero, common.ErrNotProduced
	}
	return d.current, nil
}

// Set stores the value and marks it produced.
func (d *Delayed[T]) Set(value T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = value
	d.produced = true
}
