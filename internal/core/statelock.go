package core

import (
	"context"
	"math"
	"sync"
	"time"
)

// Reconcilable mirrors a remote attribute while letting local input own the
// rendered value during an interaction and for a lock window after commit.
type Reconcilable[T any] struct {
	mu          sync.Mutex
	now         func() time.Time
	distance    func(a, b T) float64
	epsilon     float64
	remote      T
	local       T
	interacting bool
	lockExpiry  time.Time
}

// NewReconcilable creates a value seeded with initial. distance and epsilon
// form the jitter filter applied to remote observations.
func NewReconcilable[T any](initial T, distance func(a, b T) float64, epsilon float64, now func() time.Time) *Reconcilable[T] {
	if now == nil {
		now = time.Now
	}
	return &Reconcilable[T]{
		now:      now,
		distance: distance,
		epsilon:  epsilon,
		remote:   initial,
		local:    initial,
	}
}

// NewContinuous creates a scalar value such as volume.
func NewContinuous(initial float64, epsilon float64, now func() time.Time) *Reconcilable[float64] {
	return NewReconcilable(initial, ContinuousDistance, epsilon, now)
}

// NewDiscrete creates a toggle or enum value.
func NewDiscrete[T comparable](initial T, now func() time.Time) *Reconcilable[T] {
	return NewReconcilable(initial, DiscreteDistance[T], 0, now)
}

// ContinuousDistance is |a-b|.
func ContinuousDistance(a, b float64) float64 {
	return math.Abs(a - b)
}

// DiscreteDistance is 0 for equal values and 1 otherwise.
func DiscreteDistance[T comparable](a, b T) float64 {
	if a == b {
		return 0
	}
	return 1
}

// Observe records a remote value. It reports whether the rendered value changed.
func (r *Reconcilable[T]) Observe(remote T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remote = remote
	if r.interacting || r.now().Before(r.lockExpiry) {
		return false
	}
	if r.distance(r.local, remote) <= r.epsilon {
		return false
	}
	r.local = remote
	return true
}

// BeginInteraction hands the value to local input until Commit.
func (r *Reconcilable[T]) BeginInteraction() {
	r.mu.Lock()
	r.interacting = true
	r.mu.Unlock()
}

// Update sets the in-progress value during an interaction.
func (r *Reconcilable[T]) Update(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interacting {
		r.local = v
	}
}

// Commit ends the interaction and ignores remote values for lock.
func (r *Reconcilable[T]) Commit(v T, lock time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = v
	r.interacting = false
	r.lockExpiry = r.now().Add(lock)
}

// Value returns the value to render.
func (r *Reconcilable[T]) Value() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local
}

// Remote returns the latest observed value, even if it was dropped.
func (r *Reconcilable[T]) Remote() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remote
}

// Locked reports whether remote observations are currently ignored.
func (r *Reconcilable[T]) Locked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interacting || r.now().Before(r.lockExpiry)
}

// Binding is what a slider or toggle consumes.
type Binding[T any] struct {
	RenderValue         func() T
	OnInteractionStart  func()
	OnInteractionCommit func(ctx context.Context, v T) error
}

// Bind exposes r as a Binding. send delivers the committed value.
func (r *Reconcilable[T]) Bind(lock time.Duration, send func(ctx context.Context, v T) error) Binding[T] {
	return Binding[T]{
		RenderValue:        r.Value,
		OnInteractionStart: r.BeginInteraction,
		OnInteractionCommit: func(ctx context.Context, v T) error {
			r.Commit(v, lock)
			if send == nil {
				return nil
			}
			return send(ctx, v)
		},
	}
}
