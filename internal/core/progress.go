package core

import (
	"context"
	"sync"
	"time"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

// EstimatePosition extrapolates the playback position of e at now. While
// playing, the time since the position was sampled is added, clamped to the
// track duration.
func EstimatePosition(e hub.Entity, now time.Time) (time.Duration, bool) {
	pos, ok := e.MediaPosition()
	if !ok {
		return 0, false
	}
	if e.IsPlaying() {
		if at, ok := e.MediaPositionUpdatedAt(); ok && now.After(at) {
			pos += now.Sub(at)
		}
	}
	if dur, ok := e.MediaDuration(); ok && dur > 0 && pos > dur {
		pos = dur
	}
	if pos < 0 {
		pos = 0
	}
	return pos, true
}

// Progress calls Tick on a fixed interval until suspended.
type Progress struct {
	Interval time.Duration
	Tick     func(now time.Time)

	mu        sync.Mutex
	suspended bool
	wake      chan struct{}
}

// NewProgress creates a progress ticker.
func NewProgress(interval time.Duration, tick func(now time.Time)) *Progress {
	if interval <= 0 {
		interval = time.Second
	}
	return &Progress{Interval: interval, Tick: tick, wake: make(chan struct{}, 1)}
}

// Run ticks until ctx is done.
func (p *Progress) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if !p.Suspended() {
				p.Tick(now)
			}
		case <-p.wake:
			if !p.Suspended() {
				p.Tick(time.Now())
			}
		}
	}
}

// Suspend stops ticks, e.g. while no client is watching.
func (p *Progress) Suspend() {
	p.mu.Lock()
	p.suspended = true
	p.mu.Unlock()
}

// Resume restarts ticks and fires one immediately to resynchronize.
func (p *Progress) Resume() {
	p.mu.Lock()
	was := p.suspended
	p.suspended = false
	p.mu.Unlock()
	if was {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Suspended reports whether ticks are paused.
func (p *Progress) Suspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}
