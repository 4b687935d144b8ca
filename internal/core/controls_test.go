package core

import (
	"context"
	"testing"
	"time"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

func TestControlsVolumeLockDropsStaleEcho(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{entities: testEntities("media_player.den")}
	c := NewControls("media_player.den", Dispatcher{Hub: h, Resolver: NewNameResolver(ResolverConfig{})}, ControlsConfig{}, clock.Now, nil)

	c.Observe(player("media_player.den", hub.StatePlaying, map[string]any{"volume_level": 0.2}))
	if c.Volume.Value() != 0.2 {
		t.Fatalf("expected observed volume")
	}

	if err := c.SetVolume(context.Background(), 0.6); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	calls := h.callsTo("media_player.volume_set")
	if len(calls) != 1 || calls[0].Data["volume_level"] != 0.6 {
		t.Fatalf("unexpected calls %+v", calls)
	}

	clock.Advance(2 * time.Second)
	if c.Observe(player("media_player.den", hub.StatePlaying, map[string]any{"volume_level": 0.2})) {
		t.Fatalf("expected stale echo dropped")
	}
	if c.Volume.Value() != 0.6 {
		t.Fatalf("expected committed volume kept, got %v", c.Volume.Value())
	}

	clock.Advance(time.Second)
	c.Observe(player("media_player.den", hub.StatePlaying, map[string]any{"volume_level": 0.55}))
	if c.Volume.Value() != 0.55 {
		t.Fatalf("expected remote volume after lock, got %v", c.Volume.Value())
	}
}

func TestControlsToggleUnsupportedIsSilent(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{entities: testEntities("media_player.tv")}
	h.failOn("media_player.shuffle_set", unsupported())
	c := NewControls("media_player.tv", Dispatcher{Hub: h}, ControlsConfig{}, clock.Now, nil)

	if err := c.ToggleShuffle(context.Background()); err != nil {
		t.Fatalf("expected unsupported swallowed, got %v", err)
	}
	if !c.Shuffle.Value() {
		t.Fatalf("expected optimistic flip")
	}
	clock.Advance(1500 * time.Millisecond)
	c.Observe(player("media_player.tv", hub.StateOn, map[string]any{"shuffle": false}))
	if c.Shuffle.Value() {
		t.Fatalf("expected self-correction after lock")
	}
}

func TestControlsCycleRepeat(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{}
	c := NewControls("media_player.den", Dispatcher{Hub: h}, ControlsConfig{}, clock.Now, nil)
	c.Observe(player("media_player.den", hub.StatePlaying, map[string]any{"repeat": "all"}))

	if err := c.CycleRepeat(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if c.Repeat.Value() != hub.RepeatOne {
		t.Fatalf("expected one, got %s", c.Repeat.Value())
	}
	if got := h.callsTo("media_player.repeat_set")[0].Data["repeat"]; got != "one" {
		t.Fatalf("unexpected payload %v", got)
	}
}
