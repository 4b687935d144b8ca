package core

import (
	"testing"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

func selectorFixture() []hub.Entity {
	return []hub.Entity{
		player("media_player.b", hub.StatePlaying, nil),
		player("media_player.a", hub.StatePlaying, map[string]any{"group_members": []any{"media_player.b", "media_player.c"}}),
		player("media_player.c", hub.StateIdle, nil),
	}
}

func TestSelectActivePrefersPlayingGroup(t *testing.T) {
	kind := PlaybackConfig{}.WithDefaults().Kind
	if got := SelectActive(selectorFixture(), "", kind); got != "media_player.a" {
		t.Fatalf("expected group, got %s", got)
	}
}

func TestSelectActiveFallbacks(t *testing.T) {
	kind := PlaybackConfig{}.WithDefaults().Kind
	entities := []hub.Entity{
		player("media_player.x", hub.StateIdle, nil),
		player("media_player.y", hub.StatePlaying, nil),
	}
	if got := SelectActive(entities, "", kind); got != "media_player.y" {
		t.Fatalf("expected first playing, got %s", got)
	}
	entities[1].State = hub.StatePaused
	if got := SelectActive(entities, "", kind); got != "media_player.x" {
		t.Fatalf("expected first device, got %s", got)
	}
	if got := SelectActive(entities, "media_player.gone", kind); got != "media_player.x" {
		t.Fatalf("expected unknown override ignored, got %s", got)
	}
	if got := SelectActive(nil, "", kind); got != "" {
		t.Fatalf("expected empty, got %s", got)
	}
}

func TestSelectionAutoClearFrames(t *testing.T) {
	kind := PlaybackConfig{}.WithDefaults().Kind
	var persisted []string
	sel := NewSelection("media_player.c", func(v string) { persisted = append(persisted, v) })

	if got := sel.Evaluate(selectorFixture(), kind); got != "media_player.c" {
		t.Fatalf("pre-clear frame: expected override, got %s", got)
	}
	if sel.Override() != "" {
		t.Fatalf("expected override cleared after stale frame")
	}
	if got := sel.Evaluate(selectorFixture(), kind); got != "media_player.a" {
		t.Fatalf("post-clear frame: expected playing group, got %s", got)
	}
	if len(persisted) != 1 || persisted[0] != "" {
		t.Fatalf("expected one clear notification, got %v", persisted)
	}
}

func TestSelectionKeepsPlayingOverride(t *testing.T) {
	kind := PlaybackConfig{}.WithDefaults().Kind
	sel := NewSelection("media_player.b", nil)
	if got := sel.Evaluate(selectorFixture(), kind); got != "media_player.b" {
		t.Fatalf("expected override, got %s", got)
	}
	if sel.Override() != "media_player.b" {
		t.Fatalf("expected override kept")
	}
}

func TestSelectionKeepsOverrideWhenNothingPlays(t *testing.T) {
	entities := []hub.Entity{
		player("media_player.x", hub.StateIdle, nil),
		player("media_player.y", hub.StateOff, nil),
	}
	sel := NewSelection("media_player.y", nil)
	if got := sel.Evaluate(entities, nil); got != "media_player.y" {
		t.Fatalf("expected override, got %s", got)
	}
	if OverrideStale(entities, sel.Override()) {
		t.Fatalf("expected override not stale")
	}
}
