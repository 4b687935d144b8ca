package core

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

func transferFixture(clock *fakeClock) *stubHub {
	return &stubHub{
		clock: clock,
		entities: []hub.Entity{
			player("a.mass_livingroom", hub.StatePlaying, map[string]any{
				"group_members":      []any{"a.mass_kitchen", "a.mass_den"},
				"media_content_id":   "spotify:track:T",
				"media_content_type": "music",
			}),
			player("b.hub_kidsroom", hub.StateIdle, nil),
		},
	}
}

func newTestTransfer(h *stubHub, clock *fakeClock, sel *Selection) TransferController {
	resolver := NewNameResolver(ResolverConfig{})
	return TransferController{
		Hub:        h,
		Dispatcher: Dispatcher{Hub: h, Resolver: resolver},
		Resolver:   resolver,
		Clock:      clock,
		Selection:  sel,
	}
}

func TestTransfer_EndToEnd(t *testing.T) {
	clock := newFakeClock()
	h := transferFixture(clock)
	sel := NewSelection("a.mass_livingroom", nil)
	var selectionAtFirstCall string
	h.onCall = func(call hubCall) {
		if selectionAtFirstCall == "" {
			selectionAtFirstCall = sel.Override()
		}
	}
	start := clock.Now()

	result := newTestTransfer(h, clock, sel).Transfer(context.Background(), "a.mass_livingroom", "b.hub_kidsroom")

	if selectionAtFirstCall != "b.hub_kidsroom" || sel.Override() != "b.hub_kidsroom" {
		t.Fatalf("expected selection switched before calls, got %q then %q", selectionAtFirstCall, sel.Override())
	}
	if !result.Moved || !result.Woke || !result.Replayed {
		t.Fatalf("unexpected result %+v", result)
	}
	want := []string{
		"media_player.turn_on@b.hub_kidsroom",
		"music_assistant.play_media@b.hub_kidsroom",
		"media_player.media_pause@a.mass_livingroom",
	}
	if names := h.callNames(); !slices.Equal(names, want) {
		t.Fatalf("expected calls %v, got %v", want, names)
	}

	play := h.callsTo("music_assistant.play_media")[0]
	if play.Data["media_id"] != "spotify:track:T" {
		t.Fatalf("unexpected media id %v", play.Data["media_id"])
	}
	pause := h.callsTo("media_player.media_pause")[0]
	if pause.At.Sub(play.At) != defaultSettle {
		t.Fatalf("expected settle %s before pause, got %s", defaultSettle, pause.At.Sub(play.At))
	}
	if !pause.At.Equal(start.Add(defaultWarmup + defaultSettle)) {
		t.Fatalf("unexpected pause time %s", pause.At)
	}
	if err := result.Err(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestTransfer_ReplayFailuresStillPauseSource(t *testing.T) {
	clock := newFakeClock()
	h := transferFixture(clock)
	h.failOn("music_assistant.play_media", errBoom)
	h.failOn("media_player.play_media", unsupported())
	sel := NewSelection("", nil)

	result := newTestTransfer(h, clock, sel).Transfer(context.Background(), "a.mass_livingroom", "b.hub_kidsroom")

	if sel.Override() != "b.hub_kidsroom" {
		t.Fatalf("selection rolled back to %q", sel.Override())
	}
	if result.Replayed {
		t.Fatalf("expected replay failure")
	}
	want := []string{
		"media_player.turn_on@b.hub_kidsroom",
		"music_assistant.play_media@b.hub_kidsroom",
		"media_player.play_media@b.hub_kidsroom",
		"media_player.media_pause@a.mass_livingroom",
	}
	if names := h.callNames(); !slices.Equal(names, want) {
		t.Fatalf("expected calls %v, got %v", want, names)
	}
	if id := h.callsTo("media_player.play_media")[0].Data["media_content_id"]; id != "spotify:track:T" {
		t.Fatalf("unexpected generic replay id %v", id)
	}
	if !errors.Is(result.Err(), errBoom) {
		t.Fatalf("expected replay error recorded, got %v", result.Err())
	}
}

func TestTransfer_PauseFailureSwallowed(t *testing.T) {
	clock := newFakeClock()
	h := transferFixture(clock)
	h.failOn("media_player.media_pause", errBoom)
	sel := NewSelection("", nil)

	result := newTestTransfer(h, clock, sel).Transfer(context.Background(), "a.mass_livingroom", "b.hub_kidsroom")

	if !result.Replayed || sel.Override() != "b.hub_kidsroom" {
		t.Fatalf("unexpected result %+v selection %q", result, sel.Override())
	}
	if last := result.Attempts[len(result.Attempts)-1]; !errors.Is(last.Err, errBoom) {
		t.Fatalf("expected pause error recorded, got %v", last.Err)
	}
}

func TestTransfer_NothingToMove(t *testing.T) {
	clock := newFakeClock()
	h := transferFixture(clock)
	h.entities[0].State = hub.StateIdle
	sel := NewSelection("", nil)

	result := newTestTransfer(h, clock, sel).Transfer(context.Background(), "a.mass_livingroom", "b.hub_kidsroom")

	if result.Moved || sel.Override() != "b.hub_kidsroom" {
		t.Fatalf("unexpected result %+v selection %q", result, sel.Override())
	}
	if len(h.calls) != 0 || len(clock.sleeps) != 0 {
		t.Fatalf("expected no calls or waits, got %v %v", h.callNames(), clock.sleeps)
	}
}

func TestTransfer_ResolvesReplayTarget(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{
		clock: clock,
		entities: []hub.Entity{
			player("media_player.office", hub.StatePaused, map[string]any{"media_content_id": "spotify:album:Z"}),
			player("media_player.kitchen", hub.StatePlaying, nil),
			player("media_player.mass_kitchen", hub.StateIdle, nil),
		},
	}
	result := newTestTransfer(h, clock, NewSelection("", nil)).Transfer(context.Background(), "media_player.office", "media_player.kitchen")

	if result.Woke {
		t.Fatalf("playing target should not be woken")
	}
	play := h.callsTo("music_assistant.play_media")[0]
	if play.Target != "media_player.mass_kitchen" || play.Data["media_type"] != "music" {
		t.Fatalf("unexpected replay %+v", play)
	}
}
