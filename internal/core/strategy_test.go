package core

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

func newTestChain(h *stubHub, clock *fakeClock, cfg PlaybackConfig) (Chain, *recordingNotifier) {
	notifier := &recordingNotifier{}
	resolver := NewNameResolver(ResolverConfig{})
	return Chain{
		Hub:        h,
		Dispatcher: Dispatcher{Hub: h, Resolver: resolver},
		Resolver:   resolver,
		Clock:      clock,
		Notifier:   notifier,
		Config:     cfg,
	}, notifier
}

func TestChain_AlternateSuccessShortCircuits(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{
		clock: clock,
		entities: []hub.Entity{
			player("media_player.nest_kitchen", hub.StatePaused, map[string]any{"friendly_name": "Kitchen"}),
			player("media_player.mass_kitchen", hub.StateIdle, nil),
			player("media_player.spotify_me", hub.StateIdle, map[string]any{"source_list": []any{"Kitchen"}}),
		},
	}
	chain, notifier := newTestChain(h, clock, PlaybackConfig{BridgeEntity: "media_player.spotify_me"})

	result := chain.Play(context.Background(), PlaybackIntent{Target: "media_player.nest_kitchen", Content: "pl1", Kind: KindPlaylist})

	if !result.OK() || result.Strategy != StrategyAlternatePlayMedia || result.Target != "media_player.mass_kitchen" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Attempts) != 1 || result.Err() != nil {
		t.Fatalf("expected one clean attempt, got %+v", result.Attempts)
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("unexpected notices %v", notifier.messages)
	}

	calls := h.callsTo("music_assistant.play_media")
	if len(calls) != 1 {
		t.Fatalf("expected one alternate call, got %d", len(calls))
	}
	if calls[0].Data["media_id"] != "spotify:playlist:pl1" || calls[0].Data["enqueue"] != "replace" {
		t.Fatalf("unexpected payload %+v", calls[0].Data)
	}
	for _, name := range []string{"spotcast.start", "media_player.select_source", "media_player.play_media"} {
		if n := len(h.callsTo(name)); n != 0 {
			t.Fatalf("later strategy %s invoked %d times", name, n)
		}
	}
	// Paused devices are warm.
	if len(h.callsTo("media_player.turn_on")) != 0 || len(clock.sleeps) != 0 {
		t.Fatalf("unexpected wake-up")
	}
}

func TestChain_GroupTriedFirst(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{
		clock: clock,
		entities: []hub.Entity{
			player("media_player.mass_everywhere", hub.StatePlaying, map[string]any{
				"group_members": []any{"media_player.mass_a", "media_player.mass_b"},
			}),
		},
	}
	chain, _ := newTestChain(h, clock, PlaybackConfig{})

	result := chain.Play(context.Background(), PlaybackIntent{Target: "media_player.mass_everywhere", Content: "spotify:album:x"})

	if result.Strategy != StrategyGroupPlayMedia {
		t.Fatalf("expected group strategy, got %q", result.Strategy)
	}
	want := []string{"media_player.play_media@media_player.mass_everywhere"}
	if names := h.callNames(); !slices.Equal(names, want) {
		t.Fatalf("expected calls %v, got %v", want, names)
	}
}

func TestChain_ColdTargetWakesWithWarmup(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{
		clock:    clock,
		entities: []hub.Entity{player("media_player.den", hub.StateOff, nil)},
	}
	chain, _ := newTestChain(h, clock, PlaybackConfig{})

	result := chain.Play(context.Background(), PlaybackIntent{Target: "media_player.den", Content: "t1", Kind: KindTrack})

	if !result.OK() {
		t.Fatalf("expected success, got %v", result.Err())
	}
	want := []string{"media_player.turn_on@media_player.den", "music_assistant.play_media@media_player.den"}
	if names := h.callNames(); !slices.Equal(names, want) {
		t.Fatalf("expected calls %v, got %v", want, names)
	}
	if len(clock.sleeps) == 0 || clock.sleeps[0] != defaultWarmup {
		t.Fatalf("expected warm-up %s, got %v", defaultWarmup, clock.sleeps)
	}
	if gap := h.calls[1].At.Sub(h.calls[0].At); gap < defaultWarmup {
		t.Fatalf("play issued %s after wake", gap)
	}
}

func TestChain_CastTargetUsesLongWarmup(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{clock: clock}
	h.failOn("music_assistant.play_media", unsupported())
	chain, _ := newTestChain(h, clock, PlaybackConfig{})

	result := chain.Play(context.Background(), PlaybackIntent{Target: "media_player.nest_hub_office", Content: "pl"})

	if result.Strategy != StrategyCastStart {
		t.Fatalf("expected cast strategy, got %q", result.Strategy)
	}
	if len(clock.sleeps) == 0 || clock.sleeps[0] != defaultGroupWarmup {
		t.Fatalf("expected warm-up %s, got %v", defaultGroupWarmup, clock.sleeps)
	}
	calls := h.callsTo("spotcast.start")
	if len(calls) != 1 || calls[0].Data["device_name"] != "nest hub office" {
		t.Fatalf("unexpected cast calls %+v", calls)
	}
}

func TestChain_BridgeSourceMatch(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{
		clock: clock,
		entities: []hub.Entity{
			player("media_player.bathroom", hub.StatePlaying, map[string]any{"friendly_name": "Bathroom"}),
			player("media_player.spotify_me", hub.StateIdle, map[string]any{"source_list": []any{"Office", "Bathroom Speaker"}}),
		},
	}
	h.failOn("music_assistant.play_media", errBoom)
	chain, _ := newTestChain(h, clock, PlaybackConfig{BridgeEntity: "media_player.spotify_me"})

	result := chain.Play(context.Background(), PlaybackIntent{Target: "media_player.bathroom", Content: "pl"})

	if result.Strategy != StrategyBridgeSourcePlay || len(result.Attempts) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !errors.Is(result.Attempts[0].Err, errBoom) {
		t.Fatalf("expected first attempt to record failure, got %v", result.Attempts[0].Err)
	}
	sel := h.callsTo("media_player.select_source")
	if len(sel) != 1 || sel[0].Data["source"] != "Bathroom Speaker" {
		t.Fatalf("unexpected source selection %+v", sel)
	}
	if target := h.callsTo("media_player.play_media")[0].Target; target != "media_player.spotify_me" {
		t.Fatalf("expected play on bridge entity, got %s", target)
	}
}

func TestChain_DeepLinkRetriesRawURI(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{
		clock:    clock,
		entities: []hub.Entity{player("media_player.tv", hub.StateOn, nil)},
	}
	h.failOn("music_assistant.play_media", unsupported())
	failLink := true
	h.onCall = func(call hubCall) {
		if call.Name() == "media_player.play_media" && failLink {
			failLink = false
			h.failOn("media_player.play_media", errBoom)
			return
		}
		delete(h.failures, "media_player.play_media")
	}
	chain, _ := newTestChain(h, clock, PlaybackConfig{})

	result := chain.Play(context.Background(), PlaybackIntent{Target: "media_player.tv", Content: "tr", Kind: KindTrack})

	if result.Strategy != StrategyDeepLinkPlay {
		t.Fatalf("expected deep link strategy, got %q", result.Strategy)
	}
	plays := h.callsTo("media_player.play_media")
	if len(plays) != 2 {
		t.Fatalf("expected two play_media calls, got %d", len(plays))
	}
	if plays[0].Data["media_content_id"] != "https://open.spotify.com/track/tr" || plays[1].Data["media_content_id"] != "spotify:track:tr" {
		t.Fatalf("unexpected retry order %v, %v", plays[0].Data["media_content_id"], plays[1].Data["media_content_id"])
	}
}

func TestChain_ExhaustedNotifiesOnce(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{
		clock:    clock,
		entities: []hub.Entity{player("media_player.tv", hub.StateOn, nil)},
	}
	h.failOn("music_assistant.play_media", errBoom)
	h.failOn("media_player.play_media", unsupported())
	chain, notifier := newTestChain(h, clock, PlaybackConfig{})

	result := chain.Play(context.Background(), PlaybackIntent{Target: "media_player.tv", Content: "x"})

	if result.OK() || len(result.Attempts) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if err := result.Err(); !errors.Is(err, ErrPlaybackFailed) || !errors.Is(err, errBoom) {
		t.Fatalf("expected exhaustion wrapping failures, got %v", err)
	}
	if !slices.Equal(notifier.messages, []string{PlaybackNotice}) {
		t.Fatalf("expected one notice, got %v", notifier.messages)
	}
	if n := len(h.callsTo("media_player.play_media")); n != 2 {
		t.Fatalf("expected https then raw attempt, got %d", n)
	}
}

func TestChain_DisconnectedExhausts(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{clock: clock, disconnected: true}
	chain, notifier := newTestChain(h, clock, PlaybackConfig{})

	result := chain.Play(context.Background(), PlaybackIntent{Target: "media_player.tv", Content: "x"})

	if result.OK() || len(notifier.messages) != 1 {
		t.Fatalf("expected exhaustion with one notice, got %+v %v", result, notifier.messages)
	}
	for _, a := range result.Attempts {
		if !errors.Is(a.Err, ErrNotConnected) {
			t.Fatalf("expected not connected, got %v", a.Err)
		}
	}
	if len(h.calls) != 0 {
		t.Fatalf("expected no hub calls, got %v", h.callNames())
	}
}

func TestChain_InvalidContentNotifies(t *testing.T) {
	clock := newFakeClock()
	h := &stubHub{clock: clock}
	chain, notifier := newTestChain(h, clock, PlaybackConfig{})

	result := chain.Play(context.Background(), PlaybackIntent{Target: "media_player.tv", Content: ""})

	if result.OK() || len(result.Attempts) != 0 || result.Err() == nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(notifier.messages) != 1 || len(h.calls) != 0 {
		t.Fatalf("expected a notice and no calls, got %v %v", notifier.messages, h.callNames())
	}
}
