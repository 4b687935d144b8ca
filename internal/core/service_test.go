package core

import (
	"context"
	"testing"
	"time"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

func serviceFixture() (Service, *stubHub, *memorySelectionStore) {
	clock := newFakeClock()
	h := &stubHub{
		clock: clock,
		entities: []hub.Entity{
			player("media_player.kitchen", hub.StatePlaying, map[string]any{
				"friendly_name": "Kitchen",
				"volume_level":  0.5,
				"shuffle":       false,
				"repeat":        "all",
			}),
			player("media_player.mass_kitchen", hub.StateIdle, map[string]any{"friendly_name": "Kitchen MA"}),
			player("media_player.den", hub.StateIdle, map[string]any{"friendly_name": "Den", "entity_picture": "/api/pic/den"}),
			player("light.hall", hub.StateOn, nil),
		},
	}
	store := &memorySelectionStore{}
	return Service{
		Hub:        h,
		Clock:      clock,
		Selections: store,
		Notifier:   &recordingNotifier{},
		Config:     Config{Aliases: map[string]string{"k": "media_player.kitchen"}},
	}, h, store
}

func TestServiceListPlayers(t *testing.T) {
	svc, _, _ := serviceFixture()
	res, err := svc.ListPlayers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Players) != 3 {
		t.Fatalf("expected media players only, got %d", len(res.Players))
	}
	if !res.Players[0].Active || res.Players[0].Target != "media_player.mass_kitchen" {
		t.Fatalf("unexpected first player %+v", res.Players[0])
	}
}

func TestServiceTransportUsesActivePlayer(t *testing.T) {
	svc, h, _ := serviceFixture()
	if err := svc.Pause(context.Background(), ""); err != nil {
		t.Fatalf("pause: %v", err)
	}
	names := h.callNames()
	if len(names) != 1 || names[0] != "media_player.media_pause@media_player.mass_kitchen" {
		t.Fatalf("unexpected calls %v", names)
	}
}

func TestServiceToggleByAlias(t *testing.T) {
	svc, h, _ := serviceFixture()
	if err := svc.Toggle(context.Background(), "k"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if len(h.callsTo("media_player.media_pause")) != 1 {
		t.Fatalf("expected pause for playing player")
	}
}

func TestServiceSelectAndAutoClear(t *testing.T) {
	svc, _, store := serviceFixture()
	if _, err := svc.Select(context.Background(), "den"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if store.id != "media_player.den" {
		t.Fatalf("expected persisted override")
	}

	active, err := svc.Active(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.Active != "media_player.den" || !active.Cleared {
		t.Fatalf("expected override frame then clear, got %+v", active)
	}
	if store.set {
		t.Fatalf("expected store cleared")
	}
	active, _ = svc.Active(context.Background())
	if active.Active != "media_player.kitchen" {
		t.Fatalf("expected playing player, got %s", active.Active)
	}
}

func TestServiceSetVolumeRelative(t *testing.T) {
	svc, h, _ := serviceFixture()
	if err := svc.SetVolume(context.Background(), "Kitchen", "+10", nil); err != nil {
		t.Fatalf("volume: %v", err)
	}
	got := h.callsTo("media_player.volume_set")[0].Data["volume_level"].(float64)
	if got < 0.599 || got > 0.601 {
		t.Fatalf("expected 0.6, got %v", got)
	}
	if err := svc.SetVolume(context.Background(), "Kitchen", "abc", nil); ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestServiceShuffleUnsupportedIsSilent(t *testing.T) {
	svc, h, _ := serviceFixture()
	h.failOn("media_player.shuffle_set", unsupported())
	if err := svc.SetShuffle(context.Background(), "den", "on"); err != nil {
		t.Fatalf("expected unsupported swallowed, got %v", err)
	}
}

func TestServiceRepeatCycles(t *testing.T) {
	svc, h, _ := serviceFixture()
	mode, err := svc.SetRepeat(context.Background(), "kitchen", "")
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if mode != hub.RepeatOne || h.callsTo("media_player.repeat_set")[0].Data["repeat"] != "one" {
		t.Fatalf("expected cycle to one, got %s", mode)
	}
}

func TestServicePlayContentExhausted(t *testing.T) {
	svc, h, _ := serviceFixture()
	h.failOn("music_assistant.play_media", errBoom)
	h.failOn("media_player.play_media", errBoom)
	_, err := svc.PlayContent(context.Background(), "den", "abc", "album")
	if ExitCode(err) != ExitUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if msgs := svc.Notifier.(*recordingNotifier).messages; len(msgs) != 1 || msgs[0] != PlaybackNotice {
		t.Fatalf("expected one notice, got %v", msgs)
	}
}

func TestServiceTransferDefaultsToActive(t *testing.T) {
	svc, h, store := serviceFixture()
	h.entities[0].Attributes["media_content_id"] = "spotify:track:T"

	res, err := svc.Transfer(context.Background(), "", "den")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.From != "media_player.kitchen" || !res.Moved {
		t.Fatalf("unexpected result %+v", res)
	}
	if store.id != "media_player.den" {
		t.Fatalf("expected selection persisted to target")
	}
	if len(h.callsTo("media_player.media_pause")) != 1 {
		t.Fatalf("expected source paused")
	}
}

func TestServiceStatusPicture(t *testing.T) {
	svc, _, _ := serviceFixture()
	res, err := svc.Status(context.Background(), "Den")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if res.PictureURL != "http://hub.local/api/pic/den" {
		t.Fatalf("unexpected picture %q", res.PictureURL)
	}
}

func TestServiceDisconnected(t *testing.T) {
	svc, h, _ := serviceFixture()
	h.disconnected = true
	if _, err := svc.ListPlayers(context.Background()); ExitCode(err) != ExitUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestParseSeekArg(t *testing.T) {
	tests := map[string]time.Duration{
		"90":    90 * time.Second,
		"1:30":  90 * time.Second,
		"1m30s": 90 * time.Second,
		"1:0:5": time.Hour + 5*time.Second,
	}
	for arg, want := range tests {
		got, err := parseSeekArg(arg)
		if err != nil || got != want {
			t.Fatalf("%s: expected %v got %v (%v)", arg, want, got, err)
		}
	}
	if _, err := parseSeekArg("x:1"); err == nil {
		t.Fatalf("expected error")
	}
}
