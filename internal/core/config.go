package core

import (
	"strings"
	"time"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

// Config is runtime configuration shared by the CLI and the daemon.
type Config struct {
	HubURL   string
	Token    string
	Aliases  map[string]string
	Resolver ResolverConfig
	Playback PlaybackConfig
}

// ResolverConfig tunes logical player resolution.
type ResolverConfig struct {
	Overrides         map[string]string
	PrimaryPrefix     string
	AlternatePrefixes []string
	StripPrefixes     []string
}

// PlaybackConfig tunes the strategy chain and session transfer.
type PlaybackConfig struct {
	CastMarkers   []string
	GroupMarkers  []string
	BridgeEntity  string
	ContentScheme string
	DeepLinkHost  string
	Warmup        time.Duration
	GroupWarmup   time.Duration
	Settle        time.Duration
}

const (
	defaultPrimaryPrefix = "media_player."
	defaultContentScheme = "spotify"
	defaultDeepLinkHost  = "open.spotify.com"
	defaultWarmup        = 1500 * time.Millisecond
	defaultGroupWarmup   = 3 * time.Second
	defaultSettle        = 2 * time.Second
)

var (
	defaultAlternatePrefixes = []string{"media_player.mass_", "media_player.ma_"}
	defaultStripPrefixes     = []string{"sonos_", "echo_", "alexa_", "google_", "nest_", "chromecast_", "spotify_", "the_"}
	defaultCastMarkers       = []string{"nest", "google", "chromecast", "cast", "home_mini", "home_hub"}
	defaultGroupMarkers      = []string{"group", "everywhere", "all_speakers"}
)

// WithDefaults fills unset fields.
func (c ResolverConfig) WithDefaults() ResolverConfig {
	if c.Overrides == nil {
		c.Overrides = map[string]string{}
	}
	if c.PrimaryPrefix == "" {
		c.PrimaryPrefix = defaultPrimaryPrefix
	}
	if len(c.AlternatePrefixes) == 0 {
		c.AlternatePrefixes = append([]string(nil), defaultAlternatePrefixes...)
	}
	if c.StripPrefixes == nil {
		c.StripPrefixes = append([]string(nil), defaultStripPrefixes...)
	}
	return c
}

// WithDefaults fills unset fields.
func (c PlaybackConfig) WithDefaults() PlaybackConfig {
	if c.CastMarkers == nil {
		c.CastMarkers = append([]string(nil), defaultCastMarkers...)
	}
	if c.GroupMarkers == nil {
		c.GroupMarkers = append([]string(nil), defaultGroupMarkers...)
	}
	if c.ContentScheme == "" {
		c.ContentScheme = defaultContentScheme
	}
	if c.DeepLinkHost == "" {
		c.DeepLinkHost = defaultDeepLinkHost
	}
	if c.Warmup <= 0 {
		c.Warmup = defaultWarmup
	}
	if c.GroupWarmup <= 0 {
		c.GroupWarmup = defaultGroupWarmup
	}
	if c.Settle <= 0 {
		c.Settle = defaultSettle
	}
	return c
}

// PlayerKind classifies a media player.
type PlayerKind string

const (
	KindSpeaker PlayerKind = "speaker"
	KindGroup   PlayerKind = "group"
	KindTV      PlayerKind = "tv"
)

// KindFunc classifies an entity.
type KindFunc func(hub.Entity) PlayerKind

// IsGroupID reports whether an id names a group by convention.
func (c PlaybackConfig) IsGroupID(entityID string) bool {
	return containsAny(entityID, c.GroupMarkers)
}

// IsCastID reports whether an id plausibly names a cast-style device.
func (c PlaybackConfig) IsCastID(entityID string) bool {
	return containsAny(entityID, c.CastMarkers)
}

// Kind classifies an entity as a group, tv or speaker.
func (c PlaybackConfig) Kind(e hub.Entity) PlayerKind {
	if len(e.GroupMembers()) > 1 || c.IsGroupID(e.EntityID) {
		return KindGroup
	}
	if class, _ := e.Attributes["device_class"].(string); class == "tv" {
		return KindTV
	}
	return KindSpeaker
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
