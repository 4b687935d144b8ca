package hub

import (
	"strings"
	"time"
)

// Entity states reported by the hub. Which ones apply depends on the domain.
const (
	StatePlaying     = "playing"
	StatePaused      = "paused"
	StateIdle        = "idle"
	StateOn          = "on"
	StateOff         = "off"
	StateStandby     = "standby"
	StateBuffering   = "buffering"
	StateUnavailable = "unavailable"
	StateUnknown     = "unknown"
	StateLocked      = "locked"
	StateUnlocked    = "unlocked"
	StateOpen        = "open"
	StateClosed      = "closed"
)

// Attribute keys used by media players.
const (
	AttrFriendlyName           = "friendly_name"
	AttrVolumeLevel            = "volume_level"
	AttrIsVolumeMuted          = "is_volume_muted"
	AttrShuffle                = "shuffle"
	AttrRepeat                 = "repeat"
	AttrMediaTitle             = "media_title"
	AttrMediaArtist            = "media_artist"
	AttrMediaAlbumName         = "media_album_name"
	AttrMediaDuration          = "media_duration"
	AttrMediaPosition          = "media_position"
	AttrMediaPositionUpdatedAt = "media_position_updated_at"
	AttrAppName                = "app_name"
	AttrMediaContentID         = "media_content_id"
	AttrMediaContentType       = "media_content_type"
	AttrEntityPicture          = "entity_picture"
	AttrSource                 = "source"
	AttrSourceList             = "source_list"
	AttrGroupMembers           = "group_members"
)

// RepeatMode is the repeat setting of a media player.
type RepeatMode string

// Repeat modes.
const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// Next cycles off -> all -> one -> off.
func (r RepeatMode) Next() RepeatMode {
	switch r {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// ParseRepeatMode parses a repeat mode, accepting a few common spellings.
func ParseRepeatMode(s string) (RepeatMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "false":
		return RepeatOff, true
	case "all", "on", "true":
		return RepeatAll, true
	case "one", "single", "track":
		return RepeatOne, true
	default:
		return "", false
	}
}

// Entity is a device reported by the hub.
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Domain returns the namespace portion of the entity id.
func (e Entity) Domain() string {
	if idx := strings.Index(e.EntityID, "."); idx >= 0 {
		return e.EntityID[:idx]
	}
	return ""
}

// FriendlyName returns the display name, falling back to the entity id.
func (e Entity) FriendlyName() string {
	if name := e.stringAttr(AttrFriendlyName); name != "" {
		return name
	}
	return e.EntityID
}

// VolumeLevel returns the volume in [0,1].
func (e Entity) VolumeLevel() (float64, bool) {
	return e.floatAttr(AttrVolumeLevel)
}

// Muted reports whether the player is muted.
func (e Entity) Muted() bool {
	v, _ := e.Attributes[AttrIsVolumeMuted].(bool)
	return v
}

// Shuffle returns the shuffle flag.
func (e Entity) Shuffle() (bool, bool) {
	v, ok := e.Attributes[AttrShuffle].(bool)
	return v, ok
}

// Repeat returns the repeat mode.
func (e Entity) Repeat() (RepeatMode, bool) {
	raw := e.stringAttr(AttrRepeat)
	if raw == "" {
		return "", false
	}
	return ParseRepeatMode(raw)
}

func (e Entity) MediaTitle() string       { return e.stringAttr(AttrMediaTitle) }
func (e Entity) MediaArtist() string      { return e.stringAttr(AttrMediaArtist) }
func (e Entity) MediaAlbumName() string   { return e.stringAttr(AttrMediaAlbumName) }
func (e Entity) AppName() string          { return e.stringAttr(AttrAppName) }
func (e Entity) MediaContentID() string   { return e.stringAttr(AttrMediaContentID) }
func (e Entity) MediaContentType() string { return e.stringAttr(AttrMediaContentType) }
func (e Entity) EntityPicture() string    { return e.stringAttr(AttrEntityPicture) }
func (e Entity) Source() string           { return e.stringAttr(AttrSource) }

// MediaDuration returns the track duration.
func (e Entity) MediaDuration() (time.Duration, bool) {
	secs, ok := e.floatAttr(AttrMediaDuration)
	if !ok {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// MediaPosition returns the last reported playback position.
func (e Entity) MediaPosition() (time.Duration, bool) {
	secs, ok := e.floatAttr(AttrMediaPosition)
	if !ok {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// MediaPositionUpdatedAt returns when the position was sampled.
func (e Entity) MediaPositionUpdatedAt() (time.Time, bool) {
	raw := e.stringAttr(AttrMediaPositionUpdatedAt)
	if raw == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// SourceList returns the selectable input sources.
func (e Entity) SourceList() []string {
	return e.stringSliceAttr(AttrSourceList)
}

// GroupMembers returns the member entity ids of a group player.
func (e Entity) GroupMembers() []string {
	return e.stringSliceAttr(AttrGroupMembers)
}

// IsPlaying reports whether the entity is playing.
func (e Entity) IsPlaying() bool {
	return e.State == StatePlaying
}

func (e Entity) stringAttr(key string) string {
	v, _ := e.Attributes[key].(string)
	return v
}

func (e Entity) floatAttr(key string) (float64, bool) {
	switch v := e.Attributes[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func (e Entity) stringSliceAttr(key string) []string {
	switch v := e.Attributes[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// FindEntity returns the entity with id from entities.
func FindEntity(entities []Entity, id string) (Entity, bool) {
	for _, e := range entities {
		if e.EntityID == id {
			return e, true
		}
	}
	return Entity{}, false
}
