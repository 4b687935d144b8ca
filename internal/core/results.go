package core

import (
	"time"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

// PlayerInfo summarizes a media player for listings.
type PlayerInfo struct {
	EntityID string     `json:"entity_id"`
	Name     string     `json:"name"`
	State    string     `json:"state"`
	Kind     PlayerKind `json:"kind"`
	Target   string     `json:"target,omitempty"`
	Active   bool       `json:"active"`
	Override bool       `json:"override"`
	Volume   *float64   `json:"volume,omitempty"`
	Title    string     `json:"title,omitempty"`
	Artist   string     `json:"artist,omitempty"`
}

// PlayersResult holds a list of players.
type PlayersResult struct {
	Players []PlayerInfo `json:"players"`
}

// StatusResult holds one player's state.
type StatusResult struct {
	Player     PlayerInfo    `json:"player"`
	Entity     hub.Entity    `json:"entity"`
	Position   time.Duration `json:"position"`
	Duration   time.Duration `json:"duration"`
	PictureURL string        `json:"picture_url,omitempty"`
}

// ActiveResult reports the active player and the override behind it.
type ActiveResult struct {
	Active   string `json:"active"`
	Override string `json:"override,omitempty"`
	Cleared  bool   `json:"cleared"`
}

// BrowseResultView holds a catalog page.
type BrowseResultView struct {
	EntityID string           `json:"entity_id"`
	Result   hub.BrowseResult `json:"result"`
}
