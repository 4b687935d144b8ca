package remote

// Controls addressable by control.begin and control.commit.
const (
	ControlVolume  = "volume"
	ControlShuffle = "shuffle"
	ControlRepeat  = "repeat"
)

// PlayerBody addresses a player. An empty entity means the active player.
type PlayerBody struct {
	Entity string `json:"entity,omitempty"`
}

// ControlBeginBody starts an interaction with a control.
type ControlBeginBody struct {
	Entity  string `json:"entity,omitempty"`
	Control string `json:"control"`
}

// ControlCommitBody commits a control value. Value is a number for volume,
// a bool for shuffle and off|all|one for repeat. A nil value on a toggle
// flips or cycles it.
type ControlCommitBody struct {
	Entity  string `json:"entity,omitempty"`
	Control string `json:"control"`
	Value   any    `json:"value,omitempty"`
}

// ContentPlayBody asks the bridge to play content.
type ContentPlayBody struct {
	Entity  string `json:"entity,omitempty"`
	Content string `json:"content"`
	Kind    string `json:"kind,omitempty"`
}

// SessionTransferBody moves a session. An empty from means the active player.
type SessionTransferBody struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

// SelectionSetBody sets the manual override.
type SelectionSetBody struct {
	Entity string `json:"entity"`
}

// CatalogBrowseBody browses the hub catalog through a player.
type CatalogBrowseBody struct {
	Entity      string `json:"entity,omitempty"`
	ContentID   string `json:"contentId,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// ClientVisibilityBody reports whether a client is in the foreground.
type ClientVisibilityBody struct {
	Visible bool `json:"visible"`
}

// BridgeState is the retained state document.
type BridgeState struct {
	Connected bool          `json:"connected"`
	Active    string        `json:"active,omitempty"`
	Override  string        `json:"override,omitempty"`
	Players   []PlayerState `json:"players"`
	TS        int64         `json:"ts"`
}

// PlayerState is the render state of one player.
type PlayerState struct {
	Entity     string  `json:"entity"`
	Name       string  `json:"name"`
	State      string  `json:"state"`
	Kind       string  `json:"kind"`
	Target     string  `json:"target,omitempty"`
	Volume     float64 `json:"volume"`
	Shuffle    bool    `json:"shuffle"`
	Repeat     string  `json:"repeat"`
	Locked     bool    `json:"locked,omitempty"`
	Title      string  `json:"title,omitempty"`
	Artist     string  `json:"artist,omitempty"`
	Album      string  `json:"album,omitempty"`
	PositionMS int64   `json:"positionMs,omitempty"`
	DurationMS int64   `json:"durationMs,omitempty"`
	Picture    string  `json:"picture,omitempty"`
}

// PlayReply reports which strategy started playback.
type PlayReply struct {
	Strategy string `json:"strategy"`
	Target   string `json:"target"`
}

// TransferReply reports a transfer outcome.
type TransferReply struct {
	Moved    bool `json:"moved"`
	Replayed bool `json:"replayed"`
}
