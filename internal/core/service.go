package core

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/internal/ports"
	"github.com/mikey-austin/media_remote/pkg/hub"
)

// Service orchestrates mr CLI use cases.
type Service struct {
	Hub        ports.Hub
	Resolver   TargetResolver
	Clock      ports.Clock
	Selections ports.SelectionStore
	Notifier   ports.Notifier
	Config     Config
	Logger     *zap.Logger
}

// ListPlayers returns every media player with the active one marked.
func (s Service) ListPlayers(ctx context.Context) (PlayersResult, error) {
	players, err := s.players(ctx)
	if err != nil {
		return PlayersResult{}, err
	}
	sel, err := s.selection()
	if err != nil {
		return PlayersResult{}, err
	}
	override := sel.Override()
	active := sel.Evaluate(players, s.kind())

	out := make([]PlayerInfo, 0, len(players))
	for _, e := range players {
		info := s.playerInfo(e, players)
		info.Active = e.EntityID == active
		info.Override = e.EntityID == override
		out = append(out, info)
	}
	return PlayersResult{Players: out}, nil
}

// Active evaluates the active player, clearing a stale override.
func (s Service) Active(ctx context.Context) (ActiveResult, error) {
	players, err := s.players(ctx)
	if err != nil {
		return ActiveResult{}, err
	}
	sel, err := s.selection()
	if err != nil {
		return ActiveResult{}, err
	}
	before := sel.Override()
	active := sel.Evaluate(players, s.kind())
	return ActiveResult{Active: active, Override: before, Cleared: before != "" && sel.Override() == ""}, nil
}

// Select sets the manual override.
func (s Service) Select(ctx context.Context, selector string) (ActiveResult, error) {
	players, err := s.players(ctx)
	if err != nil {
		return ActiveResult{}, err
	}
	e, err := ResolvePlayer(selector, players, s.Config.Aliases)
	if err != nil {
		return ActiveResult{}, err
	}
	if s.Selections != nil {
		if err := s.Selections.Put(e.EntityID); err != nil {
			return ActiveResult{}, WrapError(ExitRuntime, "store selection", err)
		}
	}
	return ActiveResult{Active: e.EntityID, Override: e.EntityID}, nil
}

// ClearSelection drops the manual override.
func (s Service) ClearSelection(ctx context.Context) error {
	if s.Selections == nil {
		return nil
	}
	if err := s.Selections.Clear(); err != nil {
		return WrapError(ExitRuntime, "clear selection", err)
	}
	return nil
}

// Status returns one player's state. An empty selector means the active player.
func (s Service) Status(ctx context.Context, selector string) (StatusResult, error) {
	e, players, err := s.target(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	return s.status(e, players), nil
}

// WatchStatus streams status updates for a player.
func (s Service) WatchStatus(ctx context.Context, selector string) (<-chan StatusResult, <-chan error, error) {
	e, players, err := s.target(ctx, selector)
	if err != nil {
		return nil, nil, err
	}
	updates, errs := s.Hub.Watch(ctx)
	out := make(chan StatusResult)
	go func() {
		defer close(out)
		select {
		case out <- s.status(e, players):
		case <-ctx.Done():
			return
		}
		for update := range updates {
			if update.EntityID != e.EntityID {
				continue
			}
			select {
			case out <- s.status(update, players):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errs, nil
}

// Play resumes playback.
func (s Service) Play(ctx context.Context, selector string) error {
	return s.transport(ctx, selector, "media_play", nil)
}

// Pause pauses playback.
func (s Service) Pause(ctx context.Context, selector string) error {
	return s.transport(ctx, selector, "media_pause", nil)
}

// Stop stops playback.
func (s Service) Stop(ctx context.Context, selector string) error {
	return s.transport(ctx, selector, "media_stop", nil)
}

// Next skips to the next track.
func (s Service) Next(ctx context.Context, selector string) error {
	return s.transport(ctx, selector, "media_next_track", nil)
}

// Prev skips to the previous track.
func (s Service) Prev(ctx context.Context, selector string) error {
	return s.transport(ctx, selector, "media_previous_track", nil)
}

// Toggle pauses a playing player and resumes any other.
func (s Service) Toggle(ctx context.Context, selector string) error {
	e, _, err := s.target(ctx, selector)
	if err != nil {
		return err
	}
	action := "media_play"
	if e.IsPlaying() {
		action = "media_pause"
	}
	return s.dispatch(ctx, e.EntityID, action, nil)
}

// Seek moves to an absolute or relative position.
func (s Service) Seek(ctx context.Context, selector string, arg string) error {
	e, _, err := s.target(ctx, selector)
	if err != nil {
		return err
	}
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return &CLIError{Code: ExitUsage, Msg: "seek position required"}
	}
	var position time.Duration
	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		delta, err := parseSeekArg(arg[1:])
		if err != nil {
			return err
		}
		if arg[0] == '-' {
			delta = -delta
		}
		current, _ := EstimatePosition(e, s.now())
		position = current + delta
	} else {
		position, err = parseSeekArg(arg)
		if err != nil {
			return err
		}
	}
	if position < 0 {
		position = 0
	}
	return s.dispatch(ctx, e.EntityID, "media_seek", map[string]any{"seek_position": position.Seconds()})
}

// SetVolume sets or adjusts volume. Values are percentages; a leading + or -
// adjusts relative to the current level.
func (s Service) SetVolume(ctx context.Context, selector string, arg string, mute *bool) error {
	e, _, err := s.target(ctx, selector)
	if err != nil {
		return err
	}
	if mute != nil {
		return s.dispatch(ctx, e.EntityID, "volume_mute", map[string]any{"is_volume_muted": *mute})
	}
	level, err := resolveVolume(e, arg)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, e.EntityID, "volume_set", map[string]any{"volume_level": level})
}

// SetShuffle sets shuffle to on, off or the opposite of its current value.
func (s Service) SetShuffle(ctx context.Context, selector string, mode string) error {
	e, _, err := s.target(ctx, selector)
	if err != nil {
		return err
	}
	var value bool
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "on", "true":
		value = true
	case "off", "false":
		value = false
	case "", "toggle":
		current, _ := e.Shuffle()
		value = !current
	default:
		return &CLIError{Code: ExitUsage, Msg: "shuffle mode must be on, off or toggle"}
	}
	return s.dispatch(ctx, e.EntityID, "shuffle_set", map[string]any{"shuffle": value})
}

// SetRepeat sets repeat. An empty mode cycles off, all, one.
func (s Service) SetRepeat(ctx context.Context, selector string, mode string) (hub.RepeatMode, error) {
	e, _, err := s.target(ctx, selector)
	if err != nil {
		return "", err
	}
	var value hub.RepeatMode
	if strings.TrimSpace(mode) == "" {
		current, _ := e.Repeat()
		if current == "" {
			current = hub.RepeatOff
		}
		value = current.Next()
	} else {
		parsed, ok := hub.ParseRepeatMode(mode)
		if !ok {
			return "", &CLIError{Code: ExitUsage, Msg: "repeat mode must be off, all or one"}
		}
		value = parsed
	}
	return value, s.dispatch(ctx, e.EntityID, "repeat_set", map[string]any{"repeat": string(value)})
}

// PlayContent runs the strategy chain for content on a player.
func (s Service) PlayContent(ctx context.Context, selector string, content string, kind string) (ChainResult, error) {
	parsedKind, err := ParseContentKind(kind)
	if err != nil {
		return ChainResult{}, err
	}
	e, _, err := s.target(ctx, selector)
	if err != nil {
		return ChainResult{}, err
	}
	result := s.chain().Play(ctx, PlaybackIntent{Target: e.EntityID, Content: content, Kind: parsedKind})
	if !result.OK() {
		return result, WrapError(ExitUnavailable, PlaybackNotice, result.Err())
	}
	return result, nil
}

// Transfer moves the session on from to to. An empty from means the active
// player.
func (s Service) Transfer(ctx context.Context, fromSelector, toSelector string) (TransferResult, error) {
	players, err := s.players(ctx)
	if err != nil {
		return TransferResult{}, err
	}
	sel, err := s.selection()
	if err != nil {
		return TransferResult{}, err
	}
	var from hub.Entity
	if strings.TrimSpace(fromSelector) == "" {
		active := SelectActive(players, sel.Override(), s.kind())
		if active == "" {
			return TransferResult{}, &CLIError{Code: ExitNotFound, Msg: "no players"}
		}
		from, _ = hub.FindEntity(players, active)
	} else if from, err = ResolvePlayer(fromSelector, players, s.Config.Aliases); err != nil {
		return TransferResult{}, err
	}
	to, err := ResolvePlayer(toSelector, players, s.Config.Aliases)
	if err != nil {
		return TransferResult{}, err
	}
	if from.EntityID == to.EntityID {
		return TransferResult{}, &CLIError{Code: ExitUsage, Msg: "source and target are the same player"}
	}

	ctrl := TransferController{
		Hub:        s.Hub,
		Dispatcher: s.dispatcher(),
		Resolver:   s.resolver(),
		Clock:      s.Clock,
		Selection:  sel,
		Config:     s.Config.Playback,
		Logger:     s.logger(),
	}
	return ctrl.Transfer(ctx, from.EntityID, to.EntityID), nil
}

// Browse lists a catalog node through a player.
func (s Service) Browse(ctx context.Context, selector string, contentID string, contentType string) (BrowseResultView, error) {
	e, _, err := s.target(ctx, selector)
	if err != nil {
		return BrowseResultView{}, err
	}
	result, err := s.Hub.BrowseCatalog(ctx, e.EntityID, contentID, contentType)
	if err != nil {
		return BrowseResultView{}, WrapError(ExitRuntime, "browse catalog", err)
	}
	for i := range result.Children {
		if url, ok := s.Hub.ContentPictureURL(result.Children[i].Thumbnail); ok {
			result.Children[i].Thumbnail = url
		}
	}
	return BrowseResultView{EntityID: e.EntityID, Result: result}, nil
}

func (s Service) transport(ctx context.Context, selector string, action string, payload map[string]any) error {
	e, _, err := s.target(ctx, selector)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, e.EntityID, action, payload)
}

func (s Service) dispatch(ctx context.Context, entityID string, action string, payload map[string]any) error {
	if err := s.dispatcher().Dispatch(ctx, mediaPlayerDomain, action, entityID, payload); err != nil {
		return WrapError(ExitRuntime, action, err)
	}
	return nil
}

func (s Service) target(ctx context.Context, selector string) (hub.Entity, []hub.Entity, error) {
	players, err := s.players(ctx)
	if err != nil {
		return hub.Entity{}, nil, err
	}
	if strings.TrimSpace(selector) != "" {
		e, err := ResolvePlayer(selector, players, s.Config.Aliases)
		return e, players, err
	}
	sel, err := s.selection()
	if err != nil {
		return hub.Entity{}, nil, err
	}
	active := sel.Evaluate(players, s.kind())
	e, ok := hub.FindEntity(players, active)
	if !ok {
		return hub.Entity{}, nil, &CLIError{Code: ExitNotFound, Msg: "no players"}
	}
	return e, players, nil
}

func (s Service) players(ctx context.Context) ([]hub.Entity, error) {
	if !s.Hub.Connected() {
		return nil, WrapError(ExitUnavailable, "hub", ErrNotConnected)
	}
	entities, err := s.Hub.Entities(ctx)
	if err != nil {
		return nil, WrapError(ExitUnavailable, "list entities", err)
	}
	return MediaPlayers(entities), nil
}

func (s Service) selection() (*Selection, error) {
	if s.Selections == nil {
		return NewSelection("", nil), nil
	}
	override, _, err := s.Selections.Get()
	if err != nil {
		return nil, WrapError(ExitRuntime, "load selection", err)
	}
	store := s.Selections
	logger := s.logger()
	return NewSelection(override, func(v string) {
		var err error
		if v == "" {
			err = store.Clear()
		} else {
			err = store.Put(v)
		}
		if err != nil {
			logger.Warn("persist selection failed", zap.Error(err))
		}
	}), nil
}

func (s Service) status(e hub.Entity, players []hub.Entity) StatusResult {
	result := StatusResult{Player: s.playerInfo(e, players), Entity: e}
	if pos, ok := EstimatePosition(e, s.now()); ok {
		result.Position = pos
	}
	if dur, ok := e.MediaDuration(); ok {
		result.Duration = dur
	}
	if url, ok := s.Hub.ContentPictureURL(e.EntityPicture()); ok {
		result.PictureURL = url
	}
	return result
}

func (s Service) playerInfo(e hub.Entity, players []hub.Entity) PlayerInfo {
	info := PlayerInfo{
		EntityID: e.EntityID,
		Name:     e.FriendlyName(),
		State:    e.State,
		Kind:     s.kind()(e),
		Title:    e.MediaTitle(),
		Artist:   e.MediaArtist(),
	}
	if target, ok := s.resolver().ResolveTarget(e.EntityID, players); ok && target != e.EntityID {
		info.Target = target
	}
	if v, ok := e.VolumeLevel(); ok {
		info.Volume = &v
	}
	return info
}

func (s Service) resolver() TargetResolver {
	if s.Resolver != nil {
		return s.Resolver
	}
	return NewNameResolver(s.Config.Resolver)
}

func (s Service) dispatcher() Dispatcher {
	return Dispatcher{Hub: s.Hub, Resolver: s.resolver(), Logger: s.logger()}
}

func (s Service) chain() Chain {
	return Chain{
		Hub:        s.Hub,
		Dispatcher: s.dispatcher(),
		Resolver:   s.resolver(),
		Clock:      s.Clock,
		Notifier:   s.Notifier,
		Config:     s.Config.Playback,
		Logger:     s.logger(),
	}
}

func (s Service) kind() KindFunc {
	return s.Config.Playback.WithDefaults().Kind
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func resolveVolume(e hub.Entity, arg string) (float64, error) {
	arg = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(arg), "%"))
	if arg == "" {
		return 0, &CLIError{Code: ExitUsage, Msg: "volume argument required"}
	}

	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		delta, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return 0, &CLIError{Code: ExitUsage, Msg: "invalid volume delta"}
		}
		current, ok := e.VolumeLevel()
		if !ok {
			return 0, &CLIError{Code: ExitRuntime, Msg: "player reports no volume"}
		}
		return clampUnit((current*100 + delta) / 100), nil
	}

	value, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, &CLIError{Code: ExitUsage, Msg: "invalid volume"}
	}
	return clampUnit(value / 100), nil
}

// parseSeekArg accepts 90, 1:30, 1:02:03 or a Go duration such as 1m30s.
func parseSeekArg(arg string) (time.Duration, error) {
	arg = strings.TrimSpace(arg)
	if d, err := time.ParseDuration(arg); err == nil {
		return d, nil
	}
	parts := strings.Split(arg, ":")
	if len(parts) > 3 {
		return 0, &CLIError{Code: ExitUsage, Msg: "invalid seek position"}
	}
	var total time.Duration
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, &CLIError{Code: ExitUsage, Msg: "invalid seek position"}
		}
		total = total*60 + time.Duration(n)*time.Second
	}
	return total, nil
}
