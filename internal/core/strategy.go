package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/internal/ports"
	"github.com/mikey-austin/media_remote/pkg/hub"
)

// Strategy names, in the order they are tried.
const (
	StrategyGroupPlayMedia     = "group_play_media"
	StrategyAlternatePlayMedia = "alternate_play_media"
	StrategyCastStart          = "cast_start"
	StrategyBridgeSourcePlay   = "bridge_source_play"
	StrategyDeepLinkPlay       = "deep_link_play"
)

// PlaybackNotice is the only failure text shown to the user.
const PlaybackNotice = "could not start playback"

// Attempt is one strategy or step outcome.
type Attempt struct {
	Strategy string
	Target   string
	Err      error
	Duration time.Duration
}

// MarshalJSON renders Err as text.
func (a Attempt) MarshalJSON() ([]byte, error) {
	out := struct {
		Strategy   string `json:"strategy"`
		Target     string `json:"target"`
		Error      string `json:"error,omitempty"`
		DurationMS int64  `json:"duration_ms"`
	}{
		Strategy:   a.Strategy,
		Target:     a.Target,
		DurationMS: a.Duration.Milliseconds(),
	}
	if a.Err != nil {
		out.Error = a.Err.Error()
	}
	return json.Marshal(out)
}

// ChainResult accumulates every attempt of one Play invocation.
type ChainResult struct {
	Intent   PlaybackIntent `json:"intent"`
	Content  Content        `json:"content"`
	Strategy string         `json:"strategy,omitempty"`
	Target   string         `json:"target,omitempty"`
	Attempts []Attempt      `json:"attempts"`
	setupErr error
}

// OK reports whether a strategy succeeded.
func (r ChainResult) OK() bool {
	return r.Strategy != ""
}

// Failures folds every failed attempt into one error.
func (r ChainResult) Failures() error {
	err := r.setupErr
	for _, a := range r.Attempts {
		if a.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s on %s: %w", a.Strategy, a.Target, a.Err))
		}
	}
	return err
}

// Err is nil on success and wraps ErrPlaybackFailed otherwise.
func (r ChainResult) Err() error {
	if r.OK() {
		return nil
	}
	if failures := r.Failures(); failures != nil {
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, failures)
	}
	return ErrPlaybackFailed
}

// Chain fulfills playback intents by trying backend strategies in order.
type Chain struct {
	Hub        ports.Hub
	Dispatcher Dispatcher
	Resolver   TargetResolver
	Clock      ports.Clock
	Notifier   ports.Notifier
	Config     PlaybackConfig
	Logger     *zap.Logger
}

type playPlan struct {
	intent   PlaybackIntent
	content  Content
	entities []hub.Entity
	resolved string
	hasAlt   bool
}

func (p playPlan) effective() string {
	if p.hasAlt {
		return p.resolved
	}
	return p.intent.Target
}

type strategy struct {
	name    string
	applies func(p playPlan) bool
	run     func(ctx context.Context, p playPlan) (string, error)
}

// Play tries each applicable strategy until one succeeds. It never returns an
// error; exhaustion is reported through the Notifier and the result.
func (c Chain) Play(ctx context.Context, intent PlaybackIntent) ChainResult {
	cfg := c.Config.WithDefaults()
	c.Config = cfg
	logger := c.logger().With(zap.String("target", intent.Target))
	result := ChainResult{Intent: intent}

	content, err := NormalizeContent(intent.Content, intent.Kind, cfg)
	if err != nil {
		result.setupErr = err
		c.exhausted(ctx, logger, result)
		return result
	}
	result.Content = content

	entities, err := c.Hub.Entities(ctx)
	if err != nil {
		logger.Debug("entity snapshot unavailable", zap.Error(err))
	}

	resolved, hasAlt := "", false
	if c.Resolver != nil {
		resolved, hasAlt = c.Resolver.ResolveTarget(intent.Target, entities)
	}
	plan := playPlan{
		intent:   intent,
		content:  content,
		entities: entities,
		resolved: resolved,
		hasAlt:   hasAlt,
	}

	warmup := cfg.Warmup
	if c.isGroup(plan.effective(), entities) || c.isGroup(intent.Target, entities) || cfg.IsCastID(intent.Target) {
		warmup = cfg.GroupWarmup
	}
	wakeIfCold(ctx, c.Dispatcher, c.Clock, logger, intent.Target, entities, warmup)

	for _, s := range c.strategies() {
		if !s.applies(plan) {
			continue
		}
		start := c.now()
		target, err := s.run(ctx, plan)
		attempt := Attempt{Strategy: s.name, Target: target, Err: err, Duration: c.now().Sub(start)}
		result.Attempts = append(result.Attempts, attempt)
		if err == nil {
			result.Strategy = s.name
			result.Target = target
			logger.Info("playback started",
				zap.String("strategy", s.name),
				zap.String("resolved", target),
				zap.String("uri", content.URI),
			)
			return result
		}
		logger.Warn("playback strategy failed",
			zap.String("strategy", s.name),
			zap.String("resolved", target),
			zap.Error(err),
		)
	}

	c.exhausted(ctx, logger, result)
	return result
}

func (c Chain) exhausted(ctx context.Context, logger *zap.Logger, result ChainResult) {
	logger.Error("playback strategies exhausted",
		zap.Int("attempts", len(result.Attempts)),
		zap.Error(result.Failures()),
	)
	if c.Notifier != nil {
		c.Notifier.Notify(ctx, PlaybackNotice)
	}
}

func (c Chain) strategies() []strategy {
	return []strategy{
		{
			name: StrategyGroupPlayMedia,
			applies: func(p playPlan) bool {
				return p.hasAlt && c.isGroup(p.resolved, p.entities)
			},
			run: func(ctx context.Context, p playPlan) (string, error) {
				return p.resolved, c.Dispatcher.CallDirect(ctx, "media_player", "play_media", p.resolved, map[string]any{
					"media_content_id":   p.content.URI,
					"media_content_type": string(p.content.Kind),
				})
			},
		},
		{
			name:    StrategyAlternatePlayMedia,
			applies: func(p playPlan) bool { return true },
			run: func(ctx context.Context, p playPlan) (string, error) {
				target := p.effective()
				return target, c.Dispatcher.CallDirect(ctx, "music_assistant", "play_media", target, map[string]any{
					"media_id":   p.content.URI,
					"media_type": string(p.content.Kind),
					"enqueue":    "replace",
				})
			},
		},
		{
			name: StrategyCastStart,
			applies: func(p playPlan) bool {
				return c.Config.IsCastID(p.intent.Target)
			},
			run: func(ctx context.Context, p playPlan) (string, error) {
				name := displayName(p.intent.Target, p.entities)
				return p.intent.Target, c.Dispatcher.CallDirect(ctx, "spotcast", "start", "", map[string]any{
					"device_name": name,
					"uri":         p.content.URI,
				})
			},
		},
		{
			name: StrategyBridgeSourcePlay,
			applies: func(p playPlan) bool {
				if c.Config.BridgeEntity == "" {
					return false
				}
				_, ok := hub.FindEntity(p.entities, c.Config.BridgeEntity)
				return ok
			},
			run: func(ctx context.Context, p playPlan) (string, error) {
				bridgeID := c.Config.BridgeEntity
				bridge, _ := hub.FindEntity(p.entities, bridgeID)
				source, ok := matchSource(bridge.SourceList(), displayName(p.intent.Target, p.entities))
				if !ok {
					return bridgeID, fmt.Errorf("no bridge source matches %s", p.intent.Target)
				}
				if err := c.Dispatcher.CallDirect(ctx, "media_player", "select_source", bridgeID, map[string]any{
					"source": source,
				}); err != nil {
					return bridgeID, err
				}
				return bridgeID, c.Dispatcher.CallDirect(ctx, "media_player", "play_media", bridgeID, map[string]any{
					"media_content_id":   p.content.URI,
					"media_content_type": string(p.content.Kind),
				})
			},
		},
		{
			name:    StrategyDeepLinkPlay,
			applies: func(p playPlan) bool { return true },
			run: func(ctx context.Context, p playPlan) (string, error) {
				target := p.intent.Target
				linkErr := c.Dispatcher.CallDirect(ctx, "media_player", "play_media", target, map[string]any{
					"media_content_id":   p.content.DeepLink,
					"media_content_type": string(p.content.Kind),
				})
				if linkErr == nil {
					return target, nil
				}
				uriErr := c.Dispatcher.CallDirect(ctx, "media_player", "play_media", target, map[string]any{
					"media_content_id":   p.content.URI,
					"media_content_type": string(p.content.Kind),
				})
				if uriErr == nil {
					return target, nil
				}
				return target, multierr.Combine(linkErr, uriErr)
			},
		},
	}
}

func (c Chain) isGroup(entityID string, entities []hub.Entity) bool {
	return isGroupTarget(c.Config, entityID, entities)
}

func isGroupTarget(cfg PlaybackConfig, entityID string, entities []hub.Entity) bool {
	if e, ok := hub.FindEntity(entities, entityID); ok {
		return cfg.Kind(e) == KindGroup
	}
	return cfg.IsGroupID(entityID)
}

func (c Chain) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

func (c Chain) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// coldStates are states in which devices drop playback commands.
var coldStates = map[string]bool{
	hub.StateOff:         true,
	hub.StateIdle:        true,
	hub.StateUnavailable: true,
	hub.StateUnknown:     true,
	hub.StateStandby:     true,
}

// IsCold reports whether entityID needs a power-on before playback.
func IsCold(entityID string, entities []hub.Entity) bool {
	e, ok := hub.FindEntity(entities, entityID)
	if !ok {
		return true
	}
	return coldStates[e.State]
}

func wakeIfCold(ctx context.Context, d Dispatcher, clock ports.Clock, logger *zap.Logger, entityID string, entities []hub.Entity, warmup time.Duration) bool {
	if !IsCold(entityID, entities) {
		return false
	}
	if err := d.Dispatch(ctx, "media_player", "turn_on", entityID, nil); err != nil {
		logger.Warn("power on failed", zap.String("entity", entityID), zap.Error(err))
	}
	if clock != nil {
		if err := clock.Sleep(ctx, warmup); err != nil {
			logger.Debug("warm-up interrupted", zap.Error(err))
		}
	}
	return true
}

func displayName(entityID string, entities []hub.Entity) string {
	if e, ok := hub.FindEntity(entities, entityID); ok {
		return e.FriendlyName()
	}
	name := entityID
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.ReplaceAll(name, "_", " ")
}

// matchSource finds a source whose name contains name or is contained by it,
// ignoring case.
func matchSource(sources []string, name string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return "", false
	}
	for _, source := range sources {
		have := strings.ToLower(source)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return source, true
		}
	}
	return "", false
}
