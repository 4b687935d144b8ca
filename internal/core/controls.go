package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

// ControlsConfig sets the lock windows of per-player controls.
type ControlsConfig struct {
	VolumeLock    time.Duration
	ToggleLock    time.Duration
	VolumeEpsilon float64
}

const (
	defaultVolumeLock    = 3 * time.Second
	defaultToggleLock    = time.Second
	defaultVolumeEpsilon = 0.01
)

// WithDefaults fills unset fields.
func (c ControlsConfig) WithDefaults() ControlsConfig {
	if c.VolumeLock <= 0 {
		c.VolumeLock = defaultVolumeLock
	}
	if c.ToggleLock <= 0 {
		c.ToggleLock = defaultToggleLock
	}
	if c.VolumeEpsilon <= 0 {
		c.VolumeEpsilon = defaultVolumeEpsilon
	}
	return c
}

// Controls holds the reconcilable volume, shuffle and repeat of one player.
type Controls struct {
	EntityID string
	Volume   *Reconcilable[float64]
	Shuffle  *Reconcilable[bool]
	Repeat   *Reconcilable[hub.RepeatMode]

	dispatcher Dispatcher
	cfg        ControlsConfig
	logger     *zap.Logger
}

// NewControls creates controls for entityID.
func NewControls(entityID string, d Dispatcher, cfg ControlsConfig, now func() time.Time, logger *zap.Logger) *Controls {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controls{
		EntityID:   entityID,
		Volume:     NewContinuous(0, cfg.VolumeEpsilon, now),
		Shuffle:    NewDiscrete(false, now),
		Repeat:     NewDiscrete(hub.RepeatOff, now),
		dispatcher: d,
		cfg:        cfg,
		logger:     logger.With(zap.String("entity", entityID)),
	}
}

// Observe feeds a pushed entity into the reconcilable values. It reports
// whether any rendered value changed.
func (c *Controls) Observe(e hub.Entity) bool {
	changed := false
	if v, ok := e.VolumeLevel(); ok {
		changed = c.Volume.Observe(v) || changed
	}
	if v, ok := e.Shuffle(); ok {
		changed = c.Shuffle.Observe(v) || changed
	}
	if v, ok := e.Repeat(); ok {
		changed = c.Repeat.Observe(v) || changed
	}
	return changed
}

// VolumeBinding exposes volume to a slider.
func (c *Controls) VolumeBinding() Binding[float64] {
	return c.Volume.Bind(c.cfg.VolumeLock, c.sendVolume)
}

// ShuffleBinding exposes shuffle to a toggle.
func (c *Controls) ShuffleBinding() Binding[bool] {
	return c.Shuffle.Bind(c.cfg.ToggleLock, c.sendShuffle)
}

// RepeatBinding exposes repeat to a toggle.
func (c *Controls) RepeatBinding() Binding[hub.RepeatMode] {
	return c.Repeat.Bind(c.cfg.ToggleLock, c.sendRepeat)
}

// SetVolume commits level, clamped to [0,1], and sends it.
func (c *Controls) SetVolume(ctx context.Context, level float64) error {
	return c.VolumeBinding().OnInteractionCommit(ctx, clampUnit(level))
}

// ToggleShuffle flips shuffle locally, then sends it.
func (c *Controls) ToggleShuffle(ctx context.Context) error {
	return c.ShuffleBinding().OnInteractionCommit(ctx, !c.Shuffle.Value())
}

// CycleRepeat advances repeat locally, then sends it.
func (c *Controls) CycleRepeat(ctx context.Context) error {
	return c.RepeatBinding().OnInteractionCommit(ctx, c.Repeat.Value().Next())
}

func (c *Controls) sendVolume(ctx context.Context, v float64) error {
	return c.send(ctx, "volume_set", map[string]any{"volume_level": v})
}

func (c *Controls) sendShuffle(ctx context.Context, v bool) error {
	return c.send(ctx, "shuffle_set", map[string]any{"shuffle": v})
}

func (c *Controls) sendRepeat(ctx context.Context, v hub.RepeatMode) error {
	return c.send(ctx, "repeat_set", map[string]any{"repeat": string(v)})
}

func (c *Controls) send(ctx context.Context, action string, payload map[string]any) error {
	err := c.dispatcher.Dispatch(ctx, "media_player", action, c.EntityID, payload)
	if err != nil {
		c.logger.Warn("control command failed", zap.String("action", action), zap.Error(err))
	}
	return err
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
