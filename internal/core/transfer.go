package core

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/internal/ports"
	"github.com/mikey-austin/media_remote/pkg/hub"
)

// TransferPhase is a step of a session transfer.
type TransferPhase string

const (
	PhaseIdle               TransferPhase = "idle"
	PhaseSwitchingSelection TransferPhase = "switching_selection"
	PhaseWakingTarget       TransferPhase = "waking_target"
	PhaseReplaying          TransferPhase = "replaying"
	PhaseStoppingSource     TransferPhase = "stopping_source"
)

// Transfer replay step names.
const (
	StepAlternateReplay = "alternate_replay"
	StepGenericReplay   = "generic_replay"
	StepPauseSource     = "pause_source"
)

// TransferResult describes what a transfer did.
type TransferResult struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	Moved       bool      `json:"moved"`
	ContentID   string    `json:"content_id,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Woke        bool      `json:"woke"`
	Replayed    bool      `json:"replayed"`
	Attempts    []Attempt `json:"attempts"`
}

// Err folds every failed step into one error.
func (r TransferResult) Err() error {
	var err error
	for _, a := range r.Attempts {
		if a.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s on %s: %w", a.Strategy, a.Target, a.Err))
		}
	}
	return err
}

// TransferController moves an active session between logical players.
type TransferController struct {
	Hub        ports.Hub
	Dispatcher Dispatcher
	Resolver   TargetResolver
	Clock      ports.Clock
	Selection  *Selection
	Config     PlaybackConfig
	Logger     *zap.Logger
}

// Transfer selects to immediately, then replays the source content on to and
// pauses from. Failures are logged and recorded, never returned, and the
// selection is never rolled back.
func (t TransferController) Transfer(ctx context.Context, from, to string) TransferResult {
	cfg := t.Config.WithDefaults()
	logger := t.logger().With(zap.String("from", from), zap.String("to", to))
	result := TransferResult{From: from, To: to}

	t.phase(logger, PhaseSwitchingSelection)
	if t.Selection != nil {
		t.Selection.Set(to)
	}

	entities, err := t.Hub.Entities(ctx)
	if err != nil {
		logger.Warn("entity snapshot unavailable", zap.Error(err))
	}
	source, ok := hub.FindEntity(entities, from)
	if !ok || (source.State != hub.StatePlaying && source.State != hub.StatePaused) || source.MediaContentID() == "" {
		logger.Info("no media to transfer")
		t.phase(logger, PhaseIdle)
		return result
	}
	result.Moved = true
	result.ContentID = source.MediaContentID()
	result.ContentType = source.MediaContentType()
	if result.ContentType == "" {
		result.ContentType = "music"
	}

	t.phase(logger, PhaseWakingTarget)
	warmup := cfg.Warmup
	if isGroupTarget(cfg, to, entities) || cfg.IsCastID(to) {
		warmup = cfg.GroupWarmup
	}
	result.Woke = wakeIfCold(ctx, t.Dispatcher, t.Clock, logger, to, entities, warmup)

	t.phase(logger, PhaseReplaying)
	target := EffectiveTarget(t.Resolver, to, entities)
	err = t.Dispatcher.CallDirect(ctx, "music_assistant", "play_media", target, map[string]any{
		"media_id":   result.ContentID,
		"media_type": result.ContentType,
		"enqueue":    "replace",
	})
	result.Attempts = append(result.Attempts, Attempt{Strategy: StepAlternateReplay, Target: target, Err: err})
	if err != nil {
		logger.Warn("replay failed", zap.String("step", StepAlternateReplay), zap.String("target", target), zap.Error(err))
		err = t.Dispatcher.CallDirect(ctx, "media_player", "play_media", to, map[string]any{
			"media_content_id":   result.ContentID,
			"media_content_type": result.ContentType,
		})
		result.Attempts = append(result.Attempts, Attempt{Strategy: StepGenericReplay, Target: to, Err: err})
		if err != nil {
			logger.Warn("replay failed", zap.String("step", StepGenericReplay), zap.String("target", to), zap.Error(err))
		}
	}
	result.Replayed = err == nil

	t.phase(logger, PhaseStoppingSource)
	if t.Clock != nil {
		if err := t.Clock.Sleep(ctx, cfg.Settle); err != nil {
			logger.Debug("settle interrupted", zap.Error(err))
		}
	}
	err = t.Dispatcher.Dispatch(ctx, "media_player", "media_pause", from, nil)
	result.Attempts = append(result.Attempts, Attempt{Strategy: StepPauseSource, Target: from, Err: err})
	if err != nil {
		logger.Warn("pause source failed", zap.Error(err))
	}

	t.phase(logger, PhaseIdle)
	return result
}

func (t TransferController) phase(logger *zap.Logger, phase TransferPhase) {
	logger.Debug("transfer phase", zap.String("phase", string(phase)))
}

func (t TransferController) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}
