package core

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/internal/ports"
)

// Command is a single hub service call.
type Command struct {
	Domain  string
	Action  string
	Target  string
	Payload map[string]any
}

// Dispatcher issues commands through the target resolver.
type Dispatcher struct {
	Hub      ports.Hub
	Resolver TargetResolver
	Logger   *zap.Logger
}

// Dispatch sends one command to the resolved target. It is a no-op while the
// hub is disconnected and swallows unsupported-action replies.
func (d Dispatcher) Dispatch(ctx context.Context, domain, action, target string, payload map[string]any) error {
	if !d.Hub.Connected() {
		d.logger().Debug("dispatch skipped, hub disconnected",
			zap.String("service", domain+"."+action),
			zap.String("target", target),
		)
		return nil
	}
	err := d.Call(ctx, domain, action, target, payload)
	if errors.Is(err, ErrUnsupportedAction) {
		d.logger().Debug("action unsupported by target",
			zap.String("service", domain+"."+action),
			zap.String("target", target),
			zap.Error(err),
		)
		return nil
	}
	return err
}

// DispatchCommand is Dispatch for a Command value.
func (d Dispatcher) DispatchCommand(ctx context.Context, cmd Command) error {
	return d.Dispatch(ctx, cmd.Domain, cmd.Action, cmd.Target, cmd.Payload)
}

// Call resolves the target and returns every error, including unsupported
// actions and connectivity failures.
func (d Dispatcher) Call(ctx context.Context, domain, action, target string, payload map[string]any) error {
	resolved := target
	if d.Resolver != nil && target != "" {
		entities, err := d.Hub.Entities(ctx)
		if err != nil && d.Hub.Connected() {
			return err
		}
		resolved = EffectiveTarget(d.Resolver, target, entities)
	}
	return d.CallDirect(ctx, domain, action, resolved, payload)
}

// CallDirect calls the hub without resolving the target.
func (d Dispatcher) CallDirect(ctx context.Context, domain, action, target string, payload map[string]any) error {
	if !d.Hub.Connected() {
		return ErrNotConnected
	}
	d.logger().Debug("call service",
		zap.String("service", domain+"."+action),
		zap.String("target", target),
	)
	return classifyHubError(d.Hub.CallService(ctx, domain, action, target, payload))
}

func (d Dispatcher) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}
