package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/internal/core"
	"github.com/mikey-austin/media_remote/pkg/hub"
	"github.com/mikey-austin/media_remote/pkg/remote"
)

func (m *Module) handleMessage(msg paho.Message) {
	var cmd remote.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}

	if longRunning(cmd.Type) {
		m.flows.Add(1)
		go func() {
			defer m.flows.Done()
			m.flowMu.Lock()
			defer m.flowMu.Unlock()
			m.reply(cmd, m.dispatch(cmd))
		}()
		return
	}
	m.reply(cmd, m.dispatch(cmd))
}

// longRunning reports commands that wait on device warm-up or settle
// delays. They run off the MQTT router, one at a time.
func longRunning(cmdType string) bool {
	return cmdType == remote.CmdContentPlay || cmdType == remote.CmdSessionMove
}

func (m *Module) reply(cmd remote.CommandEnvelope, reply remote.ReplyEnvelope) {
	if cmd.ReplyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Error("marshal reply", zap.Error(err))
		return
	}
	if err := m.client.Publish(cmd.ReplyTo, 1, false, payload); err != nil {
		m.log.Error("publish reply", zap.Error(err))
	}
}

func (m *Module) dispatch(cmd remote.CommandEnvelope) remote.ReplyEnvelope {
	if err := remote.ValidateCommandEnvelope(cmd); err != nil {
		return errorReply(cmd, remote.CodeInvalid, err.Error())
	}
	reply := remote.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "ack",
		OK:   true,
		TS:   m.now().Unix(),
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.config.CommandTimeout)
	defer cancel()

	var (
		body any
		err  error
	)
	switch cmd.Type {
	case remote.CmdPlayerPlay, remote.CmdPlayerPause, remote.CmdPlayerToggle,
		remote.CmdPlayerStop, remote.CmdPlayerNext, remote.CmdPlayerPrev:
		err = m.playerCommand(ctx, cmd)
	case remote.CmdControlBegin:
		err = m.controlBegin(ctx, cmd)
	case remote.CmdControlCommit:
		err = m.controlCommit(ctx, cmd)
	case remote.CmdContentPlay:
		body, err = m.contentPlay(ctx, cmd)
	case remote.CmdSessionMove:
		body, err = m.sessionTransfer(ctx, cmd)
	case remote.CmdSelectionSet:
		err = m.selectionSet(ctx, cmd)
	case remote.CmdSelectionClear:
		err = m.service.ClearSelection(ctx)
	case remote.CmdCatalogBrowse:
		body, err = m.catalogBrowse(ctx, cmd)
	case remote.CmdClientVisible:
		err = m.clientVisibility(cmd)
	case remote.CmdStateGet:
		body = m.buildState(ctx)
	default:
		return errorReply(cmd, remote.CodeInvalid, "unsupported command")
	}
	if err != nil {
		m.log.Debug("command failed", zap.String("type", cmd.Type), zap.String("from", cmd.From), zap.Error(err))
		return errorReply(cmd, core.ReplyCodeForError(err), err.Error())
	}

	switch cmd.Type {
	case remote.CmdClientVisible, remote.CmdStateGet, remote.CmdCatalogBrowse:
	default:
		m.publishState()
	}

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errorReply(cmd, remote.CodeFailed, err.Error())
		}
		reply.Body = payload
	}
	return reply
}

func (m *Module) playerCommand(ctx context.Context, cmd remote.CommandEnvelope) error {
	var body remote.PlayerBody
	if err := decodeBody(cmd, &body); err != nil {
		return err
	}
	switch cmd.Type {
	case remote.CmdPlayerPlay:
		return m.service.Play(ctx, body.Entity)
	case remote.CmdPlayerPause:
		return m.service.Pause(ctx, body.Entity)
	case remote.CmdPlayerToggle:
		return m.service.Toggle(ctx, body.Entity)
	case remote.CmdPlayerStop:
		return m.service.Stop(ctx, body.Entity)
	case remote.CmdPlayerNext:
		return m.service.Next(ctx, body.Entity)
	default:
		return m.service.Prev(ctx, body.Entity)
	}
}

func (m *Module) controlBegin(ctx context.Context, cmd remote.CommandEnvelope) error {
	var body remote.ControlBeginBody
	if err := decodeBody(cmd, &body); err != nil {
		return err
	}
	controls, err := m.controlsForSelector(ctx, body.Entity)
	if err != nil {
		return err
	}
	switch body.Control {
	case remote.ControlVolume:
		controls.VolumeBinding().OnInteractionStart()
	case remote.ControlShuffle:
		controls.ShuffleBinding().OnInteractionStart()
	case remote.ControlRepeat:
		controls.RepeatBinding().OnInteractionStart()
	default:
		return &core.CLIError{Code: core.ExitUsage, Msg: fmt.Sprintf("unknown control %q", body.Control)}
	}
	return nil
}

func (m *Module) controlCommit(ctx context.Context, cmd remote.CommandEnvelope) error {
	var body remote.ControlCommitBody
	if err := decodeBody(cmd, &body); err != nil {
		return err
	}
	controls, err := m.controlsForSelector(ctx, body.Entity)
	if err != nil {
		return err
	}

	switch body.Control {
	case remote.ControlVolume:
		level, ok := body.Value.(float64)
		if !ok {
			return &core.CLIError{Code: core.ExitUsage, Msg: "volume value must be a number"}
		}
		err = controls.SetVolume(ctx, level)
	case remote.ControlShuffle:
		switch v := body.Value.(type) {
		case nil:
			err = controls.ToggleShuffle(ctx)
		case bool:
			err = controls.ShuffleBinding().OnInteractionCommit(ctx, v)
		default:
			return &core.CLIError{Code: core.ExitUsage, Msg: "shuffle value must be a bool"}
		}
	case remote.ControlRepeat:
		switch v := body.Value.(type) {
		case nil:
			err = controls.CycleRepeat(ctx)
		case string:
			mode, ok := hub.ParseRepeatMode(v)
			if !ok {
				return &core.CLIError{Code: core.ExitUsage, Msg: "repeat value must be off, all or one"}
			}
			err = controls.RepeatBinding().OnInteractionCommit(ctx, mode)
		default:
			return &core.CLIError{Code: core.ExitUsage, Msg: "repeat value must be a string"}
		}
	default:
		return &core.CLIError{Code: core.ExitUsage, Msg: fmt.Sprintf("unknown control %q", body.Control)}
	}
	if err != nil {
		return core.WrapError(core.ExitRuntime, body.Control, err)
	}
	return nil
}

func (m *Module) contentPlay(ctx context.Context, cmd remote.CommandEnvelope) (any, error) {
	var body remote.ContentPlayBody
	if err := decodeBody(cmd, &body); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body.Content) == "" {
		return nil, &core.CLIError{Code: core.ExitUsage, Msg: "content required"}
	}
	result, err := m.service.PlayContent(ctx, body.Entity, body.Content, body.Kind)
	if err != nil {
		return nil, err
	}
	m.publishEvent(remote.Event{Type: remote.EvtPlaybackStarted, Entity: result.Target})
	return remote.PlayReply{Strategy: result.Strategy, Target: result.Target}, nil
}

func (m *Module) sessionTransfer(ctx context.Context, cmd remote.CommandEnvelope) (any, error) {
	var body remote.SessionTransferBody
	if err := decodeBody(cmd, &body); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body.To) == "" {
		return nil, &core.CLIError{Code: core.ExitUsage, Msg: "to required"}
	}
	result, err := m.service.Transfer(ctx, body.From, body.To)
	if err != nil {
		return nil, err
	}
	if result.Moved {
		m.publishEvent(remote.Event{Type: remote.EvtTransferDone, Entity: result.To})
	}
	return remote.TransferReply{Moved: result.Moved, Replayed: result.Replayed}, nil
}

func (m *Module) selectionSet(ctx context.Context, cmd remote.CommandEnvelope) error {
	var body remote.SelectionSetBody
	if err := decodeBody(cmd, &body); err != nil {
		return err
	}
	if strings.TrimSpace(body.Entity) == "" {
		return &core.CLIError{Code: core.ExitUsage, Msg: "entity required"}
	}
	_, err := m.service.Select(ctx, body.Entity)
	return err
}

func (m *Module) catalogBrowse(ctx context.Context, cmd remote.CommandEnvelope) (any, error) {
	var body remote.CatalogBrowseBody
	if err := decodeBody(cmd, &body); err != nil {
		return nil, err
	}
	return m.service.Browse(ctx, body.Entity, body.ContentID, body.ContentType)
}

func (m *Module) clientVisibility(cmd remote.CommandEnvelope) error {
	var body remote.ClientVisibilityBody
	if err := decodeBody(cmd, &body); err != nil {
		return err
	}
	m.setVisible(cmd.From, body.Visible)
	return nil
}

func (m *Module) controlsForSelector(ctx context.Context, selector string) (*core.Controls, error) {
	status, err := m.service.Status(ctx, selector)
	if err != nil {
		return nil, err
	}
	controls := m.controlsFor(status.Entity.EntityID)
	controls.Observe(status.Entity)
	return controls, nil
}

func decodeBody(cmd remote.CommandEnvelope, out any) error {
	if err := json.Unmarshal(cmd.Body, out); err != nil {
		return &core.CLIError{Code: core.ExitUsage, Msg: "invalid body", Err: err}
	}
	return nil
}

func errorReply(cmd remote.CommandEnvelope, code string, message string) remote.ReplyEnvelope {
	return remote.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		Err:  &remote.ReplyError{Code: code, Message: message},
	}
}
