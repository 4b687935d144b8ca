package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the bridge protocol.
const BaseTopic = "mr/v1"

// Command types accepted by the bridge.
const (
	CmdPlayerPlay     = "player.play"
	CmdPlayerPause    = "player.pause"
	CmdPlayerToggle   = "player.toggle"
	CmdPlayerStop     = "player.stop"
	CmdPlayerNext     = "player.next"
	CmdPlayerPrev     = "player.prev"
	CmdControlBegin   = "control.begin"
	CmdControlCommit  = "control.commit"
	CmdContentPlay    = "content.play"
	CmdSessionMove    = "session.transfer"
	CmdSelectionSet   = "selection.set"
	CmdSelectionClear = "selection.clear"
	CmdCatalogBrowse  = "catalog.browse"
	CmdClientVisible  = "client.visibility"
	CmdStateGet       = "state.get"
)

// Event types published by the bridge.
const (
	EvtPlaybackFailed  = "playback.failed"
	EvtPlaybackStarted = "playback.started"
	EvtTransferDone    = "session.transferred"
	EvtSelection       = "selection.changed"
)

// Reply error codes.
const (
	CodeInvalid     = "INVALID"
	CodeNotFound    = "NOT_FOUND"
	CodeUnavailable = "UNAVAILABLE"
	CodeFailed      = "FAILED"
)

// CommandEnvelope is the common client command envelope for MQTT.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// ReplyEnvelope is the response envelope for commands.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Presence describes the bridge node.
type Presence struct {
	NodeID string `json:"nodeId"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	TS     int64  `json:"ts"`
}

// Event is published on the event topic.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	TS      int64  `json:"ts"`
	Entity  string `json:"entity,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}

	return CommandEnvelope{
		Type: cmdType,
		Body: payload,
	}, nil
}

// ValidateCommandEnvelope validates required fields.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if cmd.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(cmd.From) == "" {
		return errors.New("from is required")
	}
	if len(cmd.Body) == 0 {
		return errors.New("body is required")
	}
	return nil
}

// TopicPresence builds the presence topic for a node.
func TopicPresence(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/presence", topicBase, nodeID)
}

// TopicState builds the state topic for a node.
func TopicState(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/state", topicBase, nodeID)
}

// TopicCommands builds the command topic for a node.
func TopicCommands(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/cmd", topicBase, nodeID)
}

// TopicEvents builds the events topic for a node.
func TopicEvents(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/evt", topicBase, nodeID)
}

// TopicReply builds the reply topic for a client instance.
func TopicReply(topicBase, clientID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, clientID)
}
