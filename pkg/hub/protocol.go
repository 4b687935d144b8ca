package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message types on the hub websocket.
const (
	TypeAuthRequired   = "auth_required"
	TypeAuth           = "auth"
	TypeAuthOK         = "auth_ok"
	TypeAuthInvalid    = "auth_invalid"
	TypeResult         = "result"
	TypeEvent          = "event"
	TypeGetStates      = "get_states"
	TypeSubscribe      = "subscribe_events"
	TypeCallService    = "call_service"
	TypeBrowseMedia    = "media_player/browse_media"
	TypePing           = "ping"
	TypePong           = "pong"
	EventStateChanged  = "state_changed"
	ErrorCodeNotFound  = "not_found"
	ErrorCodeNotSupp   = "not_supported"
	ErrorCodeServiceNS = "service_not_supported"
	ErrorCodeHAError   = "home_assistant_error"
)

var (
	// ErrNotSupported is returned when the hub reports that the target
	// does not support the requested action.
	ErrNotSupported = errors.New("action not supported by target")
	// ErrAuthInvalid is returned when the hub rejects the access token.
	ErrAuthInvalid = errors.New("hub rejected access token")
	// ErrNotConnected is returned for calls made while the session is down.
	ErrNotConnected = errors.New("hub not connected")
)

// AuthMessage authenticates a websocket session.
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// Command is an outbound request. Fields not used by a type are omitted.
type Command struct {
	ID               uint64         `json:"id"`
	Type             string         `json:"type"`
	EventType        string         `json:"event_type,omitempty"`
	Domain           string         `json:"domain,omitempty"`
	Service          string         `json:"service,omitempty"`
	ServiceData      map[string]any `json:"service_data,omitempty"`
	Target           *Target        `json:"target,omitempty"`
	EntityID         string         `json:"entity_id,omitempty"`
	MediaContentID   string         `json:"media_content_id,omitempty"`
	MediaContentType string         `json:"media_content_type,omitempty"`
}

// Target addresses entities for call_service.
type Target struct {
	EntityID string `json:"entity_id"`
}

// Message is any inbound frame.
type Message struct {
	ID      uint64          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
	Event   *EventBody      `json:"event,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ErrorBody is the error payload of a failed result.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventBody wraps an event.
type EventBody struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// StateChangedData is the payload of a state_changed event.
type StateChangedData struct {
	EntityID string  `json:"entity_id"`
	OldState *Entity `json:"old_state"`
	NewState *Entity `json:"new_state"`
}

// BrowseResult is a catalog node returned by browse_media.
type BrowseResult struct {
	Title            string         `json:"title"`
	MediaClass       string         `json:"media_class"`
	MediaContentID   string         `json:"media_content_id"`
	MediaContentType string         `json:"media_content_type"`
	CanPlay          bool           `json:"can_play"`
	CanExpand        bool           `json:"can_expand"`
	Thumbnail        string         `json:"thumbnail,omitempty"`
	Children         []CatalogItem  `json:"children,omitempty"`
	Extra            map[string]any `json:"-"`
}

// CatalogItem is a child of a browse result.
type CatalogItem struct {
	Title            string `json:"title"`
	MediaClass       string `json:"media_class"`
	MediaContentID   string `json:"media_content_id"`
	MediaContentType string `json:"media_content_type"`
	CanPlay          bool   `json:"can_play"`
	CanExpand        bool   `json:"can_expand"`
	Thumbnail        string `json:"thumbnail,omitempty"`
}

// CallServiceCommand builds a call_service command.
func CallServiceCommand(domain, service, entityID string, data map[string]any) Command {
	cmd := Command{
		Type:        TypeCallService,
		Domain:      domain,
		Service:     service,
		ServiceData: data,
	}
	if entityID != "" {
		cmd.Target = &Target{EntityID: entityID}
	}
	return cmd
}

// ResultError converts a failed result into an error.
func ResultError(body *ErrorBody) error {
	if body == nil {
		return errors.New("hub command failed")
	}
	if IsNotSupported(body) {
		return fmt.Errorf("%w: %s", ErrNotSupported, body.Message)
	}
	return fmt.Errorf("hub error %s: %s", body.Code, body.Message)
}

// IsNotSupported reports whether an error body means the target cannot
// perform the action.
func IsNotSupported(body *ErrorBody) bool {
	if body == nil {
		return false
	}
	switch body.Code {
	case ErrorCodeNotSupp, ErrorCodeServiceNS:
		return true
	}
	msg := strings.ToLower(body.Message)
	return strings.Contains(msg, "does not support") || strings.Contains(msg, "not supported")
}
