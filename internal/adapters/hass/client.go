package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

// Client speaks the hub websocket API and keeps an entity snapshot current.
type Client struct {
	log     *zap.Logger
	baseURL string
	token   string

	mu        sync.Mutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	reqID     atomic.Uint64
	pending   map[uint64]chan hub.Message
	pendingMu sync.Mutex
	connected atomic.Bool
	closed    chan struct{}

	statesMu sync.RWMutex
	states   map[string]hub.Entity
	order    []string

	watchMu  sync.Mutex
	watchSeq int
	watchers map[int]watcher
}

type watcher struct {
	entities chan hub.Entity
	errs     chan error
}

// NewClient creates a client for the hub at baseURL (http, https, ws or wss).
func NewClient(log *zap.Logger, baseURL string, token string) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		log:      log,
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		pending:  make(map[uint64]chan hub.Message),
		states:   make(map[string]hub.Entity),
		watchers: make(map[int]watcher),
	}
}

// Connect dials, authenticates, loads the state snapshot and subscribes to
// state changes.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	wsURL, err := websocketURL(c.baseURL)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	if err := c.authenticate(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}

	closed := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.closed = closed
	c.mu.Unlock()
	c.connected.Store(true)
	go c.readLoop(conn, closed)

	if err := c.loadStates(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("get states: %w", err)
	}
	if _, err := c.call(ctx, hub.Command{Type: hub.TypeSubscribe, EventType: hub.EventStateChanged}); err != nil {
		_ = c.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	c.log.Info("hub connected", zap.String("url", wsURL), zap.Int("entities", len(c.order)))
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	c.connected.Store(false)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Done is closed when the current connection drops.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.closed
}

// Connected reports whether the session is established.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Entities returns the snapshot in hub order.
func (c *Client) Entities(ctx context.Context) ([]hub.Entity, error) {
	if !c.Connected() {
		return nil, hub.ErrNotConnected
	}
	c.statesMu.RLock()
	defer c.statesMu.RUnlock()
	out := make([]hub.Entity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.states[id])
	}
	return out, nil
}

// CallService calls domain.service on target.
func (c *Client) CallService(ctx context.Context, domain, service, target string, data map[string]any) error {
	_, err := c.call(ctx, hub.CallServiceCommand(domain, service, target, data))
	return err
}

// ContentPictureURL makes a picture reference absolute.
func (c *Client) ContentPictureURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw, true
	}
	base, err := httpURL(c.baseURL)
	if err != nil {
		return "", false
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return base + raw, true
}

// BrowseCatalog browses media through entityID.
func (c *Client) BrowseCatalog(ctx context.Context, entityID, contentID, contentType string) (hub.BrowseResult, error) {
	result, err := c.call(ctx, hub.Command{
		Type:             hub.TypeBrowseMedia,
		EntityID:         entityID,
		MediaContentID:   contentID,
		MediaContentType: contentType,
	})
	if err != nil {
		return hub.BrowseResult{}, err
	}
	var out hub.BrowseResult
	if err := json.Unmarshal(result, &out); err != nil {
		return hub.BrowseResult{}, fmt.Errorf("decode browse result: %w", err)
	}
	return out, nil
}

// Watch streams entity changes until ctx is done. The error channel reports
// connection loss.
func (c *Client) Watch(ctx context.Context) (<-chan hub.Entity, <-chan error) {
	w := watcher{entities: make(chan hub.Entity, 32), errs: make(chan error, 1)}
	c.watchMu.Lock()
	c.watchSeq++
	id := c.watchSeq
	c.watchers[id] = w
	c.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		c.watchMu.Lock()
		if _, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(w.entities)
			close(w.errs)
		}
		c.watchMu.Unlock()
	}()
	return w.entities, w.errs
}

func (c *Client) authenticate(ctx context.Context, conn *websocket.Conn) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		defer conn.SetReadDeadline(time.Time{})
	}
	var msg hub.Message
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if msg.Type != hub.TypeAuthRequired {
		return fmt.Errorf("unexpected handshake message %q", msg.Type)
	}
	if err := conn.WriteJSON(hub.AuthMessage{Type: hub.TypeAuth, AccessToken: c.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	switch msg.Type {
	case hub.TypeAuthOK:
		return nil
	case hub.TypeAuthInvalid:
		return fmt.Errorf("%w: %s", hub.ErrAuthInvalid, msg.Message)
	default:
		return fmt.Errorf("unexpected auth reply %q", msg.Type)
	}
}

func (c *Client) loadStates(ctx context.Context) error {
	result, err := c.call(ctx, hub.Command{Type: hub.TypeGetStates})
	if err != nil {
		return err
	}
	var entities []hub.Entity
	if err := json.Unmarshal(result, &entities); err != nil {
		return fmt.Errorf("decode states: %w", err)
	}
	c.statesMu.Lock()
	c.states = make(map[string]hub.Entity, len(entities))
	c.order = c.order[:0]
	for _, e := range entities {
		if _, dup := c.states[e.EntityID]; !dup {
			c.order = append(c.order, e.EntityID)
		}
		c.states[e.EntityID] = e
	}
	c.statesMu.Unlock()
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, closed chan struct{}) {
	defer close(closed)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.log.Debug("websocket read error", zap.Error(err))
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			c.connected.Store(false)
			c.failPending()
			c.broadcastErr(fmt.Errorf("%w: %v", hub.ErrNotConnected, err))
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg hub.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Debug("invalid hub message", zap.Error(err))
		return
	}

	switch msg.Type {
	case hub.TypeResult, hub.TypePong:
		c.pendingMu.Lock()
		ch, ok := c.pending[msg.ID]
		if ok {
			delete(c.pending, msg.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- msg
		}
	case hub.TypeEvent:
		if msg.Event == nil || msg.Event.EventType != hub.EventStateChanged {
			return
		}
		var changed hub.StateChangedData
		if err := json.Unmarshal(msg.Event.Data, &changed); err != nil {
			c.log.Debug("invalid state_changed", zap.Error(err))
			return
		}
		c.applyChange(changed)
	}
}

func (c *Client) applyChange(changed hub.StateChangedData) {
	c.statesMu.Lock()
	if changed.NewState == nil {
		delete(c.states, changed.EntityID)
		for i, id := range c.order {
			if id == changed.EntityID {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		c.statesMu.Unlock()
		return
	}
	if _, ok := c.states[changed.EntityID]; !ok {
		c.order = append(c.order, changed.EntityID)
	}
	c.states[changed.EntityID] = *changed.NewState
	c.statesMu.Unlock()

	c.watchMu.Lock()
	for _, w := range c.watchers {
		select {
		case w.entities <- *changed.NewState:
		default:
			c.log.Debug("watcher lagging, dropping update", zap.String("entity", changed.EntityID))
		}
	}
	c.watchMu.Unlock()
}

func (c *Client) broadcastErr(err error) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, w := range c.watchers {
		select {
		case w.errs <- err:
		default:
		}
	}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call sends a command and waits for its result.
func (c *Client) call(ctx context.Context, cmd hub.Command) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, hub.ErrNotConnected
	}

	cmd.ID = c.reqID.Add(1)
	respCh := make(chan hub.Message, 1)
	c.pendingMu.Lock()
	c.pending[cmd.ID] = respCh
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err := conn.WriteJSON(cmd)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(cmd.ID)
		return nil, fmt.Errorf("%w: %v", hub.ErrNotConnected, err)
	}

	select {
	case <-ctx.Done():
		c.dropPending(cmd.ID)
		return nil, ctx.Err()
	case msg, ok := <-respCh:
		if !ok {
			return nil, hub.ErrNotConnected
		}
		if msg.Success != nil && !*msg.Success {
			return nil, hub.ResultError(msg.Error)
		}
		return msg.Result, nil
	}
}

func (c *Client) dropPending(id uint64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// Ping checks the session is alive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, hub.Command{Type: hub.TypePing})
	return err
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid hub url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return u.String(), nil
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.New("hub url must be http, https, ws or wss")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/websocket"
	return u.String(), nil
}

func httpURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/api/websocket")
	u.RawQuery = ""
	return strings.TrimRight(u.String(), "/"), nil
}
