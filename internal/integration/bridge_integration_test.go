//go:build integration
// +build integration

package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/internal/adapters/clock"
	"github.com/mikey-austin/media_remote/internal/adapters/hass"
	"github.com/mikey-austin/media_remote/internal/adapters/idgen"
	"github.com/mikey-austin/media_remote/internal/adapters/mqttserver"
	"github.com/mikey-austin/media_remote/internal/modules/bridge"
	embeddedmqtt "github.com/mikey-austin/media_remote/internal/modules/embedded_mqtt"
	"github.com/mikey-austin/media_remote/pkg/hub"
	"github.com/mikey-austin/media_remote/pkg/remote"
)

const (
	nodeID     = "living-room"
	daemonUser = "mrd"
	daemonPass = "daemon-secret"
	clientUser = "panel"
	clientPass = "panel-secret"
)

type fakeHub struct {
	mu       sync.Mutex
	states   []hub.Entity
	commands []hub.Command
}

func (f *fakeHub) serve(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	_ = conn.WriteJSON(map[string]any{"type": hub.TypeAuthRequired})
	var auth hub.AuthMessage
	if err := conn.ReadJSON(&auth); err != nil {
		return
	}
	_ = conn.WriteJSON(map[string]any{"type": hub.TypeAuthOK})
	for {
		var cmd hub.Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		states := f.states
		f.mu.Unlock()
		switch cmd.Type {
		case hub.TypeGetStates:
			_ = conn.WriteJSON(map[string]any{"id": cmd.ID, "type": "result", "success": true, "result": states})
		default:
			_ = conn.WriteJSON(map[string]any{"id": cmd.ID, "type": "result", "success": true, "result": map[string]any{}})
		}
	}
}

func (f *fakeHub) services() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for _, cmd := range f.commands {
		if cmd.Type != hub.TypeCallService {
			continue
		}
		target := ""
		if cmd.Target != nil {
			target = cmd.Target.EntityID
		}
		out = append(out, cmd.Domain+"."+cmd.Service+"@"+target)
	}
	return out
}

type integrationHarness struct {
	ctx      context.Context
	hub      *fakeHub
	client   *mqttserver.Client
	clientID string
	replies  chan remote.ReplyEnvelope
	states   chan remote.BridgeState
}

func setupIntegration(t *testing.T) *integrationHarness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	t.Cleanup(cancel)
	logger := zap.NewNop()

	fh := &fakeHub{states: []hub.Entity{
		{EntityID: "media_player.kitchen", State: "playing", Attributes: map[string]any{"friendly_name": "Kitchen", "volume_level": 0.3}},
		{EntityID: "media_player.den", State: "idle", Attributes: map[string]any{"friendly_name": "Den"}},
	}}
	srv := httptest.NewServer(http.HandlerFunc(fh.serve))
	t.Cleanup(srv.Close)

	listen := freeAddr(t)
	broker, err := embeddedmqtt.NewModule(logger, embeddedmqtt.Config{
		Listen:    listen,
		Username:  daemonUser,
		Password:  daemonPass,
		TopicBase: remote.BaseTopic,
		Clients:   []embeddedmqtt.Credential{{Username: clientUser, Password: clientPass}},
	})
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	go func() { _ = broker.Run(ctx) }()
	select {
	case <-broker.Ready():
	case <-ctx.Done():
		t.Fatalf("broker not ready")
	}
	brokerURL := embeddedmqtt.BrokerURL(listen, false)

	hubClient := hass.NewClient(logger, srv.URL, "token")
	go func() { _ = hubClient.Run(ctx, 100*time.Millisecond) }()
	waitFor(t, hubClient.Connected)

	daemon, err := mqttserver.NewClient(mqttserver.Options{
		BrokerURL: brokerURL,
		ClientID:  "mrd-" + idgen.Generator{}.NewID(),
		Username:  daemonUser,
		Password:  daemonPass,
		Timeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("daemon mqtt: %v", err)
	}
	t.Cleanup(daemon.Close)

	mod, err := bridge.NewModule(logger, daemon, hubClient, clock.Clock{}, bridge.Config{
		NodeID:    nodeID,
		TopicBase: remote.BaseTopic,
	})
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	go func() { _ = mod.Run(ctx) }()

	clientID := "panel-" + idgen.Generator{}.NewID()
	client, err := mqttserver.NewClient(mqttserver.Options{
		BrokerURL: brokerURL,
		ClientID:  clientID,
		Username:  clientUser,
		Password:  clientPass,
		Timeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("client mqtt: %v", err)
	}
	t.Cleanup(client.Close)

	h := &integrationHarness{
		ctx:      ctx,
		hub:      fh,
		client:   client,
		clientID: clientID,
		replies:  make(chan remote.ReplyEnvelope, 8),
		states:   make(chan remote.BridgeState, 32),
	}
	err = client.Subscribe(remote.TopicReply(remote.BaseTopic, clientID), 1, func(_ paho.Client, msg paho.Message) {
		var reply remote.ReplyEnvelope
		if json.Unmarshal(msg.Payload(), &reply) == nil {
			h.replies <- reply
		}
	})
	if err != nil {
		t.Fatalf("subscribe reply: %v", err)
	}
	err = client.Subscribe(remote.TopicState(remote.BaseTopic, nodeID), 1, func(_ paho.Client, msg paho.Message) {
		var state remote.BridgeState
		if json.Unmarshal(msg.Payload(), &state) == nil {
			select {
			case h.states <- state:
			default:
			}
		}
	})
	if err != nil {
		t.Fatalf("subscribe state: %v", err)
	}
	return h
}

func TestBridgeStatePublishesActivePlayer(t *testing.T) {
	h := setupIntegration(t)
	for {
		select {
		case state := <-h.states:
			if state.Connected && state.Active == "media_player.kitchen" && len(state.Players) == 2 {
				return
			}
		case <-h.ctx.Done():
			t.Fatalf("no state with kitchen active")
		}
	}
}

func TestBridgePauseTargetsActivePlayer(t *testing.T) {
	h := setupIntegration(t)
	reply := publishCommand(t, h, remote.CmdPlayerPause, remote.PlayerBody{})
	if !reply.OK {
		t.Fatalf("expected ok reply, got %+v", reply.Err)
	}
	for _, call := range h.hub.services() {
		if strings.HasPrefix(call, "media_player.media_pause@") && strings.Contains(call, "kitchen") {
			return
		}
	}
	t.Fatalf("expected pause on kitchen, got %v", h.hub.services())
}

func TestBridgeUnknownPlayerReturnsNotFound(t *testing.T) {
	h := setupIntegration(t)
	reply := publishCommand(t, h, remote.CmdPlayerPlay, remote.PlayerBody{Entity: "garage"})
	if reply.Err == nil || reply.Err.Code != remote.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %+v", reply.Err)
	}
}

func TestClientCannotPublishState(t *testing.T) {
	h := setupIntegration(t)
	<-h.states
	if err := h.client.Publish(remote.TopicState(remote.BaseTopic, nodeID), 0, true, []byte(`{"connected":false}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	timeout := time.After(500 * time.Millisecond)
	for {
		select {
		case state := <-h.states:
			if !state.Connected {
				t.Fatalf("client state write was delivered")
			}
		case <-timeout:
			return
		}
	}
}

func publishCommand(t *testing.T, h *integrationHarness, cmdType string, body any) remote.ReplyEnvelope {
	t.Helper()
	cmd, err := remote.NewCommand(cmdType, body)
	if err != nil {
		t.Fatalf("build command: %v", err)
	}
	cmd.ID = idgen.Generator{}.NewID()
	cmd.TS = time.Now().Unix()
	cmd.From = h.clientID
	cmd.ReplyTo = remote.TopicReply(remote.BaseTopic, h.clientID)
	if err := h.client.PublishJSON(remote.TopicCommands(remote.BaseTopic, nodeID), 1, false, cmd); err != nil {
		t.Fatalf("publish: %v", err)
	}
	for {
		select {
		case reply := <-h.replies:
			if reply.ID == cmd.ID {
				return reply
			}
		case <-h.ctx.Done():
			t.Fatalf("timed out waiting for reply to %s", cmdType)
		}
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met")
}
