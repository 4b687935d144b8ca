package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/internal/adapters/idgen"
	"github.com/mikey-austin/media_remote/internal/core"
	"github.com/mikey-austin/media_remote/internal/ports"
	"github.com/mikey-austin/media_remote/pkg/remote"
)

// mqttClient abstracts MQTT operations.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// Config configures the bridge module.
type Config struct {
	NodeID         string
	TopicBase      string
	Name           string
	Core           core.Config
	Controls       core.ControlsConfig
	Tick           time.Duration
	CommandTimeout time.Duration
	// VisibleTTL is how long a client counts as visible after its last
	// visibility report.
	VisibleTTL time.Duration
	IDs        ports.IDGen
}

// Module exposes the core to presentation clients over MQTT. It owns the
// per-player reconcilable controls, the active selection and the progress
// ticker.
type Module struct {
	log        *zap.Logger
	client     mqttClient
	hub        ports.Hub
	clock      ports.Clock
	service    core.Service
	dispatcher core.Dispatcher
	store      *memoryStore
	progress   *core.Progress
	config     Config
	cmdTopic   string
	ctx        context.Context

	flowMu sync.Mutex
	flows  sync.WaitGroup

	mu        sync.Mutex
	controls  map[string]*core.Controls
	visible   map[string]time.Time
	lastState []byte
}

// NewModule creates a bridge module.
func NewModule(log *zap.Logger, client mqttClient, hub ports.Hub, clock ports.Clock, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("bridge node_id required")
	}
	if hub == nil {
		return nil, errors.New("bridge requires a hub")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = remote.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Media Remote Bridge"
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if cfg.VisibleTTL <= 0 {
		cfg.VisibleTTL = 90 * time.Second
	}
	if cfg.IDs == nil {
		cfg.IDs = idgen.Generator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.Core.Resolver = cfg.Core.Resolver.WithDefaults()
	cfg.Core.Playback = cfg.Core.Playback.WithDefaults()
	cfg.Controls = cfg.Controls.WithDefaults()

	m := &Module{
		log:      log,
		client:   client,
		hub:      hub,
		clock:    clock,
		config:   cfg,
		cmdTopic: remote.TopicCommands(cfg.TopicBase, cfg.NodeID),
		ctx:      context.Background(),
		controls: map[string]*core.Controls{},
		visible:  map[string]time.Time{},
	}
	resolver := core.NewNameResolver(cfg.Core.Resolver)
	m.store = &memoryStore{onChange: m.selectionChanged}
	m.dispatcher = core.Dispatcher{Hub: hub, Resolver: resolver, Logger: log}
	m.service = core.Service{
		Hub:        hub,
		Resolver:   resolver,
		Clock:      clock,
		Selections: m.store,
		Notifier:   eventNotifier{m: m},
		Config:     cfg.Core,
		Logger:     log,
	}
	m.progress = core.NewProgress(cfg.Tick, func(time.Time) {
		if m.expireVisible() {
			return
		}
		m.publishState()
	})
	m.progress.Suspend()
	return m, nil
}

// Run starts the bridge.
func (m *Module) Run(ctx context.Context) error {
	m.ctx = ctx
	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(msg)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)
	defer m.flows.Wait()

	if err := m.publishPresence(); err != nil {
		return err
	}
	m.log.Info("bridge ready", zap.String("node_id", m.config.NodeID), zap.String("cmd_topic", m.cmdTopic))

	updates, errs := m.hub.Watch(ctx)
	go func() {
		_ = m.progress.Run(ctx)
	}()
	m.publishState()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				<-ctx.Done()
				return nil
			}
			if update.Domain() != "media_player" {
				continue
			}
			m.controlsFor(update.EntityID).Observe(update)
			m.publishState()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.log.Warn("hub watch error", zap.Error(err))
			m.publishState()
		}
	}
}

func (m *Module) publishPresence() error {
	presence := remote.Presence{
		NodeID: m.config.NodeID,
		Kind:   "bridge",
		Name:   m.config.Name,
		TS:     m.now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(remote.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) publishEvent(evt remote.Event) {
	evt.ID = m.config.IDs.NewID()
	evt.TS = m.now().Unix()
	payload, err := json.Marshal(evt)
	if err != nil {
		m.log.Error("marshal event", zap.Error(err))
		return
	}
	if err := m.client.Publish(remote.TopicEvents(m.config.TopicBase, m.config.NodeID), 1, false, payload); err != nil {
		m.log.Warn("publish event", zap.String("type", evt.Type), zap.Error(err))
	}
}

func (m *Module) controlsFor(entityID string) *core.Controls {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controls[entityID]
	if !ok {
		c = core.NewControls(entityID, m.dispatcher, m.config.Controls, m.now, m.log)
		m.controls[entityID] = c
	}
	return c
}

func (m *Module) setVisible(clientID string, visible bool) {
	m.mu.Lock()
	if visible {
		m.visible[clientID] = m.now()
	} else {
		delete(m.visible, clientID)
	}
	anyVisible := len(m.visible) > 0
	m.mu.Unlock()

	if anyVisible {
		m.progress.Resume()
		return
	}
	m.progress.Suspend()
}

// expireVisible forgets clients that stopped reporting visibility and
// suspends progress once none remain. It reports whether it suspended.
func (m *Module) expireVisible() bool {
	now := m.now()
	m.mu.Lock()
	for id, seen := range m.visible {
		if now.Sub(seen) >= m.config.VisibleTTL {
			delete(m.visible, id)
			m.log.Debug("client visibility expired", zap.String("client", id))
		}
	}
	anyVisible := len(m.visible) > 0
	m.mu.Unlock()

	if anyVisible {
		return false
	}
	m.progress.Suspend()
	return true
}

func (m *Module) selectionChanged(override string) {
	m.publishEvent(remote.Event{Type: remote.EvtSelection, Entity: override})
}

func (m *Module) now() time.Time {
	if m.clock == nil {
		return time.Now()
	}
	return m.clock.Now()
}

// eventNotifier turns user-visible notices into bridge events.
type eventNotifier struct {
	m *Module
}

func (n eventNotifier) Notify(_ context.Context, message string) {
	n.m.publishEvent(remote.Event{Type: remote.EvtPlaybackFailed, Message: message})
}
