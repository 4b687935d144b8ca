package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

type hubCall struct {
	Domain  string
	Service string
	Target  string
	Data    map[string]any
	At      time.Time
}

func (c hubCall) Name() string {
	return c.Domain + "." + c.Service
}

type stubHub struct {
	mu           sync.Mutex
	disconnected bool
	entities     []hub.Entity
	calls        []hubCall
	failures     map[string]error
	clock        *fakeClock
	onCall       func(hubCall)
	browse       hub.BrowseResult
	updates      []hub.Entity
}

func (h *stubHub) Connected() bool { return !h.disconnected }

func (h *stubHub) Entities(ctx context.Context) ([]hub.Entity, error) {
	if h.disconnected {
		return nil, hub.ErrNotConnected
	}
	return h.entities, nil
}

// failOn makes calls to domain.service (optionally "@target") return err.
func (h *stubHub) failOn(key string, err error) {
	if h.failures == nil {
		h.failures = map[string]error{}
	}
	h.failures[key] = err
}

func (h *stubHub) CallService(ctx context.Context, domain, service, target string, data map[string]any) error {
	call := hubCall{Domain: domain, Service: service, Target: target, Data: data}
	if h.clock != nil {
		call.At = h.clock.Now()
	}
	if h.onCall != nil {
		h.onCall(call)
	}
	h.mu.Lock()
	h.calls = append(h.calls, call)
	h.mu.Unlock()
	if h.disconnected {
		return hub.ErrNotConnected
	}
	if err, ok := h.failures[call.Name()+"@"+target]; ok {
		return err
	}
	if err, ok := h.failures[call.Name()]; ok {
		return err
	}
	return nil
}

func (h *stubHub) ContentPictureURL(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	return "http://hub.local" + raw, true
}

func (h *stubHub) BrowseCatalog(ctx context.Context, entityID, contentID, contentType string) (hub.BrowseResult, error) {
	return h.browse, nil
}

func (h *stubHub) Watch(ctx context.Context) (<-chan hub.Entity, <-chan error) {
	out := make(chan hub.Entity, len(h.updates))
	errs := make(chan error)
	for _, e := range h.updates {
		out <- e
	}
	close(out)
	close(errs)
	return out, errs
}

func (h *stubHub) callNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.calls))
	for _, c := range h.calls {
		names = append(names, fmt.Sprintf("%s@%s", c.Name(), c.Target))
	}
	return names
}

func (h *stubHub) callsTo(name string) []hubCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hubCall
	for _, c := range h.calls {
		if c.Name() == name {
			out = append(out, c)
		}
	}
	return out
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, message string) {
	n.messages = append(n.messages, message)
}

type memorySelectionStore struct {
	id  string
	set bool
}

func (s *memorySelectionStore) Get() (string, bool, error) { return s.id, s.set, nil }
func (s *memorySelectionStore) Put(id string) error {
	s.id, s.set = id, true
	return nil
}
func (s *memorySelectionStore) Clear() error {
	s.id, s.set = "", false
	return nil
}

var errBoom = errors.New("boom")

func unsupported() error {
	return fmt.Errorf("hub error: %w", hub.ErrNotSupported)
}

func player(id, state string, attrs map[string]any) hub.Entity {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return hub.Entity{EntityID: id, State: state, Attributes: attrs}
}
