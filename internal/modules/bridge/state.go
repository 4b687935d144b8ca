package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/internal/core"
	"github.com/mikey-austin/media_remote/pkg/hub"
	"github.com/mikey-austin/media_remote/pkg/remote"
)

// buildState renders the retained state document from the hub snapshot and
// the reconcilable controls. Evaluating the selection here clears an
// override that is idle or missing while another device is playing.
func (m *Module) buildState(ctx context.Context) remote.BridgeState {
	state := remote.BridgeState{Connected: m.hub.Connected(), Players: []remote.PlayerState{}}
	if !state.Connected {
		return state
	}
	players, err := m.service.ListPlayers(ctx)
	if err != nil {
		m.log.Debug("list players", zap.Error(err))
		return state
	}
	entities, err := m.hub.Entities(ctx)
	if err != nil {
		m.log.Debug("entities", zap.Error(err))
		return state
	}

	now := m.now()
	for _, info := range players.Players {
		e, ok := hub.FindEntity(entities, info.EntityID)
		if !ok {
			continue
		}
		controls := m.controlsFor(e.EntityID)
		controls.Observe(e)

		ps := remote.PlayerState{
			Entity:  e.EntityID,
			Name:    info.Name,
			State:   e.State,
			Kind:    string(info.Kind),
			Target:  info.Target,
			Volume:  controls.Volume.Value(),
			Shuffle: controls.Shuffle.Value(),
			Repeat:  string(controls.Repeat.Value()),
			Locked:  controls.Volume.Locked() || controls.Shuffle.Locked() || controls.Repeat.Locked(),
			Title:   e.MediaTitle(),
			Artist:  e.MediaArtist(),
			Album:   e.MediaAlbumName(),
		}
		if pos, ok := core.EstimatePosition(e, now); ok {
			ps.PositionMS = pos.Milliseconds()
		}
		if dur, ok := e.MediaDuration(); ok {
			ps.DurationMS = dur.Milliseconds()
		}
		if url, ok := m.hub.ContentPictureURL(e.EntityPicture()); ok {
			ps.Picture = url
		}
		if info.Active {
			state.Active = e.EntityID
		}
		if info.Override {
			state.Override = e.EntityID
		}
		state.Players = append(state.Players, ps)
	}
	return state
}

// publishState publishes the retained state when it differs from the last
// published document.
func (m *Module) publishState() {
	state := m.buildState(m.ctx)
	payload, err := json.Marshal(state)
	if err != nil {
		m.log.Error("marshal state", zap.Error(err))
		return
	}

	m.mu.Lock()
	same := bytes.Equal(payload, m.lastState)
	if !same {
		m.lastState = payload
	}
	m.mu.Unlock()
	if same {
		return
	}

	state.TS = m.now().Unix()
	stamped, err := json.Marshal(state)
	if err != nil {
		m.log.Error("marshal state", zap.Error(err))
		return
	}
	if err := m.client.Publish(remote.TopicState(m.config.TopicBase, m.config.NodeID), 1, true, stamped); err != nil {
		m.log.Warn("publish state", zap.Error(err))
	}
}

// memoryStore holds the daemon's manual override.
type memoryStore struct {
	mu       sync.Mutex
	id       string
	onChange func(string)
}

func (s *memoryStore) Get() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.id != "", nil
}

func (s *memoryStore) Put(entityID string) error {
	s.set(entityID)
	return nil
}

func (s *memoryStore) Clear() error {
	s.set("")
	return nil
}

func (s *memoryStore) set(id string) {
	s.mu.Lock()
	changed := s.id != id
	s.id = id
	onChange := s.onChange
	s.mu.Unlock()
	if changed && onChange != nil {
		onChange(id)
	}
}
