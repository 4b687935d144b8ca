package core

import (
	"sync"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

// SelectActive picks the primary target of transport controls.
//  1. a known manual override
//  2. the first playing group
//  3. the first playing device
//  4. the first device
func SelectActive(entities []hub.Entity, override string, kindOf KindFunc) string {
	if override != "" {
		if _, ok := hub.FindEntity(entities, override); ok {
			return override
		}
	}
	if kindOf != nil {
		for _, e := range entities {
			if e.IsPlaying() && kindOf(e) == KindGroup {
				return e.EntityID
			}
		}
	}
	for _, e := range entities {
		if e.IsPlaying() {
			return e.EntityID
		}
	}
	if len(entities) > 0 {
		return entities[0].EntityID
	}
	return ""
}

// OverrideStale reports whether the override should be dropped because it is
// not playing while some other device is.
func OverrideStale(entities []hub.Entity, override string) bool {
	if override == "" {
		return false
	}
	if e, ok := hub.FindEntity(entities, override); ok && e.IsPlaying() {
		return false
	}
	for _, e := range entities {
		if e.EntityID != override && e.IsPlaying() {
			return true
		}
	}
	return false
}

// Selection holds the manual override of the active player.
type Selection struct {
	mu       sync.Mutex
	override string
	onChange func(override string)
}

// NewSelection creates a selection seeded with override. onChange, if set, is
// called after every change so callers can persist it.
func NewSelection(override string, onChange func(override string)) *Selection {
	return &Selection{override: override, onChange: onChange}
}

// Override returns the current override, empty when none.
func (s *Selection) Override() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override
}

// Set makes entityID the manual override.
func (s *Selection) Set(entityID string) {
	s.mu.Lock()
	changed := s.override != entityID
	s.override = entityID
	s.mu.Unlock()
	if changed && s.onChange != nil {
		s.onChange(entityID)
	}
}

// Clear drops the override.
func (s *Selection) Clear() {
	s.Set("")
}

// Evaluate returns the active player for this frame. A stale override is
// cleared afterwards so the next frame follows the playing device.
func (s *Selection) Evaluate(entities []hub.Entity, kindOf KindFunc) string {
	s.mu.Lock()
	override := s.override
	s.mu.Unlock()

	active := SelectActive(entities, override, kindOf)
	if OverrideStale(entities, override) {
		s.mu.Lock()
		cleared := s.override == override
		if cleared {
			s.override = ""
		}
		s.mu.Unlock()
		if cleared && s.onChange != nil {
			s.onChange("")
		}
	}
	return active
}
