package core

import (
	"strings"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

// TargetResolver maps a device id to the id that should receive commands.
// ok is false when there is no alternate and the original id is used as-is.
type TargetResolver interface {
	ResolveTarget(entityID string, entities []hub.Entity) (string, bool)
}

// NameResolver resolves alternates from naming conventions and overrides.
// Rules are applied in order, first match wins:
//  1. explicit override, returned even if the entity is not known yet
//  2. ids already carrying an alternate prefix pass through
//  3. exact primary to alternate prefix substitution
//  4. containment match on the stripped core name
type NameResolver struct {
	Config ResolverConfig
}

// NewNameResolver creates a resolver with defaults applied.
func NewNameResolver(cfg ResolverConfig) NameResolver {
	return NameResolver{Config: cfg.WithDefaults()}
}

// ResolveTarget implements TargetResolver.
func (r NameResolver) ResolveTarget(entityID string, entities []hub.Entity) (string, bool) {
	if entityID == "" {
		return "", false
	}
	if forced, ok := r.Config.Overrides[entityID]; ok && forced != "" {
		return forced, true
	}
	if r.IsAlternate(entityID) {
		return entityID, true
	}

	if strings.HasPrefix(entityID, r.Config.PrimaryPrefix) {
		name := strings.TrimPrefix(entityID, r.Config.PrimaryPrefix)
		for _, prefix := range r.Config.AlternatePrefixes {
			candidate := prefix + name
			if _, ok := hub.FindEntity(entities, candidate); ok {
				return candidate, true
			}
		}
	}

	core := r.coreName(entityID)
	if core == "" {
		return "", false
	}
	// Ties go to the first candidate in entity order.
	for _, e := range entities {
		if e.EntityID == entityID || !r.IsAlternate(e.EntityID) {
			continue
		}
		if strings.Contains(e.EntityID, core) {
			return e.EntityID, true
		}
	}
	return "", false
}

// IsAlternate reports whether id already carries an alternate prefix.
func (r NameResolver) IsAlternate(entityID string) bool {
	for _, prefix := range r.Config.AlternatePrefixes {
		if prefix != "" && strings.HasPrefix(entityID, prefix) {
			return true
		}
	}
	return false
}

func (r NameResolver) coreName(entityID string) string {
	name := entityID
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	for _, prefix := range r.Config.StripPrefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			break
		}
	}
	return name
}

// TableResolver resolves strictly from an explicit mapping.
type TableResolver struct {
	Table map[string]string
}

// ResolveTarget implements TargetResolver.
func (r TableResolver) ResolveTarget(entityID string, entities []hub.Entity) (string, bool) {
	target, ok := r.Table[entityID]
	if !ok || target == "" {
		return "", false
	}
	return target, true
}

// EffectiveTarget returns the resolved id, or entityID when there is none.
func EffectiveTarget(r TargetResolver, entityID string, entities []hub.Entity) string {
	if r == nil {
		return entityID
	}
	if resolved, ok := r.ResolveTarget(entityID, entities); ok {
		return resolved
	}
	return entityID
}
