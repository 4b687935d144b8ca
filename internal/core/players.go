package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

const mediaPlayerDomain = "media_player"

// MediaPlayers filters entities to the media_player domain, keeping order.
func MediaPlayers(entities []hub.Entity) []hub.Entity {
	out := make([]hub.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Domain() == mediaPlayerDomain {
			out = append(out, e)
		}
	}
	return out
}

// ResolvePlayer resolves a user selector to a player entity. Selectors may be
// an entity id, an alias, a friendly name or the object id.
func ResolvePlayer(selector string, players []hub.Entity, aliases map[string]string) (hub.Entity, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return hub.Entity{}, &CLIError{Code: ExitUsage, Msg: "selector required"}
	}

	if alias, ok := aliases[selector]; ok {
		selector = alias
	}
	if strings.Contains(selector, ".") {
		if e, ok := hub.FindEntity(players, selector); ok {
			return e, nil
		}
	}

	matches := make([]hub.Entity, 0)
	for _, e := range players {
		objectID := strings.TrimPrefix(e.EntityID, e.Domain()+".")
		if strings.EqualFold(e.FriendlyName(), selector) || strings.EqualFold(objectID, selector) {
			matches = append(matches, e)
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return hub.Entity{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no player matches %q", selector)}
	}
	return hub.Entity{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous selector %q: %s", selector, suggestionList(matches))}
}

func suggestionList(matches []hub.Entity) string {
	names := make([]string, 0, len(matches))
	for _, e := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", e.FriendlyName(), e.EntityID))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
