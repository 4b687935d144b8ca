package ports

import (
	"context"
	"time"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

// Hub issues commands to the automation hub and reads its entity snapshot.
type Hub interface {
	Connected() bool
	Entities(ctx context.Context) ([]hub.Entity, error)
	CallService(ctx context.Context, domain, service, target string, data map[string]any) error
	ContentPictureURL(raw string) (string, bool)
	BrowseCatalog(ctx context.Context, entityID, contentID, contentType string) (hub.BrowseResult, error)
	Watch(ctx context.Context) (<-chan hub.Entity, <-chan error)
}

// Clock returns the current time and realizes fixed delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}

// SelectionStore persists the manual player override between commands.
type SelectionStore interface {
	Get() (string, bool, error)
	Put(entityID string) error
	Clear() error
}

// Notifier delivers user-visible failure notices.
type Notifier interface {
	Notify(ctx context.Context, message string)
}
