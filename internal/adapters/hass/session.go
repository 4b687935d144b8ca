package hass

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/pkg/hub"
)

const defaultRetry = 5 * time.Second

// Run keeps the client connected until ctx is done. A rejected token stops
// the loop; other failures are retried after retry.
func (c *Client) Run(ctx context.Context, retry time.Duration) error {
	if retry <= 0 {
		retry = defaultRetry
	}
	for {
		err := c.Connect(ctx)
		if errors.Is(err, hub.ErrAuthInvalid) {
			return err
		}
		if err != nil {
			c.log.Warn("hub connect failed", zap.Error(err), zap.Duration("retry", retry))
		} else {
			select {
			case <-ctx.Done():
				return c.Close()
			case <-c.Done():
				c.log.Warn("hub connection lost", zap.Duration("retry", retry))
			}
		}

		select {
		case <-ctx.Done():
			return c.Close()
		case <-time.After(retry):
		}
	}
}
