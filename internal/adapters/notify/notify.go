package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"go.uber.org/zap"
)

// Terminal prints notices as pterm warnings on stderr.
type Terminal struct {
	Out io.Writer
}

// Notify prints message.
func (t Terminal) Notify(ctx context.Context, message string) {
	out := t.Out
	if out == nil {
		out = os.Stderr
	}
	_, _ = fmt.Fprint(out, pterm.Warning.Sprintln(message))
}

// Log records notices on a zap logger, for headless runs.
type Log struct {
	Logger *zap.Logger
}

// Notify logs message.
func (l Log) Notify(ctx context.Context, message string) {
	if l.Logger == nil {
		return
	}
	l.Logger.Warn("notice", zap.String("message", message))
}
