package embeddedmqtt

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

// newSlogLogger routes mochi's slog output into the module's zap core.
func newSlogLogger(logger *zap.Logger) *slog.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return slog.New(zapslog.NewHandler(logger.Core()))
}
