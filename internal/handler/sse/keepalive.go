package sse

import (
	"context"
	"log/slog"
	"time"
)

// KeepAliveWriter abstracts the mechanism for writing keep-alive messages
// Allows testing without real HTTP connections
type KeepAliveWriter interface {
	// WriteKeepAlive writes a keep-alive message (SSE comment)
	// Returns error if connection is closed or write fails
	WriteKeepAlive() error
}

// KeepAlive pings writer every interval until ctx is done or a write fails.
// The returned channel closes when pinging stops.
func KeepAlive(ctx context.Context, interval time.Duration, writer KeepAliveWriter, logger *slog.Logger) <-chan struct{} {
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					// Connection dropped
					logger.Warn("keep-alive write failed, stopping",
						"error", err,
					)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return stopped
}
