package sse

import "time"

// Config holds configuration for SSE connections
type Config struct {
	// KeepAliveInterval is how often to send keep-alive pings to prevent timeouts
	// Recommended: 10-15 seconds for Vercel Edge Runtime
	KeepAliveInterval time.Duration

	// EventIDs numbers every event (id: field). Debug aid only; snapshots are
	// complete, so clients never need Last-Event-ID replay.
	EventIDs bool
}

// DefaultConfig returns the default SSE configuration
// 10 seconds is safe for Vercel Edge Runtime and most proxies
func DefaultConfig() *Config {
	return &Config{
		KeepAliveInterval: 10 * time.Second,
	}
}
