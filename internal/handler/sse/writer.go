package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Stream writes events and keep-alive comments to one SSE response. Writes are
// serialized, so the keep-alive goroutine and the event loop can share it.
type Stream struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	flusher  http.Flusher
	streamID string
	clientID string
	eventIDs bool
	seq      int
}

// NewStream creates a writer for an SSE response whose headers are already set
func NewStream(
	w http.ResponseWriter,
	flusher http.Flusher,
	streamID string,
	clientID string,
	eventIDs bool,
) *Stream {
	return &Stream{
		w:        w,
		flusher:  flusher,
		streamID: streamID,
		clientID: clientID,
		eventIDs: eventIDs,
	}
}

// WriteEvent writes one named event with a JSON payload and flushes. Event ids, when
// enabled, read <stream>/<client>-<seq>.
func (s *Stream) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eventIDs {
		s.seq++
		if _, err := fmt.Fprintf(s.w, "id: %s/%s-%d\n", s.streamID, s.clientID, s.seq); err != nil {
			return fmt.Errorf("write event id: %w", err)
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment (: keepalive\n\n) and flushes
// Returns error if connection is closed or write fails
func (s *Stream) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// SSE spec: Lines starting with : are comments (ignored by client)
	if _, err := fmt.Fprintf(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}
