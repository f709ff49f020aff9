package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"skynotes/internal/domain"
	"skynotes/internal/handler/sse"
	"skynotes/internal/httputil"
	"skynotes/internal/service/views"
)

// watchFunc starts a live view. emit and onError may be called from any goroutine
// until the returned release runs.
type watchFunc func(ctx context.Context, emit func(any), onError func(error)) (views.Release, error)

type streamEvent struct {
	name string
	data any
}

// streamErrorPayload is the data of an "error" event.
type streamErrorPayload struct {
	Message string `json:"message"`
}

// serveStream runs watch and forwards its deliveries as SSE events ("snapshot" and
// "error") until the client goes away.
func serveStream(w http.ResponseWriter, r *http.Request, name string, cfg *sse.Config, logger *slog.Logger, watch watchFunc) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	clientID := uuid.New().String()
	events := make(chan streamEvent, 16)
	done := make(chan struct{})

	send := func(e streamEvent) {
		select {
		case events <- e:
		case <-done:
		case <-ctx.Done():
		}
	}

	release, err := watch(ctx,
		func(v any) { send(streamEvent{name: "snapshot", data: v}) },
		func(err error) {
			send(streamEvent{name: "error", data: streamErrorPayload{Message: domain.UserMessage(err)}})
		},
	)
	if err != nil {
		handleError(w, err)
		return
	}
	defer release()
	// Runs before release, so a blocked send cannot hold up the release.
	defer close(done)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := sse.NewStream(w, flusher, name, clientID, cfg.EventIDs)
	stopped := sse.KeepAlive(ctx, cfg.KeepAliveInterval, stream, logger)

	logger.Debug("SSE stream established",
		"stream", name,
		"client_id", clientID,
	)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("SSE client disconnected",
				"stream", name,
				"client_id", clientID,
			)
			return
		case <-stopped:
			return
		case e := <-events:
			if err := stream.WriteEvent(e.name, e.data); err != nil {
				logger.Info("client disconnected during event write",
					"stream", name,
					"client_id", clientID,
					"error", err,
				)
				return
			}
		}
	}
}
