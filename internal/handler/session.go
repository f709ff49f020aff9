package handler

import (
	"log/slog"
	"net/http"

	"skynotes/internal/domain/models"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/httputil"
	"skynotes/internal/service/notebook"
)

// SessionHandler reports the signed-in identity and prepares new accounts.
type SessionHandler struct {
	bootstrapper *notebook.Bootstrapper
	logger       *slog.Logger
}

func NewSessionHandler(bootstrapper *notebook.Bootstrapper, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		bootstrapper: bootstrapper,
		logger:       logger,
	}
}

// Me returns the identity of the request
// GET /api/me
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.GetSession(r))
}

type bootstrapResponse struct {
	Session models.Session `json:"session"`
	Folders []notes.Folder `json:"folders"`
	Created bool           `json:"created"`
}

// Bootstrap creates the default folders on first sign-in
// POST /api/me/bootstrap
// Returns 201 when folders were created, 200 when the account already had some
func (h *SessionHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}

	session := httputil.GetSession(r)
	folders, created, err := h.bootstrapper.EnsureDefaults(r.Context(), session)
	if err != nil {
		handleError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.RespondJSON(w, status, bootstrapResponse{
		Session: session,
		Folders: folders,
		Created: created,
	})
}
