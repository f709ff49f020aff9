package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"skynotes/internal/domain/models/notes"
	"skynotes/internal/domain/repositories"
	"skynotes/internal/httputil"
	"skynotes/internal/service/form"
)

// FolderHandler handles folder HTTP requests
type FolderHandler struct {
	store  repositories.DocumentStore
	logger *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(store repositories.DocumentStore, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{
		store:  store,
		logger: logger,
	}
}

type createFolderRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateFolderRequest struct {
	Name        httputil.OptionalString `json:"name"`
	Description httputil.OptionalString `json:"description"`
}

// CreateFolder creates a new folder
// POST /api/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}

	var req createFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctrl := form.NewFolderController(h.store, httputil.GetSession(r), h.logger)
	if err := ctrl.Edit(notes.Folder{Name: req.Name, Description: req.Description}); err != nil {
		handleError(w, err)
		return
	}
	if err := ctrl.Submit(r.Context()); err != nil {
		handleFormError(w, err, ctrl.Message())
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, formResponse[notes.Folder]{
		Data:        ctrl.Values(),
		State:       ctrl.State(),
		Destination: ctrl.Destination(),
	})
}

// UpdateFolder patches name and description
// PATCH /api/folders/{id}
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	var req updateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctrl := form.NewFolderController(h.store, httputil.GetSession(r), h.logger)
	if err := ctrl.Load(r.Context(), id); err != nil {
		handleFormError(w, err, ctrl.Message())
		return
	}

	folder := ctrl.Values()
	req.Name.Apply(&folder.Name)
	req.Description.Apply(&folder.Description)

	if err := ctrl.Edit(folder); err != nil {
		handleError(w, err)
		return
	}
	if err := ctrl.Submit(r.Context()); err != nil {
		handleFormError(w, err, ctrl.Message())
		return
	}

	httputil.RespondJSON(w, http.StatusOK, formResponse[notes.Folder]{
		Data:        ctrl.Values(),
		State:       ctrl.State(),
		Destination: ctrl.Destination(),
	})
}

// DeleteFolder deletes a folder. Notes filed under it are left in place.
// DELETE /api/folders/{id}?confirm=true
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	ctrl := form.NewFolderController(h.store, httputil.GetSession(r), h.logger)
	if err := ctrl.Load(r.Context(), id); err != nil {
		handleFormError(w, err, ctrl.Message())
		return
	}
	confirmDelete(w, r, ctrl.Delete, ctrl.Message, ctrl.Destination)
}

// confirmDelete runs a controller delete, answering the prompt from ?confirm=true.
// An unconfirmed delete responds 400 with the prompt so the client can ask.
func confirmDelete(
	w http.ResponseWriter,
	r *http.Request,
	del func(ctx context.Context, confirm func(string) bool) error,
	message func() string,
	destination func() string,
) {
	confirmed := httputil.QueryBool(r, "confirm")
	var prompt string
	err := del(r.Context(), func(p string) bool {
		prompt = p
		return confirmed
	})
	switch {
	case errors.Is(err, form.ErrCancelled):
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, "delete not confirmed", map[string]interface{}{
			"prompt": prompt,
		})
	case err != nil:
		handleFormError(w, err, message())
	default:
		httputil.RespondJSON(w, http.StatusOK, map[string]string{
			"state":       form.Deleted.String(),
			"destination": destination(),
		})
	}
}
