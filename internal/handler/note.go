package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"skynotes/internal/config"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/domain/repositories"
	"skynotes/internal/httputil"
	"skynotes/internal/service/form"
	"skynotes/internal/service/notebook"
	"skynotes/internal/service/views"
)

// NoteHandler handles note writes. Reads go through ViewHandler.
type NoteHandler struct {
	store    repositories.DocumentStore
	views    *views.Service
	importer *notebook.Importer
	logger   *slog.Logger
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(store repositories.DocumentStore, viewService *views.Service, importer *notebook.Importer, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		store:    store,
		views:    viewService,
		importer: importer,
		logger:   logger,
	}
}

type createNoteRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	FolderID string `json:"folderId"`
	IsPublic bool   `json:"isPublic"`
}

type updateNoteRequest struct {
	Title    httputil.OptionalString `json:"title"`
	Content  httputil.OptionalString `json:"content"`
	FolderID httputil.OptionalString `json:"folderId"`
	IsPublic httputil.OptionalBool   `json:"isPublic"`
}

// CreateNote creates a note in one of the user's folders
// POST /api/notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}

	var req createNoteRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.create(w, r, notes.Note{
		Title:    req.Title,
		Content:  req.Content,
		FolderID: req.FolderID,
		IsPublic: req.IsPublic,
	})
}

func (h *NoteHandler) create(w http.ResponseWriter, r *http.Request, n notes.Note) {
	ctrl := form.NewNoteController(h.store, httputil.GetSession(r), h.logger)
	if err := ctrl.Edit(n); err != nil {
		handleError(w, err)
		return
	}
	if err := ctrl.Submit(r.Context()); err != nil {
		handleFormError(w, err, ctrl.Message())
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, formResponse[notes.Note]{
		Data:        ctrl.Values(),
		State:       ctrl.State(),
		Destination: ctrl.Destination(),
	})
}

// UpdateNote patches a note's fields
// PATCH /api/notes/{id}
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Note ID")
	if !ok {
		return
	}

	var req updateNoteRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctrl := form.NewNoteController(h.store, httputil.GetSession(r), h.logger)
	if err := ctrl.Load(r.Context(), id); err != nil {
		handleFormError(w, err, ctrl.Message())
		return
	}

	n := ctrl.Values()
	req.Title.Apply(&n.Title)
	req.Content.Apply(&n.Content)
	req.FolderID.Apply(&n.FolderID)
	req.IsPublic.Apply(&n.IsPublic)

	if err := ctrl.Edit(n); err != nil {
		handleError(w, err)
		return
	}
	if err := ctrl.Submit(r.Context()); err != nil {
		handleFormError(w, err, ctrl.Message())
		return
	}

	httputil.RespondJSON(w, http.StatusOK, formResponse[notes.Note]{
		Data:        ctrl.Values(),
		State:       ctrl.State(),
		Destination: ctrl.Destination(),
	})
}

// DeleteNote deletes a note
// DELETE /api/notes/{id}?confirm=true
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Note ID")
	if !ok {
		return
	}

	ctrl := form.NewNoteController(h.store, httputil.GetSession(r), h.logger)
	if err := ctrl.Load(r.Context(), id); err != nil {
		handleFormError(w, err, ctrl.Message())
		return
	}
	confirmDelete(w, r, ctrl.Delete, ctrl.Message, ctrl.Destination)
}

// ToggleVisibility flips the public flag
// POST /api/notes/{id}/visibility/toggle
func (h *NoteHandler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Note ID")
	if !ok {
		return
	}

	n, err := h.views.ToggleVisibility(r.Context(), httputil.GetSession(r), id)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, n)
}

// ImportNote creates a note from an uploaded .md or .html file
// POST /api/notes/import (multipart: file, optional folderId)
func (h *NoteHandler) ImportNote(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)
	if err := r.ParseMultipartForm(config.MaxRequestBodyBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		httputil.RespondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	draft, err := h.importer.Parse(header.Filename, data)
	if err != nil {
		handleError(w, err)
		return
	}

	session := httputil.GetSession(r)
	folders, err := h.views.Folders(r.Context(), session)
	if err != nil {
		handleError(w, err)
		return
	}

	h.logger.Debug("importing note",
		"filename", header.Filename,
		"size", len(data),
		"user_id", session.UserID,
	)

	h.create(w, r, notes.Note{
		Title:    draft.Title,
		Content:  draft.Content,
		IsPublic: draft.IsPublic,
		FolderID: views.ResolveFolder(folders, draft.Folder, r.FormValue("folderId")),
	})
}
