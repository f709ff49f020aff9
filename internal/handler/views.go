package handler

import (
	"context"
	"log/slog"
	"net/http"

	"skynotes/internal/domain/models/notes"
	"skynotes/internal/handler/sse"
	"skynotes/internal/httputil"
	"skynotes/internal/service/views"
)

// ViewHandler serves the read-only screens, once or as SSE streams.
type ViewHandler struct {
	views     *views.Service
	sseConfig *sse.Config
	logger    *slog.Logger
}

func NewViewHandler(viewService *views.Service, sseConfig *sse.Config, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{
		views:     viewService,
		sseConfig: sseConfig,
		logger:    logger,
	}
}

func homeOptions(r *http.Request) views.HomeOptions {
	return views.HomeOptions{
		Visibility: notes.ParseVisibility(r.URL.Query().Get("visibility")),
		Query:      r.URL.Query().Get("q"),
	}
}

// Home returns recent notes and folders
// GET /api/home?visibility=all|public|private&q=
func (h *ViewHandler) Home(w http.ResponseWriter, r *http.Request) {
	home, err := h.views.Home(r.Context(), httputil.GetSession(r), homeOptions(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, home)
}

// HomeStream streams the home screen
// GET /api/home/stream
func (h *ViewHandler) HomeStream(w http.ResponseWriter, r *http.Request) {
	session, opts := httputil.GetSession(r), homeOptions(r)
	serveStream(w, r, "home", h.sseConfig, h.logger, func(ctx context.Context, emit func(any), onError func(error)) (views.Release, error) {
		return h.views.WatchHome(ctx, session, opts, func(home *views.Home) { emit(home) }, onError)
	})
}

// ListFolders returns the user's folders by name
// GET /api/folders
func (h *ViewHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.views.Folders(r.Context(), httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folders)
}

// FoldersStream streams the folder list
// GET /api/folders/stream
func (h *ViewHandler) FoldersStream(w http.ResponseWriter, r *http.Request) {
	session := httputil.GetSession(r)
	serveStream(w, r, "folders", h.sseConfig, h.logger, func(ctx context.Context, emit func(any), onError func(error)) (views.Release, error) {
		return h.views.WatchFolders(ctx, session, func(folders []notes.Folder) { emit(folders) }, onError)
	})
}

// GetFolder returns a folder with its notes
// GET /api/folders/{id}?q=
func (h *ViewHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}
	detail, err := h.views.Folder(r.Context(), httputil.GetSession(r), id, r.URL.Query().Get("q"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, detail)
}

// FolderStream streams a folder's notes
// GET /api/folders/{id}/stream
func (h *ViewHandler) FolderStream(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}
	session := httputil.GetSession(r)
	serveStream(w, r, "folder:"+id, h.sseConfig, h.logger, func(ctx context.Context, emit func(any), onError func(error)) (views.Release, error) {
		return h.views.WatchFolder(ctx, session, id, func(d *views.FolderDetail) { emit(d) }, onError)
	})
}

// GetNote returns a note with rendered HTML
// GET /api/notes/{id}
func (h *ViewHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Note ID")
	if !ok {
		return
	}
	detail, err := h.views.Note(r.Context(), httputil.GetSession(r), id)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, detail)
}

// NewNote prepares the editor for a new note
// GET /api/notes/new?folderId=
func (h *ViewHandler) NewNote(w http.ResponseWriter, r *http.Request) {
	draft, err := h.views.NewNoteDraft(r.Context(), httputil.GetSession(r), r.URL.Query().Get("folderId"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, draft)
}

// ExportNote downloads a note as markdown with frontmatter
// GET /api/notes/{id}/export
func (h *ViewHandler) ExportNote(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Note ID")
	if !ok {
		return
	}
	filename, data, err := h.views.Export(r.Context(), httputil.GetSession(r), id)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondDownload(w, filename, "text/markdown; charset=utf-8", data)
}
