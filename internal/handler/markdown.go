package handler

import (
	"log/slog"
	"net/http"

	"skynotes/internal/httputil"
	"skynotes/internal/service/markdown"
)

// MarkdownHandler exposes the editor helpers.
type MarkdownHandler struct {
	renderer *markdown.Renderer
	logger   *slog.Logger
}

func NewMarkdownHandler(renderer *markdown.Renderer, logger *slog.Logger) *MarkdownHandler {
	return &MarkdownHandler{
		renderer: renderer,
		logger:   logger,
	}
}

type insertRequest struct {
	Text      string             `json:"text"`
	Selection markdown.Selection `json:"selection"`
	Symbol    string             `json:"symbol"`
}

type insertResponse struct {
	Text      string             `json:"text"`
	Selection markdown.Selection `json:"selection"`
}

type previewRequest struct {
	Content string `json:"content"`
}

type previewResponse struct {
	HTML      string `json:"html"`
	WordCount int    `json:"word_count"`
}

// Toolbar lists the editor buttons
// GET /api/markdown/toolbar
func (h *MarkdownHandler) Toolbar(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, markdown.Toolbar)
}

// Insert applies a toolbar marker at the selection
// POST /api/markdown/insert
func (h *MarkdownHandler) Insert(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Symbol == "" {
		httputil.RespondError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	text, sel := markdown.Insert(req.Text, req.Selection, req.Symbol)
	httputil.RespondJSON(w, http.StatusOK, insertResponse{Text: text, Selection: sel})
}

// Preview renders markdown to sanitized HTML
// POST /api/markdown/preview
func (h *MarkdownHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	html, err := h.renderer.Render(req.Content)
	if err != nil {
		h.logger.Error("markdown render failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to render preview")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, previewResponse{
		HTML:      html,
		WordCount: markdown.CountWords(req.Content),
	})
}
