package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"skynotes/internal/domain/models"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/handler/sse"
	"skynotes/internal/httputil"
	"skynotes/internal/repository/memory"
	"skynotes/internal/service/form"
	"skynotes/internal/service/markdown"
	"skynotes/internal/service/notebook"
	"skynotes/internal/service/views"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	store *memory.Store
	mux   http.Handler
}

// newTestServer wires the handlers the way cmd/server does. The caller's identity
// comes from the X-Test-User header instead of a token.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	n := 0
	store := memory.New(testLogger(), memory.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}))
	t.Cleanup(func() { store.Close() })

	logger := testLogger()
	renderer := markdown.NewRenderer()
	viewService := views.NewService(store, renderer, logger)

	viewHandler := NewViewHandler(viewService, sse.DefaultConfig(), logger)
	folderHandler := NewFolderHandler(store, logger)
	noteHandler := NewNoteHandler(store, viewService, notebook.NewImporter(), logger)
	sessionHandler := NewSessionHandler(notebook.NewBootstrapper(store, logger), logger)
	markdownHandler := NewMarkdownHandler(renderer, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", HealthCheck)
	mux.HandleFunc("GET /api/me", sessionHandler.Me)
	mux.HandleFunc("POST /api/me/bootstrap", sessionHandler.Bootstrap)
	mux.HandleFunc("GET /api/home", viewHandler.Home)
	mux.HandleFunc("GET /api/home/stream", viewHandler.HomeStream)
	mux.HandleFunc("GET /api/folders", viewHandler.ListFolders)
	mux.HandleFunc("POST /api/folders", folderHandler.CreateFolder)
	mux.HandleFunc("GET /api/folders/{id}", viewHandler.GetFolder)
	mux.HandleFunc("PATCH /api/folders/{id}", folderHandler.UpdateFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", folderHandler.DeleteFolder)
	mux.HandleFunc("GET /api/notes/new", viewHandler.NewNote)
	mux.HandleFunc("POST /api/notes", noteHandler.CreateNote)
	mux.HandleFunc("POST /api/notes/import", noteHandler.ImportNote)
	mux.HandleFunc("GET /api/notes/{id}", viewHandler.GetNote)
	mux.HandleFunc("PATCH /api/notes/{id}", noteHandler.UpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", noteHandler.DeleteNote)
	mux.HandleFunc("POST /api/notes/{id}/visibility/toggle", noteHandler.ToggleVisibility)
	mux.HandleFunc("GET /api/notes/{id}/export", viewHandler.ExportNote)
	mux.HandleFunc("GET /api/markdown/toolbar", markdownHandler.Toolbar)
	mux.HandleFunc("POST /api/markdown/insert", markdownHandler.Insert)
	mux.HandleFunc("POST /api/markdown/preview", markdownHandler.Preview)

	withUser := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := r.Header.Get("X-Test-User"); user != "" {
			r = httputil.WithSession(r, models.Session{UserID: user})
		}
		mux.ServeHTTP(w, r)
	})
	return &testServer{store: store, mux: withUser}
}

func (s *testServer) do(t *testing.T, user, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) folder(t *testing.T, owner, name string) string {
	t.Helper()
	id, err := s.store.Create(context.Background(), notebook.FoldersCollection,
		notebook.FolderCreateFields(notes.Folder{Name: name, OwnerID: owner}))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (s *testServer) note(t *testing.T, owner, folderID, title string) string {
	t.Helper()
	id, err := s.store.Create(context.Background(), notebook.NotesCollection,
		notebook.NoteCreateFields(notes.Note{Title: title, Content: "Some *content*", OwnerID: owner, FolderID: folderID}))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "", http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestCreateNote(t *testing.T) {
	s := newTestServer(t)
	ideas := s.folder(t, "alice", "Ideas")
	bobs := s.folder(t, "bob", "Bob's")

	tests := []struct {
		name     string
		user     string
		body     map[string]any
		wantCode int
	}{
		{"created", "alice", map[string]any{"title": "Hello", "content": "# Hi", "folderId": ideas}, http.StatusCreated},
		{"blank title", "alice", map[string]any{"title": "   ", "folderId": ideas}, http.StatusBadRequest},
		{"missing folder", "alice", map[string]any{"title": "Hello"}, http.StatusBadRequest},
		{"foreign folder", "alice", map[string]any{"title": "Hello", "folderId": bobs}, http.StatusForbidden},
		{"unknown folder", "alice", map[string]any{"title": "Hello", "folderId": "nope"}, http.StatusForbidden},
		{"unknown field", "alice", map[string]any{"title": "Hello", "folderId": ideas, "owner": "bob"}, http.StatusBadRequest},
		{"signed out", "", map[string]any{"title": "Hello", "folderId": ideas}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.user, http.MethodPost, "/api/notes", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusCreated {
				return
			}
			resp := decode[formResponse[notes.Note]](t, rec)
			if resp.Data.ID == "" || resp.Data.OwnerID != "alice" {
				t.Errorf("data = %+v", resp.Data)
			}
			if resp.Destination != "/folder/"+ideas {
				t.Errorf("destination = %q", resp.Destination)
			}
			if resp.State != form.Saved {
				t.Errorf("state = %v, want saved", resp.State)
			}
			if resp.Data.CreatedAt.IsZero() || resp.Data.UpdatedAt.IsZero() {
				t.Errorf("timestamps missing: %+v", resp.Data)
			}
		})
	}
}

func TestNoteLifecycle(t *testing.T) {
	s := newTestServer(t)
	ideas := s.folder(t, "alice", "Ideas")
	id := s.note(t, "alice", ideas, "Draft")

	rec := s.do(t, "alice", http.MethodGet, "/api/notes/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	detail := decode[views.NoteDetail](t, rec)
	if !strings.Contains(detail.HTML, "<em>content</em>") {
		t.Errorf("html = %q", detail.HTML)
	}

	if rec := s.do(t, "bob", http.MethodGet, "/api/notes/"+id, nil); rec.Code != http.StatusForbidden {
		t.Errorf("foreign get status = %d, want 403", rec.Code)
	}

	rec = s.do(t, "alice", http.MethodPatch, "/api/notes/"+id, map[string]any{"title": "Final"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	if updated := decode[formResponse[notes.Note]](t, rec); updated.Data.Title != "Final" || updated.Data.Content != "Some *content*" {
		t.Errorf("patched = %+v", updated.Data)
	}

	rec = s.do(t, "alice", http.MethodPost, "/api/notes/"+id+"/visibility/toggle", nil)
	if rec.Code != http.StatusOK || !decode[notes.Note](t, rec).IsPublic {
		t.Errorf("toggle = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, "alice", http.MethodDelete, "/api/notes/"+id, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unconfirmed delete status = %d", rec.Code)
	}
	if prompt := decode[map[string]any](t, rec)["prompt"]; prompt != "Are you sure you want to delete this note?" {
		t.Errorf("prompt = %v", prompt)
	}

	if rec := s.do(t, "bob", http.MethodDelete, "/api/notes/"+id+"?confirm=true", nil); rec.Code != http.StatusForbidden {
		t.Errorf("foreign delete status = %d, want 403", rec.Code)
	}

	rec = s.do(t, "alice", http.MethodDelete, "/api/notes/"+id+"?confirm=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["state"] != "deleted" || body["destination"] != "/folder/"+ideas {
		t.Errorf("delete body = %v", body)
	}

	if rec := s.do(t, "alice", http.MethodGet, "/api/notes/"+id, nil); rec.Code != http.StatusForbidden {
		t.Errorf("get after delete status = %d, want 403", rec.Code)
	}
}

func TestFolderHandlers(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "alice", http.MethodPost, "/api/folders", map[string]any{"name": "Work", "description": "day job"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[formResponse[notes.Folder]](t, rec)
	if created.Destination != "/folders" {
		t.Errorf("destination = %q", created.Destination)
	}
	if created.State != form.Saved || created.Data.CreatedAt.IsZero() {
		t.Errorf("created = %+v", created)
	}
	id := created.Data.ID

	rec = s.do(t, "alice", http.MethodPatch, "/api/folders/"+id, map[string]any{"description": nil})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}
	if f := decode[formResponse[notes.Folder]](t, rec).Data; f.Name != "Work" || f.Description != "" {
		t.Errorf("patched = %+v", f)
	}

	if rec := s.do(t, "alice", http.MethodPatch, "/api/folders/"+id, map[string]any{"name": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d, want 400", rec.Code)
	}

	rec = s.do(t, "alice", http.MethodGet, "/api/folders", nil)
	if folders := decode[[]notes.Folder](t, rec); len(folders) != 1 || folders[0].ID != id {
		t.Errorf("folders = %+v", folders)
	}
	if rec := s.do(t, "bob", http.MethodGet, "/api/folders/"+id, nil); rec.Code != http.StatusForbidden {
		t.Errorf("foreign folder status = %d, want 403", rec.Code)
	}

	rec = s.do(t, "alice", http.MethodDelete, "/api/folders/"+id+"?confirm=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["destination"] != "/folders" {
		t.Errorf("delete body = %v", body)
	}
}

func TestHomeAndNewNote(t *testing.T) {
	s := newTestServer(t)
	ideas := s.folder(t, "alice", "Ideas")
	s.note(t, "alice", ideas, "One")

	rec := s.do(t, "alice", http.MethodGet, "/api/home", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("home status = %d", rec.Code)
	}
	home := decode[views.Home](t, rec)
	if len(home.Notes) != 1 || len(home.Folders) != 1 {
		t.Errorf("home = %+v", home)
	}

	rec = s.do(t, "", http.MethodGet, "/api/home", nil)
	if rec.Code != http.StatusOK || len(decode[views.Home](t, rec).Notes) != 0 {
		t.Errorf("signed-out home = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, "alice", http.MethodGet, "/api/notes/new?folderId=unknown", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("new note status = %d", rec.Code)
	}
	if draft := decode[views.NoteDraft](t, rec); draft.Note.FolderID != ideas {
		t.Errorf("draft folder = %q, want %q", draft.Note.FolderID, ideas)
	}
}

func TestExportNote(t *testing.T) {
	s := newTestServer(t)
	ideas := s.folder(t, "alice", "Ideas")
	id := s.note(t, "alice", ideas, "Plan: v2")

	rec := s.do(t, "alice", http.MethodGet, "/api/notes/"+id+"/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="Plan- v2.md"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "---\n") || !strings.Contains(body, "folder: Ideas") {
		t.Errorf("export = %q", body)
	}
}

func TestImportNote(t *testing.T) {
	s := newTestServer(t)
	ideas := s.folder(t, "alice", "Ideas")
	s.folder(t, "alice", "Journal")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "trip.md")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(part, "---\ntitle: Trip\nfolder: Ideas\n---\nPack bags\n")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/notes/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Test-User", "alice")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	n := decode[formResponse[notes.Note]](t, rec).Data
	if n.Title != "Trip" || n.FolderID != ideas || !strings.Contains(n.Content, "Pack bags") {
		t.Errorf("imported = %+v", n)
	}
}

func TestBootstrap(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "alice", http.MethodPost, "/api/me/bootstrap", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first bootstrap status = %d", rec.Code)
	}
	if resp := decode[bootstrapResponse](t, rec); !resp.Created || len(resp.Folders) != 3 {
		t.Errorf("first bootstrap = %+v", resp)
	}

	rec = s.do(t, "alice", http.MethodPost, "/api/me/bootstrap", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("second bootstrap status = %d", rec.Code)
	}

	if rec := s.do(t, "", http.MethodGet, "/api/me", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("signed-out me status = %d", rec.Code)
	}
}

func TestMarkdownHandlers(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "", http.MethodPost, "/api/markdown/insert", map[string]any{
		"text":      "say word",
		"selection": map[string]int{"start": 4, "end": 8},
		"symbol":    "**",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("insert status = %d", rec.Code)
	}
	if got := decode[insertResponse](t, rec); got.Text != "say **word**" {
		t.Errorf("insert = %+v", got)
	}

	if rec := s.do(t, "", http.MethodPost, "/api/markdown/insert", map[string]any{"text": "x"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing symbol status = %d", rec.Code)
	}

	rec = s.do(t, "", http.MethodPost, "/api/markdown/preview", map[string]any{"content": "two words<script>x()</script>"})
	got := decode[previewResponse](t, rec)
	if strings.Contains(got.HTML, "<script") || got.WordCount == 0 {
		t.Errorf("preview = %+v", got)
	}

	rec = s.do(t, "", http.MethodGet, "/api/markdown/toolbar", nil)
	if rec.Code != http.StatusOK || len(decode[[]markdown.Tool](t, rec)) == 0 {
		t.Errorf("toolbar = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHomeStream(t *testing.T) {
	s := newTestServer(t)
	ideas := s.folder(t, "alice", "Ideas")
	s.note(t, "alice", ideas, "Streamed")

	server := httptest.NewServer(s.mux)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/home/stream", nil)
	req.Header.Set("X-Test-User", "alice")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 1024)
	for !bytes.Contains(buf, []byte("Streamed")) {
		n, err := resp.Body.Read(chunk)
		if err != nil {
			t.Fatalf("read stream: %v (got %q)", err, buf)
		}
		buf = append(buf, chunk[:n]...)
	}
	if !bytes.Contains(buf, []byte("event: snapshot")) {
		t.Errorf("stream = %q", buf)
	}
}
