package notebook

import (
	"errors"
	"strings"
	"testing"
	"time"

	"skynotes/internal/domain"
	"skynotes/internal/domain/models/notes"
)

func TestExportImportRoundTrip(t *testing.T) {
	n := notes.Note{
		Title:     "Weekly plan",
		Content:   "# Plan\n\n- one\n- two\n",
		IsPublic:  true,
		FolderID:  "f1",
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	data, err := Export(n, "Tasks")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "---\n") {
		t.Fatalf("Export() = %q, want frontmatter", data)
	}
	if strings.Contains(string(data), "updated_at") {
		t.Errorf("Export() wrote a zero updated_at: %q", data)
	}

	draft, err := NewImporter().Parse("anything.md", data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := Draft{Title: "Weekly plan", Content: n.Content, IsPublic: true, Folder: "Tasks"}
	if *draft != want {
		t.Errorf("Parse() = %+v, want %+v", *draft, want)
	}
}

func TestExport_FallsBackToFolderID(t *testing.T) {
	data, err := Export(notes.Note{Title: "t", FolderID: "f1"}, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(string(data), "folder: f1") {
		t.Errorf("Export() = %q, want folder id", data)
	}
}

func TestExportFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Weekly plan", "Weekly plan.md"},
		{"a/b: c?", "a-b- c-.md"},
		{"   ", "note.md"},
	}
	for _, tt := range tests {
		if got := ExportFilename(notes.Note{Title: tt.title}); got != tt.want {
			t.Errorf("ExportFilename(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestImporter_Parse(t *testing.T) {
	im := NewImporter()

	tests := []struct {
		name        string
		filename    string
		data        string
		wantTitle   string
		contains    string
		notContains string
		wantErr     bool
	}{
		{
			name:      "markdown without frontmatter uses file name",
			filename:  "groceries.md",
			data:      "- milk\n- eggs",
			wantTitle: "groceries",
			contains:  "- milk",
		},
		{
			name:      "frontmatter title wins",
			filename:  "x.markdown",
			data:      "---\ntitle: Real title\n---\nbody",
			wantTitle: "Real title",
			contains:  "body",
		},
		{
			name:      "plain text",
			filename:  "notes.TXT",
			data:      "just text",
			wantTitle: "notes",
			contains:  "just text",
		},
		{
			name:        "html is sanitized and converted",
			filename:    "page.html",
			data:        "<h1>Heading</h1><p>Hello <strong>world</strong></p><script>steal()</script>",
			wantTitle:   "page",
			contains:    "**world**",
			notContains: "steal()",
		},
		{
			name:     "unclosed frontmatter",
			filename: "bad.md",
			data:     "---\ntitle: x\nbody",
			wantErr:  true,
		},
		{
			name:     "unsupported type",
			filename: "scan.pdf",
			data:     "%PDF",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, err := im.Parse(tt.filename, []byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("Parse() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if draft.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", draft.Title, tt.wantTitle)
			}
			if !strings.Contains(draft.Content, tt.contains) {
				t.Errorf("Content = %q, missing %q", draft.Content, tt.contains)
			}
			if tt.notContains != "" && strings.Contains(draft.Content, tt.notContains) {
				t.Errorf("Content = %q, must not contain %q", draft.Content, tt.notContains)
			}
		})
	}
}
