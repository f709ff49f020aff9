package views

import (
	"strings"
	"testing"

	"skynotes/internal/domain/models/notes"
)

func TestFilterVisibility(t *testing.T) {
	ns := []notes.Note{
		{ID: "a", IsPublic: true},
		{ID: "b", IsPublic: false},
		{ID: "c", IsPublic: true},
	}

	tests := []struct {
		v    notes.Visibility
		want string
	}{
		{notes.VisibilityAll, "abc"},
		{notes.VisibilityPublic, "ac"},
		{notes.VisibilityPrivate, "b"},
	}
	for _, tt := range tests {
		var got strings.Builder
		for _, n := range FilterVisibility(ns, tt.v) {
			got.WriteString(n.ID)
		}
		if got.String() != tt.want {
			t.Errorf("FilterVisibility(%s) = %q, want %q", tt.v, got.String(), tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		length        int
		wantExcerpt   string
		wantTruncated bool
	}{
		{"short content is kept", "hello", 10, "hello", false},
		{"exact length is kept", "hello", 5, "hello", false},
		{"long content is cut", "hello world", 5, "hello...", true},
		{"cuts on runes", "héllo wörld", 7, "héllo w...", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(notes.Note{Content: tt.content}, tt.length)
			if s.Excerpt != tt.wantExcerpt || s.Truncated != tt.wantTruncated {
				t.Errorf("Summarize() = %q/%v, want %q/%v", s.Excerpt, s.Truncated, tt.wantExcerpt, tt.wantTruncated)
			}
			if s.Content != tt.content {
				t.Error("Summarize() changed the note content")
			}
		})
	}

	if s := Summarize(notes.Note{Content: "one **two** three"}, 100); s.WordCount != 3 {
		t.Errorf("WordCount = %d, want 3", s.WordCount)
	}
}

func TestSearch(t *testing.T) {
	ns := []notes.Note{
		{ID: "1", Title: "Groceries"},
		{ID: "2", Title: "Meeting notes"},
		{ID: "3", Title: "Grocery budget"},
	}

	if got := Search(ns, "  "); len(got) != 3 || got[0].ID != "1" {
		t.Errorf("blank query = %+v, want input unchanged", got)
	}

	got := Search(ns, "groc")
	if len(got) != 2 {
		t.Fatalf("Search(groc) = %+v, want 2 matches", got)
	}
	for _, n := range got {
		if n.ID == "2" {
			t.Errorf("Search(groc) matched %q", n.Title)
		}
	}

	if got := Search(ns, "zzz"); len(got) != 0 {
		t.Errorf("Search(zzz) = %+v, want none", got)
	}
}

func TestDefaultFolderID(t *testing.T) {
	folders := []notes.Folder{{ID: "a"}, {ID: "b"}}

	tests := []struct {
		name      string
		folders   []notes.Folder
		requested string
		want      string
	}{
		{"requested and owned", folders, "b", "b"},
		{"requested but unknown", folders, "zzz", "a"},
		{"nothing requested", folders, "", "a"},
		{"no folders", nil, "b", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultFolderID(tt.folders, tt.requested); got != tt.want {
				t.Errorf("DefaultFolderID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveFolder(t *testing.T) {
	folders := []notes.Folder{{ID: "f1", Name: "Ideas"}, {ID: "f2", Name: "Tasks"}}

	tests := []struct {
		reference, requested, want string
	}{
		{"tasks", "", "f2"},
		{"f2", "f1", "f2"},
		{"Unknown", "f2", "f2"},
		{"", "", "f1"},
	}
	for _, tt := range tests {
		if got := ResolveFolder(folders, tt.reference, tt.requested); got != tt.want {
			t.Errorf("ResolveFolder(%q, %q) = %q, want %q", tt.reference, tt.requested, got, tt.want)
		}
	}
}
