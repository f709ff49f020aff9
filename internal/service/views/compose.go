// Package views assembles what each screen shows from independent subscriptions:
// home, folder list, folder detail, note detail and the note editor.
package views

import (
	"strings"

	"github.com/sahilm/fuzzy"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/service/markdown"
)

// FilterVisibility keeps the notes that pass v, preserving order.
func FilterVisibility(ns []notes.Note, v notes.Visibility) []notes.Note {
	out := make([]notes.Note, 0, len(ns))
	for _, n := range ns {
		if v.Matches(n.IsPublic) {
			out = append(out, n)
		}
	}
	return out
}

// Summarize cuts the content to length characters and appends "..." when anything
// was cut.
func Summarize(n notes.Note, length int) notes.NoteSummary {
	s := notes.NoteSummary{Note: n, Excerpt: n.Content, WordCount: markdown.CountWords(n.Content)}
	runes := []rune(n.Content)
	if length >= 0 && len(runes) > length {
		s.Excerpt = string(runes[:length]) + "..."
		s.Truncated = true
	}
	return s
}

func SummarizeAll(ns []notes.Note, length int) []notes.NoteSummary {
	out := make([]notes.NoteSummary, len(ns))
	for i, n := range ns {
		out[i] = Summarize(n, length)
	}
	return out
}

type titles []notes.Note

func (t titles) String(i int) string { return t[i].Title }
func (t titles) Len() int            { return len(t) }

// Search ranks notes by fuzzy match of query against their titles. An empty query
// returns ns unchanged.
func Search(ns []notes.Note, query string) []notes.Note {
	query = strings.TrimSpace(query)
	if query == "" {
		return ns
	}
	matches := fuzzy.FindFrom(query, titles(ns)) // best match first

	out := make([]notes.Note, len(matches))
	for i, m := range matches {
		out[i] = ns[m.Index]
	}
	return out
}

// DefaultFolderID picks the folder preselected in the note editor: the requested one
// when the user owns it, else the first folder, else none.
func DefaultFolderID(folders []notes.Folder, requested string) string {
	if requested != "" {
		for _, f := range folders {
			if f.ID == requested {
				return requested
			}
		}
	}
	if len(folders) > 0 {
		return folders[0].ID
	}
	return ""
}
