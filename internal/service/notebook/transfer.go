package notebook

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"gopkg.in/yaml.v3"
	"skynotes/internal/domain"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/service/markdown"
)

// frontmatter is the YAML header of an exported note.
type frontmatter struct {
	Title     string    `yaml:"title"`
	Folder    string    `yaml:"folder,omitempty"`
	Public    bool      `yaml:"public"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// Export renders a note as markdown with a YAML frontmatter header. folderName is
// written in place of the folder id when known.
func Export(n notes.Note, folderName string) ([]byte, error) {
	meta := frontmatter{
		Title:     n.Title,
		Folder:    folderName,
		Public:    n.IsPublic,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if meta.Folder == "" {
		meta.Folder = n.FolderID
	}

	header, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n")
	buf.WriteString(n.Content)
	return buf.Bytes(), nil
}

// ExportFilename derives a download name from the note title.
func ExportFilename(n notes.Note) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, strings.TrimSpace(n.Title))
	if name == "" {
		name = "note"
	}
	return name + ".md"
}

// Draft is an imported note that has not been saved yet.
type Draft struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPublic bool   `json:"is_public"`
	Folder   string `json:"folder,omitempty"` // folder name or id from frontmatter
}

// Importer turns uploaded .md and .html files into drafts.
type Importer struct {
	sanitizer *markdown.Sanitizer
	converter *md.Converter
}

func NewImporter() *Importer {
	return &Importer{
		sanitizer: markdown.NewSanitizer(),
		converter: md.NewConverter("", true, nil),
	}
}

// Parse reads one file. Markdown may carry frontmatter; HTML is sanitized and then
// converted. Without a title in the file, the file name is used.
func (im *Importer) Parse(filename string, data []byte) (*Draft, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	var draft Draft
	switch ext {
	case ".md", ".markdown", ".txt":
		meta, body, err := parseFrontmatter(data)
		if err != nil {
			return nil, &domain.ValidationError{Message: err.Error()}
		}
		draft.Content = body
		if meta != nil {
			draft.Title = meta.Title
			draft.Folder = meta.Folder
			draft.IsPublic = meta.Public
		}
	case ".html", ".htm":
		content, err := im.converter.ConvertString(im.sanitizer.Sanitize(string(data)))
		if err != nil {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("convert html: %v", err)}
		}
		draft.Content = content
	default:
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unsupported file type %q", ext)}
	}

	if strings.TrimSpace(draft.Title) == "" {
		draft.Title = base
	}
	return &draft, nil
}

// parseFrontmatter splits an optional "---" delimited YAML header from the body.
// Content without a leading delimiter has no header.
func parseFrontmatter(content []byte) (*frontmatter, string, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) && !bytes.HasPrefix(content, []byte("---\r\n")) {
		return nil, string(content), nil
	}

	lines := bytes.Split(content, []byte("\n"))
	closing := 0
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			closing = i
			break
		}
	}
	if closing == 0 {
		return nil, "", errors.New("missing closing frontmatter delimiter '---'")
	}

	var meta frontmatter
	if err := yaml.Unmarshal(bytes.Join(lines[1:closing], []byte("\n")), &meta); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return &meta, string(bytes.Join(lines[closing+1:], []byte("\n"))), nil
}
