package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts note content to HTML for the editor's preview mode and the note
// view. Output is always sanitized.
type Renderer struct {
	md        goldmark.Markdown
	sanitizer *Sanitizer
}

func NewRenderer() *Renderer {
	return &Renderer{
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
		sanitizer: NewSanitizer(),
	}
}

func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return r.sanitizer.Sanitize(buf.String()), nil
}
