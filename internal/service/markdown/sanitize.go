package markdown

import "github.com/microcosm-cc/bluemonday"

// Sanitizer strips scripts, event handlers and javascript: URLs from HTML while keeping
// ordinary formatting. Safe for concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer uses the user-generated-content policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.UGCPolicy()}
}

func (s *Sanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
