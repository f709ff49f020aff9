package notes

import "strings"

// Visibility selects notes by their public flag in list views.
type Visibility string

const (
	VisibilityAll     Visibility = "all"
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ParseVisibility normalizes a user-supplied filter value; unknown values mean all.
func ParseVisibility(value string) Visibility {
	switch Visibility(strings.ToLower(strings.TrimSpace(value))) {
	case VisibilityPublic:
		return VisibilityPublic
	case VisibilityPrivate:
		return VisibilityPrivate
	default:
		return VisibilityAll
	}
}

// Matches reports whether a note with the given public flag passes the filter.
func (v Visibility) Matches(isPublic bool) bool {
	switch v {
	case VisibilityPublic:
		return isPublic
	case VisibilityPrivate:
		return !isPublic
	default:
		return true
	}
}
