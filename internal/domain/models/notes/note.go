package notes

import "time"

// Note is a markdown note filed under exactly one folder of the same owner.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"` // Markdown
	IsPublic  bool      `json:"is_public"`
	OwnerID   string    `json:"owner_id"`
	FolderID  string    `json:"folder_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteSummary is a list entry: the note plus a display excerpt of its content.
type NoteSummary struct {
	Note
	Excerpt   string `json:"excerpt"`
	Truncated bool   `json:"truncated"` // true when "Read more" should be offered
	WordCount int    `json:"word_count"`
}
