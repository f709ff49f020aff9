package config

const (
	// MaxNoteTitleLength is the maximum length for note titles.
	// Titles are shown in lists and cards and should stay short.
	MaxNoteTitleLength = 255

	// MaxNoteContentLength bounds the markdown body of a single note (1 MiB of text).
	MaxNoteContentLength = 1 << 20

	// MaxFolderNameLength is the maximum length for folder names.
	// Same as note titles for consistency.
	MaxFolderNameLength = 255

	// MaxFolderDescriptionLength is the maximum length for folder descriptions.
	MaxFolderDescriptionLength = 1000

	// RecentNotesLimit is the number of notes on the home screen.
	RecentNotesLimit = 5

	// ExcerptLength is the number of characters of content shown in note cards before
	// "Read more".
	ExcerptLength = 150

	// MaxRequestBodyBytes caps JSON and upload bodies. Larger than MaxNoteContentLength
	// to leave room for the JSON envelope.
	MaxRequestBodyBytes = 2 << 20
)
