package notebook

import (
	"log/slog"

	"skynotes/internal/domain/models/notes"
	"skynotes/internal/domain/repositories"
	"skynotes/internal/service/subscription"
)

// RecentNotes selects the newest notes first, at most limit of them (0 = all).
func RecentNotes(limit int) subscription.Request {
	return subscription.Request{
		Query: repositories.Query{
			Collection: NotesCollection,
			OrderBy:    FieldCreatedAt,
			Direction:  repositories.Descending,
			Limit:      limit,
		},
		OwnerField: FieldOwner,
	}
}

// FolderNotes selects the notes of one folder, newest first.
func FolderNotes(folderID string) subscription.Request {
	return subscription.Request{
		Query: repositories.Query{
			Collection: NotesCollection,
			Filters:    []repositories.Filter{{Field: FieldFolderID, Value: folderID}},
			OrderBy:    FieldCreatedAt,
			Direction:  repositories.Descending,
		},
		OwnerField: FieldOwner,
	}
}

// Folders selects every folder, by name.
func Folders() subscription.Request {
	return subscription.Request{
		Query: repositories.Query{
			Collection: FoldersCollection,
			OrderBy:    FieldName,
			Direction:  repositories.Ascending,
		},
		OwnerField: FieldOwner,
	}
}

// NoteSource binds a note request to store and decoder.
func NoteSource(store repositories.DocumentStore, req subscription.Request, logger *slog.Logger) subscription.Source[notes.Note] {
	return subscription.Source[notes.Note]{Store: store, Request: req, Decode: DecodeNote, Logger: logger}
}

// FolderSource binds a folder request to store and decoder.
func FolderSource(store repositories.DocumentStore, req subscription.Request, logger *slog.Logger) subscription.Source[notes.Folder] {
	return subscription.Source[notes.Folder]{Store: store, Request: req, Decode: DecodeFolder, Logger: logger}
}
