package form

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"skynotes/internal/config"
	"skynotes/internal/domain"
	"skynotes/internal/domain/models"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/domain/repositories"
	"skynotes/internal/service/notebook"
)

// NoteBinding binds the controller to notes.
type NoteBinding struct {
	store repositories.DocumentStore
}

func NewNoteBinding(store repositories.DocumentStore) NoteBinding {
	return NoteBinding{store: store}
}

func (NoteBinding) Noun() string       { return "note" }
func (NoteBinding) Collection() string { return notebook.NotesCollection }

func (NoteBinding) Decode(doc repositories.RawDocument) (notes.Note, error) {
	return notebook.DecodeNote(doc)
}

func (NoteBinding) ID(n notes.Note) string    { return n.ID }
func (NoteBinding) Owner(n notes.Note) string { return n.OwnerID }

func (NoteBinding) Assign(n notes.Note, id, ownerID string) notes.Note {
	n.ID = id
	n.OwnerID = ownerID
	return n
}

func (NoteBinding) Validate(n notes.Note) error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Title,
			validation.Required,
			validation.By(notBlank),
			validation.RuneLength(1, config.MaxNoteTitleLength),
		),
		validation.Field(&n.Content, validation.RuneLength(0, config.MaxNoteContentLength)),
		validation.Field(&n.FolderID, validation.Required),
	)
}

// Authorize requires the target folder to exist and belong to the session.
func (b NoteBinding) Authorize(ctx context.Context, session models.Session, n notes.Note) error {
	doc, err := b.store.Get(ctx, notebook.FoldersCollection, n.FolderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.ForbiddenError{Message: "folder not available"}
		}
		return domain.NewRemoteError("get", err)
	}
	folder, err := notebook.DecodeFolder(*doc)
	if err != nil {
		return err
	}
	if !session.Owns(folder.OwnerID) {
		return &domain.ForbiddenError{Message: "folder not available"}
	}
	return nil
}

func (NoteBinding) CreateFields(n notes.Note) repositories.Fields { return notebook.NoteCreateFields(n) }
func (NoteBinding) UpdateFields(n notes.Note) repositories.Fields { return notebook.NoteUpdateFields(n) }

func (NoteBinding) Destination(n notes.Note) string { return "/folder/" + n.FolderID }

func (NoteBinding) DeletePrompt() string {
	return "Are you sure you want to delete this note?"
}

// FolderBinding binds the controller to folders.
type FolderBinding struct{}

func (FolderBinding) Noun() string       { return "folder" }
func (FolderBinding) Collection() string { return notebook.FoldersCollection }

func (FolderBinding) Decode(doc repositories.RawDocument) (notes.Folder, error) {
	return notebook.DecodeFolder(doc)
}

func (FolderBinding) ID(f notes.Folder) string    { return f.ID }
func (FolderBinding) Owner(f notes.Folder) string { return f.OwnerID }

func (FolderBinding) Assign(f notes.Folder, id, ownerID string) notes.Folder {
	f.ID = id
	f.OwnerID = ownerID
	return f
}

func (FolderBinding) Validate(f notes.Folder) error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Name,
			validation.Required,
			validation.By(notBlank),
			validation.RuneLength(1, config.MaxFolderNameLength),
		),
		validation.Field(&f.Description, validation.RuneLength(0, config.MaxFolderDescriptionLength)),
	)
}

func (FolderBinding) Authorize(context.Context, models.Session, notes.Folder) error { return nil }

func (FolderBinding) CreateFields(f notes.Folder) repositories.Fields {
	return notebook.FolderCreateFields(f)
}

func (FolderBinding) UpdateFields(f notes.Folder) repositories.Fields {
	return notebook.FolderUpdateFields(f)
}

func (FolderBinding) Destination(notes.Folder) string { return "/folders" }

func (FolderBinding) DeletePrompt() string {
	return "Are you sure you want to delete this folder? This action cannot be undone."
}

// notBlank rejects whitespace-only strings, which Required accepts.
func notBlank(value interface{}) error {
	s, _ := value.(string)
	if s != "" && strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// NewNoteController and NewFolderController are the two controllers the views use.
func NewNoteController(store repositories.DocumentStore, session models.Session, logger *slog.Logger) *Controller[notes.Note] {
	return NewController[notes.Note](store, NewNoteBinding(store), session, logger)
}

func NewFolderController(store repositories.DocumentStore, session models.Session, logger *slog.Logger) *Controller[notes.Folder] {
	return NewController[notes.Folder](store, FolderBinding{}, session, logger)
}
