// Package notebook maps Note and Folder entities onto store documents: the validated
// decode step, the field layout written on create and update, and the queries each
// screen subscribes to.
package notebook

import (
	"time"

	"skynotes/internal/domain"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/domain/repositories"
)

// Collections
const (
	NotesCollection   = "notes"
	FoldersCollection = "folders"
)

// Document field names
const (
	FieldTitle       = "title"
	FieldContent     = "content"
	FieldIsPublic    = "isPublic"
	FieldOwner       = "userId"
	FieldFolderID    = "folderId"
	FieldName        = "name"
	FieldDescription = "description"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// DecodeNote converts a stored note document into a Note.
func DecodeNote(doc repositories.RawDocument) (notes.Note, error) {
	d := decoder{collection: NotesCollection, doc: doc}
	n := notes.Note{
		ID:        doc.ID,
		Title:     d.requiredString(FieldTitle),
		Content:   d.optionalString(FieldContent),
		IsPublic:  d.optionalBool(FieldIsPublic),
		OwnerID:   d.requiredString(FieldOwner),
		FolderID:  d.requiredString(FieldFolderID),
		CreatedAt: d.timestamp(FieldCreatedAt),
		UpdatedAt: d.timestamp(FieldUpdatedAt),
	}
	if d.err != nil {
		return notes.Note{}, d.err
	}
	return n, nil
}

// DecodeFolder converts a stored folder document into a Folder.
func DecodeFolder(doc repositories.RawDocument) (notes.Folder, error) {
	d := decoder{collection: FoldersCollection, doc: doc}
	f := notes.Folder{
		ID:          doc.ID,
		Name:        d.requiredString(FieldName),
		Description: d.optionalString(FieldDescription),
		OwnerID:     d.requiredString(FieldOwner),
		CreatedAt:   d.timestamp(FieldCreatedAt),
		UpdatedAt:   d.timestamp(FieldUpdatedAt),
	}
	if d.err != nil {
		return notes.Folder{}, d.err
	}
	return f, nil
}

// NoteCreateFields is the document written for a new note; both timestamps come from
// the store clock.
func NoteCreateFields(n notes.Note) repositories.Fields {
	return repositories.Fields{
		FieldTitle:     n.Title,
		FieldContent:   n.Content,
		FieldIsPublic:  n.IsPublic,
		FieldOwner:     n.OwnerID,
		FieldFolderID:  n.FolderID,
		FieldCreatedAt: repositories.ServerTimestamp,
		FieldUpdatedAt: repositories.ServerTimestamp,
	}
}

// NoteUpdateFields is the partial update for an edited note. Owner and createdAt are
// never rewritten.
func NoteUpdateFields(n notes.Note) repositories.Fields {
	return repositories.Fields{
		FieldTitle:     n.Title,
		FieldContent:   n.Content,
		FieldIsPublic:  n.IsPublic,
		FieldFolderID:  n.FolderID,
		FieldUpdatedAt: repositories.ServerTimestamp,
	}
}

func FolderCreateFields(f notes.Folder) repositories.Fields {
	return repositories.Fields{
		FieldName:        f.Name,
		FieldDescription: f.Description,
		FieldOwner:       f.OwnerID,
		FieldCreatedAt:   repositories.ServerTimestamp,
		FieldUpdatedAt:   repositories.ServerTimestamp,
	}
}

func FolderUpdateFields(f notes.Folder) repositories.Fields {
	return repositories.Fields{
		FieldName:        f.Name,
		FieldDescription: f.Description,
		FieldUpdatedAt:   repositories.ServerTimestamp,
	}
}

// decoder records the first field failure; later reads return zero values.
type decoder struct {
	collection string
	doc        repositories.RawDocument
	err        *domain.DecodeError
}

func (d *decoder) fail(field, reason string) {
	if d.err == nil {
		d.err = &domain.DecodeError{
			Collection: d.collection,
			ID:         d.doc.ID,
			Field:      field,
			Reason:     reason,
		}
	}
}

func (d *decoder) requiredString(field string) string {
	v, ok := d.doc.Fields[field]
	if !ok || v == nil {
		d.fail(field, "is missing")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(field, "is not a string")
		return ""
	}
	if s == "" {
		d.fail(field, "is empty")
	}
	return s
}

func (d *decoder) optionalString(field string) string {
	v, ok := d.doc.Fields[field]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(field, "is not a string")
	}
	return s
}

func (d *decoder) optionalBool(field string) bool {
	v, ok := d.doc.Fields[field]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail(field, "is not a boolean")
	}
	return b
}

// timestamp accepts time.Time (memory store) or an RFC 3339 string (SQL stores). A
// missing value decodes as the zero time.
func (d *decoder) timestamp(field string) time.Time {
	switch v := d.doc.Fields[field].(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			d.fail(field, "is not an RFC 3339 timestamp")
			return time.Time{}
		}
		return t
	default:
		d.fail(field, "is not a timestamp")
		return time.Time{}
	}
}
