package repositories

import (
	"context"
	"fmt"
	"regexp"
)

// Fields is the untyped field map of a stored document.
type Fields map[string]any

// RawDocument is a document as returned by the store, before decoding.
type RawDocument struct {
	ID     string
	Fields Fields
}

type serverTimestamp struct{}

// ServerTimestamp is a field value placeholder. Stores replace it with their own clock
// at write time, so timestamps are never computed by the caller.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp placeholder.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Filter is an equality constraint on a named field.
type Filter struct {
	Field string
	Value any
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Query selects documents of one collection: equality filters, at most one ordering
// field and an optional row limit (0 = unlimited).
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	Limit      int
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateFieldName rejects names that cannot be used as a document field.
// Adapters interpolate field names into JSON paths, so this runs before every query.
func ValidateFieldName(name string) error {
	if !fieldNamePattern.MatchString(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	return nil
}

// Validate checks the collection and every field name in the query.
func (q Query) Validate() error {
	if err := ValidateFieldName(q.Collection); err != nil {
		return fmt.Errorf("collection: %w", err)
	}
	for _, f := range q.Filters {
		if err := ValidateFieldName(f.Field); err != nil {
			return err
		}
	}
	if q.OrderBy != "" {
		if err := ValidateFieldName(q.OrderBy); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// Listener receives the deliveries of a live query. OnSnapshot always gets the
// complete current result set, never a diff.
type Listener struct {
	OnSnapshot func(docs []RawDocument)
	OnError    func(err error)
}

// Unsubscribe stops a live query. Safe to call more than once.
type Unsubscribe func()

// DocumentStore is the document database collaborator: collection-scoped CRUD plus a
// live query primitive. Get, Update and Delete return domain.ErrNotFound for a
// missing id.
type DocumentStore interface {
	// Create stores a new document and returns its generated id.
	Create(ctx context.Context, collection string, fields Fields) (string, error)

	// Get reads a single document.
	Get(ctx context.Context, collection, id string) (*RawDocument, error)

	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields Fields) error

	// Delete removes a document.
	Delete(ctx context.Context, collection, id string) error

	// Subscribe establishes a live query. Establishment failures are returned; later
	// failures go to Listener.OnError. Deliveries for one subscription are sequential.
	Subscribe(ctx context.Context, q Query, l Listener) (Unsubscribe, error)

	// Close releases connections and stops every live query.
	Close() error
}

// BatchCreator is implemented by stores that can create several documents of one
// collection atomically.
type BatchCreator interface {
	CreateAll(ctx context.Context, collection string, docs []Fields) ([]string, error)
}
