// Package memory is an in-process DocumentStore used for local development and tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"skynotes/internal/domain"
	"skynotes/internal/domain/repositories"
	"skynotes/internal/repository/changefeed"

	"github.com/google/uuid"
)

// Store keeps documents in maps keyed by collection and id.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]repositories.Fields

	now    func() time.Time
	newID  func() string
	feed   *changefeed.Feed
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New creates an empty store.
func New(logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]repositories.Fields),
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.feed = changefeed.New(s.query, logger)
	return s
}

// Create stores a new document under a generated id.
func (s *Store) Create(ctx context.Context, collection string, fields repositories.Fields) (string, error) {
	if err := validateWrite(collection, fields); err != nil {
		return "", err
	}

	id := s.newID()
	doc := make(repositories.Fields, len(fields))
	s.merge(doc, fields)

	s.mu.Lock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]repositories.Fields)
		s.collections[collection] = docs
	}
	docs[id] = doc
	s.mu.Unlock()

	s.feed.Notify(collection)
	return id, nil
}

// CreateAll stores several documents under one lock, so live queries never observe
// a partial batch.
func (s *Store) CreateAll(ctx context.Context, collection string, docs []repositories.Fields) ([]string, error) {
	for _, fields := range docs {
		if err := validateWrite(collection, fields); err != nil {
			return nil, err
		}
	}

	ids := make([]string, len(docs))
	s.mu.Lock()
	stored, ok := s.collections[collection]
	if !ok {
		stored = make(map[string]repositories.Fields)
		s.collections[collection] = stored
	}
	for i, fields := range docs {
		ids[i] = s.newID()
		doc := make(repositories.Fields, len(fields))
		s.merge(doc, fields)
		stored[ids[i]] = doc
	}
	s.mu.Unlock()

	s.feed.Notify(collection)
	return ids, nil
}

// Get returns a copy of the stored document.
func (s *Store) Get(ctx context.Context, collection, id string) (*repositories.RawDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, notFound(collection, id)
	}
	return &repositories.RawDocument{ID: id, Fields: copyFields(doc)}, nil
}

// Update merges fields into the stored document. A nil value removes the field.
func (s *Store) Update(ctx context.Context, collection, id string, fields repositories.Fields) error {
	if err := validateWrite(collection, fields); err != nil {
		return err
	}

	s.mu.Lock()
	doc, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return notFound(collection, id)
	}
	s.merge(doc, fields)
	s.mu.Unlock()

	s.feed.Notify(collection)
	return nil
}

// Delete removes the document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return notFound(collection, id)
	}
	delete(s.collections[collection], id)
	s.mu.Unlock()

	s.feed.Notify(collection)
	return nil
}

// Subscribe starts a live query.
func (s *Store) Subscribe(ctx context.Context, q repositories.Query, l repositories.Listener) (repositories.Unsubscribe, error) {
	return s.feed.Watch(ctx, q, l)
}

// Close stops every live query.
func (s *Store) Close() error {
	s.feed.Close()
	return nil
}

func (s *Store) query(ctx context.Context, q repositories.Query) ([]repositories.RawDocument, error) {
	s.mu.RLock()
	var out []repositories.RawDocument
	for id, doc := range s.collections[q.Collection] {
		if matches(doc, q.Filters) {
			out = append(out, repositories.RawDocument{ID: id, Fields: copyFields(doc)})
		}
	}
	s.mu.RUnlock()

	sortDocuments(out, q.OrderBy, q.Direction)

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// merge copies src into dst, resolving ServerTimestamp placeholders. Caller holds the
// write lock or owns dst.
func (s *Store) merge(dst, src repositories.Fields) {
	now := s.now().UTC()
	for k, v := range src {
		if repositories.IsServerTimestamp(v) {
			dst[k] = now
			continue
		}
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

func validateWrite(collection string, fields repositories.Fields) error {
	if err := repositories.ValidateFieldName(collection); err != nil {
		return fmt.Errorf("%w: collection: %v", domain.ErrValidation, err)
	}
	for k := range fields {
		if err := repositories.ValidateFieldName(k); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}
	return nil
}

func notFound(collection, id string) error {
	return &domain.NotFoundError{Message: fmt.Sprintf("%s/%s not found", collection, id)}
}

func copyFields(src repositories.Fields) repositories.Fields {
	dst := make(repositories.Fields, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func matches(doc repositories.Fields, filters []repositories.Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok || !equalValues(v, f.Value) {
			return false
		}
	}
	return true
}

func sortDocuments(docs []repositories.RawDocument, field string, dir repositories.Direction) {
	sort.SliceStable(docs, func(i, j int) bool {
		if field != "" {
			c := compareValues(docs[i].Fields[field], docs[j].Fields[field])
			if c != 0 {
				if dir == repositories.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].ID < docs[j].ID
	})
}
