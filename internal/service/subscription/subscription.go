// Package subscription turns store live queries into owner-scoped, typed subscriptions
// with explicit acquire/release handles.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"skynotes/internal/domain"
	"skynotes/internal/domain/models"
	"skynotes/internal/domain/repositories"
)

// Decoder converts a raw store document into T, returning a *domain.DecodeError for
// documents that do not fit the schema.
type Decoder[T any] func(doc repositories.RawDocument) (T, error)

// Request describes a live query. OwnerField names the document field holding the
// owning identity; the session's id is always added as an equality filter on it.
type Request struct {
	Query      repositories.Query
	OwnerField string
}

// Listener receives typed deliveries. OnSnapshot gets the complete current set each
// time. OnError gets runtime failures (wrapped as domain.RemoteError) and decode failures
// of individual documents, which never withhold the well-formed ones.
type Listener[T any] struct {
	OnSnapshot func(items []T)
	OnError    func(err error)
}

// Source binds a request to a store and a decoder.
type Source[T any] struct {
	Store   repositories.DocumentStore
	Request Request
	Decode  Decoder[T]
	Logger  *slog.Logger
}

// Handle is one open subscription. Release must be called exactly once the consumer
// is done; calling it again is a no-op.
type Handle struct {
	mu          sync.Mutex
	released    bool
	unsubscribe repositories.Unsubscribe
}

// Release stops the subscription. Once it returns no callback of the subscription is
// running or will run. It must not be called from inside one of those callbacks.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.mu.Unlock()

	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// guard runs fn unless the handle is released, holding the lock so Release waits for
// an in-flight delivery.
func (h *Handle) guard(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	fn()
}

// Acquire opens a subscription for session. A signed-out session gets one empty
// snapshot, delivered before Acquire returns, and no store subscription. Failures to
// establish the live query are returned.
func (s Source[T]) Acquire(ctx context.Context, session models.Session, l Listener[T]) (*Handle, error) {
	h := &Handle{}

	if !session.SignedIn() {
		if l.OnSnapshot != nil {
			l.OnSnapshot([]T{})
		}
		return h, nil
	}

	q := s.Request.Query
	q.Filters = append(append([]repositories.Filter(nil), q.Filters...),
		repositories.Filter{Field: s.Request.OwnerField, Value: session.UserID})

	unsubscribe, err := s.Store.Subscribe(ctx, q, repositories.Listener{
		OnSnapshot: func(docs []repositories.RawDocument) {
			h.guard(func() { s.deliver(session, docs, l) })
		},
		OnError: func(err error) {
			h.guard(func() {
				s.Logger.Error("subscription failed",
					"collection", q.Collection,
					"user_id", session.UserID,
					"error", err,
				)
				if l.OnError != nil {
					l.OnError(domain.NewRemoteError("subscribe", err))
				}
			})
		},
	})
	if err != nil {
		s.Logger.Error("subscribe failed",
			"collection", q.Collection,
			"user_id", session.UserID,
			"error", err,
		)
		return nil, domain.NewRemoteError("subscribe", err)
	}

	h.mu.Lock()
	h.unsubscribe = unsubscribe
	h.mu.Unlock()

	return h, nil
}

func (s Source[T]) deliver(session models.Session, docs []repositories.RawDocument, l Listener[T]) {
	items := make([]T, 0, len(docs))
	var decodeErrs []error

	for _, doc := range docs {
		// The store's access policy is authoritative; this is a second check.
		if owner, _ := doc.Fields[s.Request.OwnerField].(string); !session.Owns(owner) {
			s.Logger.Warn("dropped foreign document",
				"collection", s.Request.Query.Collection,
				"id", doc.ID,
			)
			continue
		}

		item, err := s.Decode(doc)
		if err != nil {
			s.Logger.Warn("skipped malformed document",
				"collection", s.Request.Query.Collection,
				"id", doc.ID,
				"error", err,
			)
			decodeErrs = append(decodeErrs, err)
			continue
		}
		items = append(items, item)
	}

	if l.OnSnapshot != nil {
		l.OnSnapshot(items)
	}
	if len(decodeErrs) > 0 && l.OnError != nil {
		l.OnError(errors.Join(decodeErrs...))
	}
}

// With acquires a subscription, runs fn and releases it when fn returns.
func (s Source[T]) With(ctx context.Context, session models.Session, l Listener[T], fn func(ctx context.Context) error) error {
	h, err := s.Acquire(ctx, session, l)
	if err != nil {
		return err
	}
	defer h.Release()

	return fn(ctx)
}

// First waits for the first snapshot (or error) and releases the subscription.
func (s Source[T]) First(ctx context.Context, session models.Session) ([]T, error) {
	type result struct {
		items []T
		err   error
	}
	ch := make(chan result, 1)
	send := func(r result) {
		select {
		case ch <- r:
		default:
		}
	}

	h, err := s.Acquire(ctx, session, Listener[T]{
		OnSnapshot: func(items []T) { send(result{items: items}) },
		OnError:    func(err error) { send(result{err: err}) },
	})
	if err != nil {
		return nil, err
	}
	defer h.Release()

	select {
	case r := <-ch:
		return r.items, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
