// Package changefeed turns "collection X changed" signals into complete snapshots for
// every live query watching that collection. Store adapters own the signal source
// (in-process writes, Postgres LISTEN/NOTIFY); the feed owns fan-out and ordering.
package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"skynotes/internal/domain"
	"skynotes/internal/domain/repositories"
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("changefeed closed")

// QueryFunc evaluates a query against the backing store.
type QueryFunc func(ctx context.Context, q repositories.Query) ([]repositories.RawDocument, error)

// Feed tracks live queries and re-runs them when their collection changes.
type Feed struct {
	query  QueryFunc
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
	closed   bool
}

type watcher struct {
	query    repositories.Query
	listener repositories.Listener
	dirty    chan struct{} // capacity 1; pending re-queries coalesce
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a feed that evaluates queries with query.
func New(query QueryFunc, logger *slog.Logger) *Feed {
	return &Feed{
		query:    query,
		logger:   logger,
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

// Watch registers the watcher, then runs q once synchronously, so establishment
// failures are returned to the caller. A Notify that arrives while that first query
// runs forces a re-query. The result and every later re-query are delivered from a
// single goroutine. The watch ends on Unsubscribe or when ctx is done.
func (f *Feed) Watch(ctx context.Context, q repositories.Query, l repositories.Listener) (repositories.Unsubscribe, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		query:    q,
		listener: l,
		dirty:    make(chan struct{}, 1),
		ctx:      wctx,
		cancel:   cancel,
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	set, ok := f.watchers[q.Collection]
	if !ok {
		set = make(map[*watcher]struct{})
		f.watchers[q.Collection] = set
	}
	set[w] = struct{}{}
	f.mu.Unlock()

	initial, err := f.query(ctx, q)
	if err != nil {
		f.remove(w)
		return nil, err
	}

	f.logger.Debug("live query started",
		"collection", q.Collection,
		"order_by", q.OrderBy,
		"limit", q.Limit,
	)

	go f.run(w, initial)

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(w) })
	}, nil
}

// Notify marks every watcher of collection as stale.
func (f *Feed) Notify(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for w := range f.watchers[collection] {
		w.markDirty()
	}
}

// NotifyAll marks every watcher as stale, used after a signal source reconnects and
// may have missed changes.
func (f *Feed) NotifyAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, set := range f.watchers {
		for w := range set {
			w.markDirty()
		}
	}
}

// Len returns the number of active watchers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, set := range f.watchers {
		n += len(set)
	}
	return n
}

// Close stops every watcher; later Watch calls fail with ErrClosed.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for collection, set := range f.watchers {
		for w := range set {
			w.cancel()
		}
		delete(f.watchers, collection)
	}
}

func (f *Feed) remove(w *watcher) {
	w.cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.watchers[w.query.Collection]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(f.watchers, w.query.Collection)
		}
	}
}

func (f *Feed) run(w *watcher, initial []repositories.RawDocument) {
	defer f.remove(w)

	w.deliver(initial)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.dirty:
		}

		docs, err := f.query(w.ctx, w.query)
		if w.ctx.Err() != nil {
			return
		}
		if err != nil {
			f.logger.Warn("live query failed",
				"collection", w.query.Collection,
				"error", err,
			)
			if w.listener.OnError != nil {
				w.listener.OnError(err)
			}
			continue
		}
		w.deliver(docs)
	}
}

func (w *watcher) markDirty() {
	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

func (w *watcher) deliver(docs []repositories.RawDocument) {
	if w.ctx.Err() != nil || w.listener.OnSnapshot == nil {
		return
	}
	if docs == nil {
		docs = []repositories.RawDocument{}
	}
	w.listener.OnSnapshot(docs)
}
