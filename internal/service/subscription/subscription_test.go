package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"skynotes/internal/domain"
	"skynotes/internal/domain/models"
	"skynotes/internal/domain/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore records Subscribe calls and lets the test drive deliveries by hand.
type fakeStore struct {
	mu           sync.Mutex
	subscribeErr error
	queries      []repositories.Query
	listeners    []repositories.Listener
	unsubscribed int
}

func (f *fakeStore) Create(context.Context, string, repositories.Fields) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeStore) Get(context.Context, string, string) (*repositories.RawDocument, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) Update(context.Context, string, string, repositories.Fields) error {
	return errors.New("not implemented")
}

func (f *fakeStore) Delete(context.Context, string, string) error {
	return errors.New("not implemented")
}

func (f *fakeStore) Subscribe(ctx context.Context, q repositories.Query, l repositories.Listener) (repositories.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.queries = append(f.queries, q)
	f.listeners = append(f.listeners, l)
	return func() {
		f.mu.Lock()
		f.unsubscribed++
		f.mu.Unlock()
	}, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeStore) listener(i int) repositories.Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listeners[i]
}

type item struct {
	ID    string
	Owner string
	Name  string
}

func decodeItem(doc repositories.RawDocument) (item, error) {
	name, ok := doc.Fields["name"].(string)
	if !ok {
		return item{}, &domain.DecodeError{Collection: "items", ID: doc.ID, Field: "name", Reason: "is missing"}
	}
	owner, _ := doc.Fields["owner"].(string)
	return item{ID: doc.ID, Owner: owner, Name: name}, nil
}

func newSource(store repositories.DocumentStore) Source[item] {
	return Source[item]{
		Store: store,
		Request: Request{
			Query: repositories.Query{
				Collection: "items",
				Filters:    []repositories.Filter{{Field: "kind", Value: "a"}},
				OrderBy:    "name",
			},
			OwnerField: "owner",
		},
		Decode: decodeItem,
		Logger: testLogger(),
	}
}

type collected struct {
	mu        sync.Mutex
	snapshots [][]item
	errs      []error
}

func (c *collected) listener() Listener[item] {
	return Listener[item]{
		OnSnapshot: func(items []item) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.snapshots = append(c.snapshots, items)
		},
		OnError: func(err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.errs = append(c.errs, err)
		},
	}
}

func (c *collected) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshots), len(c.errs)
}

var alice = models.Session{UserID: "alice"}

func TestAcquire_SignedOutDeliversEmptyWithoutStore(t *testing.T) {
	store := &fakeStore{}
	var got collected

	h, err := newSource(store).Acquire(context.Background(), models.Session{}, got.listener())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer h.Release()

	if store.subscriptions() != 0 {
		t.Errorf("store subscribed %d times, want 0", store.subscriptions())
	}
	if len(got.snapshots) != 1 || got.snapshots[0] == nil || len(got.snapshots[0]) != 0 {
		t.Errorf("snapshots = %#v, want one empty snapshot", got.snapshots)
	}
}

func TestAcquire_AddsOwnerFilter(t *testing.T) {
	store := &fakeStore{}
	src := newSource(store)

	h, err := src.Acquire(context.Background(), alice, Listener[item]{})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer h.Release()

	q := store.queries[0]
	want := []repositories.Filter{{Field: "kind", Value: "a"}, {Field: "owner", Value: "alice"}}
	if len(q.Filters) != len(want) || q.Filters[0] != want[0] || q.Filters[1] != want[1] {
		t.Errorf("filters = %+v, want %+v", q.Filters, want)
	}
	if q.OrderBy != "name" || q.Collection != "items" {
		t.Errorf("query = %+v lost its ordering", q)
	}
	if len(src.Request.Query.Filters) != 1 {
		t.Error("Acquire() modified the request's filters")
	}
}

func TestAcquire_DeliveryFiltersForeignAndMalformed(t *testing.T) {
	store := &fakeStore{}
	var got collected

	h, err := newSource(store).Acquire(context.Background(), alice, got.listener())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer h.Release()

	store.listener(0).OnSnapshot([]repositories.RawDocument{
		{ID: "1", Fields: repositories.Fields{"owner": "alice", "name": "mine"}},
		{ID: "2", Fields: repositories.Fields{"owner": "bob", "name": "theirs"}},
		{ID: "3", Fields: repositories.Fields{"owner": "alice"}},
		{ID: "4", Fields: repositories.Fields{"name": "no owner"}},
	})

	if len(got.snapshots) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(got.snapshots))
	}
	if items := got.snapshots[0]; len(items) != 1 || items[0].ID != "1" {
		t.Errorf("snapshot = %+v, want only item 1", items)
	}
	if len(got.errs) != 1 || !errors.Is(got.errs[0], domain.ErrDecode) {
		t.Errorf("errors = %v, want one decode error", got.errs)
	}
}

func TestAcquire_RuntimeErrorIsRemote(t *testing.T) {
	store := &fakeStore{}
	var got collected

	h, err := newSource(store).Acquire(context.Background(), alice, got.listener())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer h.Release()

	store.listener(0).OnError(errors.New("connection reset"))

	var remote *domain.RemoteError
	if len(got.errs) != 1 || !errors.As(got.errs[0], &remote) || remote.Op != "subscribe" {
		t.Errorf("errors = %v, want one RemoteError for subscribe", got.errs)
	}
}

func TestAcquire_EstablishmentError(t *testing.T) {
	store := &fakeStore{subscribeErr: errors.New("permission denied")}

	h, err := newSource(store).Acquire(context.Background(), alice, Listener[item]{})
	if !errors.Is(err, domain.ErrRemote) {
		t.Errorf("Acquire() error = %v, want ErrRemote", err)
	}
	if h != nil {
		t.Error("Acquire() returned a handle on failure")
	}
}

func TestHandle_ReleaseStopsCallbacks(t *testing.T) {
	store := &fakeStore{}
	var got collected

	h, err := newSource(store).Acquire(context.Background(), alice, got.listener())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	h.Release()
	h.Release()

	if !h.Released() {
		t.Error("Released() = false after Release")
	}
	if store.unsubscribed != 1 {
		t.Errorf("unsubscribed %d times, want 1", store.unsubscribed)
	}

	l := store.listener(0)
	l.OnSnapshot([]repositories.RawDocument{{ID: "1", Fields: repositories.Fields{"owner": "alice", "name": "x"}}})
	l.OnError(errors.New("late"))

	if n, e := got.counts(); n != 0 || e != 0 {
		t.Errorf("callbacks after release: %d snapshots, %d errors", n, e)
	}
}

func TestHandle_ReleaseWaitsForDelivery(t *testing.T) {
	store := &fakeStore{}
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var finished bool

	h, err := newSource(store).Acquire(context.Background(), alice, Listener[item]{
		OnSnapshot: func([]item) {
			close(entered)
			<-unblock
			finished = true
		},
	})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	go store.listener(0).OnSnapshot(nil)
	<-entered

	released := make(chan struct{})
	go func() {
		h.Release()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("Release() returned during a delivery")
	case <-time.After(20 * time.Millisecond):
	}

	close(unblock)
	<-released
	if !finished {
		t.Error("delivery did not finish before Release returned")
	}
}

func TestWith(t *testing.T) {
	store := &fakeStore{}
	ran := false

	err := newSource(store).With(context.Background(), alice, Listener[item]{}, func(ctx context.Context) error {
		ran = true
		if store.subscriptions() != 1 {
			t.Error("not subscribed inside fn")
		}
		return errors.New("fn failed")
	})
	if err == nil || err.Error() != "fn failed" {
		t.Errorf("With() error = %v, want fn's error", err)
	}
	if !ran || store.unsubscribed != 1 {
		t.Errorf("ran=%v unsubscribed=%d, want fn run and released", ran, store.unsubscribed)
	}
}

func TestFirst(t *testing.T) {
	store := &fakeStore{}
	src := newSource(store)

	go func() {
		for store.subscriptions() == 0 {
			time.Sleep(time.Millisecond)
		}
		store.listener(0).OnSnapshot([]repositories.RawDocument{
			{ID: "1", Fields: repositories.Fields{"owner": "alice", "name": "a"}},
		})
	}()

	items, err := src.First(context.Background(), alice)
	if err != nil {
		t.Fatalf("First() error = %v", err)
	}
	if len(items) != 1 || items[0].Name != "a" {
		t.Errorf("First() = %+v", items)
	}
	if store.unsubscribed != 1 {
		t.Error("First() did not release its subscription")
	}

	signedOut, err := src.First(context.Background(), models.Session{})
	if err != nil || len(signedOut) != 0 {
		t.Errorf("First() signed out = %v, %v; want empty", signedOut, err)
	}
}

func TestFirst_ContextCancelled(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := newSource(store).First(ctx, alice); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("First() error = %v, want deadline exceeded", err)
	}
}
