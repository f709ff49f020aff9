package subscription

import (
	"context"
	"sync"

	"skynotes/internal/domain/models"
	"skynotes/internal/domain/services"
)

// StartFunc opens something for a session and returns its release function.
type StartFunc func(session models.Session) (release func(), err error)

// Follower keeps a subscription in step with an identity provider: every sign-in,
// sign-out or account switch releases the current subscription and starts a new one
// for the new session.
type Follower struct {
	mu      sync.Mutex
	current func()
	stop    func()
	closed  bool
}

// FollowFunc runs start for the provider's current session and again after every
// change. Failures to start after the first go to onError.
func FollowFunc(identity services.IdentityProvider, start StartFunc, onError func(error)) (*Follower, error) {
	f := &Follower{}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.stop = identity.OnChange(func(session models.Session) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.closed {
			return
		}
		if f.current != nil {
			f.current()
			f.current = nil
		}
		release, err := start(session)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		f.current = release
	})

	release, err := start(identity.Current())
	if err != nil {
		f.stop()
		f.closed = true
		return nil, err
	}
	f.current = release

	return f, nil
}

// Follow acquires for the provider's current session and re-acquires on every change.
// Listener callbacks must not change the provider's identity.
func (s Source[T]) Follow(ctx context.Context, identity services.IdentityProvider, l Listener[T]) (*Follower, error) {
	return FollowFunc(identity, func(session models.Session) (func(), error) {
		h, err := s.Acquire(ctx, session, l)
		if err != nil {
			return nil, err
		}
		return h.Release, nil
	}, l.OnError)
}

// Release stops following and releases the current subscription. Idempotent.
func (f *Follower) Release() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	current := f.current
	f.current = nil
	f.mu.Unlock()

	f.stop()
	if current != nil {
		current()
	}
}
