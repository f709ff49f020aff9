package auth

import (
	"sync"

	"skynotes/internal/domain/models"
)

// SessionTracker is the identity of one long-lived client connection. It implements
// services.IdentityProvider so subscriptions can follow sign-in and sign-out.
type SessionTracker struct {
	verifier JWTVerifier

	mu        sync.Mutex
	current   models.Session
	listeners map[int]func(models.Session)
	nextID    int
}

func NewSessionTracker(verifier JWTVerifier) *SessionTracker {
	return &SessionTracker{
		verifier:  verifier,
		listeners: make(map[int]func(models.Session)),
	}
}

func (t *SessionTracker) Current() models.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *SessionTracker) OnChange(fn func(models.Session)) (cancel func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// SignIn verifies token and switches to its identity. A rejected token leaves the
// current identity unchanged.
func (t *SessionTracker) SignIn(token string) (models.Session, error) {
	claims, err := t.verifier.VerifyToken(token)
	if err != nil {
		return models.Session{}, err
	}
	session := claims.Session()
	t.set(session)
	return session, nil
}

// SignOut clears the identity.
func (t *SessionTracker) SignOut() {
	t.set(models.Session{})
}

// set notifies listeners outside the lock, and only when the identity changed.
func (t *SessionTracker) set(session models.Session) {
	t.mu.Lock()
	if t.current == session {
		t.mu.Unlock()
		return
	}
	t.current = session
	fns := make([]func(models.Session), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(session)
	}
}
