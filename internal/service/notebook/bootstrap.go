package notebook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"skynotes/internal/domain"
	"skynotes/internal/domain/models"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/domain/repositories"
)

// DefaultFolders are created for a user on first sign-in.
var DefaultFolders = []notes.Folder{
	{Name: "Ideas", Description: "Your brilliant ideas"},
	{Name: "Tasks", Description: "Your to-do list"},
	{Name: "Journal", Description: "Your personal journal"},
}

// Bootstrapper prepares a new account. One Bootstrapper should serve the whole
// process: the check-then-create in EnsureDefaults is serialized per user through it.
type Bootstrapper struct {
	store  repositories.DocumentStore
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewBootstrapper(store repositories.DocumentStore, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{
		store:  store,
		logger: logger,
		locks:  make(map[string]*userLock),
	}
}

// lock holds the per-user lock until the returned func is called.
func (b *Bootstrapper) lock(userID string) func() {
	b.mu.Lock()
	l, ok := b.locks[userID]
	if !ok {
		l = &userLock{}
		b.locks[userID] = l
	}
	l.refs++
	b.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, userID)
		}
		b.mu.Unlock()
	}
}

// EnsureDefaults creates DefaultFolders when the user owns no folder yet and returns
// the user's folders. created reports whether anything was written. Concurrent calls
// for one user create the defaults once.
func (b *Bootstrapper) EnsureDefaults(ctx context.Context, session models.Session) (folders []notes.Folder, created bool, err error) {
	if !session.SignedIn() {
		return nil, false, &domain.UnauthorizedError{Message: "sign in required"}
	}

	unlock := b.lock(session.UserID)
	defer unlock()

	existing, err := FolderSource(b.store, Folders(), b.logger).First(ctx, session)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return existing, false, nil
	}

	docs := make([]repositories.Fields, len(DefaultFolders))
	for i, f := range DefaultFolders {
		f.OwnerID = session.UserID
		docs[i] = FolderCreateFields(f)
	}

	if batch, ok := b.store.(repositories.BatchCreator); ok {
		if _, err := batch.CreateAll(ctx, FoldersCollection, docs); err != nil {
			return nil, false, domain.NewRemoteError("create", fmt.Errorf("default folders: %w", err))
		}
	} else {
		for _, fields := range docs {
			if _, err := b.store.Create(ctx, FoldersCollection, fields); err != nil {
				return nil, false, domain.NewRemoteError("create", fmt.Errorf("default folders: %w", err))
			}
		}
	}

	b.logger.Info("created default folders", "user_id", session.UserID, "count", len(docs))

	folders, err = FolderSource(b.store, Folders(), b.logger).First(ctx, session)
	if err != nil {
		return nil, true, err
	}
	return folders, true, nil
}
