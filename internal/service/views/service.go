package views

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"skynotes/internal/config"
	"skynotes/internal/domain"
	"skynotes/internal/domain/models"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/domain/repositories"
	"skynotes/internal/service/form"
	"skynotes/internal/service/markdown"
	"skynotes/internal/service/notebook"
	"skynotes/internal/service/subscription"
)

// Home is the home screen: recent notes and folder chips.
type Home struct {
	Notes      []notes.NoteSummary `json:"notes"`
	Folders    []notes.Folder      `json:"folders"`
	Visibility notes.Visibility    `json:"visibility"`
}

// HomeOptions are the home screen's client-side filters.
type HomeOptions struct {
	Visibility notes.Visibility
	Query      string
}

// FolderDetail is one folder and its notes.
type FolderDetail struct {
	Folder notes.Folder        `json:"folder"`
	Notes  []notes.NoteSummary `json:"notes"`
}

// NoteDetail is a note with its rendered content.
type NoteDetail struct {
	Note      notes.Note `json:"note"`
	HTML      string     `json:"html"`
	WordCount int        `json:"word_count"`
}

// NoteDraft prepares the editor for a new note.
type NoteDraft struct {
	Note    notes.Note      `json:"note"`
	Folders []notes.Folder  `json:"folders"`
	Toolbar []markdown.Tool `json:"toolbar"`
}

// Release ends a Watch* call.
type Release func()

// Service composes screens. Every call subscribes independently; nothing is cached
// across views.
type Service struct {
	store    repositories.DocumentStore
	renderer *markdown.Renderer
	logger   *slog.Logger
}

func NewService(store repositories.DocumentStore, renderer *markdown.Renderer, logger *slog.Logger) *Service {
	return &Service{store: store, renderer: renderer, logger: logger}
}

func (s *Service) recentNotes() subscription.Source[notes.Note] {
	return notebook.NoteSource(s.store, notebook.RecentNotes(config.RecentNotesLimit), s.logger)
}

func (s *Service) folders() subscription.Source[notes.Folder] {
	return notebook.FolderSource(s.store, notebook.Folders(), s.logger)
}

func (s *Service) folderNotes(folderID string) subscription.Source[notes.Note] {
	return notebook.NoteSource(s.store, notebook.FolderNotes(folderID), s.logger)
}

func buildHome(ns []notes.Note, folders []notes.Folder, opts HomeOptions) *Home {
	ns = Search(FilterVisibility(ns, opts.Visibility), opts.Query)
	return &Home{
		Notes:      SummarizeAll(ns, config.ExcerptLength),
		Folders:    folders,
		Visibility: opts.Visibility,
	}
}

// Home reads the home screen once.
func (s *Service) Home(ctx context.Context, session models.Session, opts HomeOptions) (*Home, error) {
	ns, err := s.recentNotes().First(ctx, session)
	if err != nil && !errors.Is(err, domain.ErrDecode) {
		return nil, err
	}
	folders, err := s.folders().First(ctx, session)
	if err != nil && !errors.Is(err, domain.ErrDecode) {
		return nil, err
	}
	return buildHome(ns, folders, opts), nil
}

// WatchHome emits the home screen once both subscriptions have delivered, and again
// after every later delivery of either.
func (s *Service) WatchHome(ctx context.Context, session models.Session, opts HomeOptions, emit func(*Home), onError func(error)) (Release, error) {
	var (
		mu      sync.Mutex
		ns      []notes.Note
		folders []notes.Folder
		haveN   bool
		haveF   bool
	)
	publish := func() {
		if haveN && haveF {
			emit(buildHome(ns, folders, opts))
		}
	}

	notesHandle, err := s.recentNotes().Acquire(ctx, session, subscription.Listener[notes.Note]{
		OnSnapshot: func(items []notes.Note) {
			mu.Lock()
			defer mu.Unlock()
			ns, haveN = items, true
			publish()
		},
		OnError: onError,
	})
	if err != nil {
		return nil, err
	}

	foldersHandle, err := s.folders().Acquire(ctx, session, subscription.Listener[notes.Folder]{
		OnSnapshot: func(items []notes.Folder) {
			mu.Lock()
			defer mu.Unlock()
			folders, haveF = items, true
			publish()
		},
		OnError: onError,
	})
	if err != nil {
		notesHandle.Release()
		return nil, err
	}

	return func() {
		notesHandle.Release()
		foldersHandle.Release()
	}, nil
}

// Folders reads the folder list once.
func (s *Service) Folders(ctx context.Context, session models.Session) ([]notes.Folder, error) {
	folders, err := s.folders().First(ctx, session)
	if err != nil && !errors.Is(err, domain.ErrDecode) {
		return nil, err
	}
	return folders, nil
}

func (s *Service) WatchFolders(ctx context.Context, session models.Session, emit func([]notes.Folder), onError func(error)) (Release, error) {
	h, err := s.folders().Acquire(ctx, session, subscription.Listener[notes.Folder]{
		OnSnapshot: emit,
		OnError:    onError,
	})
	if err != nil {
		return nil, err
	}
	return h.Release, nil
}

// folder reads one owned folder. Missing and foreign folders are the same denial.
func (s *Service) folder(ctx context.Context, session models.Session, id string) (notes.Folder, error) {
	if !session.SignedIn() {
		return notes.Folder{}, &domain.UnauthorizedError{Message: "sign in required"}
	}
	doc, err := s.store.Get(ctx, notebook.FoldersCollection, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notes.Folder{}, &domain.ForbiddenError{Message: domain.PermissionDeniedMessage}
		}
		return notes.Folder{}, domain.NewRemoteError("get", err)
	}
	f, err := notebook.DecodeFolder(*doc)
	if err != nil {
		return notes.Folder{}, err
	}
	if !session.Owns(f.OwnerID) {
		return notes.Folder{}, &domain.ForbiddenError{Message: domain.PermissionDeniedMessage}
	}
	return f, nil
}

// Folder reads a folder and its notes once; query narrows the notes by title.
func (s *Service) Folder(ctx context.Context, session models.Session, id, query string) (*FolderDetail, error) {
	f, err := s.folder(ctx, session, id)
	if err != nil {
		return nil, err
	}
	ns, err := s.folderNotes(id).First(ctx, session)
	if err != nil && !errors.Is(err, domain.ErrDecode) {
		return nil, err
	}
	return &FolderDetail{Folder: f, Notes: SummarizeAll(Search(ns, query), config.ExcerptLength)}, nil
}

// WatchFolder reads the folder record once and follows its notes.
func (s *Service) WatchFolder(ctx context.Context, session models.Session, id string, emit func(*FolderDetail), onError func(error)) (Release, error) {
	f, err := s.folder(ctx, session, id)
	if err != nil {
		return nil, err
	}
	h, err := s.folderNotes(id).Acquire(ctx, session, subscription.Listener[notes.Note]{
		OnSnapshot: func(ns []notes.Note) {
			emit(&FolderDetail{Folder: f, Notes: SummarizeAll(ns, config.ExcerptLength)})
		},
		OnError: onError,
	})
	if err != nil {
		return nil, err
	}
	return h.Release, nil
}

// Note reads one owned note and renders it.
func (s *Service) Note(ctx context.Context, session models.Session, id string) (*NoteDetail, error) {
	ctrl := form.NewNoteController(s.store, session, s.logger)
	if err := ctrl.Load(ctx, id); err != nil {
		return nil, err
	}
	n := ctrl.Values()

	html, err := s.renderer.Render(n.Content)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{Note: n, HTML: html, WordCount: markdown.CountWords(n.Content)}, nil
}

// ToggleVisibility flips a note between public and private.
func (s *Service) ToggleVisibility(ctx context.Context, session models.Session, id string) (*notes.Note, error) {
	ctrl := form.NewNoteController(s.store, session, s.logger)
	if err := ctrl.Load(ctx, id); err != nil {
		return nil, err
	}
	n := ctrl.Values()
	n.IsPublic = !n.IsPublic
	if err := ctrl.Edit(n); err != nil {
		return nil, err
	}
	if err := ctrl.Submit(ctx); err != nil {
		return nil, err
	}
	n = ctrl.Values()
	return &n, nil
}

// NewNoteDraft prepares an empty note in the requested folder, or the first folder
// when the request names none the user owns.
func (s *Service) NewNoteDraft(ctx context.Context, session models.Session, requestedFolderID string) (*NoteDraft, error) {
	if !session.SignedIn() {
		return nil, &domain.UnauthorizedError{Message: "sign in required"}
	}
	folders, err := s.Folders(ctx, session)
	if err != nil {
		return nil, err
	}
	return &NoteDraft{
		Note:    notes.Note{OwnerID: session.UserID, FolderID: DefaultFolderID(folders, requestedFolderID)},
		Folders: folders,
		Toolbar: markdown.Toolbar,
	}, nil
}

// Export renders an owned note as a markdown download.
func (s *Service) Export(ctx context.Context, session models.Session, id string) (filename string, data []byte, err error) {
	detail, err := s.Note(ctx, session, id)
	if err != nil {
		return "", nil, err
	}

	folderName := ""
	if f, err := s.folder(ctx, session, detail.Note.FolderID); err == nil {
		folderName = f.Name
	}

	data, err = notebook.Export(detail.Note, folderName)
	if err != nil {
		return "", nil, err
	}
	return notebook.ExportFilename(detail.Note), data, nil
}

// ResolveFolder maps a folder reference from an imported file (id or name, any case)
// to one of the user's folders, falling back to requested and then the first folder.
func ResolveFolder(folders []notes.Folder, reference, requested string) string {
	if reference != "" {
		for _, f := range folders {
			if f.ID == reference || strings.EqualFold(f.Name, reference) {
				return f.ID
			}
		}
	}
	return DefaultFolderID(folders, requested)
}
