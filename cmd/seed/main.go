package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"strings"

	"skynotes/internal/auth"
	"skynotes/internal/config"
	"skynotes/internal/domain/models"
	"skynotes/internal/domain/models/notes"
	"skynotes/internal/domain/repositories"
	"skynotes/internal/repository/postgres"
	"skynotes/internal/repository/sqlite"
	"skynotes/internal/service/form"
	"skynotes/internal/service/notebook"

	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Roll back every migration before seeding (fresh start, postgres only)")
	schemaOnly := flag.Bool("schema-only", false, "Only migrate the schema, don't seed notes")
	clearData := flag.Bool("clear-data", false, "Delete the user's notes and folders (keep schema, postgres only)")
	userID := flag.String("user", "", "Seed for this existing user ID")
	email := flag.String("email", "", "Create (or reuse) this user through the identity admin API and seed for it")
	password := flag.String("password", "", "Password for a user created with -email")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	logger, logCloser, err := config.NewLogger(cfg, "seed")
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	ctx := context.Background()

	if cfg.StoreDriver == config.StorePostgres {
		if *dropTables {
			log.Println("🗑️  Rolling back all migrations...")
			if err := postgres.DropMigrations(cfg.DatabaseURL, logger); err != nil {
				log.Fatalf("Failed to drop tables: %v", err)
			}
			log.Println("✅ Tables dropped")
		}

		log.Println("📋 Ensuring database schema is up to date...")
		if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("✅ Schema ready")
	} else if *dropTables || *clearData {
		log.Fatalf("--drop-tables and --clear-data need STORE_DRIVER=postgres (got %s)", cfg.StoreDriver)
	}

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	// Resolve the user to seed for
	if *email != "" {
		id, err := ensureUser(ctx, cfg, *email, *password)
		if err != nil {
			log.Fatalf("Failed to create user %s: %v", *email, err)
		}
		*userID = id
	}
	if *userID == "" {
		log.Fatalf("Nothing to seed: pass -user or -email")
	}
	session := models.Session{UserID: *userID, Email: *email}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer store.Close()

	if *clearData {
		log.Printf("🧹 Clearing notes and folders of %s...", session.UserID)
		if err := clearUserData(ctx, cfg, session.UserID); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Println("✅ Data cleared successfully")
		return
	}

	log.Printf("🌱 Seeding notes for %s (environment: %s, store: %s)", session.UserID, cfg.Environment, cfg.StoreDriver)

	folders, created, err := notebook.NewBootstrapper(store, logger).EnsureDefaults(ctx, session)
	if err != nil {
		log.Fatalf("Failed to create default folders: %v", err)
	}
	if created {
		log.Printf("✅ Created %d default folders", len(folders))
	} else {
		log.Printf("ℹ️  User already has %d folders", len(folders))
	}

	byName := make(map[string]string, len(folders))
	for _, f := range folders {
		byName[strings.ToLower(f.Name)] = f.ID
	}

	seeds := seedNotes()
	for i, s := range seeds {
		folderID, ok := byName[strings.ToLower(s.folder)]
		if !ok {
			log.Printf("❌ Skipping %q: no folder named %s", s.note.Title, s.folder)
			continue
		}
		n := s.note
		n.FolderID = folderID

		// Through the form controller so seeded notes pass the same validation
		ctrl := form.NewNoteController(store, session, logger)
		if err := ctrl.Edit(n); err != nil {
			log.Fatalf("Failed to prepare note: %v", err)
		}
		if err := ctrl.Submit(ctx); err != nil {
			log.Printf("❌ Failed to create note '%s': %v", n.Title, err)
			continue
		}
		log.Printf("✅ Created note %d/%d: %s/%s (ID: %s)", i+1, len(seeds), s.folder, n.Title, ctrl.ID())
	}

	log.Println("🎉 Seeding complete!")
}

// ensureUser creates the account, or finds it when it already exists.
func ensureUser(ctx context.Context, cfg *config.Config, email, password string) (string, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		return "", errors.New("SUPABASE_URL and SUPABASE_KEY are required to create users")
	}
	admin := auth.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseKey)

	if existing, err := admin.FindUserByEmail(ctx, email); err == nil {
		log.Printf("ℹ️  Reusing existing user %s (%s)", email, existing.ID)
		return existing.ID, nil
	} else if !errors.Is(err, auth.ErrUserNotFound) {
		return "", err
	}

	if password == "" {
		return "", errors.New("-password is required to create a user")
	}
	id, err := admin.CreateUser(ctx, email, password)
	if err != nil {
		return "", err
	}
	log.Printf("✅ Created user %s (%s)", email, id)
	return id, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.DocumentStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(&postgres.RepositoryConfig{Pool: pool, Logger: logger}), nil
	case config.StoreSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath, logger)
	default:
		return nil, errors.New("seeding the in-memory store has no effect; set STORE_DRIVER")
	}
}

// clearUserData deletes every document owned by userID.
func clearUserData(ctx context.Context, cfg *config.Config, userID string) error {
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	tag, err := pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = ANY($1) AND fields ->> $2 = $3`,
		[]string{notebook.NotesCollection, notebook.FoldersCollection},
		notebook.FieldOwner,
		userID,
	)
	if err != nil {
		return err
	}
	log.Printf("🧹 Deleted %d documents", tag.RowsAffected())
	return nil
}

type seedNote struct {
	folder string
	note   notes.Note
}

func seedNotes() []seedNote {
	return []seedNote{
		{
			folder: "Ideas",
			note: notes.Note{
				Title:    "App idea: plant watering reminders",
				Content:  "# Plant reminders\n\nTrack each plant's **watering interval** and send a nudge.\n\n- Photo per plant\n- Shared households\n- Vacation mode",
				IsPublic: true,
			},
		},
		{
			folder: "Ideas",
			note: notes.Note{
				Title:   "Blog post outline",
				Content: "1. Why plain text notes age well\n2. Markdown as a lingua franca\n3. *Syncing* without lock-in",
			},
		},
		{
			folder: "Tasks",
			note: notes.Note{
				Title:   "This week",
				Content: "- Renew passport\n- Book dentist\n- Call **Sam** about the move",
			},
		},
		{
			folder: "Journal",
			note: notes.Note{
				Title:   "First entry",
				Content: "Started using this notebook today. The toolbar makes *lists* quick to type.",
			},
		},
	}
}
