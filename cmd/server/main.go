package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"skynotes/internal/auth"
	"skynotes/internal/config"
	"skynotes/internal/domain/repositories"
	"skynotes/internal/handler"
	"skynotes/internal/handler/sse"
	"skynotes/internal/middleware"
	"skynotes/internal/repository/memory"
	"skynotes/internal/repository/postgres"
	"skynotes/internal/repository/sqlite"
	"skynotes/internal/service/markdown"
	"skynotes/internal/service/notebook"
	"skynotes/internal/service/views"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup structured logging
	logger, logCloser, err := config.NewLogger(cfg, "server")
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store", cfg.StoreDriver,
	)

	// JWT verifier for the identity provider
	jwtVerifier, err := auth.NewJWKSVerifier(cfg.IdentityJWKSURL, logger,
		auth.WithIssuer(cfg.IdentityIssuer),
		auth.WithAudience(cfg.IdentityAudience),
		auth.WithRequiredRole(cfg.IdentityRequiredRole),
	)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer store.Close()

	// Services
	renderer := markdown.NewRenderer()
	viewService := views.NewService(store, renderer, logger)
	bootstrapper := notebook.NewBootstrapper(store, logger)
	importer := notebook.NewImporter()

	sseConfig := sse.DefaultConfig()
	sseConfig.EventIDs = cfg.Debug

	// Handlers
	sessionHandler := handler.NewSessionHandler(bootstrapper, logger)
	viewHandler := handler.NewViewHandler(viewService, sseConfig, logger)
	noteHandler := handler.NewNoteHandler(store, viewService, importer, logger)
	folderHandler := handler.NewFolderHandler(store, logger)
	markdownHandler := handler.NewMarkdownHandler(renderer, logger)
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	wsHandler := handler.NewWSHandler(viewService, jwtVerifier, corsOrigins, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", handler.HealthCheck)

	// Live views over websocket (authenticates in-band)
	mux.HandleFunc("GET /ws", wsHandler.ServeWS)

	// Session routes
	mux.HandleFunc("GET /api/me", sessionHandler.Me)
	mux.HandleFunc("POST /api/me/bootstrap", sessionHandler.Bootstrap)

	// Home
	mux.HandleFunc("GET /api/home", viewHandler.Home)
	mux.HandleFunc("GET /api/home/stream", viewHandler.HomeStream)

	// Folder routes
	mux.HandleFunc("GET /api/folders", viewHandler.ListFolders)
	mux.HandleFunc("GET /api/folders/stream", viewHandler.FoldersStream) // Must come before {id} route
	mux.HandleFunc("POST /api/folders", folderHandler.CreateFolder)
	mux.HandleFunc("GET /api/folders/{id}", viewHandler.GetFolder)
	mux.HandleFunc("GET /api/folders/{id}/stream", viewHandler.FolderStream)
	mux.HandleFunc("PATCH /api/folders/{id}", folderHandler.UpdateFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", folderHandler.DeleteFolder)

	// Note routes
	mux.HandleFunc("GET /api/notes/new", viewHandler.NewNote) // Must come before {id} route
	mux.HandleFunc("POST /api/notes", noteHandler.CreateNote)
	mux.HandleFunc("POST /api/notes/import", noteHandler.ImportNote)
	mux.HandleFunc("GET /api/notes/{id}", viewHandler.GetNote)
	mux.HandleFunc("PATCH /api/notes/{id}", noteHandler.UpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", noteHandler.DeleteNote)
	mux.HandleFunc("POST /api/notes/{id}/visibility/toggle", noteHandler.ToggleVisibility)
	mux.HandleFunc("GET /api/notes/{id}/export", viewHandler.ExportNote)

	// Editor helpers
	mux.HandleFunc("GET /api/markdown/toolbar", markdownHandler.Toolbar)
	mux.HandleFunc("POST /api/markdown/insert", markdownHandler.Insert)
	mux.HandleFunc("POST /api/markdown/preview", markdownHandler.Preview)

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Logging → Routes
	h = middleware.RequestLogger(logger)(h)
	h = middleware.AuthMiddleware(jwtVerifier, logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}

// openStore connects the configured document store, migrating Postgres first when
// enabled.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.DocumentStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if cfg.RunMigrations {
			if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("database connected",
			"max_conns", pool.Config().MaxConns,
			"min_conns", pool.Config().MinConns,
		)
		return postgres.NewStore(&postgres.RepositoryConfig{
			Pool:   pool,
			Logger: logger,
		}), nil
	case config.StoreSQLite:
		logger.Info("opening sqlite store", "path", cfg.SQLitePath)
		return sqlite.Open(ctx, cfg.SQLitePath, logger)
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(logger), nil
	}
}
