package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"skynotes/internal/repository/postgres"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("SUPABASE_DB_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL or SUPABASE_DB_URL environment variable is required")
	}

	if os.Getenv("ENVIRONMENT") == "prod" {
		log.Fatal("🚫 BLOCKED: refusing to drop tables in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := postgres.DropMigrations(dbURL, logger); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	fmt.Println("All tables dropped successfully")
}
