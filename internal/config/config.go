package config

import (
	"fmt"
	"os"
	"strconv"
)

// Store drivers
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string

	// Identity provider
	SupabaseURL          string
	SupabaseKey          string // service key for the admin API (seeding only)
	IdentityJWKSURL      string // defaults to SupabaseURL + /auth/v1/.well-known/jwks.json
	IdentityIssuer       string
	IdentityAudience     string
	IdentityRequiredRole string

	// Document store
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	RunMigrations bool

	// Logging
	LogDir      string
	LogMaxFiles int

	// Debug flags
	Debug bool // Enables DEBUG features like SSE event IDs
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	supabaseURL := getEnv("SUPABASE_URL", "")
	databaseURL := getEnv("DATABASE_URL", os.Getenv("SUPABASE_DB_URL"))

	jwksURL := getEnv("IDENTITY_JWKS_URL", "")
	if jwksURL == "" && supabaseURL != "" {
		jwksURL = supabaseURL + "/auth/v1/.well-known/jwks.json"
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),

		SupabaseURL:          supabaseURL,
		SupabaseKey:          getEnv("SUPABASE_KEY", ""),
		IdentityJWKSURL:      jwksURL,
		IdentityIssuer:       getEnv("IDENTITY_ISSUER", ""),
		IdentityAudience:     getEnv("IDENTITY_AUDIENCE", ""),
		IdentityRequiredRole: getEnv("IDENTITY_REQUIRED_ROLE", "authenticated"),

		StoreDriver:   getEnv("STORE_DRIVER", defaultStoreDriver(databaseURL)),
		DatabaseURL:   databaseURL,
		SQLitePath:    getEnv("SQLITE_PATH", "skynotes.db"),
		RunMigrations: getEnv("RUN_MIGRATIONS", "true") == "true",

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),

		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// Validate checks that the selected store driver has what it needs.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires DATABASE_URL or SUPABASE_DB_URL")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("STORE_DRIVER=sqlite requires SQLITE_PATH")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want postgres, sqlite or memory)", c.StoreDriver)
	}
	if c.IdentityJWKSURL == "" {
		return fmt.Errorf("IDENTITY_JWKS_URL or SUPABASE_URL is required")
	}
	return nil
}

func defaultStoreDriver(databaseURL string) string {
	if databaseURL != "" {
		return StorePostgres
	}
	return StoreMemory
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
