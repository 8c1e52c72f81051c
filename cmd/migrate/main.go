package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/logger"
	"github.com/windfall/poplingo_service/migrations"
)

func main() {
	var (
		direction string
		steps     int
		dbURL     string
		path      string
	)

	flag.StringVar(&direction, "direction", "up", "Migration direction: up, down, force or version")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to run (0 = all), or the version to force")
	flag.StringVar(&dbURL, "db", "", "Database URL (or set DATABASE_URL env var)")
	flag.StringVar(&path, "path", "", "Directory of migration files (default: the embedded set)")
	flag.Parse()

	_ = godotenv.Load()
	log := logger.New(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "console"))

	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal().Msg("Database URL is required. Set -db flag or DATABASE_URL env var")
	}

	m, err := newMigrate(path, dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrate instance")
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "force":
		// Clears a dirty state left by a failed migration.
		if steps == 0 {
			log.Fatal().Msg("Force requires -steps to specify version")
		}
		err = m.Force(steps)
	case "version":
		report(log, m, "Current version")
		return
	default:
		log.Fatal().Str("direction", direction).Msg("Unknown direction (use up, down, force or version)")
	}

	if errors.Is(err, migrate.ErrNoChange) {
		report(log, m, "No migrations to apply")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	report(log, m, "Migration successful")
}

// newMigrate reads migrations from dir when given, otherwise from the
// binary. pgx URLs use the pgx5:// scheme.
func newMigrate(dir, dbURL string) (*migrate.Migrate, error) {
	dbURL = pgxURL(dbURL)
	if dir != "" {
		return migrate.New(fmt.Sprintf("file://%s", dir), dbURL)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, dbURL)
}

func pgxURL(dbURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if len(dbURL) > len(prefix) && dbURL[:len(prefix)] == prefix {
			return "pgx5://" + dbURL[len(prefix):]
		}
	}
	return dbURL
}

func report(log zerolog.Logger, m *migrate.Migrate, msg string) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info().Msg(msg + " (no migrations applied)")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to read migration version")
		return
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg(msg)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
