package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/dbconfig"
)

// setupDatabase connects to Postgres. With FOKUS_DB_DISABLED set it returns
// nil and sessions are neither saved nor rewarded.
func setupDatabase() (*sql.DB, error) {
	if getEnvAsBool("FOKUS_DB_DISABLED", false) {
		log.Warn().Msg("database disabled, focus sessions will not be persisted")
		return nil, nil
	}

	cfg := dbconfig.NewConfigFromEnv()
	database, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	cfg.Configure(database)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return database, nil
}
