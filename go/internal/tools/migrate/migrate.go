package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mcdev12/fokus/go/internal/dbconfig"
)

//go:embed schema.sql
var schema string

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Apply the schema in one transaction; every statement is idempotent
	tx, err := pool.Begin(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "begin: %v\n", err)
		os.Exit(1)
	}
	if _, err := tx.Exec(ctx, schema); err != nil {
		_ = tx.Rollback(ctx)
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}
	if err := tx.Commit(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "commit: %v\n", err)
		os.Exit(1)
	}

	// 3) Report what exists now
	var tables int
	err = pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM information_schema.tables
        WHERE table_schema = 'public'
          AND table_name IN ('tasks', 'focus_sessions', 'reward_ledger', 'fokus_outbox')
    `).Scan(&tables)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Migration complete: %d/4 tables present in %s\n", tables, cfg.Database)
}
