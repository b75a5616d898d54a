package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mcdev12/fokus/go/internal/dbconfig"
	"github.com/mcdev12/fokus/go/internal/models"
)

const defaultTasksFile = "go/internal/tools/seed_tasks/tasks.json"

func main() {
	_ = godotenv.Load()

	path := defaultTasksFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Insert and count
	var (
		total    = len(tasks)
		inserted int
		skipped  int
		errs     int
	)

	for _, t := range tasks {
		if t.ID == "" || t.Title == "" {
			fmt.Fprintf(os.Stderr, "skipping task without id or title: %+v\n", t)
			errs++
			continue
		}

		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO tasks (
              id, title, description, start_time, end_time,
              completed, completed_at, color
            ) VALUES (
              $1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, '')
            )
            ON CONFLICT (id) DO NOTHING
        `,
			t.ID, t.Title, t.Description, t.StartTime, t.EndTime,
			t.Completed, t.CompletedAt, t.Color,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting task %s: %v\n", t.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Tasks seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}
