// Package rewards keeps the running point balance focus sessions pay into.
package rewards

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/outbox"
	"github.com/mcdev12/fokus/go/internal/sqlutil"
)

// ErrNegativeDeposit is returned for deposits below zero.
var ErrNegativeDeposit = errors.New("deposit must not be negative")

// ledgerID is the single balance row; the app has one user.
const ledgerID = "default"

const depositPoints = `
INSERT INTO reward_ledger (id, balance, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE
SET balance = reward_ledger.balance + EXCLUDED.balance, updated_at = now()
RETURNING balance`

const getBalance = `
SELECT balance FROM reward_ledger WHERE id = $1`

type ledgerQueries struct {
	db     sqlutil.DBTX
	outbox *outbox.Repository
}

func newLedgerQueries(tx *sql.Tx) *ledgerQueries {
	return &ledgerQueries{db: tx, outbox: outbox.NewRepository(tx)}
}

// PostgresLedger stores the point balance in the reward_ledger table.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Deposit adds points to the balance and records a PointsDeposited event.
func (l *PostgresLedger) Deposit(ctx context.Context, points int) error {
	if points < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeDeposit, points)
	}
	if points == 0 {
		return nil
	}

	var balance int
	err := sqlutil.Run(ctx, l.db, newLedgerQueries, func(q *ledgerQueries) error {
		if err := q.db.QueryRowContext(ctx, depositPoints, ledgerID, points).Scan(&balance); err != nil {
			return fmt.Errorf("failed to deposit points: %w", err)
		}

		payload, err := json.Marshal(outbox.PointsDepositedPayload{Points: points, Balance: balance})
		if err != nil {
			return fmt.Errorf("failed to encode deposit event: %w", err)
		}
		_, err = q.outbox.InsertEvent(ctx, ledgerID, outbox.EventPointsDeposited, payload)
		return err
	})
	if err != nil {
		return err
	}

	log.Info().Int("points", points).Int("balance", balance).Msg("points deposited")
	return nil
}

// Balance returns the current point balance, zero before the first deposit.
func (l *PostgresLedger) Balance(ctx context.Context) (int, error) {
	var balance int
	err := l.db.QueryRowContext(ctx, getBalance, ledgerID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}
