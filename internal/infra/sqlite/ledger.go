package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/strollr-labs/strollr/internal/domain"
)

// ─── Credit Ledger Store ────────────────────────────────────────────────────

// GetLedger reads a user's credit ledger. The ledger is returned as stored —
// including implausible values — so the domain layer can detect and log the
// corruption before healing it.
func (db *DB) GetLedger(ctx context.Context, userID string) (domain.CreditLedger, error) {
	var l domain.CreditLedger
	var lastReset, lastQuery string
	err := db.db.QueryRowContext(ctx, `
		SELECT user_id, credits_remaining, max_credits_per_period, last_reset_at, last_query_at
		FROM credit_ledgers WHERE user_id = ?
	`, userID).Scan(&l.UserID, &l.CreditsRemaining, &l.MaxCreditsPerPeriod, &lastReset, &lastQuery)
	if err == sql.ErrNoRows {
		return domain.CreditLedger{}, domain.ErrLedgerNotFound
	}
	if err != nil {
		return domain.CreditLedger{}, fmt.Errorf("get ledger: %w", err)
	}
	l.LastResetAt = decodeTime(lastReset)
	l.LastQueryAt = decodeTime(lastQuery)
	return l, nil
}

// PutLedger writes a user's credit ledger.
func (db *DB) PutLedger(ctx context.Context, ledger domain.CreditLedger) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO credit_ledgers (user_id, credits_remaining, max_credits_per_period, last_reset_at, last_query_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			credits_remaining      = excluded.credits_remaining,
			max_credits_per_period = excluded.max_credits_per_period,
			last_reset_at          = excluded.last_reset_at,
			last_query_at          = excluded.last_query_at
	`, ledger.UserID, ledger.CreditsRemaining, ledger.MaxCreditsPerPeriod,
		encodeTime(ledger.LastResetAt), encodeTime(ledger.LastQueryAt))
	if err != nil {
		return fmt.Errorf("put ledger: %w", err)
	}
	return nil
}

// ListLedgerUserIDs returns every user with a stored ledger, for the
// maintenance sweep.
func (db *DB) ListLedgerUserIDs(ctx context.Context) ([]string, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT user_id FROM credit_ledgers ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list ledger users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
