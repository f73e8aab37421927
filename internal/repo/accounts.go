package repo

import (
	"context"
	"database/sql"
	"time"

	"atelier/internal/domain"
)

func (r Repo) GetAccount(ctx context.Context, userID string) (domain.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx, `SELECT user_id,free,frozen,redeemable,updated_at FROM accounts WHERE user_id=?`, userID))
}

func (r Repo) GetAccountTx(ctx context.Context, tx *sql.Tx, userID string) (domain.Account, error) {
	return scanAccount(tx.QueryRowContext(ctx, `SELECT user_id,free,frozen,redeemable,updated_at FROM accounts WHERE user_id=?`, userID))
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.UserID, &a.Free, &a.Frozen, &a.Redeemable, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// EnsureAccountTx creates a zero-balance row when the user has none yet.
func (r Repo) EnsureAccountTx(ctx context.Context, tx *sql.Tx, userID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO accounts(user_id,free,frozen,redeemable,updated_at) VALUES (?,0,0,0,?)
ON CONFLICT(user_id) DO NOTHING`, userID, now)
	return err
}

// AdjustBalancesTx applies signed deltas to one account row. The WHERE guard
// keeps every balance non-negative; false means the guard failed and nothing
// moved (insufficient funds for the requested movement).
func (r Repo) AdjustBalancesTx(ctx context.Context, tx *sql.Tx, userID string, dFree, dFrozen, dRedeemable int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET free=free+?, frozen=frozen+?, redeemable=redeemable+?, updated_at=?
		 WHERE user_id=? AND free+? >= 0 AND frozen+? >= 0 AND redeemable+? >= 0`,
		dFree, dFrozen, dRedeemable, now, userID, dFree, dFrozen, dRedeemable)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
