// Package ledger moves coins between the three balances every account
// carries: free (spendable), frozen (escrowed against open ateliers) and
// redeemable (earned by reviewing, withdrawable).
//
// Every movement is expressed as signed deltas applied in one UPDATE with a
// non-negative guard, so a failed movement leaves all balances untouched.
// Multi-account movements (settlement) run inside the caller's transaction
// and either fully land or fully roll back with it.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atelier/internal/domain"
	"atelier/internal/repo"
)

// ErrInsufficientFunds is returned when a movement would drive any balance
// below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

type Ledger struct {
	Repo repo.Repo
}

func New(r repo.Repo) Ledger {
	return Ledger{Repo: r}
}

// FreezeTx moves amount from free to frozen on the uploader's account.
// Called at atelier creation with the maximum bounty across all candidates.
func (l Ledger) FreezeTx(ctx context.Context, tx *sql.Tx, userID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("freeze amount negative: %d", amount)
	}
	if err := l.Repo.EnsureAccountTx(ctx, tx, userID); err != nil {
		return err
	}
	ok, err := l.Repo.AdjustBalancesTx(ctx, tx, userID, -amount, +amount, 0)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientFunds
	}
	return nil
}

// ReleaseTx moves amount back from frozen to free. Used when an atelier is
// cancelled or its creation fails after escrow was taken.
func (l Ledger) ReleaseTx(ctx context.Context, tx *sql.Tx, userID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("release amount negative: %d", amount)
	}
	ok, err := l.Repo.AdjustBalancesTx(ctx, tx, userID, +amount, -amount, 0)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientFunds
	}
	return nil
}

// SettleTx pays out a completed review: the accepted bounty moves from the
// uploader's frozen balance to the reviewer's redeemable balance, and the
// surplus (escrowed maximum minus accepted bounty) returns to the uploader's
// free balance. Total coins across both accounts are unchanged.
func (l Ledger) SettleTx(ctx context.Context, tx *sql.Tx, uploaderID, reviewerID string, escrowed, bounty int64) error {
	if bounty < 0 || escrowed < bounty {
		return fmt.Errorf("settle amounts inconsistent: escrowed=%d bounty=%d", escrowed, bounty)
	}
	surplus := escrowed - bounty
	ok, err := l.Repo.AdjustBalancesTx(ctx, tx, uploaderID, +surplus, -escrowed, 0)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientFunds
	}
	if err := l.Repo.EnsureAccountTx(ctx, tx, reviewerID); err != nil {
		return err
	}
	ok, err = l.Repo.AdjustBalancesTx(ctx, tx, reviewerID, 0, 0, +bounty)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientFunds
	}
	return nil
}

// Deposit credits purchased coins to the free balance.
func (l Ledger) Deposit(ctx context.Context, userID string, amount int64) (domain.Account, error) {
	if amount <= 0 {
		return domain.Account{}, fmt.Errorf("deposit amount must be positive: %d", amount)
	}
	return l.adjustOwnTx(ctx, userID, +amount, 0, 0)
}

// Redeem withdraws earned coins from the redeemable balance.
func (l Ledger) Redeem(ctx context.Context, userID string, amount int64) (domain.Account, error) {
	if amount <= 0 {
		return domain.Account{}, fmt.Errorf("redeem amount must be positive: %d", amount)
	}
	return l.adjustOwnTx(ctx, userID, 0, 0, -amount)
}

func (l Ledger) adjustOwnTx(ctx context.Context, userID string, dFree, dFrozen, dRedeemable int64) (domain.Account, error) {
	tx, err := l.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Account{}, err
	}
	defer tx.Rollback()
	if err := l.Repo.EnsureAccountTx(ctx, tx, userID); err != nil {
		return domain.Account{}, err
	}
	ok, err := l.Repo.AdjustBalancesTx(ctx, tx, userID, dFree, dFrozen, dRedeemable)
	if err != nil {
		return domain.Account{}, err
	}
	if !ok {
		return domain.Account{}, ErrInsufficientFunds
	}
	acct, err := l.Repo.GetAccountTx(ctx, tx, userID)
	if err != nil {
		return domain.Account{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Account{}, err
	}
	return acct, nil
}

// Balance returns the account, materializing a zero-balance view for users
// that have never touched coins.
func (l Ledger) Balance(ctx context.Context, userID string) (domain.Account, error) {
	acct, err := l.Repo.GetAccount(ctx, userID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Account{}, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	return domain.Account{UserID: userID, UpdatedAt: now}, nil
}
