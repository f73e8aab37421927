package ledger

import (
	"context"
	"errors"
	"testing"

	"atelier/internal/db"
	"atelier/internal/migrate"
	"atelier/internal/repo"
)

func newTestLedger(t *testing.T) Ledger {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(repo.Repo{DB: conn})
}

func TestDepositAndBalance(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	acct, err := l.Deposit(ctx, "u1", 500)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if acct.Free != 500 || acct.Frozen != 0 || acct.Redeemable != 0 {
		t.Fatalf("unexpected balances after deposit: %+v", acct)
	}

	acct, err = l.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if acct.Free != 500 {
		t.Fatalf("free = %d, want 500", acct.Free)
	}
}

func TestBalanceUnknownUserIsZero(t *testing.T) {
	l := newTestLedger(t)

	acct, err := l.Balance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if acct.Free != 0 || acct.Frozen != 0 || acct.Redeemable != 0 {
		t.Fatalf("expected zero balances, got %+v", acct)
	}
}

func TestFreezeInsufficientFunds(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, "u1", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	tx, err := l.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	if err := l.FreezeTx(ctx, tx, "u1", 150); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("freeze err = %v, want ErrInsufficientFunds", err)
	}
	tx.Rollback()

	acct, err := l.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if acct.Free != 100 || acct.Frozen != 0 {
		t.Fatalf("failed freeze moved coins: %+v", acct)
	}
}

func TestFreezeReleaseRoundTrip(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, "u1", 300); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	tx, err := l.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := l.FreezeTx(ctx, tx, "u1", 200); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	acct, _ := l.Balance(ctx, "u1")
	if acct.Free != 100 || acct.Frozen != 200 {
		t.Fatalf("after freeze: %+v", acct)
	}

	tx, err = l.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := l.ReleaseTx(ctx, tx, "u1", 200); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	acct, _ = l.Balance(ctx, "u1")
	if acct.Free != 300 || acct.Frozen != 0 {
		t.Fatalf("after release: %+v", acct)
	}
}

func TestSettlePaysBountyAndReturnsSurplus(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, "uploader", 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	tx, err := l.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := l.FreezeTx(ctx, tx, "uploader", 400); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx, err = l.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := l.SettleTx(ctx, tx, "uploader", "reviewer", 400, 250); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	up, _ := l.Balance(ctx, "uploader")
	rv, _ := l.Balance(ctx, "reviewer")
	if up.Free != 750 || up.Frozen != 0 {
		t.Fatalf("uploader after settle: %+v", up)
	}
	if rv.Redeemable != 250 {
		t.Fatalf("reviewer after settle: %+v", rv)
	}
	total := up.Free + up.Frozen + up.Redeemable + rv.Free + rv.Frozen + rv.Redeemable
	if total != 1000 {
		t.Fatalf("coins not conserved: total = %d", total)
	}
}

func TestSettleRejectsBountyAboveEscrow(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	tx, err := l.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	if err := l.SettleTx(ctx, tx, "a", "b", 100, 200); err == nil {
		t.Fatal("expected error for bounty above escrow")
	}
}

func TestRedeemInsufficient(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, "u1", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := l.Redeem(ctx, "u1", 50); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("redeem from free err = %v, want ErrInsufficientFunds", err)
	}
}
