package review

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"testing"

	"atelier/internal/auction"
	"atelier/internal/config"
	"atelier/internal/db"
	"atelier/internal/lifecycle"
	"atelier/internal/logging"
	"atelier/internal/migrate"
	"atelier/internal/notify"
	"atelier/internal/status"
	"atelier/internal/storage"
)

type env struct {
	engine lifecycle.Engine
	intake Intake
}

func newTestEnv(t *testing.T) env {
	t.Helper()
	ws := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: ws})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := storage.NewLocal(ws + "/artifacts")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	cfg := config.Default()
	log := logging.Discard()
	return env{
		engine: lifecycle.New(conn, cfg, store, notify.Noop{}, log),
		intake: New(conn, cfg, store, notify.Noop{}, log),
	}
}

// assigned creates an atelier with one accepted candidate and returns its ID.
func assigned(t *testing.T, v env, bounty int64) string {
	t.Helper()
	ctx := context.Background()
	if _, err := v.engine.Ledger.Deposit(ctx, "uploader", 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	a, err := v.engine.Create(ctx, lifecycle.CreateOptions{
		UploaderID: "uploader",
		GameID:     "sc2",
		Title:      "ladder game 7",
		MediaType:  "video/mp4",
		Original:   strings.NewReader("original bytes"),
		Offers:     []auction.Offer{{ReviewerID: "reviewer", Bounty: bounty}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := v.engine.Accept(ctx, a.ID, "reviewer"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return a.ID
}

func TestStartMovesToInProgress(t *testing.T) {
	v := newTestEnv(t)
	ctx := context.Background()
	id := assigned(t, v, 200)

	a, err := v.intake.Start(ctx, id, "reviewer")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if a.Status != int(status.InProgress) {
		t.Fatalf("status = %s, want in_progress", a.StatusLabel)
	}

	if _, err := v.intake.Start(ctx, id, "reviewer"); !errors.Is(err, lifecycle.ErrWrongState) {
		t.Fatalf("second start err = %v, want ErrWrongState", err)
	}
}

func TestStartByWrongReviewer(t *testing.T) {
	v := newTestEnv(t)
	id := assigned(t, v, 200)

	if _, err := v.intake.Start(context.Background(), id, "impostor"); !errors.Is(err, ErrWrongReviewer) {
		t.Fatalf("err = %v, want ErrWrongReviewer", err)
	}
}

func TestSubmitSettlesEscrow(t *testing.T) {
	v := newTestEnv(t)
	ctx := context.Background()
	id := assigned(t, v, 200)

	a, err := v.intake.Submit(ctx, SubmitOptions{
		AtelierID:  id,
		ReviewerID: "reviewer",
		MediaType:  "video/webm",
		Review:     strings.NewReader("review bytes"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if a.Status != int(status.Complete) {
		t.Fatalf("status = %s, want complete", a.StatusLabel)
	}
	if a.ReviewKey == nil {
		t.Fatal("review key not set")
	}

	up, _ := v.intake.Ledger.Balance(ctx, "uploader")
	rv, _ := v.intake.Ledger.Balance(ctx, "reviewer")
	if up.Frozen != 0 || up.Free != 800 {
		t.Fatalf("uploader after settle: %+v", up)
	}
	if rv.Redeemable != 200 {
		t.Fatalf("reviewer after settle: %+v", rv)
	}

	rc, err := v.intake.Store.Open(ctx, *a.ReviewKey)
	if err != nil {
		t.Fatalf("open review artifact: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "review bytes" {
		t.Fatalf("review artifact content = %q", data)
	}
}

func TestSubmitDirectlyFromAssigned(t *testing.T) {
	v := newTestEnv(t)
	ctx := context.Background()
	id := assigned(t, v, 150)

	a, err := v.intake.Submit(ctx, SubmitOptions{
		AtelierID:  id,
		ReviewerID: "reviewer",
		MediaType:  "video/mp4",
		Review:     strings.NewReader("review"),
	})
	if err != nil {
		t.Fatalf("submit without start: %v", err)
	}
	if a.Status != int(status.Complete) {
		t.Fatalf("status = %s, want complete", a.StatusLabel)
	}
}

func TestSubmitReturnsSurplus(t *testing.T) {
	v := newTestEnv(t)
	ctx := context.Background()
	if _, err := v.engine.Ledger.Deposit(ctx, "uploader", 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	a, err := v.engine.Create(ctx, lifecycle.CreateOptions{
		UploaderID: "uploader",
		GameID:     "sc2",
		Title:      "two offers",
		MediaType:  "video/mp4",
		Original:   strings.NewReader("original"),
		Offers: []auction.Offer{
			{ReviewerID: "cheap", Bounty: 100},
			{ReviewerID: "pricey", Bounty: 400},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// The cheap offer wins; the 300 surplus of the 400 escrow must return.
	if _, err := v.engine.Accept(ctx, a.ID, "cheap"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := v.intake.Submit(ctx, SubmitOptions{
		AtelierID:  a.ID,
		ReviewerID: "cheap",
		MediaType:  "video/mp4",
		Review:     strings.NewReader("review"),
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	up, _ := v.intake.Ledger.Balance(ctx, "uploader")
	rv, _ := v.intake.Ledger.Balance(ctx, "cheap")
	if up.Free != 900 || up.Frozen != 0 {
		t.Fatalf("uploader after settle: %+v", up)
	}
	if rv.Redeemable != 100 {
		t.Fatalf("reviewer after settle: %+v", rv)
	}
	total := up.Free + up.Frozen + up.Redeemable + rv.Redeemable
	if total != 1000 {
		t.Fatalf("coins not conserved: %d", total)
	}
}

func TestSubmitWhileStillInAuction(t *testing.T) {
	v := newTestEnv(t)
	ctx := context.Background()
	if _, err := v.engine.Ledger.Deposit(ctx, "uploader", 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	a, err := v.engine.Create(ctx, lifecycle.CreateOptions{
		UploaderID: "uploader",
		GameID:     "sc2",
		Title:      "nobody accepted yet",
		MediaType:  "video/mp4",
		Original:   strings.NewReader("original"),
		Offers:     []auction.Offer{{ReviewerID: "reviewer", Bounty: 200}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// No accept happened, so the atelier is still collecting candidates.
	_, err = v.intake.Submit(ctx, SubmitOptions{
		AtelierID:  a.ID,
		ReviewerID: "reviewer",
		MediaType:  "video/mp4",
		Review:     strings.NewReader("review"),
	})
	if !errors.Is(err, lifecycle.ErrWrongState) {
		t.Fatalf("err = %v, want ErrWrongState", err)
	}

	// The escrow stays frozen and nothing was paid out.
	up, _ := v.intake.Ledger.Balance(ctx, "uploader")
	if up.Frozen != 200 || up.Free != 800 {
		t.Fatalf("uploader after rejected submit: %+v", up)
	}
	rv, _ := v.intake.Ledger.Balance(ctx, "reviewer")
	if rv.Redeemable != 0 {
		t.Fatalf("reviewer after rejected submit: %+v", rv)
	}
}

// cancelOnPut cancels the atelier right after the review artifact lands in
// storage, simulating an uploader cancel racing the reviewer's submit.
type cancelOnPut struct {
	storage.Store
	engine    lifecycle.Engine
	atelierID string
}

func (s cancelOnPut) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	n, err := s.Store.Put(ctx, key, r)
	if err != nil {
		return n, err
	}
	if _, err := s.engine.Cancel(ctx, s.atelierID, "uploader"); err != nil {
		return n, err
	}
	return n, nil
}

func TestSubmitCancelRaceLeavesNoArtifact(t *testing.T) {
	v := newTestEnv(t)
	ctx := context.Background()
	id := assigned(t, v, 200)
	v.intake.Store = cancelOnPut{Store: v.intake.Store, engine: v.engine, atelierID: id}

	_, err := v.intake.Submit(ctx, SubmitOptions{
		AtelierID:  id,
		ReviewerID: "reviewer",
		MediaType:  "video/mp4",
		Review:     strings.NewReader("review"),
	})
	if !errors.Is(err, lifecycle.ErrAlreadyTerminal) {
		t.Fatalf("err = %v, want ErrAlreadyTerminal", err)
	}

	// The stored review must not survive the failed settlement.
	reviewKey := path.Join("reviews", id+".mp4")
	if rc, err := v.intake.Store.Open(ctx, reviewKey); err == nil {
		rc.Close()
		t.Fatal("orphaned review artifact left in storage")
	}
}

func TestSubmitByWrongReviewer(t *testing.T) {
	v := newTestEnv(t)
	id := assigned(t, v, 200)

	_, err := v.intake.Submit(context.Background(), SubmitOptions{
		AtelierID:  id,
		ReviewerID: "impostor",
		MediaType:  "video/mp4",
		Review:     strings.NewReader("review"),
	})
	if !errors.Is(err, ErrWrongReviewer) {
		t.Fatalf("err = %v, want ErrWrongReviewer", err)
	}
}

func TestSubmitRejectsUnknownMediaType(t *testing.T) {
	v := newTestEnv(t)
	id := assigned(t, v, 200)

	_, err := v.intake.Submit(context.Background(), SubmitOptions{
		AtelierID:  id,
		ReviewerID: "reviewer",
		MediaType:  "application/pdf",
		Review:     strings.NewReader("not a video"),
	})
	if err == nil {
		t.Fatal("expected media type rejection")
	}
}

func TestSubmitTwiceAlreadyTerminal(t *testing.T) {
	v := newTestEnv(t)
	ctx := context.Background()
	id := assigned(t, v, 200)

	opts := SubmitOptions{
		AtelierID:  id,
		ReviewerID: "reviewer",
		MediaType:  "video/mp4",
		Review:     strings.NewReader("review"),
	}
	if _, err := v.intake.Submit(ctx, opts); err != nil {
		t.Fatalf("submit: %v", err)
	}
	opts.Review = strings.NewReader("review again")
	if _, err := v.intake.Submit(ctx, opts); !errors.Is(err, lifecycle.ErrAlreadyTerminal) {
		t.Fatalf("second submit err = %v, want ErrAlreadyTerminal", err)
	}

	// No double payout.
	rv, _ := v.intake.Ledger.Balance(ctx, "reviewer")
	if rv.Redeemable != 200 {
		t.Fatalf("reviewer paid twice: %+v", rv)
	}
}

func TestScore(t *testing.T) {
	v := newTestEnv(t)
	ctx := context.Background()
	id := assigned(t, v, 200)

	// Scoring before completion is illegal.
	if _, err := v.intake.Score(ctx, id, "uploader", 4); !errors.Is(err, lifecycle.ErrWrongState) {
		t.Fatalf("early score err = %v, want ErrWrongState", err)
	}

	if _, err := v.intake.Submit(ctx, SubmitOptions{
		AtelierID:  id,
		ReviewerID: "reviewer",
		MediaType:  "video/mp4",
		Review:     strings.NewReader("review"),
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	a, err := v.intake.Score(ctx, id, "uploader", 4.5)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if a.Score == nil || *a.Score != 4.5 {
		t.Fatalf("score = %v, want 4.5", a.Score)
	}

	if _, err := v.intake.Score(ctx, id, "reviewer", 5); !errors.Is(err, lifecycle.ErrForbidden) {
		t.Fatalf("score by reviewer err = %v, want ErrForbidden", err)
	}
	if _, err := v.intake.Score(ctx, id, "uploader", 9); err == nil {
		t.Fatal("expected out-of-range score rejection")
	}
}
