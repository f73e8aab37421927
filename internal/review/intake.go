// Package review handles the reviewer's side of an assigned atelier: starting
// work, delivering the finished review video and the uploader's score. Submit
// is where escrow settles, so its checks and the payout share one
// transaction.
package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"atelier/internal/config"
	"atelier/internal/domain"
	"atelier/internal/events"
	"atelier/internal/ledger"
	"atelier/internal/lifecycle"
	"atelier/internal/notify"
	"atelier/internal/repo"
	"atelier/internal/status"
	"atelier/internal/storage"
)

// ErrWrongReviewer means the acting user is not the reviewer assigned to the
// atelier.
var ErrWrongReviewer = errors.New("actor is not the assigned reviewer")

type Intake struct {
	DB     *sql.DB
	Repo   repo.Repo
	Ledger ledger.Ledger
	Events events.Writer
	Store  storage.Store
	Notify notify.Notifier
	Config *config.Config
	Log    *slog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, store storage.Store, notifier notify.Notifier, log *slog.Logger) Intake {
	r := repo.Repo{DB: db}
	return Intake{
		DB:     db,
		Repo:   r,
		Ledger: ledger.New(r),
		Events: events.Writer{DB: db},
		Store:  store,
		Notify: notifier,
		Config: cfg,
		Log:    log,
		Now:    time.Now,
	}
}

func (in Intake) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

func (in Intake) log() *slog.Logger {
	if in.Log != nil {
		return in.Log
	}
	return slog.Default()
}

var mediaExtensions = map[string]string{
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// Start marks the assigned reviewer as working on the atelier.
func (in Intake) Start(ctx context.Context, atelierID, reviewerID string) (domain.Atelier, error) {
	tx, err := in.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Atelier{}, err
	}
	defer tx.Rollback()

	a, err := in.Repo.GetAtelierTx(ctx, tx, atelierID)
	if err != nil {
		return domain.Atelier{}, err
	}
	cur := status.Status(a.Status)
	if cur.IsTerminal() {
		return domain.Atelier{}, lifecycle.ErrAlreadyTerminal
	}
	next, ok := status.Transition(cur, status.EventStart)
	if !ok {
		return domain.Atelier{}, lifecycle.ErrWrongState
	}
	if a.ReviewerID == nil || *a.ReviewerID != reviewerID {
		return domain.Atelier{}, ErrWrongReviewer
	}
	nowStr := in.now().UTC().Format(time.RFC3339)
	swapped, err := in.Repo.TransitionStatusTx(ctx, tx, atelierID, cur, next, nowStr)
	if err != nil {
		return domain.Atelier{}, err
	}
	if !swapped {
		return domain.Atelier{}, lifecycle.ErrWrongState
	}
	if err := in.Events.AppendTransition(ctx, tx, "review.started", atelierID, reviewerID,
		int(cur), int(next), nil); err != nil {
		return domain.Atelier{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Atelier{}, err
	}
	return in.Repo.GetAtelier(ctx, atelierID)
}

// SubmitOptions are parameters for delivering a finished review.
type SubmitOptions struct {
	AtelierID  string
	ReviewerID string
	MediaType  string
	Review     io.Reader
}

// Submit delivers the review video and settles the escrow: the accepted
// bounty moves to the reviewer's redeemable balance and the surplus returns
// to the uploader, atomically with the switch to complete. The artifact is
// stored before any state changes, so a storage failure leaves the atelier
// untouched and the reviewer free to retry.
func (in Intake) Submit(ctx context.Context, opts SubmitOptions) (domain.Atelier, error) {
	if in.Config == nil {
		return domain.Atelier{}, errors.New("config not loaded")
	}
	if opts.Review == nil {
		return domain.Atelier{}, errors.New("review recording is required")
	}
	if !in.Config.AllowsMediaType(opts.MediaType) {
		return domain.Atelier{}, fmt.Errorf("media type %q not allowed", opts.MediaType)
	}

	a, err := in.Repo.GetAtelier(ctx, opts.AtelierID)
	if err != nil {
		return domain.Atelier{}, err
	}
	cur := status.Status(a.Status)
	if cur.IsTerminal() {
		return domain.Atelier{}, lifecycle.ErrAlreadyTerminal
	}
	if _, ok := status.Transition(cur, status.EventComplete); !ok {
		return domain.Atelier{}, lifecycle.ErrWrongState
	}
	if a.ReviewerID == nil || *a.ReviewerID != opts.ReviewerID {
		return domain.Atelier{}, ErrWrongReviewer
	}
	if a.Bounty == nil {
		return domain.Atelier{}, fmt.Errorf("atelier %s has no accepted bounty", a.ID)
	}

	reviewKey := path.Join("reviews", a.ID+mediaExtensions[opts.MediaType])
	if _, err := in.Store.Put(ctx, reviewKey, opts.Review); err != nil {
		return domain.Atelier{}, fmt.Errorf("store review: %w", err)
	}

	a, bounty, err := in.settle(ctx, opts, a.ID, reviewKey)
	if err != nil {
		// Whatever stopped the settlement, the stored artifact belongs to
		// no completed review.
		if rerr := in.Store.Remove(ctx, reviewKey); rerr != nil {
			in.log().Warn("removing orphaned review artifact failed", "key", reviewKey, "err", rerr)
		}
		return domain.Atelier{}, err
	}

	in.notifyUser(ctx, a.UploaderID, "Review delivered",
		fmt.Sprintf("%s delivered the review for %q; %d coins were paid out", opts.ReviewerID, a.Title, bounty))
	return in.Repo.GetAtelier(ctx, a.ID)
}

// settle re-checks the submit preconditions under a transaction and performs
// the complete transition together with the escrow payout.
func (in Intake) settle(ctx context.Context, opts SubmitOptions, atelierID, reviewKey string) (domain.Atelier, int64, error) {
	tx, err := in.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Atelier{}, 0, err
	}
	defer tx.Rollback()

	// Re-read under the transaction; the caller's pre-check was only advisory.
	a, err := in.Repo.GetAtelierTx(ctx, tx, atelierID)
	if err != nil {
		return domain.Atelier{}, 0, err
	}
	cur := status.Status(a.Status)
	next, ok := status.Transition(cur, status.EventComplete)
	if !ok {
		if cur.IsTerminal() {
			return domain.Atelier{}, 0, lifecycle.ErrAlreadyTerminal
		}
		return domain.Atelier{}, 0, lifecycle.ErrWrongState
	}
	if a.ReviewerID == nil || *a.ReviewerID != opts.ReviewerID || a.Bounty == nil {
		return domain.Atelier{}, 0, ErrWrongReviewer
	}
	bounty := *a.Bounty
	nowStr := in.now().UTC().Format(time.RFC3339)
	swapped, err := in.Repo.TransitionStatusTx(ctx, tx, a.ID, cur, next, nowStr)
	if err != nil {
		return domain.Atelier{}, 0, err
	}
	if !swapped {
		return domain.Atelier{}, 0, lifecycle.ErrWrongState
	}
	if err := in.Repo.SetReviewKeyTx(ctx, tx, a.ID, reviewKey, nowStr); err != nil {
		return domain.Atelier{}, 0, err
	}
	if err := in.Ledger.SettleTx(ctx, tx, a.UploaderID, opts.ReviewerID, a.MaxBounty, bounty); err != nil {
		return domain.Atelier{}, 0, err
	}
	if err := in.Events.AppendTransition(ctx, tx, "review.submitted", a.ID, opts.ReviewerID,
		int(cur), int(next), events.EventPayload{"review_key": reviewKey}); err != nil {
		return domain.Atelier{}, 0, err
	}
	if err := in.Events.Append(ctx, tx, "escrow.settled", a.ID, opts.ReviewerID, events.EventPayload{
		"bounty": bounty, "surplus": a.MaxBounty - bounty,
	}); err != nil {
		return domain.Atelier{}, 0, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Atelier{}, 0, err
	}
	return a, bounty, nil
}

// Score records the uploader's rating of a delivered review. Re-scoring
// overwrites the value; every score lands in history.
func (in Intake) Score(ctx context.Context, atelierID, uploaderID string, score float64) (domain.Atelier, error) {
	if in.Config == nil {
		return domain.Atelier{}, errors.New("config not loaded")
	}
	if max := in.Config.Review.MaxScore; score < 0 || score > max {
		return domain.Atelier{}, fmt.Errorf("score %.1f out of range [0, %.1f]", score, max)
	}

	tx, err := in.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Atelier{}, err
	}
	defer tx.Rollback()

	a, err := in.Repo.GetAtelierTx(ctx, tx, atelierID)
	if err != nil {
		return domain.Atelier{}, err
	}
	if a.UploaderID != uploaderID {
		return domain.Atelier{}, lifecycle.ErrForbidden
	}
	if status.Status(a.Status) != status.Complete {
		return domain.Atelier{}, lifecycle.ErrWrongState
	}
	nowStr := in.now().UTC().Format(time.RFC3339)
	if err := in.Repo.SetScoreTx(ctx, tx, atelierID, score, nowStr); err != nil {
		return domain.Atelier{}, err
	}
	if err := in.Events.Append(ctx, tx, "review.scored", atelierID, uploaderID, events.EventPayload{
		"score": score,
	}); err != nil {
		return domain.Atelier{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Atelier{}, err
	}

	if a.ReviewerID != nil {
		in.notifyUser(ctx, *a.ReviewerID, "Review scored",
			fmt.Sprintf("Your review of %q was scored %.1f", a.Title, score))
	}
	return in.Repo.GetAtelier(ctx, atelierID)
}

func (in Intake) notifyUser(ctx context.Context, userID, title, body string) {
	if in.Notify == nil {
		return
	}
	if err := in.Notify.Notify(ctx, notify.Notification{UserID: userID, Title: title, Body: body}); err != nil {
		in.log().Warn("notification failed", "user", userID, "err", err)
	}
}
