// Package lifecycle orchestrates the atelier state machine: it composes the
// status table, the auction pool, the coin ledger, artifact storage and the
// history log into the operations callers actually invoke. Every operation
// runs its checks and writes inside one transaction so an atelier can never
// be observed half-transitioned.
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"atelier/internal/auction"
	"atelier/internal/config"
	"atelier/internal/domain"
	"atelier/internal/events"
	"atelier/internal/ledger"
	"atelier/internal/notify"
	"atelier/internal/repo"
	"atelier/internal/status"
	"atelier/internal/storage"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Pool   auction.Pool
	Ledger ledger.Ledger
	Events events.Writer
	Store  storage.Store
	Notify notify.Notifier
	Config *config.Config
	Log    *slog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, store storage.Store, notifier notify.Notifier, log *slog.Logger) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Pool:   auction.New(r),
		Ledger: ledger.New(r),
		Events: events.Writer{DB: db},
		Store:  store,
		Notify: notifier,
		Config: cfg,
		Log:    log,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// CreateOptions are parameters for creating an atelier.
type CreateOptions struct {
	ID          string
	UploaderID  string
	GameID      string
	Title       string
	Description string
	Tags        []string
	IsPrivate   bool
	MediaType   string
	Original    io.Reader
	Offers      []auction.Offer
}

var mediaExtensions = map[string]string{
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// Create opens an atelier: it freezes the maximum offered bounty from the
// uploader, inserts the atelier in auction with its candidate pool, then
// stores the original recording. If storing the artifact fails after the
// row is committed, the atelier is driven to the create-error status and the
// escrow is released; the row stays for audit.
func (e Engine) Create(ctx context.Context, opts CreateOptions) (domain.Atelier, error) {
	if e.Config == nil {
		return domain.Atelier{}, errors.New("config not loaded")
	}
	if opts.UploaderID == "" {
		return domain.Atelier{}, errors.New("uploader is required")
	}
	if opts.GameID == "" {
		return domain.Atelier{}, errors.New("game is required")
	}
	if opts.Title == "" {
		return domain.Atelier{}, errors.New("title is required")
	}
	if opts.Original == nil {
		return domain.Atelier{}, errors.New("original recording is required")
	}
	if !e.Config.AllowsMediaType(opts.MediaType) {
		return domain.Atelier{}, fmt.Errorf("media type %q not allowed", opts.MediaType)
	}
	if max := e.Config.Marketplace.MaxCandidates; max > 0 && len(opts.Offers) > max {
		return domain.Atelier{}, fmt.Errorf("too many candidates: %d > %d", len(opts.Offers), max)
	}
	maxBounty, err := auction.Validate(opts.UploaderID, opts.Offers)
	if err != nil {
		return domain.Atelier{}, err
	}
	if cap := e.Config.Marketplace.MaxBounty; cap > 0 && maxBounty > cap {
		return domain.Atelier{}, fmt.Errorf("bounty %d exceeds marketplace cap %d", maxBounty, cap)
	}

	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC()
	nowStr := now.Format(time.RFC3339)
	originalKey := path.Join("originals", id+mediaExtensions[opts.MediaType])

	a := domain.Atelier{
		ID:          id,
		UploaderID:  opts.UploaderID,
		GameID:      opts.GameID,
		Title:       opts.Title,
		Description: opts.Description,
		Tags:        opts.Tags,
		IsPrivate:   opts.IsPrivate,
		Status:      int(status.Created),
		MaxBounty:   maxBounty,
		OriginalKey: originalKey,
		CreatedAt:   nowStr,
		UpdatedAt:   nowStr,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Atelier{}, err
	}
	defer tx.Rollback()

	if err := e.Ledger.FreezeTx(ctx, tx, opts.UploaderID, maxBounty); err != nil {
		return domain.Atelier{}, err
	}
	if err := e.Repo.InsertAtelierTx(ctx, tx, a); err != nil {
		return domain.Atelier{}, fmt.Errorf("insert atelier: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "atelier.created", id, opts.UploaderID, events.EventPayload{
		"title": a.Title, "game_id": a.GameID, "max_bounty": maxBounty,
	}); err != nil {
		return domain.Atelier{}, err
	}
	if err := e.Events.Append(ctx, tx, "escrow.frozen", id, opts.UploaderID, events.EventPayload{
		"amount": maxBounty,
	}); err != nil {
		return domain.Atelier{}, err
	}
	next, _ := status.Transition(status.Created, status.EventOpenAuction)
	ok, err := e.Repo.TransitionStatusTx(ctx, tx, id, status.Created, next, nowStr)
	if err != nil {
		return domain.Atelier{}, err
	}
	if !ok {
		return domain.Atelier{}, ErrWrongState
	}
	if err := e.Pool.SeedTx(ctx, tx, id, opts.Offers, now); err != nil {
		return domain.Atelier{}, fmt.Errorf("seed candidates: %w", err)
	}
	if err := e.Events.AppendTransition(ctx, tx, "auction.opened", id, opts.UploaderID,
		int(status.Created), int(next), events.EventPayload{"candidates": len(opts.Offers)}); err != nil {
		return domain.Atelier{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Atelier{}, err
	}

	if _, err := e.Store.Put(ctx, originalKey, opts.Original); err != nil {
		e.log().Error("storing original failed, compensating", "atelier", id, "err", err)
		if cerr := e.fail(ctx, id, opts.UploaderID, status.EventFailCreate, "create.failed", err.Error()); cerr != nil {
			e.log().Error("compensation failed", "atelier", id, "err", cerr)
		}
		return domain.Atelier{}, fmt.Errorf("store original: %w", err)
	}

	for _, o := range opts.Offers {
		e.notifyUser(ctx, o.ReviewerID, "New review offer",
			fmt.Sprintf("%s offered %d coins for a review of %q", opts.UploaderID, o.Bounty, opts.Title))
	}
	return e.Repo.GetAtelier(ctx, id)
}

// Accept claims the atelier for one candidate reviewer. The swap to assigned
// is guarded on the row still being in auction, so of two concurrent accepts
// exactly one wins and the other gets ErrWrongState.
func (e Engine) Accept(ctx context.Context, atelierID, reviewerID string) (domain.Atelier, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Atelier{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetAtelierTx(ctx, tx, atelierID)
	if err != nil {
		return domain.Atelier{}, err
	}
	cur := status.Status(a.Status)
	if cur.IsTerminal() {
		return domain.Atelier{}, ErrAlreadyTerminal
	}
	if cur != status.InAuction {
		return domain.Atelier{}, ErrWrongState
	}
	now := e.now()
	bounty, err := e.Pool.AcceptTx(ctx, tx, atelierID, reviewerID, now)
	if errors.Is(err, auction.ErrLost) {
		return domain.Atelier{}, ErrWrongState
	}
	if err != nil {
		return domain.Atelier{}, err
	}
	if err := e.Events.AppendTransition(ctx, tx, "offer.accepted", atelierID, reviewerID,
		int(status.InAuction), int(status.Assigned), events.EventPayload{"bounty": bounty}); err != nil {
		return domain.Atelier{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Atelier{}, err
	}

	e.notifyUser(ctx, a.UploaderID, "Offer accepted",
		fmt.Sprintf("%s accepted your offer of %d coins for %q", reviewerID, bounty, a.Title))
	return e.Repo.GetAtelier(ctx, atelierID)
}

// Decline withdraws one candidate's offer. When the last candidate declines,
// the atelier is cancelled and the escrow released in the same transaction.
func (e Engine) Decline(ctx context.Context, atelierID, reviewerID string) (domain.Atelier, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Atelier{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetAtelierTx(ctx, tx, atelierID)
	if err != nil {
		return domain.Atelier{}, err
	}
	cur := status.Status(a.Status)
	if cur.IsTerminal() {
		return domain.Atelier{}, ErrAlreadyTerminal
	}
	if cur != status.InAuction {
		return domain.Atelier{}, ErrWrongState
	}
	remaining, err := e.Pool.DeclineTx(ctx, tx, atelierID, reviewerID)
	if err != nil {
		return domain.Atelier{}, err
	}
	if err := e.Events.Append(ctx, tx, "offer.declined", atelierID, reviewerID, events.EventPayload{
		"remaining": remaining,
	}); err != nil {
		return domain.Atelier{}, err
	}
	cascaded := remaining == 0
	if cascaded {
		nowStr := e.now().UTC().Format(time.RFC3339)
		ok, err := e.Repo.TransitionStatusTx(ctx, tx, atelierID, status.InAuction, status.Cancelled, nowStr)
		if err != nil {
			return domain.Atelier{}, err
		}
		if !ok {
			return domain.Atelier{}, ErrWrongState
		}
		if err := e.Ledger.ReleaseTx(ctx, tx, a.UploaderID, a.MaxBounty); err != nil {
			return domain.Atelier{}, err
		}
		if err := e.Events.AppendTransition(ctx, tx, "auction.cancelled", atelierID, reviewerID,
			int(status.InAuction), int(status.Cancelled), events.EventPayload{"reason": "all candidates declined"}); err != nil {
			return domain.Atelier{}, err
		}
		if err := e.Events.Append(ctx, tx, "escrow.released", atelierID, a.UploaderID, events.EventPayload{
			"amount": a.MaxBounty,
		}); err != nil {
			return domain.Atelier{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Atelier{}, err
	}

	if cascaded {
		if e.Store != nil && a.OriginalKey != "" {
			if err := e.Store.Remove(ctx, a.OriginalKey); err != nil {
				e.log().Warn("remove original artifact failed", "atelier", atelierID, "err", err)
			}
		}
		e.notifyUser(ctx, a.UploaderID, "Auction cancelled",
			fmt.Sprintf("All candidates declined %q; your %d coins were unfrozen", a.Title, a.MaxBounty))
	}
	return e.Repo.GetAtelier(ctx, atelierID)
}

// Cancel withdraws an atelier before the review is delivered and returns the
// escrowed coins to the uploader. Only the uploader may cancel.
func (e Engine) Cancel(ctx context.Context, atelierID, actorID string) (domain.Atelier, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Atelier{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetAtelierTx(ctx, tx, atelierID)
	if err != nil {
		return domain.Atelier{}, err
	}
	if a.UploaderID != actorID {
		return domain.Atelier{}, ErrForbidden
	}
	cur := status.Status(a.Status)
	if cur.IsTerminal() {
		return domain.Atelier{}, ErrAlreadyTerminal
	}
	next, ok := status.Transition(cur, status.EventCancel)
	if !ok {
		return domain.Atelier{}, ErrWrongState
	}
	nowStr := e.now().UTC().Format(time.RFC3339)
	swapped, err := e.Repo.TransitionStatusTx(ctx, tx, atelierID, cur, next, nowStr)
	if err != nil {
		return domain.Atelier{}, err
	}
	if !swapped {
		return domain.Atelier{}, ErrWrongState
	}
	if err := e.Ledger.ReleaseTx(ctx, tx, a.UploaderID, a.MaxBounty); err != nil {
		return domain.Atelier{}, err
	}
	if err := e.Repo.ClearCandidatesTx(ctx, tx, atelierID); err != nil {
		return domain.Atelier{}, err
	}
	if a.ReviewerID != nil {
		if err := e.Repo.ClearAssignmentTx(ctx, tx, atelierID, nowStr); err != nil {
			return domain.Atelier{}, err
		}
	}
	if err := e.Events.AppendTransition(ctx, tx, "atelier.cancelled", atelierID, actorID,
		int(cur), int(next), nil); err != nil {
		return domain.Atelier{}, err
	}
	if err := e.Events.Append(ctx, tx, "escrow.released", atelierID, a.UploaderID, events.EventPayload{
		"amount": a.MaxBounty,
	}); err != nil {
		return domain.Atelier{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Atelier{}, err
	}

	// Best effort: the recording is of no further use once cancelled. The
	// escrow release above is already committed either way.
	if e.Store != nil && a.OriginalKey != "" {
		if err := e.Store.Remove(ctx, a.OriginalKey); err != nil {
			e.log().Warn("remove original artifact failed", "atelier", atelierID, "err", err)
		}
	}
	if a.ReviewerID != nil {
		e.notifyUser(ctx, *a.ReviewerID, "Review cancelled",
			fmt.Sprintf("%q was cancelled by its uploader", a.Title))
	}
	return e.Repo.GetAtelier(ctx, atelierID)
}

// Delete hides a settled atelier from listings. The row and its history stay
// for audit. While escrow is attached the delete is refused; cancel resolves
// the escrow first.
func (e Engine) Delete(ctx context.Context, atelierID, actorID string) (domain.Atelier, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Atelier{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetAtelierTx(ctx, tx, atelierID)
	if err != nil {
		return domain.Atelier{}, err
	}
	if a.UploaderID != actorID {
		return domain.Atelier{}, ErrForbidden
	}
	cur := status.Status(a.Status)
	next, ok := status.Transition(cur, status.EventDelete)
	if !ok {
		if cur == status.Deleted {
			return domain.Atelier{}, ErrAlreadyTerminal
		}
		if cur.IsActive() {
			return domain.Atelier{}, ErrEscrowAttached
		}
		return domain.Atelier{}, ErrWrongState
	}
	nowStr := e.now().UTC().Format(time.RFC3339)
	swapped, err := e.Repo.TransitionStatusTx(ctx, tx, atelierID, cur, next, nowStr)
	if err != nil {
		return domain.Atelier{}, err
	}
	if !swapped {
		return domain.Atelier{}, ErrWrongState
	}
	if err := e.Events.AppendTransition(ctx, tx, "atelier.deleted", atelierID, actorID,
		int(cur), int(next), nil); err != nil {
		return domain.Atelier{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Atelier{}, err
	}
	return e.Repo.GetAtelier(ctx, atelierID)
}

// MarkArtifactFailed records an upstream media failure (broken upload,
// failed mux) and releases the escrow.
func (e Engine) MarkArtifactFailed(ctx context.Context, atelierID, actorID, reason string) error {
	return e.fail(ctx, atelierID, actorID, status.EventFailMux, "artifact.failed", reason)
}

// MarkError drives an atelier to the unknown-error status and releases the
// escrow. Last resort for operators when an atelier is wedged.
func (e Engine) MarkError(ctx context.Context, atelierID, actorID, reason string) error {
	return e.fail(ctx, atelierID, actorID, status.EventFailUnknown, "error.marked", reason)
}

// fail is the shared compensation path: swap to the error status for ev,
// release whatever escrow is still frozen and record why. The atelier row
// survives in its error status for audit.
func (e Engine) fail(ctx context.Context, atelierID, actorID string, ev status.Event, evtType, reason string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetAtelierTx(ctx, tx, atelierID)
	if err != nil {
		return err
	}
	cur := status.Status(a.Status)
	if cur.IsTerminal() {
		return ErrAlreadyTerminal
	}
	next, ok := status.Transition(cur, ev)
	if !ok {
		return ErrWrongState
	}
	nowStr := e.now().UTC().Format(time.RFC3339)
	swapped, err := e.Repo.TransitionStatusTx(ctx, tx, atelierID, cur, next, nowStr)
	if err != nil {
		return err
	}
	if !swapped {
		return ErrWrongState
	}
	if err := e.Ledger.ReleaseTx(ctx, tx, a.UploaderID, a.MaxBounty); err != nil {
		return err
	}
	if err := e.Repo.ClearCandidatesTx(ctx, tx, atelierID); err != nil {
		return err
	}
	if a.ReviewerID != nil {
		if err := e.Repo.ClearAssignmentTx(ctx, tx, atelierID, nowStr); err != nil {
			return err
		}
	}
	if err := e.Events.AppendTransition(ctx, tx, evtType, atelierID, actorID,
		int(cur), int(next), events.EventPayload{"reason": reason}); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "escrow.released", atelierID, a.UploaderID, events.EventPayload{
		"amount": a.MaxBounty,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.log().Warn("atelier failed", "atelier", atelierID, "status", next.Label(), "reason", reason)
	return nil
}

// Get returns one atelier, deleted ones included; audit reads need them.
func (e Engine) Get(ctx context.Context, atelierID string) (domain.Atelier, error) {
	return e.Repo.GetAtelier(ctx, atelierID)
}

// List returns ateliers matching the filters. Deleted ateliers are hidden
// unless explicitly requested.
func (e Engine) List(ctx context.Context, f repo.AtelierFilters) ([]domain.Atelier, error) {
	return e.Repo.ListAteliers(ctx, f)
}

// History returns the lifecycle log, newest first.
func (e Engine) History(ctx context.Context, f repo.HistoryFilters) ([]domain.HistoryEntry, error) {
	return e.Repo.LatestHistory(ctx, f)
}

// Candidates returns the open pool for an atelier.
func (e Engine) Candidates(ctx context.Context, atelierID string) ([]domain.Candidate, error) {
	return e.Pool.List(ctx, atelierID)
}

func (e Engine) notifyUser(ctx context.Context, userID, title, body string) {
	if e.Notify == nil {
		return
	}
	if err := e.Notify.Notify(ctx, notify.Notification{UserID: userID, Title: title, Body: body}); err != nil {
		e.log().Warn("notification failed", "user", userID, "err", err)
	}
}
