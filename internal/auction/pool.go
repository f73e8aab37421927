// Package auction manages the candidate pool attached to an atelier while it
// sits in auction: the uploader's pre-selected reviewers, each with the
// bounty offered to them. Exactly one candidate can win; acceptance is a
// compare-and-swap on the atelier row so concurrent accepts cannot both
// succeed.
package auction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atelier/internal/domain"
	"atelier/internal/repo"
)

var (
	// ErrEmptyPool is returned when an atelier is seeded with no candidates.
	ErrEmptyPool = errors.New("candidate pool empty")
	// ErrNotCandidate is returned when the acting reviewer holds no offer.
	ErrNotCandidate = errors.New("reviewer is not a candidate")
	// ErrLost is returned when the assignment compare-and-swap finds the
	// atelier no longer in auction (another reviewer won, or the atelier
	// moved on).
	ErrLost = errors.New("atelier no longer in auction")
)

// Offer is one (reviewer, bounty) pair proposed by the uploader.
type Offer struct {
	ReviewerID string
	Bounty     int64
}

type Pool struct {
	Repo repo.Repo
}

func New(r repo.Repo) Pool {
	return Pool{Repo: r}
}

// Validate checks offers before any coins move: at least one offer, no
// duplicate reviewers, no negative bounties, uploader not bidding on their
// own atelier. Returns the maximum bounty, which is the amount to escrow.
func Validate(uploaderID string, offers []Offer) (int64, error) {
	if len(offers) == 0 {
		return 0, ErrEmptyPool
	}
	seen := make(map[string]bool, len(offers))
	var max int64
	for _, o := range offers {
		if o.ReviewerID == "" {
			return 0, errors.New("offer missing reviewer id")
		}
		if o.ReviewerID == uploaderID {
			return 0, fmt.Errorf("uploader %s cannot review own atelier", uploaderID)
		}
		if o.Bounty < 0 {
			return 0, fmt.Errorf("negative bounty %d for reviewer %s", o.Bounty, o.ReviewerID)
		}
		if seen[o.ReviewerID] {
			return 0, fmt.Errorf("duplicate offer for reviewer %s", o.ReviewerID)
		}
		seen[o.ReviewerID] = true
		if o.Bounty > max {
			max = o.Bounty
		}
	}
	return max, nil
}

// SeedTx inserts the validated offers as candidate rows.
func (p Pool) SeedTx(ctx context.Context, tx *sql.Tx, atelierID string, offers []Offer, now time.Time) error {
	offered := now.UTC().Format(time.RFC3339)
	for _, o := range offers {
		c := domain.Candidate{
			AtelierID:  atelierID,
			ReviewerID: o.ReviewerID,
			Bounty:     o.Bounty,
			OfferedAt:  offered,
		}
		if err := p.Repo.InsertCandidateTx(ctx, tx, c); err != nil {
			return err
		}
	}
	return nil
}

// AcceptTx claims the atelier for one candidate. It reads the candidate's
// bounty, swaps the atelier to assigned (guarded on it still being in
// auction) and drains the rest of the pool. Returns the binding bounty.
func (p Pool) AcceptTx(ctx context.Context, tx *sql.Tx, atelierID, reviewerID string, now time.Time) (int64, error) {
	c, err := p.Repo.GetCandidateTx(ctx, tx, atelierID, reviewerID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, ErrNotCandidate
	}
	if err != nil {
		return 0, err
	}
	ok, err := p.Repo.AssignReviewerTx(ctx, tx, atelierID, reviewerID, c.Bounty, now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrLost
	}
	if err := p.Repo.ClearCandidatesTx(ctx, tx, atelierID); err != nil {
		return 0, err
	}
	return c.Bounty, nil
}

// DeclineTx withdraws one candidate's offer and reports how many remain.
// Callers decide the cascade (auto-cancel on zero) from the returned count;
// it is read inside the same transaction as the delete.
func (p Pool) DeclineTx(ctx context.Context, tx *sql.Tx, atelierID, reviewerID string) (int, error) {
	found, err := p.Repo.DeleteCandidateTx(ctx, tx, atelierID, reviewerID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNotCandidate
	}
	return p.Repo.CountCandidatesTx(ctx, tx, atelierID)
}

// List returns the current pool, oldest offers first.
func (p Pool) List(ctx context.Context, atelierID string) ([]domain.Candidate, error) {
	return p.Repo.ListCandidates(ctx, atelierID)
}
