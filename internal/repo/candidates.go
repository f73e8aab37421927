package repo

import (
	"context"
	"database/sql"

	"atelier/internal/domain"
)

func (r Repo) InsertCandidateTx(ctx context.Context, tx *sql.Tx, c domain.Candidate) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO candidates(atelier_id,reviewer_id,bounty,offered_at) VALUES (?,?,?,?)`,
		c.AtelierID, c.ReviewerID, c.Bounty, c.OfferedAt)
	return err
}

func (r Repo) GetCandidateTx(ctx context.Context, tx *sql.Tx, atelierID, reviewerID string) (domain.Candidate, error) {
	var c domain.Candidate
	err := tx.QueryRowContext(ctx, `SELECT atelier_id,reviewer_id,bounty,offered_at FROM candidates WHERE atelier_id=? AND reviewer_id=?`,
		atelierID, reviewerID).Scan(&c.AtelierID, &c.ReviewerID, &c.Bounty, &c.OfferedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// DeleteCandidateTx removes one bid; returns false when the (atelier,
// reviewer) pair was not in the pool.
func (r Repo) DeleteCandidateTx(ctx context.Context, tx *sql.Tx, atelierID, reviewerID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE atelier_id=? AND reviewer_id=?`, atelierID, reviewerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) ClearCandidatesTx(ctx context.Context, tx *sql.Tx, atelierID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE atelier_id=?`, atelierID)
	return err
}

// CountCandidatesTx reads the remaining pool size inside the caller's
// transaction; the decline cascade decision must come from this value, not
// from a later read.
func (r Repo) CountCandidatesTx(ctx context.Context, tx *sql.Tx, atelierID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM candidates WHERE atelier_id=?`, atelierID).Scan(&n)
	return n, err
}

func (r Repo) ListCandidates(ctx context.Context, atelierID string) ([]domain.Candidate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT atelier_id,reviewer_id,bounty,offered_at FROM candidates WHERE atelier_id=? ORDER BY offered_at ASC, reviewer_id ASC`, atelierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.AtelierID, &c.ReviewerID, &c.Bounty, &c.OfferedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
