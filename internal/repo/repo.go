package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"atelier/internal/config"
	"atelier/internal/domain"
	"atelier/internal/status"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const atelierColumns = `id,uploader_id,game_id,title,description,tags_json,is_private,status,reviewer_id,bounty,max_bounty,original_key,review_key,score,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAtelier(row rowScanner) (domain.Atelier, error) {
	var a domain.Atelier
	var description, tagsJSON, reviewerID, reviewKey sql.NullString
	var bounty sql.NullInt64
	var score sql.NullFloat64
	err := row.Scan(&a.ID, &a.UploaderID, &a.GameID, &a.Title, &description, &tagsJSON, &a.IsPrivate,
		&a.Status, &reviewerID, &bounty, &a.MaxBounty, &a.OriginalKey, &reviewKey, &score, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if description.Valid {
		a.Description = description.String
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		_ = json.Unmarshal([]byte(tagsJSON.String), &a.Tags)
	}
	if reviewerID.Valid {
		a.ReviewerID = &reviewerID.String
	}
	if bounty.Valid {
		b := bounty.Int64
		a.Bounty = &b
	}
	if reviewKey.Valid {
		a.ReviewKey = &reviewKey.String
	}
	if score.Valid {
		s := score.Float64
		a.Score = &s
	}
	a.StatusLabel = status.Status(a.Status).Label()
	return a, nil
}

func (r Repo) InsertAtelierTx(ctx context.Context, tx *sql.Tx, a domain.Atelier) error {
	tags, err := marshalStringSlice(a.Tags)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO ateliers(`+atelierColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.UploaderID, a.GameID, a.Title, nullable(a.Description), nullableStringPtr(tags), a.IsPrivate,
		a.Status, nullableStringPtr(a.ReviewerID), nullableInt64Ptr(a.Bounty), a.MaxBounty,
		a.OriginalKey, nullableStringPtr(a.ReviewKey), nullableFloatPtr(a.Score), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) GetAtelier(ctx context.Context, id string) (domain.Atelier, error) {
	return scanAtelier(r.DB.QueryRowContext(ctx, `SELECT `+atelierColumns+` FROM ateliers WHERE id=?`, id))
}

func (r Repo) GetAtelierTx(ctx context.Context, tx *sql.Tx, id string) (domain.Atelier, error) {
	return scanAtelier(tx.QueryRowContext(ctx, `SELECT `+atelierColumns+` FROM ateliers WHERE id=?`, id))
}

// TransitionStatusTx performs the conditional status update that all mutual
// exclusion in the engine rests on: the row moves to `to` only if its status
// still equals `from`. Returns false when another actor got there first.
func (r Repo) TransitionStatusTx(ctx context.Context, tx *sql.Tx, id string, from, to status.Status, updatedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE ateliers SET status=?, updated_at=? WHERE id=? AND status=?`,
		int(to), updatedAt, id, int(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AssignReviewerTx is the accept-side compare-and-swap: status InAuction ->
// Assigned, reviewer and binding bounty set, all guarded on the old status.
func (r Repo) AssignReviewerTx(ctx context.Context, tx *sql.Tx, id, reviewerID string, bounty int64, updatedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE ateliers SET status=?, reviewer_id=?, bounty=?, updated_at=? WHERE id=? AND status=?`,
		int(status.Assigned), reviewerID, bounty, updatedAt, id, int(status.InAuction))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClearAssignmentTx resets reviewer binding when an assigned atelier is
// cancelled, so reviewer_id stays consistent with non-assigned statuses.
func (r Repo) ClearAssignmentTx(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE ateliers SET reviewer_id=NULL, bounty=NULL, updated_at=? WHERE id=?`, updatedAt, id)
	return err
}

func (r Repo) SetReviewKeyTx(ctx context.Context, tx *sql.Tx, id, reviewKey, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE ateliers SET review_key=?, updated_at=? WHERE id=?`, reviewKey, updatedAt, id)
	return err
}

func (r Repo) SetScoreTx(ctx context.Context, tx *sql.Tx, id string, score float64, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE ateliers SET score=?, updated_at=? WHERE id=?`, score, updatedAt, id)
	return err
}

// AtelierFilters narrows List results. Immutable value struct: build it,
// pass it, done.
type AtelierFilters struct {
	UploaderID      string
	ReviewerID      string
	GameID          string
	Status          *status.Status
	ActiveOnly      bool
	IncludeDeleted  bool
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListAteliers(ctx context.Context, f AtelierFilters) ([]domain.Atelier, error) {
	var clauses []string
	var args []any
	if f.UploaderID != "" {
		clauses = append(clauses, "uploader_id=?")
		args = append(args, f.UploaderID)
	}
	if f.ReviewerID != "" {
		clauses = append(clauses, "reviewer_id=?")
		args = append(args, f.ReviewerID)
	}
	if f.GameID != "" {
		clauses = append(clauses, "game_id=?")
		args = append(args, f.GameID)
	}
	if f.Status != nil {
		clauses = append(clauses, "status=?")
		args = append(args, int(*f.Status))
	} else if f.ActiveOnly {
		clauses = append(clauses, "status IN (?,?,?,?,?)")
		args = append(args, int(status.Created), int(status.InAuction), int(status.Assigned), int(status.InProgress), int(status.Complete))
	} else if !f.IncludeDeleted {
		clauses = append(clauses, "status != ?")
		args = append(args, int(status.Deleted))
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + atelierColumns + ` FROM ateliers ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Atelier
	for rows.Next() {
		a, err := scanAtelier(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// CountAteliersByStatus aggregates ateliers per status label.
func (r Repo) CountAteliersByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM ateliers GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var code, count int
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		res[status.Status(code).Label()] = count
	}
	return res, rows.Err()
}

// Marketplace config storage (single row, JSON payload).

func (r Repo) UpsertMarketplaceConfig(ctx context.Context, cfg *config.Config) error {
	return upsertMarketplaceConfig(ctx, r.DB, nil, cfg)
}

func (r Repo) UpsertMarketplaceConfigTx(ctx context.Context, tx *sql.Tx, cfg *config.Config) error {
	return upsertMarketplaceConfig(ctx, nil, tx, cfg)
}

func upsertMarketplaceConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO marketplace_config(id,config_json,created_at,updated_at) VALUES (1,?,?,?)
ON CONFLICT(id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, string(payload), now, now)
	return err
}

func (r Repo) GetMarketplaceConfig(ctx context.Context) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM marketplace_config WHERE id=1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	return &cfg, cfg.Validate()
}

// --- helpers ---

func marshalStringSlice(in []string) (*string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
