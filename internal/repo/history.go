package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"atelier/internal/domain"
)

// HistoryFilters narrows history queries.
type HistoryFilters struct {
	AtelierID string
	Type      string
	ActorID   string
	Limit     int
	Cursor    int64
}

// LatestHistory returns history rows newest first, optionally continuing
// below a cursor id.
func (r Repo) LatestHistory(ctx context.Context, f HistoryFilters) ([]domain.HistoryEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if f.AtelierID != "" {
		clauses = append(clauses, "atelier_id=?")
		args = append(args, f.AtelierID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.ActorID != "" {
		clauses = append(clauses, "actor_id=?")
		args = append(args, f.ActorID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,atelier_id,actor_id,from_status,to_status,payload_json FROM history %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryHistory(ctx, query, args...)
}

// HistoryAfter returns history rows with IDs greater than the cursor in
// ascending order; the webhook dispatcher pages through the log with this.
func (r Repo) HistoryAfter(ctx context.Context, limit int, cursor int64) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id,ts,type,atelier_id,actor_id,from_status,to_status,payload_json FROM history WHERE id>? ORDER BY id ASC LIMIT ?`
	return r.queryHistory(ctx, query, cursor, limit)
}

// LatestHistoryID returns the most recent history row id.
func (r Repo) LatestHistoryID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM history`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) queryHistory(ctx context.Context, query string, args ...any) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var atelierID, payload sql.NullString
		var from, to sql.NullInt64
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &atelierID, &e.ActorID, &from, &to, &payload); err != nil {
			return nil, err
		}
		if atelierID.Valid {
			e.AtelierID = atelierID.String
		}
		if from.Valid {
			v := int(from.Int64)
			e.FromStatus = &v
		}
		if to.Valid {
			v := int(to.Int64)
			e.ToStatus = &v
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
