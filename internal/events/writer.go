package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends to the lifecycle history log. Appends always happen inside
// the transaction that performs the transition they record.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append records a history row without a status change (ledger movements,
// scores, artifact bookkeeping).
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, atelierID, actorID string, payload EventPayload) error {
	return w.append(ctx, tx, evtType, atelierID, actorID, nil, nil, payload)
}

// AppendTransition records a status transition with its endpoints.
func (w Writer) AppendTransition(ctx context.Context, tx *sql.Tx, evtType, atelierID, actorID string, from, to int, payload EventPayload) error {
	return w.append(ctx, tx, evtType, atelierID, actorID, &from, &to, payload)
}

func (w Writer) append(ctx context.Context, tx *sql.Tx, evtType, atelierID, actorID string, from, to *int, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal history payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO history(ts,type,atelier_id,actor_id,from_status,to_status,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(atelierID), actorID, nullableInt(from), nullableInt(to), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
