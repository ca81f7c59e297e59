package repo

import (
	"context"
	"database/sql"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

const eventCols = `id,ts,type,COALESCE(handover_id,0) AS handover_id,entity_kind,COALESCE(entity_id,'') AS entity_id,actor_id,payload_json`

func scanEvent(scanner interface{ Scan(...any) error }) (domain.Event, error) {
	var e domain.Event
	err := scanner.Scan(&e.ID, &e.TS, &e.Type, &e.HandoverID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

// EventsAfter returns up to limit events with id greater than cursor. A
// zero handoverID spans all handovers.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor, handoverID int64) ([]domain.Event, error) {
	query := `SELECT ` + eventCols + ` FROM events WHERE id>?`
	args := []any{cursor}
	if handoverID != 0 {
		query += ` AND handover_id=?`
		args = append(args, handoverID)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the newest event id, zero when the log is empty.
func (r Repo) LatestEventID(ctx context.Context, handoverID int64) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM events`
	var args []any
	if handoverID != 0 {
		query += ` WHERE handover_id=?`
		args = append(args, handoverID)
	}
	var id int64
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&id)
	return id, err
}

// LatestEvents returns the newest events first.
func (r Repo) LatestEvents(ctx context.Context, limit int, handoverID int64) ([]domain.Event, error) {
	query := `SELECT ` + eventCols + ` FROM events`
	var args []any
	if handoverID != 0 {
		query += ` WHERE handover_id=?`
		args = append(args, handoverID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
