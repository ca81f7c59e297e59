package repo

import (
	"context"
	"database/sql"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

func (r Repo) InsertDecisionTx(ctx context.Context, tx *sql.Tx, d domain.DecisionRecord) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO decisions(handover_id,decision,justification,risk_acknowledged,decided_by,created_at) VALUES (?,?,?,?,?,?)`,
		d.HandoverID, d.Decision, nullable(d.Justification), boolInt(d.RiskAcknowledged), d.DecidedBy, d.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const decisionCols = `id,handover_id,decision,COALESCE(justification,'') AS justification,risk_acknowledged,decided_by,created_at`

func scanDecision(scanner interface{ Scan(...any) error }) (domain.DecisionRecord, error) {
	var d domain.DecisionRecord
	var ack int
	err := scanner.Scan(&d.ID, &d.HandoverID, &d.Decision, &d.Justification, &ack, &d.DecidedBy, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	d.RiskAcknowledged = ack != 0
	return d, err
}

func (r Repo) ListDecisions(ctx context.Context, handoverID int64) ([]domain.DecisionRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+decisionCols+` FROM decisions WHERE handover_id=? ORDER BY created_at DESC, id DESC`, handoverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DecisionRecord
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// LatestDecision returns the most recent go-live decision for a handover.
func (r Repo) LatestDecision(ctx context.Context, handoverID int64) (domain.DecisionRecord, error) {
	return scanDecision(r.DB.QueryRowContext(ctx,
		`SELECT `+decisionCols+` FROM decisions WHERE handover_id=? ORDER BY created_at DESC, id DESC LIMIT 1`, handoverID))
}
