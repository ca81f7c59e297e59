package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

func (r Repo) InsertApprovalTx(ctx context.Context, tx *sql.Tx, a domain.Approval) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO approvals(check_id,approver,role,decision,comments,created_at) VALUES (?,?,?,?,?,?)`,
		a.CheckID, a.Approver, nullable(a.Role), a.Decision, a.Comments, a.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanApproval(scanner interface{ Scan(...any) error }) (domain.Approval, error) {
	var a domain.Approval
	err := scanner.Scan(&a.ID, &a.CheckID, &a.Approver, &a.Role, &a.Decision, &a.Comments, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

const approvalCols = `id,check_id,approver,COALESCE(role,'') AS role,decision,comments,created_at`

func (r Repo) ListApprovals(ctx context.Context, checkID int64) ([]domain.Approval, error) {
	return r.listApprovals(ctx, `SELECT `+approvalCols+` FROM approvals WHERE check_id=? ORDER BY created_at ASC, id ASC`, checkID)
}

func (r Repo) ListApprovalsByHandover(ctx context.Context, handoverID int64) ([]domain.Approval, error) {
	const q = `SELECT a.id,a.check_id,a.approver,COALESCE(a.role,''),a.decision,a.comments,a.created_at
FROM approvals a JOIN checks c ON a.check_id=c.id JOIN domains d ON c.domain_id=d.id
WHERE d.handover_id=? ORDER BY a.created_at ASC, a.id ASC`
	return r.listApprovals(ctx, q, handoverID)
}

func (r Repo) listApprovals(ctx context.Context, query string, args ...any) ([]domain.Approval, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- evidence ---

const evidenceCols = `id,check_id,title,url,type,COALESCE(description,'') AS description,COALESCE(tags_json,'') AS tags_json,COALESCE(file_path,'') AS file_path,COALESCE(file_size,0) AS file_size,COALESCE(thumbnail_path,'') AS thumbnail_path,uploaded_by,created_at`

func (r Repo) InsertEvidenceTx(ctx context.Context, tx *sql.Tx, ev domain.Evidence) (int64, error) {
	var tags any
	if len(ev.Tags) > 0 {
		data, err := json.Marshal(ev.Tags)
		if err != nil {
			return 0, err
		}
		tags = string(data)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO evidence(check_id,title,url,type,description,tags_json,file_path,file_size,thumbnail_path,uploaded_by,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		ev.CheckID, ev.Title, ev.URL, ev.Type, nullable(ev.Description), tags, nullable(ev.FilePath), nullableInt64(ev.FileSize), nullable(ev.ThumbnailPath), ev.UploadedBy, ev.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanEvidence(scanner interface{ Scan(...any) error }) (domain.Evidence, error) {
	var ev domain.Evidence
	var tagsJSON string
	err := scanner.Scan(&ev.ID, &ev.CheckID, &ev.Title, &ev.URL, &ev.Type, &ev.Description, &tagsJSON, &ev.FilePath, &ev.FileSize, &ev.ThumbnailPath, &ev.UploadedBy, &ev.CreatedAt)
	if err == sql.ErrNoRows {
		return ev, ErrNotFound
	}
	if err != nil {
		return ev, err
	}
	if tagsJSON != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &ev.Tags)
	}
	return ev, nil
}

func (r Repo) GetEvidence(ctx context.Context, id int64) (domain.Evidence, error) {
	return scanEvidence(r.DB.QueryRowContext(ctx, `SELECT `+evidenceCols+` FROM evidence WHERE id=?`, id))
}

func (r Repo) ListEvidence(ctx context.Context, checkID int64) ([]domain.Evidence, error) {
	return r.listEvidence(ctx, `SELECT `+evidenceCols+` FROM evidence WHERE check_id=? ORDER BY created_at ASC, id ASC`, checkID)
}

func (r Repo) ListEvidenceByHandover(ctx context.Context, handoverID int64) ([]domain.Evidence, error) {
	const q = `SELECT e.id,e.check_id,e.title,e.url,e.type,COALESCE(e.description,''),COALESCE(e.tags_json,''),COALESCE(e.file_path,''),COALESCE(e.file_size,0),COALESCE(e.thumbnail_path,''),e.uploaded_by,e.created_at
FROM evidence e JOIN checks c ON e.check_id=c.id JOIN domains d ON c.domain_id=d.id
WHERE d.handover_id=? ORDER BY e.created_at ASC, e.id ASC`
	return r.listEvidence(ctx, q, handoverID)
}

func (r Repo) listEvidence(ctx context.Context, query string, args ...any) ([]domain.Evidence, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

func (r Repo) DeleteEvidenceTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// StoredFilePaths returns the file and thumbnail paths of all uploaded
// evidence under a handover, for cleanup before a cascade delete.
func (r Repo) StoredFilePaths(ctx context.Context, handoverID int64) ([]string, error) {
	const q = `SELECT COALESCE(e.file_path,''), COALESCE(e.thumbnail_path,'')
FROM evidence e JOIN checks c ON e.check_id=c.id JOIN domains d ON c.domain_id=d.id
WHERE d.handover_id=? AND e.file_path IS NOT NULL`
	rows, err := r.DB.QueryContext(ctx, q, handoverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var file, thumb string
		if err := rows.Scan(&file, &thumb); err != nil {
			return nil, err
		}
		if file != "" {
			paths = append(paths, file)
		}
		if thumb != "" {
			paths = append(paths, thumb)
		}
	}
	return paths, rows.Err()
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
