package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const handoverCols = `id,name,type,COALESCE(description,'') AS description,lead,owner,COALESCE(target_date,'') AS target_date,status,score,created_at,updated_at`

func scanHandover(row *sql.Row) (domain.Handover, error) {
	var h domain.Handover
	err := row.Scan(&h.ID, &h.Name, &h.Type, &h.Description, &h.Lead, &h.Owner, &h.TargetDate, &h.Status, &h.Score, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return h, ErrNotFound
	}
	return h, err
}

func (r Repo) InsertHandoverTx(ctx context.Context, tx *sql.Tx, h domain.Handover) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO handovers(name,type,description,lead,owner,target_date,status,score,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		h.Name, h.Type, nullable(h.Description), h.Lead, h.Owner, nullable(h.TargetDate), h.Status, h.Score, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetHandover(ctx context.Context, id int64) (domain.Handover, error) {
	return scanHandover(r.DB.QueryRowContext(ctx, `SELECT `+handoverCols+` FROM handovers WHERE id=?`, id))
}

// HandoverFilters narrow list queries. Dates compare against created_at.
type HandoverFilters struct {
	Status   domain.Status
	Type     string
	DateFrom string
	DateTo   string
}

func (r Repo) ListHandovers(ctx context.Context, f HandoverFilters) ([]domain.Handover, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.DateFrom != "" {
		clauses = append(clauses, "created_at>=?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		clauses = append(clauses, "created_at<=?")
		args = append(args, f.DateTo)
	}
	query := `SELECT ` + handoverCols + ` FROM handovers`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Handover
	for rows.Next() {
		var h domain.Handover
		if err := rows.Scan(&h.ID, &h.Name, &h.Type, &h.Description, &h.Lead, &h.Owner, &h.TargetDate, &h.Status, &h.Score, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

// HandoverFieldUpdates carries the editable descriptive fields. Status and
// score never travel through here; they are derived.
type HandoverFieldUpdates struct {
	Name        *string
	Description *string
	Lead        *string
	Owner       *string
	TargetDate  *string
}

func (r Repo) UpdateHandoverFieldsTx(ctx context.Context, tx *sql.Tx, id int64, u HandoverFieldUpdates, updatedAt string) error {
	var fields []string
	var args []any
	if u.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *u.Name)
	}
	if u.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*u.Description))
	}
	if u.Lead != nil {
		fields = append(fields, "lead=?")
		args = append(args, *u.Lead)
	}
	if u.Owner != nil {
		fields = append(fields, "owner=?")
		args = append(args, *u.Owner)
	}
	if u.TargetDate != nil {
		fields = append(fields, "target_date=?")
		args = append(args, nullable(*u.TargetDate))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE handovers SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetHandoverStateTx writes the derived status and score.
func (r Repo) SetHandoverStateTx(ctx context.Context, tx *sql.Tx, id int64, status domain.Status, score int, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE handovers SET status=?, score=?, updated_at=? WHERE id=?`, status, score, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteHandoverTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM handovers WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- domains ---

func (r Repo) InsertDomainTx(ctx context.Context, tx *sql.Tx, d domain.Domain) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO domains(handover_id,title,description,sort_order) VALUES (?,?,?,?)`,
		d.HandoverID, d.Title, nullable(d.Description), d.SortOrder)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetDomain(ctx context.Context, id int64) (domain.Domain, error) {
	var d domain.Domain
	err := r.DB.QueryRowContext(ctx, `SELECT id,handover_id,title,COALESCE(description,''),sort_order FROM domains WHERE id=?`, id).
		Scan(&d.ID, &d.HandoverID, &d.Title, &d.Description, &d.SortOrder)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) ListDomains(ctx context.Context, handoverID int64) ([]domain.Domain, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,handover_id,title,COALESCE(description,''),sort_order FROM domains WHERE handover_id=? ORDER BY sort_order ASC, id ASC`, handoverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Domain
	for rows.Next() {
		var d domain.Domain
		if err := rows.Scan(&d.ID, &d.HandoverID, &d.Title, &d.Description, &d.SortOrder); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) UpdateDomainTx(ctx context.Context, tx *sql.Tx, id int64, title, description *string) error {
	var fields []string
	var args []any
	if title != nil {
		fields = append(fields, "title=?")
		args = append(args, *title)
	}
	if description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*description))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE domains SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetDomainSortTx(ctx context.Context, tx *sql.Tx, id int64, sort int) error {
	_, err := tx.ExecContext(ctx, `UPDATE domains SET sort_order=? WHERE id=?`, sort, id)
	return err
}

func (r Repo) DeleteDomainTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM domains WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) NextDomainSort(ctx context.Context, handoverID int64) (int, error) {
	var max sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM domains WHERE handover_id=?`, handoverID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// --- checks ---

const checkCols = `id,domain_id,title,COALESCE(owner,'') AS owner,status,COALESCE(blocker_reason,'') AS blocker_reason,requires_approval,COALESCE(approval_status,'') AS approval_status,sort_order,created_at,updated_at`

func scanCheck(scanner interface{ Scan(...any) error }) (domain.Check, error) {
	var c domain.Check
	var requires int
	err := scanner.Scan(&c.ID, &c.DomainID, &c.Title, &c.Owner, &c.Status, &c.BlockerReason, &requires, &c.ApprovalStatus, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.RequiresApproval = requires != 0
	return c, err
}

func (r Repo) InsertCheckTx(ctx context.Context, tx *sql.Tx, c domain.Check) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO checks(domain_id,title,owner,status,blocker_reason,requires_approval,approval_status,sort_order,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.DomainID, c.Title, nullable(c.Owner), c.Status, nullable(c.BlockerReason), boolInt(c.RequiresApproval), nullable(string(c.ApprovalStatus)), c.SortOrder, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetCheck(ctx context.Context, id int64) (domain.Check, error) {
	return scanCheck(r.DB.QueryRowContext(ctx, `SELECT `+checkCols+` FROM checks WHERE id=?`, id))
}

func (r Repo) ListChecksByDomain(ctx context.Context, domainID int64) ([]domain.Check, error) {
	return r.listChecks(ctx, `SELECT `+checkCols+` FROM checks WHERE domain_id=? ORDER BY sort_order ASC, id ASC`, domainID)
}

func (r Repo) ListChecksByHandover(ctx context.Context, handoverID int64) ([]domain.Check, error) {
	const q = `SELECT c.id,c.domain_id,c.title,COALESCE(c.owner,''),c.status,COALESCE(c.blocker_reason,''),c.requires_approval,COALESCE(c.approval_status,''),c.sort_order,c.created_at,c.updated_at
FROM checks c JOIN domains d ON c.domain_id=d.id WHERE d.handover_id=? ORDER BY c.sort_order ASC, c.id ASC`
	return r.listChecks(ctx, q, handoverID)
}

func (r Repo) listChecks(ctx context.Context, query string, args ...any) ([]domain.Check, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpdateCheckTx writes a full check row; the engine owns the derivation of
// status and approval state before calling.
func (r Repo) UpdateCheckTx(ctx context.Context, tx *sql.Tx, c domain.Check) error {
	res, err := tx.ExecContext(ctx, `UPDATE checks SET title=?, owner=?, status=?, blocker_reason=?, requires_approval=?, approval_status=?, sort_order=?, updated_at=? WHERE id=?`,
		c.Title, nullable(c.Owner), c.Status, nullable(c.BlockerReason), boolInt(c.RequiresApproval), nullable(string(c.ApprovalStatus)), c.SortOrder, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteCheckTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM checks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) NextCheckSort(ctx context.Context, domainID int64) (int, error) {
	var max sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM checks WHERE domain_id=?`, domainID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// HandoverIDForCheck resolves which handover a check belongs to.
func (r Repo) HandoverIDForCheck(ctx context.Context, checkID int64) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT d.handover_id FROM checks c JOIN domains d ON c.domain_id=d.id WHERE c.id=?`, checkID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
