package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

func (r Repo) InsertTemplateLibrary(ctx context.Context, lib domain.TemplateLibrary) (int64, error) {
	domains, err := json.Marshal(lib.Domains)
	if err != nil {
		return 0, fmt.Errorf("marshal template domains: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO template_libraries(name,description,category,domains_json,created_by,created_at) VALUES (?,?,?,?,?,?)`,
		lib.Name, nullable(lib.Description), nullable(lib.Category), string(domains), lib.CreatedBy, lib.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const templateCols = `id,name,COALESCE(description,'') AS description,COALESCE(category,'') AS category,domains_json,created_by,created_at`

func scanTemplateLibrary(scanner interface{ Scan(...any) error }) (domain.TemplateLibrary, error) {
	var lib domain.TemplateLibrary
	var domainsJSON string
	err := scanner.Scan(&lib.ID, &lib.Name, &lib.Description, &lib.Category, &domainsJSON, &lib.CreatedBy, &lib.CreatedAt)
	if err == sql.ErrNoRows {
		return lib, ErrNotFound
	}
	if err != nil {
		return lib, err
	}
	if err := json.Unmarshal([]byte(domainsJSON), &lib.Domains); err != nil {
		return lib, fmt.Errorf("template library %d: corrupt domains payload: %w", lib.ID, err)
	}
	return lib, nil
}

func (r Repo) GetTemplateLibrary(ctx context.Context, id int64) (domain.TemplateLibrary, error) {
	return scanTemplateLibrary(r.DB.QueryRowContext(ctx, `SELECT `+templateCols+` FROM template_libraries WHERE id=?`, id))
}

func (r Repo) ListTemplateLibraries(ctx context.Context) ([]domain.TemplateLibrary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+templateCols+` FROM template_libraries ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TemplateLibrary
	for rows.Next() {
		lib, err := scanTemplateLibrary(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, lib)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTemplateLibrary(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM template_libraries WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
