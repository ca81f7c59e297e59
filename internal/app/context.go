package app

import (
	"database/sql"
	"fmt"

	"github.com/kanwarsx-prog/opsHandover/internal/config"
	"github.com/kanwarsx-prog/opsHandover/internal/db"
	"github.com/kanwarsx-prog/opsHandover/internal/engine"
	"github.com/kanwarsx-prog/opsHandover/internal/migrate"
	"github.com/kanwarsx-prog/opsHandover/internal/storage"
)

// Runtime bundles everything a command needs to talk to a workspace register.
type Runtime struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
}

// Open prepares the workspace register: directory layout, database schema,
// and config. A missing ohv.yml falls back to defaults so read commands work
// before `ohv config init` has run.
func Open(workspace string) (*Runtime, error) {
	ws, err := db.EnsureWorkspace(workspace)
	if err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}
	cfg, err := config.LoadOptional(ws)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("local")
	}
	conn, err := db.Open(db.Config{Workspace: ws})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	store := storage.NewDiskStore(db.FilesDir(ws), cfg.Storage.BaseURL)
	return &Runtime{
		Workspace: ws,
		Config:    cfg,
		DB:        conn,
		Engine:    engine.New(conn, cfg, store),
	}, nil
}

// Close releases the database handle.
func (rt *Runtime) Close() error {
	if rt == nil || rt.DB == nil {
		return nil
	}
	return rt.DB.Close()
}
