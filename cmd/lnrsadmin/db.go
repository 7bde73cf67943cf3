package main

import (
	"context"
	"fmt"
	"log/slog"

	"lnrsadmin/internal/config"
	"lnrsadmin/internal/snapshot"
	"lnrsadmin/internal/store"
	"lnrsadmin/internal/store/postgres"
	"lnrsadmin/internal/store/sqlite"
)

const configFile = "lnrsadmin.yaml"

func openStore(ctx context.Context, cfg *config.ProjectConfig) (store.Handle, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return sqlite.New(ctx, cfg.Database.DSN)
	case "postgres":
		return postgres.New(ctx, cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// openSnapshots builds the snapshot manager. The capability needs both the
// config switch and a file-backed store; a hosted postgres deployment has no
// file to copy, so snapshots silently stay off there.
func openSnapshots(db store.Handle, cfg *config.ProjectConfig) (*snapshot.Manager, error) {
	enabled := cfg.Backups.Enabled && db.Path() != ""
	if cfg.Backups.Enabled && !enabled {
		slog.Warn("backups configured but store is not file-backed; snapshots disabled")
	}
	return snapshot.NewManager(db, snapshot.Options{
		Enabled: enabled,
		Dir:     cfg.Backups.Dir,
		DBPath:  db.Path(),
	})
}
