// Package snapshot takes and restores whole-file copies of the backing
// database, with a JSON journal recording what each copy was taken for.
//
// The capability is gated on an explicit flag computed at startup: a manager
// built disabled turns every Create into a silent no-op so callers can wrap
// destructive operations unconditionally. Restore is never silent; restoring
// always takes a safety snapshot of the current state first.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"lnrsadmin/internal/store"
)

// Database is the slice of the store handle the manager needs around a file
// swap.
type Database interface {
	Checkpoint(ctx context.Context) error
	Close(ctx context.Context) error
	Reset(ctx context.Context) error
	Count(ctx context.Context, table, where string, args ...any) (int64, error)
}

// integrityTable is read after a restore to prove the swapped-in file is a
// usable database.
const integrityTable = "measure"

// Manager creates, lists, restores and prunes snapshots.
type Manager struct {
	db      Database
	enabled bool
	dir     string
	dbPath  string
	journal *journal
	log     *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// Options configures a manager.
type Options struct {
	// Enabled turns the capability on. False makes Create a no-op and
	// Restore an error.
	Enabled bool
	// Dir is where snapshot files and the journal live.
	Dir string
	// DBPath is the backing database file being copied.
	DBPath string
	Logger *slog.Logger
}

// NewManager builds a manager. When enabled, the snapshot directory is
// created if missing.
func NewManager(db Database, opts Options) (*Manager, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		db:      db,
		enabled: opts.Enabled,
		dir:     opts.Dir,
		dbPath:  opts.DBPath,
		log:     log,
		now:     time.Now,
	}
	if !m.enabled {
		return m, nil
	}
	if m.dir == "" || m.dbPath == "" {
		return nil, fmt.Errorf("snapshots enabled but directory or database path is empty")
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	m.journal = newJournal(m.dir)
	return m, nil
}

// Enabled reports whether the capability is on.
func (m *Manager) Enabled() bool { return m.enabled }

// Create takes a snapshot and returns its id. With the capability disabled
// it returns ("", nil) so destructive operations can wrap themselves in a
// snapshot unconditionally.
func (m *Manager) Create(ctx context.Context, opType, entityType string, entityID int64, description string) (string, error) {
	if !m.enabled {
		return "", nil
	}

	if err := m.db.Checkpoint(ctx); err != nil {
		return "", fmt.Errorf("checkpointing before snapshot: %w", err)
	}

	now := m.now()
	id := deriveSnapshotID(now, opType, entityType, entityID)
	dest := filepath.Join(m.dir, id+".db")

	size, err := copyFileExcl(m.dbPath, dest)
	if err != nil {
		return "", fmt.Errorf("copying database to snapshot: %w", err)
	}

	rec := Record{
		SnapshotID:    id,
		Timestamp:     now.Format("20060102_150405"),
		Datetime:      now.Format(time.RFC3339),
		Description:   description,
		OperationType: opType,
		EntityType:    entityType,
		EntityID:      entityID,
		FilePath:      dest,
		SizeBytes:     size,
	}
	if err := m.journal.append(rec); err != nil {
		// The copy exists but is unrecorded; remove it rather than leave an
		// orphan the journal can never account for.
		os.Remove(dest)
		return "", err
	}

	m.log.Info("snapshot created",
		"snapshot_id", id, "operation", opType, "size_bytes", size)
	return id, nil
}

// List returns journal entries newest first, optionally filtered by
// operation type and entity type. Entries whose file has gone missing are
// skipped; they are unusable and Cleanup will drop them.
func (m *Manager) List(ctx context.Context, opType, entityType string, limit int) ([]Record, error) {
	if !m.enabled {
		return nil, nil
	}
	records, err := m.journal.read()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, rec := range records {
		if opType != "" && rec.OperationType != opType {
			continue
		}
		if entityType != "" && rec.EntityType != entityType {
			continue
		}
		if _, err := os.Stat(rec.FilePath); err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SnapshotID > out[j].SnapshotID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Restore replaces the live database file with a snapshot's content. The
// current state is snapshotted first, unconditionally; then the handle is
// closed, the file swapped, the handle reset, and a read check run. A failed
// read check returns *store.IntegrityError and the pre-restore snapshot is
// the way back.
func (m *Manager) Restore(ctx context.Context, snapshotID string) error {
	if !m.enabled {
		return fmt.Errorf("snapshots are disabled for this store")
	}

	rec, err := m.find(snapshotID)
	if err != nil {
		return err
	}

	safetyID, err := m.Create(ctx, "pre_restore", "", 0,
		fmt.Sprintf("automatic snapshot before restoring %s", snapshotID))
	if err != nil {
		return fmt.Errorf("taking pre-restore snapshot: %w", err)
	}

	if err := m.db.Close(ctx); err != nil {
		return fmt.Errorf("closing database before restore: %w", err)
	}
	if err := copyFile(rec.FilePath, m.dbPath); err != nil {
		// Leave the handle closed rather than reopen an undefined file state.
		return fmt.Errorf("copying snapshot over database: %w", err)
	}
	if err := m.db.Reset(ctx); err != nil {
		return fmt.Errorf("reopening database after restore: %w", err)
	}

	if _, err := m.db.Count(ctx, integrityTable, ""); err != nil {
		return &store.IntegrityError{Err: err}
	}

	m.log.Info("snapshot restored",
		"snapshot_id", snapshotID, "safety_snapshot", safetyID)
	return nil
}

// Cleanup removes all but the newest keep snapshots, files and journal
// entries both, and returns how many were removed. Entries whose file is
// already gone are dropped from the journal as well.
func (m *Manager) Cleanup(ctx context.Context, keep int) (int, error) {
	if !m.enabled {
		return 0, nil
	}
	if keep < 0 {
		return 0, fmt.Errorf("cleanup keep count must not be negative")
	}

	records, err := m.journal.read()
	if err != nil {
		return 0, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SnapshotID > records[j].SnapshotID
	})

	var kept []Record
	deleted := 0
	for _, rec := range records {
		if _, err := os.Stat(rec.FilePath); err != nil {
			deleted++
			continue
		}
		if len(kept) < keep {
			kept = append(kept, rec)
			continue
		}
		if err := os.Remove(rec.FilePath); err != nil {
			return deleted, fmt.Errorf("removing snapshot %s: %w", rec.SnapshotID, err)
		}
		deleted++
	}

	// Journal stays in creation order.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].SnapshotID < kept[j].SnapshotID
	})
	if err := m.journal.write(kept); err != nil {
		return deleted, err
	}

	if deleted > 0 {
		m.log.Info("snapshots pruned", "deleted", deleted, "kept", len(kept))
	}
	return deleted, nil
}

// deriveSnapshotID builds the id from the timestamp plus the context labels.
// The timestamp leads so lexicographic id order is creation order; the labels
// keep snapshots taken for different operations in the same second from
// colliding, in particular the pre_restore safety snapshot against the
// snapshot being restored.
func deriveSnapshotID(now time.Time, opType, entityType string, entityID int64) string {
	parts := []string{now.Format("20060102_150405")}
	if opType != "" {
		parts = append(parts, opType)
	}
	if entityType != "" {
		parts = append(parts, entityType)
	}
	if entityID != 0 {
		parts = append(parts, strconv.FormatInt(entityID, 10))
	}
	return strings.Join(parts, "_")
}

// find locates a journal entry with a still-present file.
func (m *Manager) find(snapshotID string) (Record, error) {
	records, err := m.journal.read()
	if err != nil {
		return Record{}, err
	}
	for _, rec := range records {
		if rec.SnapshotID != snapshotID {
			continue
		}
		if _, err := os.Stat(rec.FilePath); err != nil {
			return Record{}, fmt.Errorf("snapshot %s file %s: %w", snapshotID, rec.FilePath, store.ErrSnapshotNotFound)
		}
		return rec, nil
	}
	return Record{}, fmt.Errorf("snapshot %s: %w", snapshotID, store.ErrSnapshotNotFound)
}

// copyFileExcl copies src to a destination that must not already exist and
// returns the bytes written. Snapshots taken in the same second collide on
// the id; refusing the copy keeps id and file one-to-one.
func copyFileExcl(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(dest)
		return 0, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return 0, err
	}
	return n, out.Close()
}

// copyFile overwrites dest with src's content.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
