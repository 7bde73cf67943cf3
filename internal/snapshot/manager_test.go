package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lnrsadmin/internal/store"
	"lnrsadmin/internal/store/sqlite"
)

type fakeDB struct {
	checkpoints int
	closes      int
	resets      int
	countErr    error
}

func (f *fakeDB) Checkpoint(ctx context.Context) error { f.checkpoints++; return nil }
func (f *fakeDB) Close(ctx context.Context) error      { f.closes++; return nil }
func (f *fakeDB) Reset(ctx context.Context) error      { f.resets++; return nil }
func (f *fakeDB) Count(ctx context.Context, table, where string, args ...any) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return 1, nil
}

func newTestManager(t *testing.T) (*Manager, *fakeDB, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lnrs.db")
	if err := os.WriteFile(dbPath, []byte("v1"), 0o644); err != nil {
		t.Fatalf("writing database file: %v", err)
	}

	db := &fakeDB{}
	m, err := NewManager(db, Options{
		Enabled: true,
		Dir:     filepath.Join(dir, "backups"),
		DBPath:  dbPath,
	})
	if err != nil {
		t.Fatalf("building manager: %v", err)
	}

	// Each call advances one second so snapshot ids stay unique.
	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	n := 0
	m.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return m, db, dbPath
}

func TestDisabledManagerIsNoOp(t *testing.T) {
	m, err := NewManager(&fakeDB{}, Options{Enabled: false})
	if err != nil {
		t.Fatalf("building disabled manager: %v", err)
	}
	ctx := context.Background()

	id, err := m.Create(ctx, "manual", "", 0, "note")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "" {
		t.Errorf("disabled create returned id %q, want empty", id)
	}

	records, err := m.List(ctx, "", "", 0)
	if err != nil || records != nil {
		t.Errorf("disabled list = (%v, %v), want (nil, nil)", records, err)
	}

	if _, err := m.Cleanup(ctx, 1); err != nil {
		t.Errorf("disabled cleanup: %v", err)
	}

	if err := m.Restore(ctx, "snapshot_x"); err == nil {
		t.Error("disabled restore must fail")
	}
}

func TestCreate(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "pre_delete", "measure", 7, "before deleting measure 7")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "20260314_092654_pre_delete_measure_7" {
		t.Errorf("id = %q", id)
	}
	if db.checkpoints != 1 {
		t.Errorf("checkpoints = %d, want 1", db.checkpoints)
	}

	records, err := m.List(ctx, "", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.SnapshotID != id {
		t.Errorf("record id = %q, want %q", rec.SnapshotID, id)
	}
	if rec.OperationType != "pre_delete" || rec.EntityType != "measure" || rec.EntityID != 7 {
		t.Errorf("record = %+v", rec)
	}
	if rec.SizeBytes != 2 {
		t.Errorf("size = %d, want 2", rec.SizeBytes)
	}

	content, err := os.ReadFile(rec.FilePath)
	if err != nil {
		t.Fatalf("reading snapshot file: %v", err)
	}
	if string(content) != "v1" {
		t.Errorf("snapshot content = %q, want v1", content)
	}
}

func TestCreateCollision(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	}
	ctx := context.Background()

	if _, err := m.Create(ctx, "manual", "", 0, ""); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := m.Create(ctx, "manual", "", 0, ""); err == nil {
		t.Fatal("expected identical id in the same second to fail")
	}

	// Different context labels make a different id, so snapshots for
	// different operations coexist within one second.
	if _, err := m.Create(ctx, "pre_delete", "measure", 7, ""); err != nil {
		t.Fatalf("labeled create in the same second: %v", err)
	}
}

func TestListFilters(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	for _, spec := range []struct {
		op, entity string
	}{
		{"manual", ""},
		{"pre_delete", "measure"},
		{"pre_delete", "area"},
	} {
		if _, err := m.Create(ctx, spec.op, spec.entity, 1, ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	records, err := m.List(ctx, "pre_delete", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("pre_delete records = %d, want 2", len(records))
	}

	records, err = m.List(ctx, "pre_delete", "area", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("area records = %d, want 1", len(records))
	}

	records, err = m.List(ctx, "", "", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("limited records = %d, want 2", len(records))
	}
	// Newest first.
	if records[0].SnapshotID <= records[1].SnapshotID {
		t.Errorf("records not newest-first: %q then %q", records[0].SnapshotID, records[1].SnapshotID)
	}
}

func TestListSkipsMissingFiles(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "manual", "", 0, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rec, err := m.find(id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if err := os.Remove(rec.FilePath); err != nil {
		t.Fatalf("removing snapshot file: %v", err)
	}

	records, err := m.List(ctx, "", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0 after file removal", len(records))
	}
}

func TestRestore(t *testing.T) {
	m, db, dbPath := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "manual", "", 0, "good state")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Corrupt the live database, then restore.
	if err := os.WriteFile(dbPath, []byte("bad edit"), 0o644); err != nil {
		t.Fatalf("overwriting database: %v", err)
	}
	if err := m.Restore(ctx, id); err != nil {
		t.Fatalf("restore: %v", err)
	}

	content, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("reading restored database: %v", err)
	}
	if string(content) != "v1" {
		t.Errorf("restored content = %q, want v1", content)
	}
	if db.closes != 1 || db.resets != 1 {
		t.Errorf("closes = %d, resets = %d, want 1 each", db.closes, db.resets)
	}

	// The pre-restore safety snapshot carries the corrupted state.
	records, err := m.List(ctx, "pre_restore", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("pre_restore records = %d, want 1", len(records))
	}
	saved, err := os.ReadFile(records[0].FilePath)
	if err != nil {
		t.Fatalf("reading safety snapshot: %v", err)
	}
	if string(saved) != "bad edit" {
		t.Errorf("safety snapshot content = %q, want the pre-restore state", saved)
	}
}

func TestRestoreSameSecondAsSnapshot(t *testing.T) {
	// Restore right after create, with the clock frozen inside one second.
	// The pre_restore safety snapshot must not collide with the snapshot
	// being restored.
	m, _, dbPath := newTestManager(t)
	m.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	}
	ctx := context.Background()

	id, err := m.Create(ctx, "manual", "", 0, "good state")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := os.WriteFile(dbPath, []byte("bad edit"), 0o644); err != nil {
		t.Fatalf("overwriting database: %v", err)
	}

	if err := m.Restore(ctx, id); err != nil {
		t.Fatalf("restore in the same second: %v", err)
	}

	content, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("reading restored database: %v", err)
	}
	if string(content) != "v1" {
		t.Errorf("restored content = %q, want v1", content)
	}
	records, err := m.List(ctx, "pre_restore", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("pre_restore records = %d, want 1", len(records))
	}
}

func TestRestoreUnknownSnapshot(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.Restore(context.Background(), "snapshot_19990101_000000")
	if !errors.Is(err, store.ErrSnapshotNotFound) {
		t.Errorf("error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestRestoreIntegrityFailure(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "manual", "", 0, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	db.countErr = fmt.Errorf("file is not a database")
	err = m.Restore(ctx, id)
	if err == nil {
		t.Fatal("expected integrity failure")
	}
	var ie *store.IntegrityError
	if !errors.As(err, &ie) {
		t.Errorf("error %v is not an IntegrityError", err)
	}
}

func TestCleanup(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := m.Create(ctx, "manual", "", 0, "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, id)
	}

	deleted, err := m.Cleanup(ctx, 2)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	records, err := m.List(ctx, "", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("remaining records = %d, want 2", len(records))
	}
	// Newest two survive.
	if records[0].SnapshotID != ids[3] || records[1].SnapshotID != ids[2] {
		t.Errorf("kept %q and %q, want %q and %q",
			records[0].SnapshotID, records[1].SnapshotID, ids[3], ids[2])
	}

	// Oldest files are gone from disk.
	for _, id := range ids[:2] {
		if _, err := m.find(id); !errors.Is(err, store.ErrSnapshotNotFound) {
			t.Errorf("find(%q) = %v, want ErrSnapshotNotFound", id, err)
		}
	}
}

func TestCleanupNegativeKeep(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Cleanup(context.Background(), -1); err == nil {
		t.Error("expected error for negative keep")
	}
}

func TestRoundTripWithSQLiteStore(t *testing.T) {
	// Full cycle against the real file-backed store: checkpoint, copy,
	// mutate, close/swap/reset, integrity check.
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lnrs.db")
	ctx := context.Background()

	c, err := sqlite.New(ctx, "sqlite://"+dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer c.Close(ctx)
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	for i, name := range []string{"Woodland", "Wetland"} {
		if _, err := c.Execute(ctx,
			"INSERT INTO habitat (habitat_id, habitat) VALUES (?, ?)", i+1, name); err != nil {
			t.Fatalf("seeding habitat: %v", err)
		}
	}

	m, err := NewManager(c, Options{
		Enabled: true,
		Dir:     filepath.Join(dir, "backups"),
		DBPath:  c.Path(),
	})
	if err != nil {
		t.Fatalf("building manager: %v", err)
	}

	id, err := m.Create(ctx, "manual", "", 0, "two habitats")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Mutate past the snapshot, then restore straight away.
	if _, err := c.Execute(ctx, "DELETE FROM habitat WHERE habitat_id = ?", 1); err != nil {
		t.Fatalf("deleting habitat: %v", err)
	}
	if _, err := c.Execute(ctx,
		"INSERT INTO habitat (habitat_id, habitat) VALUES (?, ?)", 3, "Heathland"); err != nil {
		t.Fatalf("inserting habitat: %v", err)
	}
	if err := m.Restore(ctx, id); err != nil {
		t.Fatalf("restore: %v", err)
	}

	n, err := c.Count(ctx, "habitat", "")
	if err != nil {
		t.Fatalf("count after restore: %v", err)
	}
	if n != 2 {
		t.Errorf("habitat rows after restore = %d, want 2", n)
	}
	row, err := c.QueryRow(ctx, "SELECT habitat FROM habitat WHERE habitat_id = ?", 1)
	if err != nil {
		t.Fatalf("query after restore: %v", err)
	}
	if row == nil || row["habitat"] != "Woodland" {
		t.Errorf("habitat 1 after restore = %v, want Woodland", row)
	}

	records, err := m.List(ctx, "pre_restore", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("pre_restore records = %d, want 1", len(records))
	}
}
