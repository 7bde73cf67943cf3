package mcp

import (
	"context"
	"errors"
	"testing"

	"lnrsadmin/internal/snapshot"
	"lnrsadmin/internal/store"
	"lnrsadmin/internal/store/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	c, err := sqlite.New(context.Background(), "sqlite://:memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	if err := c.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	snaps, err := snapshot.NewManager(c, snapshot.Options{Enabled: false})
	if err != nil {
		t.Fatalf("building snapshot manager: %v", err)
	}
	return NewServer(c, snaps, nil, "test")
}

func TestHandleCreateAndGetEntity(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, created, err := s.handleCreateEntity(ctx, nil, CreateEntityInput{
		EntityType: "habitat",
		Fields:     map[string]any{"habitat": "Woodland"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 1 {
		t.Errorf("created id = %d, want 1", created.ID)
	}

	_, got, err := s.handleGetEntity(ctx, nil, GetEntityInput{EntityType: "habitat", ID: created.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Entity["habitat"] != "Woodland" {
		t.Errorf("habitat = %v, want Woodland", got.Entity["habitat"])
	}

	_, _, err = s.handleGetEntity(ctx, nil, GetEntityInput{EntityType: "habitat", ID: 99})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing id error = %v, want ErrNotFound", err)
	}
}

func TestHandleCreateEntityRequiresFields(t *testing.T) {
	s := newTestServer(t)
	if _, _, err := s.handleCreateEntity(context.Background(), nil, CreateEntityInput{
		EntityType: "habitat",
	}); err == nil {
		t.Fatal("expected error with no fields")
	}
}

func TestHandleDeleteEntity(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, created, err := s.handleCreateEntity(ctx, nil, CreateEntityInput{
		EntityType: "species",
		Fields:     map[string]any{"common_name": "Dormouse"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, out, err := s.handleDeleteEntity(ctx, nil, DeleteEntityInput{
		EntityType: "species",
		ID:         created.ID,
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Snapshots are disabled in this server, so no id is reported.
	if out.SnapshotID != "" {
		t.Errorf("snapshot id = %q, want empty", out.SnapshotID)
	}
	if out.Result.RowsRemoved["species"] != 1 {
		t.Errorf("rows removed = %v", out.Result.RowsRemoved)
	}
}

func TestHandleCreateLinkDuplicate(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for _, in := range []CreateEntityInput{
		{EntityType: "measure", Fields: map[string]any{"measure": "Plant hedgerows"}},
		{EntityType: "species", Fields: map[string]any{"common_name": "Dormouse"}},
	} {
		if _, _, err := s.handleCreateEntity(ctx, nil, in); err != nil {
			t.Fatalf("create %s: %v", in.EntityType, err)
		}
	}

	input := CreateLinkInput{
		Relation: "measure_has_species",
		Key:      map[string]int64{"measure_id": 1, "species_id": 1},
	}
	if _, _, err := s.handleCreateLink(ctx, nil, input); err != nil {
		t.Fatalf("create link: %v", err)
	}
	_, _, err := s.handleCreateLink(ctx, nil, input)
	if !errors.Is(err, store.ErrDuplicateLink) {
		t.Errorf("duplicate error = %v, want ErrDuplicateLink", err)
	}
}

func TestHandleReplaceLinksExclusiveInputs(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleReplaceLinks(context.Background(), nil, ReplaceLinksInput{
		Relation: "measure_has_species",
		Owner:    "measure",
		OwnerID:  1,
		ChildIDs: []int64{1},
		Values:   []string{"x"},
	})
	if err == nil {
		t.Fatal("expected error for both child_ids and values")
	}
}

func TestLinkKey(t *testing.T) {
	key := linkKey("area_funding_schemes", map[string]int64{"area_id": 3}, "CS")
	if key["area_id"] != int64(3) {
		t.Errorf("area_id = %v, want 3", key["area_id"])
	}
	if key["funding_scheme"] != "CS" {
		t.Errorf("funding_scheme = %v, want CS", key["funding_scheme"])
	}

	key = linkKey("measure_has_species", map[string]int64{"measure_id": 1, "species_id": 2}, "")
	if len(key) != 2 {
		t.Errorf("key = %v, want two id columns", key)
	}
}
