package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"lnrsadmin/internal/cascade"
	"lnrsadmin/internal/entity"
	"lnrsadmin/internal/links"
	"lnrsadmin/internal/schema"
	"lnrsadmin/internal/snapshot"
)

type GetEntityInput struct {
	EntityType string `json:"entity_type" jsonschema:"measure, area, priority, species, habitat, or grant"`
	ID         int64  `json:"id" jsonschema:"entity id"`
}

type ListEntitiesInput struct {
	EntityType string `json:"entity_type" jsonschema:"measure, area, priority, species, habitat, or grant"`
	OrderBy    string `json:"order_by,omitempty" jsonschema:"column to sort by"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum rows to return"`
	Offset     int    `json:"offset,omitempty" jsonschema:"rows to skip"`
}

type CreateEntityInput struct {
	EntityType string         `json:"entity_type" jsonschema:"entity type to create"`
	Fields     map[string]any `json:"fields" jsonschema:"column values; id assigned automatically when omitted"`
}

type UpdateEntityInput struct {
	EntityType string             `json:"entity_type" jsonschema:"entity type to update"`
	ID         int64              `json:"id" jsonschema:"entity id"`
	Fields     map[string]any     `json:"fields,omitempty" jsonschema:"column values to overwrite"`
	Links      map[string][]int64 `json:"links,omitempty" jsonschema:"relation name to replacement child ids; empty list clears the relation"`
}

type DeleteEntityInput struct {
	EntityType string `json:"entity_type" jsonschema:"entity type to delete"`
	ID         int64  `json:"id" jsonschema:"entity id"`
}

type DeleteImpactInput struct {
	EntityType string `json:"entity_type" jsonschema:"entity type to inspect"`
	ID         int64  `json:"id" jsonschema:"entity id"`
}

type CreateLinkInput struct {
	Relation string           `json:"relation" jsonschema:"relation table name"`
	Key      map[string]int64 `json:"key" jsonschema:"column name to id for every id column of the relation"`
	Value    string           `json:"value,omitempty" jsonschema:"value for the relation's value column, when it has one"`
}

type DeleteLinkInput struct {
	Relation string           `json:"relation" jsonschema:"relation table name"`
	Key      map[string]int64 `json:"key" jsonschema:"column name to id for every id column of the relation"`
	Value    string           `json:"value,omitempty" jsonschema:"value for the relation's value column, when it has one"`
}

type ReplaceLinksInput struct {
	Relation string   `json:"relation" jsonschema:"relation table name"`
	Owner    string   `json:"owner" jsonschema:"entity type owning the links"`
	OwnerID  int64    `json:"owner_id" jsonschema:"owning entity id"`
	ChildIDs []int64  `json:"child_ids,omitempty" jsonschema:"replacement child ids for an id-keyed relation"`
	Values   []string `json:"values,omitempty" jsonschema:"replacement values for a value-keyed relation"`
}

type BulkLinkInput struct {
	Relation string    `json:"relation" jsonschema:"relation table name"`
	IDLists  [][]int64 `json:"id_lists" jsonschema:"one id list per relation column in declared order; the cross product is linked"`
}

type UnfundedLinksInput struct{}

type LinkCountsInput struct{}

type CreateSnapshotInput struct {
	Description string `json:"description,omitempty" jsonschema:"free-form note stored in the journal"`
}

type ListSnapshotsInput struct {
	OperationType string `json:"operation_type,omitempty" jsonschema:"filter by operation type"`
	EntityType    string `json:"entity_type,omitempty" jsonschema:"filter by entity type"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum entries to return"`
}

type RestoreSnapshotInput struct {
	SnapshotID string `json:"snapshot_id" jsonschema:"snapshot to restore"`
}

type CleanupSnapshotsInput struct {
	Keep int `json:"keep" jsonschema:"how many newest snapshots to retain"`
}

type EntityOutput struct {
	Entity map[string]any `json:"entity"`
}

type ListEntitiesOutput struct {
	Entities []map[string]any `json:"entities"`
	Total    int64            `json:"total"`
}

type CreateEntityOutput struct {
	ID int64 `json:"id"`
}

type UpdateEntityOutput struct {
	Updated bool `json:"updated"`
}

type DeleteEntityOutput struct {
	Result     *cascade.Result `json:"result"`
	SnapshotID string          `json:"snapshot_id,omitempty"`
}

type LinkChangeOutput struct {
	RowsRemoved map[string]int64 `json:"rows_removed,omitempty"`
	Done        bool             `json:"done"`
}

type UnfundedLinksOutput struct {
	Associations []map[string]any `json:"associations"`
}

type LinkCountsOutput struct {
	Counts map[string]int64 `json:"counts"`
}

type SnapshotOutput struct {
	SnapshotID string `json:"snapshot_id"`
	Enabled    bool   `json:"enabled"`
}

type ListSnapshotsOutput struct {
	Snapshots []snapshot.Record `json:"snapshots"`
}

type RestoreSnapshotOutput struct {
	Restored bool `json:"restored"`
}

type CleanupSnapshotsOutput struct {
	Deleted int `json:"deleted"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_entity",
		Description: "Retrieve one entity row by type and id",
	}, s.handleGetEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_entities",
		Description: "List entity rows with optional ordering and paging",
	}, s.handleListEntities)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "create_entity",
		Description: "Insert a new entity row",
	}, s.handleCreateEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "update_entity",
		Description: "Overwrite entity columns and optionally replace its links, atomically",
	}, s.handleUpdateEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "delete_entity",
		Description: "Delete an entity and every relation row referencing it",
	}, s.handleDeleteEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "delete_impact",
		Description: "Preview what a delete would remove, without removing anything",
	}, s.handleDeleteImpact)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "create_link",
		Description: "Create one relation row between entities",
	}, s.handleCreateLink)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "delete_link",
		Description: "Delete one relation row, dependent rows first",
	}, s.handleDeleteLink)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "replace_links",
		Description: "Replace every link of one entity in a relation",
	}, s.handleReplaceLinks)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "bulk_link",
		Description: "Create the cross product of id lists as relation rows, skipping existing ones",
	}, s.handleBulkLink)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "unfunded_links",
		Description: "List measure/area/priority associations with no grant",
	}, s.handleUnfundedLinks)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "link_counts",
		Description: "Row counts for every relation table",
	}, s.handleLinkCounts)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "create_snapshot",
		Description: "Take a manual snapshot of the database file",
	}, s.handleCreateSnapshot)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_snapshots",
		Description: "List recorded snapshots, newest first",
	}, s.handleListSnapshots)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "restore_snapshot",
		Description: "Restore the database from a snapshot, taking a safety snapshot first",
	}, s.handleRestoreSnapshot)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "cleanup_snapshots",
		Description: "Remove all but the newest snapshots",
	}, s.handleCleanupSnapshots)
}

func (s *Server) handleGetEntity(ctx context.Context, req *sdk.CallToolRequest, input GetEntityInput) (*sdk.CallToolResult, EntityOutput, error) {
	repo, err := entity.NewRepository(s.db, input.EntityType)
	if err != nil {
		return nil, EntityOutput{}, err
	}
	row, err := repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, EntityOutput{}, err
	}
	return nil, EntityOutput{Entity: row}, nil
}

func (s *Server) handleListEntities(ctx context.Context, req *sdk.CallToolRequest, input ListEntitiesInput) (*sdk.CallToolResult, ListEntitiesOutput, error) {
	repo, err := entity.NewRepository(s.db, input.EntityType)
	if err != nil {
		return nil, ListEntitiesOutput{}, err
	}
	rows, err := repo.GetAll(ctx, entity.ListOptions{
		OrderBy: input.OrderBy,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return nil, ListEntitiesOutput{}, err
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return nil, ListEntitiesOutput{}, err
	}
	return nil, ListEntitiesOutput{Entities: rows, Total: total}, nil
}

func (s *Server) handleCreateEntity(ctx context.Context, req *sdk.CallToolRequest, input CreateEntityInput) (*sdk.CallToolResult, CreateEntityOutput, error) {
	if len(input.Fields) == 0 {
		return nil, CreateEntityOutput{}, fmt.Errorf("fields are required")
	}
	repo, err := entity.NewRepository(s.db, input.EntityType)
	if err != nil {
		return nil, CreateEntityOutput{}, err
	}
	id, err := repo.Create(ctx, input.Fields)
	if err != nil {
		return nil, CreateEntityOutput{}, err
	}
	return nil, CreateEntityOutput{ID: id}, nil
}

func (s *Server) handleUpdateEntity(ctx context.Context, req *sdk.CallToolRequest, input UpdateEntityInput) (*sdk.CallToolResult, UpdateEntityOutput, error) {
	if len(input.Fields) == 0 && len(input.Links) == 0 {
		return nil, UpdateEntityOutput{}, fmt.Errorf("fields or links are required")
	}
	repo, err := entity.NewRepository(s.db, input.EntityType)
	if err != nil {
		return nil, UpdateEntityOutput{}, err
	}
	if len(input.Links) > 0 {
		err = repo.UpdateWithLinks(ctx, input.ID, input.Fields, input.Links)
	} else {
		err = repo.Update(ctx, input.ID, input.Fields)
	}
	if err != nil {
		return nil, UpdateEntityOutput{}, err
	}
	return nil, UpdateEntityOutput{Updated: true}, nil
}

func (s *Server) handleDeleteEntity(ctx context.Context, req *sdk.CallToolRequest, input DeleteEntityInput) (*sdk.CallToolResult, DeleteEntityOutput, error) {
	snapID, err := s.snaps.Create(ctx, "pre_delete", input.EntityType, input.ID,
		fmt.Sprintf("before deleting %s %d", input.EntityType, input.ID))
	if err != nil {
		return nil, DeleteEntityOutput{}, fmt.Errorf("taking pre-delete snapshot: %w", err)
	}
	result, err := s.casc.Delete(ctx, input.EntityType, input.ID)
	if err != nil {
		return nil, DeleteEntityOutput{}, err
	}
	return nil, DeleteEntityOutput{Result: result, SnapshotID: snapID}, nil
}

func (s *Server) handleDeleteImpact(ctx context.Context, req *sdk.CallToolRequest, input DeleteImpactInput) (*sdk.CallToolResult, *cascade.Impact, error) {
	impact, err := s.casc.Impact(ctx, input.EntityType, input.ID)
	if err != nil {
		return nil, nil, err
	}
	return nil, impact, nil
}

func (s *Server) handleCreateLink(ctx context.Context, req *sdk.CallToolRequest, input CreateLinkInput) (*sdk.CallToolResult, LinkChangeOutput, error) {
	key := linkKey(input.Relation, input.Key, input.Value)
	if err := s.links.Create(ctx, input.Relation, key); err != nil {
		return nil, LinkChangeOutput{}, err
	}
	return nil, LinkChangeOutput{Done: true}, nil
}

func (s *Server) handleDeleteLink(ctx context.Context, req *sdk.CallToolRequest, input DeleteLinkInput) (*sdk.CallToolResult, LinkChangeOutput, error) {
	key := linkKey(input.Relation, input.Key, input.Value)
	removed, err := s.links.Delete(ctx, input.Relation, key)
	if err != nil {
		return nil, LinkChangeOutput{}, err
	}
	return nil, LinkChangeOutput{RowsRemoved: removed, Done: true}, nil
}

func (s *Server) handleReplaceLinks(ctx context.Context, req *sdk.CallToolRequest, input ReplaceLinksInput) (*sdk.CallToolResult, LinkChangeOutput, error) {
	if input.ChildIDs != nil && input.Values != nil {
		return nil, LinkChangeOutput{}, fmt.Errorf("child_ids and values are mutually exclusive")
	}
	var err error
	switch {
	case input.Values != nil:
		err = s.links.ReplaceValues(ctx, input.Relation, input.Owner, input.OwnerID, input.Values)
	case input.ChildIDs != nil:
		err = s.links.Replace(ctx, input.Relation, input.Owner, input.OwnerID, input.ChildIDs)
	default:
		err = fmt.Errorf("child_ids or values are required; pass an empty list to clear the relation")
	}
	if err != nil {
		return nil, LinkChangeOutput{}, err
	}
	return nil, LinkChangeOutput{Done: true}, nil
}

func (s *Server) handleBulkLink(ctx context.Context, req *sdk.CallToolRequest, input BulkLinkInput) (*sdk.CallToolResult, *links.BulkResult, error) {
	result, err := s.links.BulkCreate(ctx, input.Relation, input.IDLists)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

func (s *Server) handleUnfundedLinks(ctx context.Context, req *sdk.CallToolRequest, input UnfundedLinksInput) (*sdk.CallToolResult, UnfundedLinksOutput, error) {
	rows, err := s.links.Unfunded(ctx)
	if err != nil {
		return nil, UnfundedLinksOutput{}, err
	}
	return nil, UnfundedLinksOutput{Associations: rows}, nil
}

func (s *Server) handleLinkCounts(ctx context.Context, req *sdk.CallToolRequest, input LinkCountsInput) (*sdk.CallToolResult, LinkCountsOutput, error) {
	counts, err := s.links.Counts(ctx)
	if err != nil {
		return nil, LinkCountsOutput{}, err
	}
	return nil, LinkCountsOutput{Counts: counts}, nil
}

func (s *Server) handleCreateSnapshot(ctx context.Context, req *sdk.CallToolRequest, input CreateSnapshotInput) (*sdk.CallToolResult, SnapshotOutput, error) {
	if !s.snaps.Enabled() {
		return nil, SnapshotOutput{Enabled: false}, nil
	}
	id, err := s.snaps.Create(ctx, "manual", "", 0, input.Description)
	if err != nil {
		return nil, SnapshotOutput{}, err
	}
	return nil, SnapshotOutput{SnapshotID: id, Enabled: true}, nil
}

func (s *Server) handleListSnapshots(ctx context.Context, req *sdk.CallToolRequest, input ListSnapshotsInput) (*sdk.CallToolResult, ListSnapshotsOutput, error) {
	records, err := s.snaps.List(ctx, input.OperationType, input.EntityType, input.Limit)
	if err != nil {
		return nil, ListSnapshotsOutput{}, err
	}
	return nil, ListSnapshotsOutput{Snapshots: records}, nil
}

func (s *Server) handleRestoreSnapshot(ctx context.Context, req *sdk.CallToolRequest, input RestoreSnapshotInput) (*sdk.CallToolResult, RestoreSnapshotOutput, error) {
	if input.SnapshotID == "" {
		return nil, RestoreSnapshotOutput{}, fmt.Errorf("snapshot_id is required")
	}
	if err := s.snaps.Restore(ctx, input.SnapshotID); err != nil {
		return nil, RestoreSnapshotOutput{}, err
	}
	return nil, RestoreSnapshotOutput{Restored: true}, nil
}

func (s *Server) handleCleanupSnapshots(ctx context.Context, req *sdk.CallToolRequest, input CleanupSnapshotsInput) (*sdk.CallToolResult, CleanupSnapshotsOutput, error) {
	if input.Keep < 1 {
		return nil, CleanupSnapshotsOutput{}, fmt.Errorf("keep must be at least 1")
	}
	deleted, err := s.snaps.Cleanup(ctx, input.Keep)
	if err != nil {
		return nil, CleanupSnapshotsOutput{}, err
	}
	return nil, CleanupSnapshotsOutput{Deleted: deleted}, nil
}

// linkKey merges id columns and the optional value column into the key shape
// the link manager takes.
func linkKey(relation string, ids map[string]int64, value string) map[string]any {
	key := make(map[string]any, len(ids)+1)
	for col, id := range ids {
		key[col] = id
	}
	if value != "" {
		if rel, ok := schema.RelationByName(relation); ok && rel.ValueColumn != "" {
			key[rel.ValueColumn] = value
		}
	}
	return key
}
