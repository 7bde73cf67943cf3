// Package links manages rows in the relation tables: the bridge tables
// associating entities with each other and the simple child tables hanging
// off a single entity.
//
// A link is addressed by a full column tuple. Creating a duplicate is an
// error, not a no-op, and deleting a link that other rows depend on first
// removes the dependents in separately committed steps, mirroring the
// cascade executor's handling of immediate constraint checking.
package links

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lnrsadmin/internal/schema"
	"lnrsadmin/internal/store"
)

// Manager performs link operations against a store handle.
type Manager struct {
	h   store.Handle
	log *slog.Logger
}

// NewManager returns a manager over the given handle.
func NewManager(h store.Handle, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{h: h, log: log}
}

// Exists reports whether the full tuple is present in the relation.
func (m *Manager) Exists(ctx context.Context, relation string, key map[string]any) (bool, error) {
	rel, err := resolve(relation, key)
	if err != nil {
		return false, err
	}
	where, args := tupleWhere(rel, key)
	n, err := m.h.Count(ctx, rel.Name, where, args...)
	if err != nil {
		return false, fmt.Errorf("checking %s link: %w", rel.Name, err)
	}
	return n > 0, nil
}

// Create inserts one link row. An existing identical tuple yields
// store.ErrDuplicateLink; a tuple referencing a missing entity surfaces as a
// constraint error from the store.
func (m *Manager) Create(ctx context.Context, relation string, key map[string]any) error {
	rel, err := resolve(relation, key)
	if err != nil {
		return err
	}

	exists, err := m.Exists(ctx, rel.Name, key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s %s: %w", rel.Name, tupleString(rel, key), store.ErrDuplicateLink)
	}

	query, args := insertStatement(rel, key)
	if _, err := m.h.Execute(ctx, query, args...); err != nil {
		return fmt.Errorf("creating %s link: %w", rel.Name, err)
	}
	return nil
}

// Delete removes one link row, returning rows removed per relation. When
// other relations carry a foreign key onto this one, their matching rows are
// removed first in separately committed statements; the store rejects any
// other order.
func (m *Manager) Delete(ctx context.Context, relation string, key map[string]any) (map[string]int64, error) {
	rel, err := resolve(relation, key)
	if err != nil {
		return nil, err
	}

	// Verify the tuple before the first destructive step; dependent rows are
	// committed independently and must not vanish for a key that matches
	// nothing.
	exists, err := m.Exists(ctx, rel.Name, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s %s: %w", rel.Name, tupleString(rel, key), store.ErrNotFound)
	}

	removed := make(map[string]int64)
	for _, dep := range schema.Dependents(rel.Name) {
		where, args := tupleWhere(rel, key)
		n, err := m.h.Execute(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE %s", dep.Name, where), args...)
		if err != nil {
			return removed, fmt.Errorf("removing dependent %s rows: %w", dep.Name, err)
		}
		if n > 0 {
			m.log.Debug("dependent link rows removed",
				"relation", dep.Name, "parent", rel.Name, "rows", n)
		}
		removed[dep.Name] = n
	}

	where, args := tupleWhere(rel, key)
	n, err := m.h.Execute(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s", rel.Name, where), args...)
	if err != nil {
		return removed, fmt.Errorf("deleting %s link: %w", rel.Name, err)
	}
	if n == 0 {
		return removed, fmt.Errorf("%s %s: %w", rel.Name, tupleString(rel, key), store.ErrNotFound)
	}
	removed[rel.Name] = n
	return removed, nil
}

// Replace swaps every link of one entity in an id-keyed pair relation for
// the given child ids, atomically. An empty slice clears the relation for
// the entity; passing no change at all is the caller's job (a nil slice
// should not reach here).
func (m *Manager) Replace(ctx context.Context, relation, owner string, ownerID int64, childIDs []int64) error {
	rel, ok := schema.RelationByName(relation)
	if !ok {
		return fmt.Errorf("unknown relation %q", relation)
	}
	ownCol, ok := rel.EntityKeys[owner]
	if !ok {
		return fmt.Errorf("relation %s does not reference %s", rel.Name, owner)
	}
	if rel.ValueColumn != "" || len(rel.Columns) != 2 {
		return fmt.Errorf("relation %s is not a simple id-keyed pair", rel.Name)
	}
	var childCol string
	for _, col := range rel.Columns {
		if col != ownCol {
			childCol = col
		}
	}

	stmts := []store.Statement{{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s = ?", rel.Name, ownCol),
		Args: []any{ownerID},
	}}
	for _, id := range childIDs {
		stmts = append(stmts, store.Statement{
			SQL:  fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", rel.Name, ownCol, childCol),
			Args: []any{ownerID, id},
		})
	}
	if err := m.h.ExecuteTx(ctx, stmts); err != nil {
		return fmt.Errorf("replacing %s links for %s %d: %w", rel.Name, owner, ownerID, err)
	}
	return nil
}

// ReplaceValues swaps every row of one entity in a value-keyed relation for
// the given values, atomically. Duplicate values in the input are rejected
// up front rather than left to the primary key.
func (m *Manager) ReplaceValues(ctx context.Context, relation, owner string, ownerID int64, values []string) error {
	rel, ok := schema.RelationByName(relation)
	if !ok {
		return fmt.Errorf("unknown relation %q", relation)
	}
	if rel.ValueColumn == "" {
		return fmt.Errorf("relation %s is not value-keyed", rel.Name)
	}
	ownCol, ok := rel.EntityKeys[owner]
	if !ok {
		return fmt.Errorf("relation %s does not reference %s", rel.Name, owner)
	}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return fmt.Errorf("replacing %s values for %s %d: duplicate value %q", rel.Name, owner, ownerID, v)
		}
		seen[v] = true
	}

	stmts := []store.Statement{{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s = ?", rel.Name, ownCol),
		Args: []any{ownerID},
	}}
	for _, v := range values {
		stmts = append(stmts, store.Statement{
			SQL:  fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", rel.Name, ownCol, rel.ValueColumn),
			Args: []any{ownerID, v},
		})
	}
	if err := m.h.ExecuteTx(ctx, stmts); err != nil {
		return fmt.Errorf("replacing %s values for %s %d: %w", rel.Name, owner, ownerID, err)
	}
	return nil
}

// BulkResult reports a bulk link creation: tuples inserted and tuples
// skipped because they already existed.
type BulkResult struct {
	Created int      `json:"created"`
	Skipped []string `json:"skipped,omitempty"`
}

// BulkCreate inserts the cross product of the given id lists, one list per
// relation column in declared order. Tuples already present are skipped and
// reported; the inserts themselves apply in one transaction, so a rejected
// tuple leaves nothing behind.
func (m *Manager) BulkCreate(ctx context.Context, relation string, lists [][]int64) (*BulkResult, error) {
	rel, ok := schema.RelationByName(relation)
	if !ok {
		return nil, fmt.Errorf("unknown relation %q", relation)
	}
	if rel.ValueColumn != "" {
		return nil, fmt.Errorf("relation %s is not id-keyed", rel.Name)
	}
	if len(lists) != len(rel.Columns) {
		return nil, fmt.Errorf("bulk create on %s: got %d id lists, relation has %d columns",
			rel.Name, len(lists), len(rel.Columns))
	}
	for i, list := range lists {
		if len(list) == 0 {
			return nil, fmt.Errorf("bulk create on %s: empty id list for %s", rel.Name, rel.Columns[i])
		}
	}

	res := &BulkResult{}
	var stmts []store.Statement
	for _, tuple := range crossProduct(lists) {
		key := make(map[string]any, len(rel.Columns))
		for i, col := range rel.Columns {
			key[col] = tuple[i]
		}
		exists, err := m.Exists(ctx, rel.Name, key)
		if err != nil {
			return nil, err
		}
		if exists {
			res.Skipped = append(res.Skipped, tupleString(rel, key))
			continue
		}
		query, args := insertStatement(rel, key)
		stmts = append(stmts, store.Statement{SQL: query, Args: args})
	}

	if len(stmts) > 0 {
		if err := m.h.ExecuteTx(ctx, stmts); err != nil {
			return nil, fmt.Errorf("bulk creating %s links: %w", rel.Name, err)
		}
	}
	res.Created = len(stmts)
	m.log.Info("bulk link creation",
		"relation", rel.Name, "created", res.Created, "skipped", len(res.Skipped))
	return res, nil
}

// Counts returns the row count of every relation table.
func (m *Manager) Counts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, rel := range schema.Relations() {
		n, err := m.h.Count(ctx, rel.Name, "")
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", rel.Name, err)
		}
		out[rel.Name] = n
	}
	return out, nil
}

// Unfunded lists measure/area/priority associations that no grant row
// covers.
func (m *Manager) Unfunded(ctx context.Context) ([]map[string]any, error) {
	rows, err := m.h.Query(ctx, `
		SELECT map.measure_id, map.area_id, map.priority_id
		FROM measure_area_priority AS map
		LEFT JOIN measure_area_priority_grant AS mapg
			ON map.measure_id = mapg.measure_id
			AND map.area_id = mapg.area_id
			AND map.priority_id = mapg.priority_id
		WHERE mapg.grant_id IS NULL
		ORDER BY map.measure_id, map.area_id, map.priority_id`)
	if err != nil {
		return nil, fmt.Errorf("listing unfunded associations: %w", err)
	}
	return rows, nil
}

// resolve looks up the relation and checks the key covers exactly its
// columns.
func resolve(relation string, key map[string]any) (schema.Relation, error) {
	rel, ok := schema.RelationByName(relation)
	if !ok {
		return schema.Relation{}, fmt.Errorf("unknown relation %q", relation)
	}
	if len(key) != len(rel.Columns) {
		return schema.Relation{}, fmt.Errorf("relation %s takes %d key columns, got %d",
			rel.Name, len(rel.Columns), len(key))
	}
	for _, col := range rel.Columns {
		if _, ok := key[col]; !ok {
			return schema.Relation{}, fmt.Errorf("relation %s key is missing %s", rel.Name, col)
		}
	}
	return rel, nil
}

// tupleWhere builds an equality predicate over the key columns the relation
// and key share, in declared column order.
func tupleWhere(rel schema.Relation, key map[string]any) (string, []any) {
	var preds []string
	var args []any
	for _, col := range rel.Columns {
		if v, ok := key[col]; ok {
			preds = append(preds, col+" = ?")
			args = append(args, v)
		}
	}
	return strings.Join(preds, " AND "), args
}

func insertStatement(rel schema.Relation, key map[string]any) (string, []any) {
	args := make([]any, len(rel.Columns))
	for i, col := range rel.Columns {
		args[i] = key[col]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(rel.Columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		rel.Name, strings.Join(rel.Columns, ", "), placeholders), args
}

func tupleString(rel schema.Relation, key map[string]any) string {
	parts := make([]string, len(rel.Columns))
	for i, col := range rel.Columns {
		parts[i] = fmt.Sprintf("%s=%v", col, key[col])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// crossProduct expands the id lists into every combination, preserving list
// order.
func crossProduct(lists [][]int64) [][]int64 {
	tuples := [][]int64{{}}
	for _, list := range lists {
		next := make([][]int64, 0, len(tuples)*len(list))
		for _, t := range tuples {
			for _, id := range list {
				tuple := make([]int64, len(t), len(t)+1)
				copy(tuple, t)
				next = append(next, append(tuple, id))
			}
		}
		tuples = next
	}
	return tuples
}
