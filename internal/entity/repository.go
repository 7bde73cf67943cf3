// Package entity implements generic CRUD over the managed entity tables.
// One repository serves every entity type; per-table behavior comes from the
// schema declarations, not from per-entity code.
package entity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"lnrsadmin/internal/schema"
	"lnrsadmin/internal/store"
)

// ListOptions narrows and orders a GetAll call. Zero value means all rows in
// id order.
type ListOptions struct {
	Where   string // WHERE clause without the keyword, `?` placeholders
	Args    []any
	OrderBy string
	Limit   int
	Offset  int
}

// Repository performs create/read/update/delete against a single entity
// table. It never removes relation rows; that is the cascade executor's job.
type Repository struct {
	h store.Handle
	e schema.Entity
}

// NewRepository returns a repository for the named entity type.
func NewRepository(h store.Handle, entityType string) (*Repository, error) {
	e, ok := schema.EntityByName(entityType)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
	return &Repository{h: h, e: e}, nil
}

// Entity returns the schema declaration this repository operates on.
func (r *Repository) Entity() schema.Entity { return r.e }

// GetByID fetches one row by primary key. A missing id yields
// store.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (map[string]any, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", r.e.Table, r.e.IDColumn)
	row, err := r.h.QueryRow(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %d: %w", r.e.Name, id, err)
	}
	if row == nil {
		return nil, fmt.Errorf("%s %d: %w", r.e.Name, id, store.ErrNotFound)
	}
	return row, nil
}

// GetAll lists rows, optionally filtered and paged.
func (r *Repository) GetAll(ctx context.Context, opts ListOptions) ([]map[string]any, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s", r.e.Table)
	if opts.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", opts.Where)
	}
	if opts.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", opts.OrderBy)
	} else {
		fmt.Fprintf(&b, " ORDER BY %s", r.e.IDColumn)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", opts.Offset)
	}

	rows, err := r.h.Query(ctx, b.String(), opts.Args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.e.Name, err)
	}
	return rows, nil
}

// Exists reports whether the id is present.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := r.h.Count(ctx, r.e.Table, r.e.IDColumn+" = ?", id)
	if err != nil {
		return false, fmt.Errorf("checking %s %d: %w", r.e.Name, id, err)
	}
	return n > 0, nil
}

// Count returns the number of rows in the entity table.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.h.Count(ctx, r.e.Table, "")
}

// Create inserts a row and returns its id. Unknown field names are rejected.
// When the id column is absent from fields the next free id is assigned.
func (r *Repository) Create(ctx context.Context, fields map[string]any) (int64, error) {
	if err := r.checkColumns(fields); err != nil {
		return 0, err
	}

	id, explicit, err := fieldID(fields, r.e.IDColumn)
	if err != nil {
		return 0, err
	}
	if !explicit {
		id, err = r.nextID(ctx)
		if err != nil {
			return 0, err
		}
	}

	cols := []string{r.e.IDColumn}
	args := []any{id}
	for _, c := range r.e.Columns {
		if v, ok := fields[c]; ok {
			cols = append(cols, c)
			args = append(args, v)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.e.Table, strings.Join(cols, ", "), placeholders)
	if _, err := r.h.Execute(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("creating %s: %w", r.e.Name, err)
	}
	return id, nil
}

// Update overwrites the given columns on one row. The id column itself cannot
// be updated. A missing id yields store.ErrNotFound.
func (r *Repository) Update(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("updating %s %d: no fields given", r.e.Name, id)
	}
	if _, ok := fields[r.e.IDColumn]; ok {
		return fmt.Errorf("updating %s %d: %s cannot be changed", r.e.Name, id, r.e.IDColumn)
	}
	if err := r.checkColumns(fields); err != nil {
		return err
	}

	query, args := r.updateStatement(id, fields)
	n, err := r.h.Execute(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %d: %w", r.e.Name, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", r.e.Name, id, store.ErrNotFound)
	}
	return nil
}

// UpdateWithLinks atomically overwrites entity columns and replaces link
// rows in the named relations. For each relation in linkSets every existing
// row for this entity is removed and one row per given child id inserted; an
// empty non-nil slice clears the relation. All of it applies in a single
// transaction, so a rejected child id leaves both the row and the links
// untouched.
func (r *Repository) UpdateWithLinks(ctx context.Context, id int64, fields map[string]any, linkSets map[string][]int64) error {
	if err := r.checkColumns(fields); err != nil {
		return err
	}
	if _, ok := fields[r.e.IDColumn]; ok {
		return fmt.Errorf("updating %s %d: %s cannot be changed", r.e.Name, id, r.e.IDColumn)
	}

	ok, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %d: %w", r.e.Name, id, store.ErrNotFound)
	}

	var stmts []store.Statement
	if len(fields) > 0 {
		query, args := r.updateStatement(id, fields)
		stmts = append(stmts, store.Statement{SQL: query, Args: args})
	}

	// Deterministic relation order keeps failures reproducible.
	names := make([]string, 0, len(linkSets))
	for name := range linkSets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rel, relOK := schema.RelationByName(name)
		if !relOK {
			return fmt.Errorf("updating %s %d: unknown relation %q", r.e.Name, id, name)
		}
		ownCol, childCol, err := relationColumns(rel, r.e.Name)
		if err != nil {
			return fmt.Errorf("updating %s %d: %w", r.e.Name, id, err)
		}
		stmts = append(stmts, store.Statement{
			SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s = ?", rel.Name, ownCol),
			Args: []any{id},
		})
		for _, childID := range linkSets[name] {
			stmts = append(stmts, store.Statement{
				SQL:  fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", rel.Name, ownCol, childCol),
				Args: []any{id, childID},
			})
		}
	}

	if err := r.h.ExecuteTx(ctx, stmts); err != nil {
		return fmt.Errorf("updating %s %d with links: %w", r.e.Name, id, err)
	}
	return nil
}

// Delete removes the entity row and nothing else. Relation rows still
// referencing it make the statement fail with a constraint error; use the
// cascade executor for referenced entities.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", r.e.Table, r.e.IDColumn)
	n, err := r.h.Execute(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", r.e.Name, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", r.e.Name, id, store.ErrNotFound)
	}
	return nil
}

func (r *Repository) updateStatement(id int64, fields map[string]any) (string, []any) {
	var sets []string
	var args []any
	for _, c := range r.e.Columns {
		if v, ok := fields[c]; ok {
			sets = append(sets, c+" = ?")
			args = append(args, v)
		}
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		r.e.Table, strings.Join(sets, ", "), r.e.IDColumn)
	return query, args
}

func (r *Repository) nextID(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 AS next_id FROM %s", r.e.IDColumn, r.e.Table)
	row, err := r.h.QueryRow(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("allocating %s id: %w", r.e.Name, err)
	}
	id, err := asInt64(row["next_id"])
	if err != nil {
		return 0, fmt.Errorf("allocating %s id: %w", r.e.Name, err)
	}
	return id, nil
}

func (r *Repository) checkColumns(fields map[string]any) error {
	for name := range fields {
		if name == r.e.IDColumn {
			continue
		}
		known := false
		for _, c := range r.e.Columns {
			if c == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%s has no column %q", r.e.Name, name)
		}
	}
	return nil
}

// fieldID extracts an explicit id from fields if present.
func fieldID(fields map[string]any, idColumn string) (int64, bool, error) {
	v, ok := fields[idColumn]
	if !ok {
		return 0, false, nil
	}
	id, err := asInt64(v)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", idColumn, err)
	}
	return id, true, nil
}

// relationColumns resolves the columns linking rel to the owning entity and
// to its single id-keyed counterpart. The counterpart may be another entity
// or a reference table; either way it is the one column that is not the
// owner's.
func relationColumns(rel schema.Relation, owner string) (ownCol, childCol string, err error) {
	ownCol, ok := rel.EntityKeys[owner]
	if !ok {
		return "", "", fmt.Errorf("relation %s does not reference %s", rel.Name, owner)
	}
	if rel.ValueColumn != "" || len(rel.Columns) != 2 {
		return "", "", fmt.Errorf("relation %s is not a simple id-keyed pair", rel.Name)
	}
	for _, col := range rel.Columns {
		if col != ownCol {
			childCol = col
		}
	}
	return ownCol, childCol, nil
}

// asInt64 normalizes the numeric types the backends hand back.
func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case nil:
		return 0, fmt.Errorf("missing numeric value")
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}
