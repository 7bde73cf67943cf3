// Package cascade removes an entity together with every relation row
// referencing it, in an order the store's immediate foreign-key checking
// accepts.
//
// Plans containing only direct references run as one transaction. Plans with
// depth-2 relations cannot: the store validates constraints after every
// statement, so the plan runs as independently committed steps instead,
// deepest dependents first. A failure mid-plan leaves prior steps committed;
// that is reported, never hidden.
package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"lnrsadmin/internal/schema"
	"lnrsadmin/internal/store"
)

// Impact describes what a cascade delete would remove, per relation, before
// any row is touched.
type Impact struct {
	EntityType string           `json:"entity_type"`
	EntityID   int64            `json:"entity_id"`
	Relations  map[string]int64 `json:"relations"`
	TotalRows  int64            `json:"total_rows"`
	Sequential bool             `json:"sequential"`
}

// Result reports a completed cascade delete.
type Result struct {
	EntityType  string           `json:"entity_type"`
	EntityID    int64            `json:"entity_id"`
	RowsRemoved map[string]int64 `json:"rows_removed"`
	Sequential  bool             `json:"sequential"`
}

// Executor runs deletion plans against a store handle.
type Executor struct {
	h     store.Handle
	graph *schema.Graph
	log   *slog.Logger
}

// NewExecutor builds an executor over the given handle.
func NewExecutor(h store.Handle, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{h: h, graph: schema.BuildGraph(), log: log}
}

// Impact counts the rows each plan step would remove. The entity must exist;
// a missing id yields store.ErrNotFound.
func (x *Executor) Impact(ctx context.Context, entityType string, id int64) (*Impact, error) {
	plan, err := x.plan(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	imp := &Impact{
		EntityType: entityType,
		EntityID:   id,
		Relations:  make(map[string]int64, len(plan.Steps)),
		Sequential: plan.Sequential(),
	}
	for _, step := range plan.Steps {
		n, err := x.stepCount(ctx, plan, step, id)
		if err != nil {
			return nil, fmt.Errorf("counting %s rows for %s %d: %w", step.Relation.Name, entityType, id, err)
		}
		imp.Relations[step.Relation.Name] = n
		imp.TotalRows += n
	}
	return imp, nil
}

// Delete removes the entity and all rows referencing it. On a sequential
// plan a mid-plan failure returns *store.PartialCascadeError carrying the
// rows already committed; on an atomic plan a failure leaves the store
// untouched.
func (x *Executor) Delete(ctx context.Context, entityType string, id int64) (*Result, error) {
	plan, err := x.plan(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	res := &Result{
		EntityType:  entityType,
		EntityID:    id,
		RowsRemoved: make(map[string]int64, len(plan.Steps)+1),
		Sequential:  plan.Sequential(),
	}

	if plan.Sequential() {
		err = x.deleteSequential(ctx, plan, id, res)
	} else {
		err = x.deleteAtomic(ctx, plan, id, res)
	}
	if err != nil {
		return nil, err
	}

	total := int64(0)
	for _, n := range res.RowsRemoved {
		total += n
	}
	x.log.Info("cascade delete complete",
		"entity", entityType, "id", id,
		"rows_removed", total, "sequential", res.Sequential)
	return res, nil
}

// deleteSequential commits each step on its own, deepest dependents first,
// then removes the entity row. A failed step stops the plan with the
// already-committed counts attached.
func (x *Executor) deleteSequential(ctx context.Context, plan schema.Plan, id int64, res *Result) error {
	for i, step := range plan.Steps {
		query, args := x.stepStatement(plan, step, id)
		n, err := x.h.Execute(ctx, query, args...)
		if err != nil {
			return &store.PartialCascadeError{
				EntityType: plan.Entity.Name,
				EntityID:   id,
				Step:       i,
				Relation:   step.Relation.Name,
				Removed:    res.RowsRemoved,
				Err:        err,
			}
		}
		res.RowsRemoved[step.Relation.Name] = n
		x.log.Debug("cascade step committed",
			"entity", plan.Entity.Name, "id", id,
			"step", i+1, "relation", step.Relation.Name, "rows", n)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", plan.Entity.Table, plan.Entity.IDColumn)
	n, err := x.h.Execute(ctx, query, id)
	if err != nil {
		return &store.PartialCascadeError{
			EntityType: plan.Entity.Name,
			EntityID:   id,
			Step:       len(plan.Steps),
			Relation:   plan.Entity.Table,
			Removed:    res.RowsRemoved,
			Err:        err,
		}
	}
	res.RowsRemoved[plan.Entity.Table] = n
	return nil
}

// deleteAtomic runs the whole plan plus the entity row in one transaction.
// Per-relation counts are gathered up front; on success they are exactly the
// rows removed, on failure nothing was.
func (x *Executor) deleteAtomic(ctx context.Context, plan schema.Plan, id int64, res *Result) error {
	stmts := make([]store.Statement, 0, len(plan.Steps)+1)
	for _, step := range plan.Steps {
		n, err := x.stepCount(ctx, plan, step, id)
		if err != nil {
			return fmt.Errorf("counting %s rows for %s %d: %w", step.Relation.Name, plan.Entity.Name, id, err)
		}
		res.RowsRemoved[step.Relation.Name] = n
		query, args := x.stepStatement(plan, step, id)
		stmts = append(stmts, store.Statement{SQL: query, Args: args})
	}
	stmts = append(stmts, store.Statement{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s = ?", plan.Entity.Table, plan.Entity.IDColumn),
		Args: []any{id},
	})

	if err := x.h.ExecuteTx(ctx, stmts); err != nil {
		return fmt.Errorf("cascade delete of %s %d: %w", plan.Entity.Name, id, err)
	}
	res.RowsRemoved[plan.Entity.Table] = 1
	return nil
}

// plan resolves the entity's deletion plan and verifies the row exists.
func (x *Executor) plan(ctx context.Context, entityType string, id int64) (schema.Plan, error) {
	plan, err := x.graph.Plan(entityType)
	if err != nil {
		return schema.Plan{}, err
	}
	n, err := x.h.Count(ctx, plan.Entity.Table, plan.Entity.IDColumn+" = ?", id)
	if err != nil {
		return schema.Plan{}, fmt.Errorf("checking %s %d: %w", entityType, id, err)
	}
	if n == 0 {
		return schema.Plan{}, fmt.Errorf("%s %d: %w", entityType, id, store.ErrNotFound)
	}
	return plan, nil
}

// stepStatement builds the delete for one step. Every relation in a plan
// carries the entity's id column, hoisted dependents included, so a single
// WHERE shape covers all steps.
func (x *Executor) stepStatement(plan schema.Plan, step schema.PlanStep, id int64) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", step.Relation.Name, step.Column), []any{id}
}

func (x *Executor) stepCount(ctx context.Context, plan schema.Plan, step schema.PlanStep, id int64) (int64, error) {
	return x.h.Count(ctx, step.Relation.Name, step.Column+" = ?", id)
}
