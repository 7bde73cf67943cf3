package schema

import "fmt"

// PlanStep is one relation to empty before an entity row can be removed.
// Column is the column in the relation holding the entity's id; Depth is the
// number of dependency levels between the relation and the entity (1 for a
// direct reference, 2 for a relation referencing a depth-1 relation's key).
type PlanStep struct {
	Relation Relation
	Column   string
	Depth    int
}

// Plan is the ordered list of relations that must be emptied, deepest
// dependents hoisted ahead of the relation they depend on, followed
// implicitly by the entity row itself.
type Plan struct {
	Entity   Entity
	Steps    []PlanStep
	MaxDepth int
}

// Sequential reports whether the plan must run as independently committed
// steps. With a depth-2 relation in the plan a single transaction cannot
// succeed: the store checks foreign keys after every statement, so deleting
// the depth-1 rows while depth-2 rows still reference them fails regardless
// of transaction boundaries.
func (p Plan) Sequential() bool {
	return p.MaxDepth >= 2
}

// Graph holds the deletion plan for every entity, built once from the
// relation declarations.
type Graph struct {
	plans map[string]Plan
}

// BuildGraph computes per-entity deletion plans from the declared relations.
func BuildGraph() *Graph {
	g := &Graph{plans: make(map[string]Plan, len(entities))}
	for _, e := range entities {
		g.plans[e.Name] = buildPlan(e)
	}
	return g
}

// Plan returns the deletion plan for the named entity.
func (g *Graph) Plan(entity string) (Plan, error) {
	p, ok := g.plans[entity]
	if !ok {
		return Plan{}, fmt.Errorf("no deletion plan for entity %q", entity)
	}
	return p, nil
}

func buildPlan(e Entity) Plan {
	// Every relation holding the entity's id belongs in the plan.
	inPlan := make(map[string]bool)
	for _, r := range relations {
		if _, ok := r.EntityKeys[e.Name]; ok {
			inPlan[r.Name] = true
		}
	}

	plan := Plan{Entity: e}
	emitted := make(map[string]bool)

	var emit func(r Relation, depth int)
	emit = func(r Relation, depth int) {
		if emitted[r.Name] {
			return
		}
		emitted[r.Name] = true
		// Dependents first: their rows reference this relation's key and
		// block its deletion.
		for _, d := range Dependents(r.Name) {
			if inPlan[d.Name] {
				emit(d, depth+1)
			}
		}
		step := PlanStep{Relation: r, Column: r.EntityKeys[e.Name], Depth: depth}
		plan.Steps = append(plan.Steps, step)
		if depth > plan.MaxDepth {
			plan.MaxDepth = depth
		}
	}

	// A relation whose DependsOn parent is outside the plan is reached only
	// through this loop and gets depth 1: from this entity's point of view
	// it is a direct reference (measure_area_priority_grant is depth 1 in
	// the grant plan but depth 2 in the measure plan).
	for _, r := range relations {
		if inPlan[r.Name] {
			emit(r, 1)
		}
	}

	return plan
}
