package schema

import (
	"testing"
)

func planOrder(t *testing.T, g *Graph, entity string) []string {
	t.Helper()
	p, err := g.Plan(entity)
	if err != nil {
		t.Fatalf("plan for %s: %v", entity, err)
	}
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Relation.Name
	}
	return names
}

func TestBuildGraphPlans(t *testing.T) {
	g := BuildGraph()

	tests := []struct {
		entity     string
		order      []string
		maxDepth   int
		sequential bool
	}{
		{
			entity: "measure",
			order: []string{
				"measure_has_type",
				"measure_has_stakeholder",
				"measure_area_priority_grant",
				"measure_area_priority",
				"measure_has_benefits",
				"measure_has_species",
			},
			maxDepth:   2,
			sequential: true,
		},
		{
			entity: "area",
			order: []string{
				"measure_area_priority_grant",
				"measure_area_priority",
				"species_area_priority",
				"area_funding_schemes",
				"habitat_creation_area",
				"habitat_management_area",
			},
			maxDepth:   2,
			sequential: true,
		},
		{
			entity: "priority",
			order: []string{
				"measure_area_priority_grant",
				"measure_area_priority",
				"species_area_priority",
			},
			maxDepth:   2,
			sequential: true,
		},
		{
			entity:     "species",
			order:      []string{"measure_has_species", "species_area_priority"},
			maxDepth:   1,
			sequential: false,
		},
		{
			entity:     "habitat",
			order:      []string{"habitat_creation_area", "habitat_management_area"},
			maxDepth:   1,
			sequential: false,
		},
		{
			entity:     "grant",
			order:      []string{"measure_area_priority_grant"},
			maxDepth:   1,
			sequential: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			p, err := g.Plan(tt.entity)
			if err != nil {
				t.Fatalf("plan: %v", err)
			}

			got := planOrder(t, g, tt.entity)
			if len(got) != len(tt.order) {
				t.Fatalf("plan has %d steps %v, want %d %v", len(got), got, len(tt.order), tt.order)
			}
			for i := range got {
				if got[i] != tt.order[i] {
					t.Errorf("step %d = %s, want %s", i, got[i], tt.order[i])
				}
			}

			if p.MaxDepth != tt.maxDepth {
				t.Errorf("max depth = %d, want %d", p.MaxDepth, tt.maxDepth)
			}
			if p.Sequential() != tt.sequential {
				t.Errorf("sequential = %v, want %v", p.Sequential(), tt.sequential)
			}
		})
	}
}

func TestPlanStepDepths(t *testing.T) {
	g := BuildGraph()

	t.Run("grandchild depth in measure plan", func(t *testing.T) {
		p, err := g.Plan("measure")
		if err != nil {
			t.Fatalf("plan: %v", err)
		}
		for _, s := range p.Steps {
			want := 1
			if s.Relation.Name == "measure_area_priority_grant" {
				want = 2
			}
			if s.Depth != want {
				t.Errorf("%s depth = %d, want %d", s.Relation.Name, s.Depth, want)
			}
		}
	})

	t.Run("same relation is depth 1 in grant plan", func(t *testing.T) {
		p, err := g.Plan("grant")
		if err != nil {
			t.Fatalf("plan: %v", err)
		}
		if len(p.Steps) != 1 || p.Steps[0].Depth != 1 {
			t.Fatalf("grant plan = %+v, want single depth-1 step", p.Steps)
		}
	})
}

func TestPlanColumns(t *testing.T) {
	g := BuildGraph()
	p, err := g.Plan("area")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for _, s := range p.Steps {
		if s.Column != "area_id" {
			t.Errorf("%s keyed on %s, want area_id", s.Relation.Name, s.Column)
		}
	}
}

func TestPlanUnknownEntity(t *testing.T) {
	g := BuildGraph()
	if _, err := g.Plan("nonexistent"); err == nil {
		t.Fatal("expected error for unknown entity")
	}
}

func TestRelationLookups(t *testing.T) {
	if _, ok := RelationByName("measure_area_priority"); !ok {
		t.Fatal("measure_area_priority not declared")
	}
	if _, ok := RelationByName("no_such_relation"); ok {
		t.Fatal("lookup of undeclared relation succeeded")
	}

	deps := Dependents("measure_area_priority")
	if len(deps) != 1 || deps[0].Name != "measure_area_priority_grant" {
		t.Fatalf("dependents of measure_area_priority = %v", deps)
	}

	rel, _ := RelationByName("measure_area_priority_grant")
	if !rel.Bridge() {
		t.Error("quaternary relation should report as bridge")
	}
	afs, _ := RelationByName("area_funding_schemes")
	if afs.Bridge() {
		t.Error("area_funding_schemes references one entity, not a bridge")
	}
}
