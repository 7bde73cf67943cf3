// Package schema declares the entity and relation model the rest of the
// application derives its behavior from: table layouts for the repositories,
// bridge-relation key columns for the link manager, and the dependency graph
// the cascade planner is built from.
package schema

// Entity describes one managed entity table.
type Entity struct {
	Name     string
	Table    string
	IDColumn string
	Columns  []string
}

// Relation describes one relation table whose rows reference entities.
//
// EntityKeys maps an entity name to the column in this relation that holds
// that entity's id. DependsOn names another relation this one carries a
// composite foreign key onto; rows here must be removed before rows there.
// ValueColumn is set for simple child relations keyed by a plain value
// rather than a second entity id.
type Relation struct {
	Name        string
	Columns     []string
	EntityKeys  map[string]string
	DependsOn   string
	ValueColumn string
}

// Bridge reports whether the relation associates two or more entities.
func (r Relation) Bridge() bool {
	return len(r.EntityKeys) >= 2
}

// entities in declaration order. grant lives in grant_table because GRANT is
// a reserved word in every SQL dialect we target.
var entities = []Entity{
	{
		Name:     "measure",
		Table:    "measure",
		IDColumn: "measure_id",
		Columns:  []string{"measure", "concise_measure", "core_supplementary", "mapped_unmapped", "link_to_further_guidance"},
	},
	{
		Name:     "area",
		Table:    "area",
		IDColumn: "area_id",
		Columns:  []string{"area_name", "area_description", "area_link"},
	},
	{
		Name:     "priority",
		Table:    "priority",
		IDColumn: "priority_id",
		Columns:  []string{"biodiversity_priority", "simplified_biodiversity_priority", "theme"},
	},
	{
		Name:     "species",
		Table:    "species",
		IDColumn: "species_id",
		Columns:  []string{"common_name", "linnaean_name", "assemblage", "taxa", "image_url"},
	},
	{
		Name:     "habitat",
		Table:    "habitat",
		IDColumn: "habitat_id",
		Columns:  []string{"habitat"},
	},
	{
		Name:     "grant",
		Table:    "grant_table",
		IDColumn: "grant_id",
		Columns:  []string{"grant_name", "grant_scheme", "url"},
	},
}

// relations in declaration order. The cascade planner preserves this order
// within a plan, hoisting dependents ahead of the relation they depend on,
// so the order here is the order child rows disappear in.
var relations = []Relation{
	{
		Name:       "measure_has_type",
		Columns:    []string{"measure_id", "measure_type_id"},
		EntityKeys: map[string]string{"measure": "measure_id"},
	},
	{
		Name:       "measure_has_stakeholder",
		Columns:    []string{"measure_id", "stakeholder_id"},
		EntityKeys: map[string]string{"measure": "measure_id"},
	},
	{
		Name:       "measure_area_priority",
		Columns:    []string{"measure_id", "area_id", "priority_id"},
		EntityKeys: map[string]string{"measure": "measure_id", "area": "area_id", "priority": "priority_id"},
	},
	{
		Name:       "measure_area_priority_grant",
		Columns:    []string{"measure_id", "area_id", "priority_id", "grant_id"},
		EntityKeys: map[string]string{"measure": "measure_id", "area": "area_id", "priority": "priority_id", "grant": "grant_id"},
		DependsOn:  "measure_area_priority",
	},
	{
		Name:       "measure_has_benefits",
		Columns:    []string{"measure_id", "benefit_id"},
		EntityKeys: map[string]string{"measure": "measure_id"},
	},
	{
		Name:       "measure_has_species",
		Columns:    []string{"measure_id", "species_id"},
		EntityKeys: map[string]string{"measure": "measure_id", "species": "species_id"},
	},
	{
		Name:       "species_area_priority",
		Columns:    []string{"species_id", "area_id", "priority_id"},
		EntityKeys: map[string]string{"species": "species_id", "area": "area_id", "priority": "priority_id"},
	},
	{
		Name:        "area_funding_schemes",
		Columns:     []string{"area_id", "funding_scheme"},
		EntityKeys:  map[string]string{"area": "area_id"},
		ValueColumn: "funding_scheme",
	},
	{
		Name:       "habitat_creation_area",
		Columns:    []string{"habitat_id", "area_id"},
		EntityKeys: map[string]string{"habitat": "habitat_id", "area": "area_id"},
	},
	{
		Name:       "habitat_management_area",
		Columns:    []string{"habitat_id", "area_id"},
		EntityKeys: map[string]string{"habitat": "habitat_id", "area": "area_id"},
	},
}

// Entities returns the managed entity declarations in declaration order.
func Entities() []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)
	return out
}

// EntityByName looks up an entity declaration.
func EntityByName(name string) (Entity, bool) {
	for _, e := range entities {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// Relations returns the relation declarations in declaration order.
func Relations() []Relation {
	out := make([]Relation, len(relations))
	copy(out, relations)
	return out
}

// RelationByName looks up a relation declaration.
func RelationByName(name string) (Relation, bool) {
	for _, r := range relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// Dependents returns the relations carrying a composite foreign key onto rel,
// in declaration order.
func Dependents(rel string) []Relation {
	var out []Relation
	for _, r := range relations {
		if r.DependsOn == rel {
			out = append(out, r)
		}
	}
	return out
}
