package postgres

import (
	"context"
	"fmt"
	"strings"
)

// EnsureSchema creates the full table set. Constraints are declared without
// DEFERRABLE on purpose: enforcement stays immediate, matching the file
// backend, so the cascade planner's sequential strategy behaves the same way
// against both backends.
func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS measure (
		measure_id               BIGINT PRIMARY KEY,
		measure                  TEXT NOT NULL,
		concise_measure          TEXT,
		core_supplementary       TEXT,
		mapped_unmapped          TEXT,
		link_to_further_guidance TEXT
	);

	CREATE TABLE IF NOT EXISTS area (
		area_id          BIGINT PRIMARY KEY,
		area_name        TEXT NOT NULL,
		area_description TEXT,
		area_link        TEXT
	);

	CREATE TABLE IF NOT EXISTS priority (
		priority_id                      BIGINT PRIMARY KEY,
		biodiversity_priority            TEXT NOT NULL,
		simplified_biodiversity_priority TEXT,
		theme                            TEXT
	);

	CREATE TABLE IF NOT EXISTS species (
		species_id    BIGINT PRIMARY KEY,
		common_name   TEXT NOT NULL,
		linnaean_name TEXT,
		assemblage    TEXT,
		taxa          TEXT,
		image_url     TEXT
	);

	CREATE TABLE IF NOT EXISTS habitat (
		habitat_id BIGINT PRIMARY KEY,
		habitat    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grant_table (
		grant_id     BIGINT PRIMARY KEY,
		grant_name   TEXT NOT NULL,
		grant_scheme TEXT,
		url          TEXT
	);

	CREATE TABLE IF NOT EXISTS measure_type (
		measure_type_id BIGINT PRIMARY KEY,
		measure_type    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stakeholder (
		stakeholder_id BIGINT PRIMARY KEY,
		stakeholder    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS benefits (
		benefit_id BIGINT PRIMARY KEY,
		benefit    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS measure_has_type (
		measure_id      BIGINT NOT NULL REFERENCES measure(measure_id),
		measure_type_id BIGINT NOT NULL REFERENCES measure_type(measure_type_id),
		PRIMARY KEY (measure_id, measure_type_id)
	);

	CREATE TABLE IF NOT EXISTS measure_has_stakeholder (
		measure_id     BIGINT NOT NULL REFERENCES measure(measure_id),
		stakeholder_id BIGINT NOT NULL REFERENCES stakeholder(stakeholder_id),
		PRIMARY KEY (measure_id, stakeholder_id)
	);

	CREATE TABLE IF NOT EXISTS measure_area_priority (
		measure_id  BIGINT NOT NULL REFERENCES measure(measure_id),
		area_id     BIGINT NOT NULL REFERENCES area(area_id),
		priority_id BIGINT NOT NULL REFERENCES priority(priority_id),
		PRIMARY KEY (measure_id, area_id, priority_id)
	);

	CREATE TABLE IF NOT EXISTS measure_area_priority_grant (
		measure_id  BIGINT NOT NULL,
		area_id     BIGINT NOT NULL,
		priority_id BIGINT NOT NULL,
		grant_id    BIGINT NOT NULL REFERENCES grant_table(grant_id),
		PRIMARY KEY (measure_id, area_id, priority_id, grant_id),
		FOREIGN KEY (measure_id, area_id, priority_id)
			REFERENCES measure_area_priority(measure_id, area_id, priority_id)
	);

	CREATE TABLE IF NOT EXISTS measure_has_benefits (
		measure_id BIGINT NOT NULL REFERENCES measure(measure_id),
		benefit_id BIGINT NOT NULL REFERENCES benefits(benefit_id),
		PRIMARY KEY (measure_id, benefit_id)
	);

	CREATE TABLE IF NOT EXISTS measure_has_species (
		measure_id BIGINT NOT NULL REFERENCES measure(measure_id),
		species_id BIGINT NOT NULL REFERENCES species(species_id),
		PRIMARY KEY (measure_id, species_id)
	);

	CREATE TABLE IF NOT EXISTS species_area_priority (
		species_id  BIGINT NOT NULL REFERENCES species(species_id),
		area_id     BIGINT NOT NULL REFERENCES area(area_id),
		priority_id BIGINT NOT NULL REFERENCES priority(priority_id),
		PRIMARY KEY (species_id, area_id, priority_id)
	);

	CREATE TABLE IF NOT EXISTS area_funding_schemes (
		area_id        BIGINT NOT NULL REFERENCES area(area_id),
		funding_scheme TEXT NOT NULL,
		PRIMARY KEY (area_id, funding_scheme)
	);

	CREATE TABLE IF NOT EXISTS habitat_creation_area (
		habitat_id BIGINT NOT NULL REFERENCES habitat(habitat_id),
		area_id    BIGINT NOT NULL REFERENCES area(area_id),
		PRIMARY KEY (habitat_id, area_id)
	);

	CREATE TABLE IF NOT EXISTS habitat_management_area (
		habitat_id BIGINT NOT NULL REFERENCES habitat(habitat_id),
		area_id    BIGINT NOT NULL REFERENCES area(area_id),
		PRIMARY KEY (habitat_id, area_id)
	);

	CREATE INDEX IF NOT EXISTS idx_map_area ON measure_area_priority (area_id);
	CREATE INDEX IF NOT EXISTS idx_map_priority ON measure_area_priority (priority_id);
	CREATE INDEX IF NOT EXISTS idx_mapg_grant ON measure_area_priority_grant (grant_id);
	CREATE INDEX IF NOT EXISTS idx_mapg_area ON measure_area_priority_grant (area_id);
	CREATE INDEX IF NOT EXISTS idx_mapg_priority ON measure_area_priority_grant (priority_id);
	CREATE INDEX IF NOT EXISTS idx_sap_area ON species_area_priority (area_id);
	CREATE INDEX IF NOT EXISTS idx_sap_priority ON species_area_priority (priority_id);
	CREATE INDEX IF NOT EXISTS idx_mhs_species ON measure_has_species (species_id);
	CREATE INDEX IF NOT EXISTS idx_hca_area ON habitat_creation_area (area_id);
	CREATE INDEX IF NOT EXISTS idx_hma_area ON habitat_management_area (area_id);
	`

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}
	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
