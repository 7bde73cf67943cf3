package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lnrsadmin/internal/config"
	"lnrsadmin/internal/store/postgres"
	"lnrsadmin/internal/store/sqlite"
)

func initCmd() *cobra.Command {
	var projectName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new lnrsadmin project and create the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(projectName)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	return cmd
}

func runInit(projectName string) error {
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists", configFile)
	}

	contents := fmt.Sprintf("project: %s\nversion: 1\n\ndatabase:\n  driver: sqlite\n  dsn: sqlite://./%s.db\n\nbackups:\n  enabled: true\n  dir: ./backups\n  keep: 10\n", projectName, projectName)
	if err := os.WriteFile(configFile, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configFile, err)
	}

	ctx := context.Background()
	cfg, err := config.LoadProjectConfig(configFile)
	if err != nil {
		return err
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	switch c := db.(type) {
	case *sqlite.Client:
		return c.EnsureSchema(ctx)
	case *postgres.Client:
		return c.EnsureSchema(ctx)
	}
	return nil
}
