package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lnrsadmin/internal/cascade"
	"lnrsadmin/internal/config"
	"lnrsadmin/internal/store"
)

func deleteCmd() *cobra.Command {
	var entityType string
	var id int64
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an entity and every relation row referencing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if entityType == "" {
				return fmt.Errorf("--type is required")
			}
			return withStore(func(ctx context.Context, db store.Handle, cfg *config.ProjectConfig) error {
				return runDelete(ctx, db, cfg, entityType, id, yes)
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Entity type")
	cmd.Flags().Int64Var(&id, "id", 0, "Entity id")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the impact preview and delete immediately")
	return cmd
}

func runDelete(ctx context.Context, db store.Handle, cfg *config.ProjectConfig, entityType string, id int64, yes bool) error {
	exec := cascade.NewExecutor(db, nil)

	impact, err := exec.Impact(ctx, entityType, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Deleting %s %d removes %d relation rows:\n", entityType, id, impact.TotalRows)
	for rel, n := range impact.Relations {
		if n > 0 {
			fmt.Fprintf(os.Stdout, "  %s: %d\n", rel, n)
		}
	}
	if impact.Sequential {
		fmt.Fprintln(os.Stdout, "This delete commits in independent steps.")
	}
	if !yes {
		fmt.Fprintln(os.Stdout, "Re-run with --yes to proceed.")
		return nil
	}

	snaps, err := openSnapshots(db, cfg)
	if err != nil {
		return err
	}
	snapID, err := snaps.Create(ctx, "pre_delete", entityType, id,
		fmt.Sprintf("before deleting %s %d", entityType, id))
	if err != nil {
		return fmt.Errorf("taking pre-delete snapshot: %w", err)
	}
	if snapID != "" {
		fmt.Fprintf(os.Stdout, "Snapshot %s taken.\n", snapID)
	}

	result, err := exec.Delete(ctx, entityType, id)
	if err != nil {
		return err
	}
	total := int64(0)
	for _, n := range result.RowsRemoved {
		total += n
	}
	fmt.Fprintf(os.Stdout, "Deleted %s %d (%d rows).\n", entityType, id, total)
	return nil
}
