package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lnrsadmin/internal/config"
	"lnrsadmin/internal/snapshot"
	"lnrsadmin/internal/store"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Take, list, restore, and prune database snapshots",
	}
	cmd.AddCommand(snapshotCreateCmd())
	cmd.AddCommand(snapshotListCmd())
	cmd.AddCommand(snapshotRestoreCmd())
	cmd.AddCommand(snapshotCleanupCmd())
	return cmd
}

func snapshotCreateCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Take a manual snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(func(ctx context.Context, snaps *snapshot.Manager) error {
				if !snaps.Enabled() {
					fmt.Fprintln(os.Stdout, "Snapshots are disabled for this store.")
					return nil
				}
				id, err := snaps.Create(ctx, "manual", "", 0, description)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Snapshot %s created.\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Note stored in the journal")
	return cmd
}

func snapshotListCmd() *cobra.Command {
	var opType, entityType string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(func(ctx context.Context, snaps *snapshot.Manager) error {
				records, err := snaps.List(ctx, opType, entityType, limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(os.Stdout, "No snapshots found.")
					return nil
				}
				for _, rec := range records {
					fmt.Fprintf(os.Stdout, "%s  %s  %s  %s\n",
						rec.SnapshotID, rec.Datetime, rec.OperationType, rec.Description)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opType, "operation", "", "Filter by operation type")
	cmd.Flags().StringVar(&entityType, "type", "", "Filter by entity type")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries")
	return cmd
}

func snapshotRestoreCmd() *cobra.Command {
	var snapshotID string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the database from a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if snapshotID == "" {
				return fmt.Errorf("--id is required")
			}
			return withSnapshots(func(ctx context.Context, snaps *snapshot.Manager) error {
				if err := snaps.Restore(ctx, snapshotID); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Restored %s.\n", snapshotID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&snapshotID, "id", "", "Snapshot id")
	return cmd
}

func snapshotCleanupCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove all but the newest snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1")
			}
			return withSnapshots(func(ctx context.Context, snaps *snapshot.Manager) error {
				deleted, err := snaps.Cleanup(ctx, keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Removed %d snapshots.\n", deleted)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 10, "How many newest snapshots to retain")
	return cmd
}

func withSnapshots(fn func(context.Context, *snapshot.Manager) error) error {
	return withStore(func(ctx context.Context, db store.Handle, cfg *config.ProjectConfig) error {
		snaps, err := openSnapshots(db, cfg)
		if err != nil {
			return err
		}
		return fn(ctx, snaps)
	})
}
