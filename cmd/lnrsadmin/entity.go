package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lnrsadmin/internal/config"
	"lnrsadmin/internal/entity"
	"lnrsadmin/internal/store"
)

func entityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Inspect and modify entity rows",
	}
	cmd.AddCommand(entityGetCmd())
	cmd.AddCommand(entityListCmd())
	cmd.AddCommand(entityCreateCmd())
	cmd.AddCommand(entityUpdateCmd())
	return cmd
}

func entityGetCmd() *cobra.Command {
	var entityType string
	var id int64
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print one entity row as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(entityType, func(ctx context.Context, repo *entity.Repository) error {
				row, err := repo.GetByID(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(row)
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Entity type")
	cmd.Flags().Int64Var(&id, "id", 0, "Entity id")
	return cmd
}

func entityListCmd() *cobra.Command {
	var entityType string
	var orderBy string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entity rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(entityType, func(ctx context.Context, repo *entity.Repository) error {
				rows, err := repo.GetAll(ctx, entity.ListOptions{
					OrderBy: orderBy,
					Limit:   limit,
					Offset:  offset,
				})
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					fmt.Fprintln(os.Stdout, "No rows found.")
					return nil
				}
				return printJSON(rows)
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Entity type")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "Column to sort by")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func entityCreateCmd() *cobra.Command {
	var entityType string
	var sets []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Insert a new entity row",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(sets)
			if err != nil {
				return err
			}
			return withRepo(entityType, func(ctx context.Context, repo *entity.Repository) error {
				id, err := repo.Create(ctx, fields)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Created %s %d\n", entityType, id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Entity type")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Column value as column=value, repeatable")
	return cmd
}

func entityUpdateCmd() *cobra.Command {
	var entityType string
	var id int64
	var sets []string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Overwrite columns on one entity row",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(sets)
			if err != nil {
				return err
			}
			return withRepo(entityType, func(ctx context.Context, repo *entity.Repository) error {
				if err := repo.Update(ctx, id, fields); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Updated %s %d\n", entityType, id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Entity type")
	cmd.Flags().Int64Var(&id, "id", 0, "Entity id")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Column value as column=value, repeatable")
	return cmd
}

func withRepo(entityType string, fn func(context.Context, *entity.Repository) error) error {
	if entityType == "" {
		return fmt.Errorf("--type is required")
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

	repo, err := entity.NewRepository(db, entityType)
	if err != nil {
		return err
	}
	return fn(ctx, repo)
}

func withStore(fn func(context.Context, store.Handle, *config.ProjectConfig) error) error {
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

	return fn(ctx, db, cfg)
}

func parseFields(sets []string) (map[string]any, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("at least one --set is required")
	}
	fields := make(map[string]any, len(sets))
	for _, s := range sets {
		col, val, ok := strings.Cut(s, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid --set %q, expected column=value", s)
		}
		fields[col] = val
	}
	return fields, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
