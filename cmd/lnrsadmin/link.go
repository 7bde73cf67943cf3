package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lnrsadmin/internal/config"
	"lnrsadmin/internal/links"
	"lnrsadmin/internal/schema"
	"lnrsadmin/internal/store"
)

func linkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage relation rows between entities",
	}
	cmd.AddCommand(linkCreateCmd())
	cmd.AddCommand(linkDeleteCmd())
	cmd.AddCommand(linkReplaceCmd())
	cmd.AddCommand(linkBulkCmd())
	cmd.AddCommand(linkUnfundedCmd())
	cmd.AddCommand(linkCountsCmd())
	return cmd
}

func linkCreateCmd() *cobra.Command {
	var relation string
	var keys []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create one relation row",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseLinkKey(relation, keys)
			if err != nil {
				return err
			}
			return withLinks(func(ctx context.Context, mgr *links.Manager) error {
				if err := mgr.Create(ctx, relation, key); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Created %s link.\n", relation)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&relation, "relation", "", "Relation table name")
	cmd.Flags().StringArrayVar(&keys, "key", nil, "Key column as column=value, repeatable")
	return cmd
}

func linkDeleteCmd() *cobra.Command {
	var relation string
	var keys []string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete one relation row, dependent rows first",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseLinkKey(relation, keys)
			if err != nil {
				return err
			}
			return withLinks(func(ctx context.Context, mgr *links.Manager) error {
				removed, err := mgr.Delete(ctx, relation, key)
				if err != nil {
					return err
				}
				for rel, n := range removed {
					if n > 0 {
						fmt.Fprintf(os.Stdout, "  %s: %d removed\n", rel, n)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&relation, "relation", "", "Relation table name")
	cmd.Flags().StringArrayVar(&keys, "key", nil, "Key column as column=value, repeatable")
	return cmd
}

func linkReplaceCmd() *cobra.Command {
	var relation, owner string
	var ownerID int64
	var childIDs []int64
	var values []string
	var clear bool
	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace every link of one entity in a relation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(childIDs) > 0 && len(values) > 0 {
				return fmt.Errorf("--child and --value are mutually exclusive")
			}
			if len(childIDs) == 0 && len(values) == 0 && !clear {
				return fmt.Errorf("pass --child or --value ids, or --clear to remove all links")
			}
			return withLinks(func(ctx context.Context, mgr *links.Manager) error {
				rel, ok := schema.RelationByName(relation)
				if !ok {
					return fmt.Errorf("unknown relation %q", relation)
				}
				var err error
				if rel.ValueColumn != "" {
					err = mgr.ReplaceValues(ctx, relation, owner, ownerID, values)
				} else {
					err = mgr.Replace(ctx, relation, owner, ownerID, childIDs)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Replaced %s links for %s %d.\n", relation, owner, ownerID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&relation, "relation", "", "Relation table name")
	cmd.Flags().StringVar(&owner, "owner", "", "Entity type owning the links")
	cmd.Flags().Int64Var(&ownerID, "owner-id", 0, "Owning entity id")
	cmd.Flags().Int64SliceVar(&childIDs, "child", nil, "Replacement child ids")
	cmd.Flags().StringArrayVar(&values, "value", nil, "Replacement values for a value-keyed relation")
	cmd.Flags().BoolVar(&clear, "clear", false, "Remove every link of the entity in the relation")
	return cmd
}

func linkBulkCmd() *cobra.Command {
	var relation string
	var lists []string
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Create the cross product of id lists as relation rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			idLists, err := parseIDLists(lists)
			if err != nil {
				return err
			}
			return withLinks(func(ctx context.Context, mgr *links.Manager) error {
				result, err := mgr.BulkCreate(ctx, relation, idLists)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Created %d links, skipped %d existing.\n",
					result.Created, len(result.Skipped))
				for _, s := range result.Skipped {
					fmt.Fprintf(os.Stdout, "  skipped %s\n", s)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&relation, "relation", "", "Relation table name")
	cmd.Flags().StringArrayVar(&lists, "list", nil, "Comma-separated ids for one relation column, repeat per column in declared order")
	return cmd
}

func linkUnfundedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unfunded",
		Short: "List measure/area/priority associations with no grant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLinks(func(ctx context.Context, mgr *links.Manager) error {
				rows, err := mgr.Unfunded(ctx)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					fmt.Fprintln(os.Stdout, "Every association has a grant.")
					return nil
				}
				return printJSON(rows)
			})
		},
	}
}

func linkCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Row counts for every relation table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLinks(func(ctx context.Context, mgr *links.Manager) error {
				counts, err := mgr.Counts(ctx)
				if err != nil {
					return err
				}
				for _, rel := range schema.Relations() {
					fmt.Fprintf(os.Stdout, "%s: %d\n", rel.Name, counts[rel.Name])
				}
				return nil
			})
		},
	}
}

func withLinks(fn func(context.Context, *links.Manager) error) error {
	return withStore(func(ctx context.Context, db store.Handle, cfg *config.ProjectConfig) error {
		return fn(ctx, links.NewManager(db, nil))
	})
}

// parseLinkKey turns repeated column=value flags into the manager's key
// shape, converting id columns to integers and leaving a value column as
// text.
func parseLinkKey(relation string, pairs []string) (map[string]any, error) {
	if relation == "" {
		return nil, fmt.Errorf("--relation is required")
	}
	rel, ok := schema.RelationByName(relation)
	if !ok {
		return nil, fmt.Errorf("unknown relation %q", relation)
	}
	key := make(map[string]any, len(pairs))
	for _, p := range pairs {
		col, val, found := strings.Cut(p, "=")
		if !found || col == "" {
			return nil, fmt.Errorf("invalid --key %q, expected column=value", p)
		}
		if col == rel.ValueColumn {
			key[col] = val
			continue
		}
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id for %s: %q", col, val)
		}
		key[col] = id
	}
	return key, nil
}

func parseIDLists(lists []string) ([][]int64, error) {
	if len(lists) == 0 {
		return nil, fmt.Errorf("at least one --list is required")
	}
	out := make([][]int64, 0, len(lists))
	for _, list := range lists {
		var ids []int64
		for _, part := range strings.Split(list, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid id %q in --list", part)
			}
			ids = append(ids, id)
		}
		out = append(out, ids)
	}
	return out, nil
}
