package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"lnrsadmin/internal/config"
	"lnrsadmin/internal/mcp"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
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

	snaps, err := openSnapshots(db, cfg)
	if err != nil {
		return err
	}

	server := mcp.NewServer(db, snaps, slog.Default(), version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
