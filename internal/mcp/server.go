package mcp

import (
	"context"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"lnrsadmin/internal/cascade"
	"lnrsadmin/internal/links"
	"lnrsadmin/internal/snapshot"
	"lnrsadmin/internal/store"
)

type Server struct {
	db    store.Handle
	casc  *cascade.Executor
	links *links.Manager
	snaps *snapshot.Manager
	log   *slog.Logger
	mcp   *sdk.Server
}

func NewServer(db store.Handle, snaps *snapshot.Manager, log *slog.Logger, version string) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		db:    db,
		casc:  cascade.NewExecutor(db, log),
		links: links.NewManager(db, log),
		snaps: snaps,
		log:   log,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "lnrsadmin",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
