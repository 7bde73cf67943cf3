// Package postgres implements store.Handle on a hosted database, the
// deployment mode without a local store file. Everything above it behaves
// identically except the snapshot capability, which stays disabled because
// Path() is empty: there is no file to copy.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"lnrsadmin/internal/store"
)

var _ store.Handle = (*Client)(nil)

type Client struct {
	pool *pgxpool.Pool
	dsn  string
}

func New(ctx context.Context, dsn string) (*Client, error) {
	c := &Client{dsn: dsn}
	if err := c.open(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) open(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, c.dsn)
	if err != nil {
		return fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging postgres: %w", err)
	}
	c.pool = pool
	return nil
}

// Path returns "". This backend has no local file, so the snapshot
// capability gate keeps snapshots off.
func (c *Client) Path() string {
	return ""
}

// Checkpoint is a no-op; durability is the server's concern here.
func (c *Client) Checkpoint(ctx context.Context) error {
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	c.pool.Close()
	return nil
}

func (c *Client) Reset(ctx context.Context) error {
	c.pool.Close()
	return c.open(ctx)
}
