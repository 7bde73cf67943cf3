// Package sqlite implements store.Handle on a single local database file.
// This is the backend the snapshot subsystem works against: the whole store
// is one file that can be copied and swapped, with the handle closed and
// reopened around the swap.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lnrsadmin/internal/store"

	_ "modernc.org/sqlite"
)

var _ store.Handle = (*Client)(nil)

type Client struct {
	db        *sql.DB
	driverDSN string
	path      string
}

// New opens the database file named by a sqlite:// DSN and configures the
// connection. Foreign keys are enforced immediately after every statement;
// that behavior is load-bearing for the cascade planner, not an option.
func New(ctx context.Context, dsn string) (*Client, error) {
	driverDSN, path, err := parseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing sqlite DSN: %w", err)
	}

	c := &Client{driverDSN: driverDSN, path: path}
	if err := c.open(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) open(ctx context.Context) error {
	db, err := sql.Open("sqlite", c.driverDSN)
	if err != nil {
		return fmt.Errorf("opening sqlite database: %w", err)
	}

	// The store is single-writer by construction; one connection keeps
	// every statement on the same session.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("pinging sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	c.db = db
	return nil
}

// Path returns the backing file path, or "" for an in-memory database.
func (c *Client) Path() string {
	return c.path
}

// Checkpoint moves WAL content into the main database file so a file copy
// taken afterwards is complete on its own.
func (c *Client) Checkpoint(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	if _, err := c.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return fmt.Errorf("checkpointing wal: %w", err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.db.Close()
}

// Reset drops the current connection and opens a fresh one against the same
// DSN. Used after a restore replaces the backing file.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite before reset: %w", err)
	}
	return c.open(ctx)
}
