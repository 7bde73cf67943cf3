// Package store defines the handle every higher layer talks to the backing
// database through, together with the error kinds callers branch on.
//
// The handle enforces nothing about statement ordering; the cascade executor
// and link manager own that discipline. It only provides plain statement
// execution, an atomic transaction primitive, and the lifecycle operations
// (Close, Reset) the snapshot manager needs around a file swap.
package store

import "context"

// Statement is one parameterized SQL statement. Placeholders are written as
// `?` regardless of backend; implementations rebind as needed.
type Statement struct {
	SQL  string
	Args []any
}

// Handle is a single persistent connection to the backing store.
type Handle interface {
	// Execute runs one statement outside any explicit transaction and
	// returns the number of rows affected. Each call is independently
	// durable once it returns.
	Execute(ctx context.Context, query string, args ...any) (int64, error)

	// Query runs a read statement and returns all rows as column-name maps.
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)

	// QueryRow runs a read statement expected to yield at most one row.
	// A missing row returns (nil, nil).
	QueryRow(ctx context.Context, query string, args ...any) (map[string]any, error)

	// ExecuteTx runs every statement inside one transaction: all apply or
	// none do.
	ExecuteTx(ctx context.Context, stmts []Statement) error

	// Count returns COUNT(*) for the table, optionally filtered by a WHERE
	// clause (without the WHERE keyword).
	Count(ctx context.Context, table, where string, args ...any) (int64, error)

	// Checkpoint flushes pending writes into the backing file so a file
	// copy observes a complete database. A no-op for backends without a
	// local file.
	Checkpoint(ctx context.Context) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error

	// Reset closes and reopens the connection. Required after the backing
	// file has been replaced; a cached handle must not keep serving the old
	// content.
	Reset(ctx context.Context) error

	// Path returns the backing file path, or "" when the backend is not
	// file-backed (which disables the snapshot capability).
	Path() string
}
