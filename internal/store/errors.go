package store

import (
	"errors"
	"fmt"
)

// Sentinel errors callers branch on with errors.Is.
var (
	// ErrNotFound is returned when an entity id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateLink is returned when an identical link tuple already
	// exists. Duplicate attempts are a reported error, never a silent no-op.
	ErrDuplicateLink = errors.New("link already exists")

	// ErrSnapshotNotFound is returned when a snapshot id has no journal
	// entry or its file is missing.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// ConstraintError reports a referential-integrity rejection: a statement
// tried to delete a still-referenced row or insert a reference to a missing
// one. The store checks the invariant after every statement, so with a
// correct plan ordering this should not occur; when it does it must stay
// distinguishable from plain I/O failures.
type ConstraintError struct {
	Table string
	Err   error
}

func (e *ConstraintError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("constraint violation on %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("constraint violation: %v", e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a referential-integrity rejection.
func IsConstraint(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// PartialCascadeError reports a sequential deletion plan that stopped
// mid-way. Steps before the failed one are already committed; they removed
// only rows that genuinely depended on the entity, so no orphan exists, but
// the caller must decide whether to retry the remainder or surface a
// manual-cleanup warning.
type PartialCascadeError struct {
	EntityType string
	EntityID   int64
	Step       int    // zero-based index of the failed step
	Relation   string // relation the failed step targeted
	Removed    map[string]int64
	Err        error
}

func (e *PartialCascadeError) Error() string {
	return fmt.Sprintf("cascade delete of %s %d stopped at step %d (%s): %v",
		e.EntityType, e.EntityID, e.Step+1, e.Relation, e.Err)
}

func (e *PartialCascadeError) Unwrap() error { return e.Err }

// IntegrityError reports that a restored database file failed its
// post-restore read check. The pre-restore safety snapshot is the recovery
// path; this error must never be suppressed.
type IntegrityError struct {
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("restored database failed integrity check: %v", e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }
