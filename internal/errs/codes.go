// Package errs provides the structured ErrorKind taxonomy used across the
// Store, RQL validator, Planner, and response envelope (spec.md 7).
package errs

// Kind is one of the error kinds named in spec.md 7. It is the stable,
// machine-readable tag surfaced as response.error.code.
type Kind string

const (
	// KindValidationError covers RQL parse failures, unknown fields, and
	// bad operators.
	KindValidationError Kind = "ValidationError"

	// KindLockBusy is returned when the exclusive store lock is not
	// acquired within the configured busy timeout.
	KindLockBusy Kind = "LockBusy"

	// KindSchemaTooNew is returned when the on-disk schema version is
	// strictly greater than the version this build supports.
	KindSchemaTooNew Kind = "SchemaTooNew"

	// KindMigrationFailed is returned when a migration step aborts; the
	// store is left bit-identical to its pre-migration state.
	KindMigrationFailed Kind = "MigrationFailed"

	// KindIndexCorrupt is returned when the lexical or vector index
	// disagrees with the chunk rows it is meant to describe.
	KindIndexCorrupt Kind = "IndexCorrupt"

	// KindNotFound is returned by rm when no doc matches the given id or
	// path.
	KindNotFound Kind = "NotFound"

	// KindBudgetExceeded is never raised; budgets are enforced by
	// clamping in the Context Packer, not rejection. Kept in the
	// taxonomy so callers can pattern-match on it defensively.
	KindBudgetExceeded Kind = "BudgetExceeded"

	// KindIoError covers underlying storage-engine errors not otherwise
	// classified.
	KindIoError Kind = "IoError"

	// KindInvalidSnapshot is returned when a supplied snapshot token
	// cannot be parsed.
	KindInvalidSnapshot Kind = "InvalidSnapshot"
)

// retryableKinds never fires in the core today (no network I/O lives
// below the Store boundary) but is kept so IsRetryable has a real
// decision to make rather than always returning false.
var retryableKinds = map[Kind]bool{
	KindLockBusy: true,
}
