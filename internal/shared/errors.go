package shared

import "errors"

// Error taxonomy shared by the ledger, workflow and numbering components.
// Validation and not-found errors are terminal for the request; conflict and
// contention errors are retryable by re-invoking the whole operation, since
// no partial state persists on failure.
var (
	// ErrValidation indicates malformed or inconsistent input, detected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness collision.
	ErrConflict = errors.New("conflict")
	// ErrContended indicates lock acquisition timed out.
	ErrContended = errors.New("resource contended")
	// ErrNotFound indicates a referenced tenant, actor or movement is absent.
	ErrNotFound = errors.New("not found")
)
