package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateDedupeHash is returned by storage when an insert violates the
// unique constraint on listings.dedupe_hash. The resolver treats it as a
// race and retries as a merge; it never reaches callers.
var ErrDuplicateDedupeHash = errors.New("duplicate dedupe_hash")

// ErrListingNotFound is returned by storage lookups that match no row.
var ErrListingNotFound = errors.New("listing not found")

// MappingError marks a raw record that could not be translated to the
// canonical shape. Callers skip the record and log; a batch never aborts.
type MappingError struct {
	SourceCode string
	Reason     string
	Err        error
}

func (e *MappingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mapping %s: %s: %v", e.SourceCode, e.Reason, e.Err)
	}
	return fmt.Sprintf("mapping %s: %s", e.SourceCode, e.Reason)
}

func (e *MappingError) Unwrap() error { return e.Err }

// IdentityError marks a listing with no derivable dedupe key. Same handling
// as MappingError: skip and log.
type IdentityError struct {
	SourceCode string
	Reason     string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity %s: %s", e.SourceCode, e.Reason)
}

// InsufficientComparablesError is terminal for one valuation request: the
// caller must report "cannot value this property" rather than guess.
type InsufficientComparablesError struct {
	Found   int
	Minimum int
}

func (e *InsufficientComparablesError) Error() string {
	return fmt.Sprintf("insufficient comparables: found %d, need at least %d", e.Found, e.Minimum)
}
