package purchase

import "errors"

var (
	// ErrInvalidRequest: malformed basket or unknown box; nothing was
	// mutated.
	ErrInvalidRequest = errors.New("invalid purchase request")

	// ErrInactiveResource: the user or a referenced box is disabled.
	ErrInactiveResource = errors.New("resource is inactive")

	// ErrConcurrencyConflict: the purchase id lost an insert race and
	// the competing attempt did not complete either.
	ErrConcurrencyConflict = errors.New("purchase id is being processed concurrently")

	// ErrAuditNotFound: no audit record for the purchase id.
	ErrAuditNotFound = errors.New("purchase audit not found")
)
