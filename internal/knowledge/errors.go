package knowledge

import "errors"

// Sentinel errors forming the engine's error taxonomy. Callers match with
// [errors.Is]; the engine never retries internally and never swallows an
// error except the BuildContext empty-result case, which is a normal
// empty-string outcome.
var (
	// ErrNotFound reports that a document id does not exist for the given
	// tenant. It is returned identically whether the id is unknown or
	// belongs to another tenant, so existence never leaks across tenants.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidInput reports a rejected create or update: missing required
	// fields, an unknown document type, or a failed embedding generation.
	// Nothing is persisted when a write fails with this error.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSearchFailed reports that the query embedding could not be
	// generated. Search surfaces this instead of degrading to lexical-only
	// matching.
	ErrSearchFailed = errors.New("search failed")
)
