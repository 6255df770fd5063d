// Package apperrors holds the error taxonomy shared by the engine's services,
// repositories and the HTTP adapter. Callers wrap these sentinels with
// fmt.Errorf("%w: ...") and test them with errors.Is.
package apperrors

import "errors"

var (
	// ErrValidation marks malformed or missing input on create/submit.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a reference to a nonexistent request, response, user or record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks an operation on an entity that is not in the expected state.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotAuthorized marks a caller that is not the intended actor (e.g. reviewer mismatch).
	ErrNotAuthorized = errors.New("not authorized")
	// ErrExtractionFailure marks an unreadable document or a schema mismatch.
	ErrExtractionFailure = errors.New("extraction failure")
	// ErrDependencyFailure marks an unavailable persistence or extraction collaborator.
	ErrDependencyFailure = errors.New("dependency failure")
	// ErrConflict marks a uniqueness violation such as a duplicate email.
	ErrConflict = errors.New("conflict")
)

// Kind returns the taxonomy sentinel that err wraps, or nil when err is
// outside the taxonomy.
func Kind(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrNotFound,
		ErrInvalidState,
		ErrNotAuthorized,
		ErrExtractionFailure,
		ErrDependencyFailure,
		ErrConflict,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
