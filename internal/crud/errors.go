package crud

import "errors"

var (
	// ErrNotFound covers unknown model names and missing records. It is also
	// what callers see for ErrNotAuthorized so that existence of a model or
	// record is never leaked through the error shape.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized means the actor lacks the action permission on the
	// root model. Unauthorized relations and filter keys are skipped
	// silently instead.
	ErrNotAuthorized = errors.New("not authorized")
)
