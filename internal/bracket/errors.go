package bracket

import "errors"

// Error classes shared by the engines, the store and the HTTP layer.
// Specific errors wrap one of these so callers can switch on the class.
var (
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("operation not allowed for the current user")
	ErrConflict    = errors.New("conflicting tournament state")
	ErrNotFound    = errors.New("requested resource not found")
	ErrPersistence = errors.New("storage operation failed")
)
