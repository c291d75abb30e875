package usecase

import "errors"

// Sentinel errors the status API maps onto response codes. Services
// wrap them with fmt.Errorf("%w: ...") so handlers match with errors.Is.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
