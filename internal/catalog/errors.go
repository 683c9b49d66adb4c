package catalog

import "errors"

var (
	// ErrServiceNotFound is returned when no active service matches the id.
	ErrServiceNotFound = errors.New("service not found")
)
