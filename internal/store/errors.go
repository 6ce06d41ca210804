package store

import "errors"

// Sentinel errors returned by store operations. Services translate these
// into the domain error taxonomy at their boundary.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
)
