package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a record with the same unique key already exists.
	ErrConflict = errors.New("repository: conflict")
)
