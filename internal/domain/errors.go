package domain

import "github.com/go-faster/errors"

var (
	// ErrNotFound means no employee matches the alias/country pair.
	ErrNotFound = errors.New("employee not found")
	// ErrValidation means the input failed validation.
	ErrValidation = errors.New("invalid data")
	// ErrFetch means an external source could not be read. It aborts a sync run.
	ErrFetch = errors.New("fetch from source failed")
	// ErrPersistence means a database write failed.
	ErrPersistence = errors.New("persistence failed")
	// ErrAmbiguousMatch means an alias/country pair resolved to more than one employee.
	ErrAmbiguousMatch = errors.New("alias and country match more than one employee")
	// ErrSearchUnavailable means no search index is configured.
	ErrSearchUnavailable = errors.New("search is not configured")
)
