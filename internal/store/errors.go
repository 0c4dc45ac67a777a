// Package store is the persistence collaborator: one repository per entity
// kind over gorm, plus the error kinds shared by the core.
package store

import "errors"

var (
	// ErrNotFound reports that a referenced entity was absent at read time.
	ErrNotFound = errors.New("not found")
	// ErrPersistence reports a failed read or write against the database.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalid reports a record that failed presence or format checks.
	ErrInvalid = errors.New("invalid record")
)
