package codebase

import (
	"fmt"
)

const (
	creationErrorTemplateConstant = "unable to create codebase at revision %q: %v"
)

// CreationError reports that a codebase could not be materialized at a revision.
// Migrations recover from it by folding the revision into the next batch.
type CreationError struct {
	RevisionID string
	Cause      error
}

// Error describes the failure.
func (creationError CreationError) Error() string {
	return fmt.Sprintf(creationErrorTemplateConstant, creationError.RevisionID, creationError.Cause)
}

// Unwrap exposes the underlying cause.
func (creationError CreationError) Unwrap() error {
	return creationError.Cause
}
