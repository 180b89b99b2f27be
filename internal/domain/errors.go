// Package domain holds the shared error taxonomy of the search core.
package domain

import "errors"

var (
	// ErrValidation signals a malformed or incomplete query. Reported to the
	// caller as a FAIL envelope without touching any backend.
	ErrValidation = errors.New("validation error")
	// ErrDependency signals a failure in an external collaborator
	// (embedding, sparse encoder, rerank, vector index, catalog).
	ErrDependency = errors.New("dependency error")
	// ErrNotFound signals a missing resource (unknown product_id, missing
	// freshness marker). Degrades gracefully, never fatal.
	ErrNotFound = errors.New("not found")
	// ErrInternal signals an unexpected failure caught at the orchestrator
	// boundary and converted to a FAIL envelope.
	ErrInternal = errors.New("internal error")
)
