// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across merge/repo/service layers.
var (
	// ErrNotFound indicates the requested event does not exist or belongs to another manager.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (conflict token mismatch
	// or a change that targets state the stored document no longer has).
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidRequest indicates a partial-update request with an unexpected shape.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")
)
