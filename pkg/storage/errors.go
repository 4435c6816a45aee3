package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when an entity does not exist for the given
	// owner. Cross-owner access and genuine absence are indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an entity with the given ID already exists.
	ErrConflict = errors.New("already exists")

	// ErrOrderViolation is returned when a turn would commit with a user
	// message timestamp earlier than the conversation's current updated_at.
	// Transcripts are append-only; out-of-order commits are rejected.
	ErrOrderViolation = errors.New("turn violates conversation ordering")
)
