package store

import "errors"

var (
	// ErrNotFound indicates the row does not exist, is inactive, or belongs to another owner.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateKey indicates a send record with the same idempotency key already exists.
	ErrDuplicateKey = errors.New("store: duplicate idempotency key")

	// ErrStatusConflict indicates a transition whose expected current status did not match.
	ErrStatusConflict = errors.New("store: status conflict")
)
