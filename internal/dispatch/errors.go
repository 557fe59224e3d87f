package dispatch

import "errors"

var (
	// ErrInvalidRequest reports a request missing required fields.
	ErrInvalidRequest = errors.New("dispatch: invalid request")

	// ErrNoAuthorizedProvider means no provider holds a usable credential
	// for the owner. The send record is stored as failed.
	ErrNoAuthorizedProvider = errors.New("dispatch: no authorized provider")

	// ErrNotRetryable is returned when retrying a record that is not failed.
	ErrNotRetryable = errors.New("dispatch: send is not retryable")

	// ErrDispatchTimeout means the provider did not answer before the
	// dispatch deadline. The record stays pending until the send finishes
	// or the sweep fails it.
	ErrDispatchTimeout = errors.New("dispatch: timed out waiting for provider")

	// ErrKeyInUse means the idempotency key already belongs to another owner.
	ErrKeyInUse = errors.New("dispatch: idempotency key already in use")

	// ErrArchiveDisabled is returned by archive reads when no archive is configured.
	ErrArchiveDisabled = errors.New("dispatch: archive is not configured")
)

// StaleMessage is stored on records failed by SweepStale.
const StaleMessage = "send did not complete before deadline"
