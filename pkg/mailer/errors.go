package mailer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRecipient indicates no recipient was specified.
	ErrNoRecipient = errors.New("mailer: email must have at least one recipient")

	// ErrNoSubject indicates no subject was provided.
	ErrNoSubject = errors.New("mailer: email must have a subject")

	// ErrNoContent indicates no HTML content was provided.
	ErrNoContent = errors.New("mailer: email must have HTML content")

	// ErrUnauthorized indicates the credential cannot be used with the provider.
	ErrUnauthorized = errors.New("mailer: credential not authorized")

	// ErrSendFailed indicates email sending failed.
	ErrSendFailed = errors.New("mailer: failed to send email")
)

// SendError is the failure carried by a Result. It always matches ErrSendFailed.
type SendError struct {
	Provider Kind
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mailer: %s: %v", e.Provider, e.Err)
}

func (e *SendError) Unwrap() []error {
	return []error{ErrSendFailed, e.Err}
}
