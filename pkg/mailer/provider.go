package mailer

import (
	"context"
	"fmt"
)

// Provider delivers messages through one external transport.
type Provider interface {
	// Kind returns the provider identifier.
	Kind() Kind

	// CheckAuthorized reports whether cred can be used for sending.
	CheckAuthorized(cred Credential) bool

	// Send delivers msg. Failures are reported in the Result, not as errors.
	Send(ctx context.Context, cred Credential, msg Message) Result
}

// SafeSend validates msg and calls p.Send, converting a panic inside the
// adapter into a failed Result.
func SafeSend(ctx context.Context, p Provider, cred Credential, msg Message) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(p.Kind(), fmt.Errorf("provider panic: %v", r))
		}
	}()

	if err := msg.Validate(); err != nil {
		return Failed(p.Kind(), err)
	}
	if !p.CheckAuthorized(cred) {
		return Failed(p.Kind(), ErrUnauthorized)
	}
	return p.Send(ctx, cred, msg)
}
