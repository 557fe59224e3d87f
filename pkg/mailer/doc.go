// Package mailer defines the provider abstraction used to deliver rendered email.
//
// A Provider wraps one external transport (Gmail, Resend, ...) and exposes
// exactly two operations: CheckAuthorized reports whether a credential can
// be used, and Send delivers a Message. Send never returns a Go error and
// never panics past the adapter boundary; every transport failure is folded
// into a Result with Success false and Err set to a *SendError.
//
//	res := mailer.SafeSend(ctx, provider, cred, mailer.Message{
//	    To:      []string{"user@example.com"},
//	    Subject: "Weekly digest",
//	    HTML:    "<p>Hello</p>",
//	})
//	if !res.Success {
//	    log.Warn("send failed", "error", res.Err)
//	}
//
// Adding a provider means adding a Provider implementation in its own
// subpackage. Callers select between providers; no provider knows about
// the others.
package mailer
