package mailer

import (
	"fmt"

	"github.com/dmitrymomot/notemail/pkg/sanitizer"
)

// Kind identifies a provider variant.
type Kind string

const (
	KindGmail  Kind = "gmail"
	KindResend Kind = "resend"
)

// Credential is an owner's grant for one provider. Token is opaque to
// this package; each provider interprets it.
type Credential struct {
	Kind       Kind
	Token      string
	Authorized bool
}

// Message is a fully rendered email.
type Message struct {
	Headers map[string]string
	Tags    map[string]string
	Subject string
	HTML    string
	Text    string
	To      []string
}

// Validate checks the fields every provider requires.
func (m Message) Validate() error {
	switch {
	case len(m.To) == 0:
		return ErrNoRecipient
	case m.Subject == "":
		return ErrNoSubject
	case m.HTML == "":
		return ErrNoContent
	}
	return nil
}

// PlainText returns Text, or a rendering derived from HTML when Text is empty.
func (m Message) PlainText() string {
	if m.Text != "" {
		return m.Text
	}
	return sanitizer.ToText(m.HTML)
}

// Result is the uniform outcome of a send.
type Result struct {
	Err               error
	ProviderMessageID string
	Success           bool
}

// Sent builds a successful Result.
func Sent(messageID string) Result {
	return Result{Success: true, ProviderMessageID: messageID}
}

// Failed builds a failed Result whose Err wraps ErrSendFailed.
func Failed(provider Kind, err error) Result {
	return Result{Err: &SendError{Provider: provider, Err: err}}
}

// Recipient formats a name and email into RFC 5322 address format.
func Recipient(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
