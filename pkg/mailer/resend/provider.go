// Package resend implements mailer.Provider on the Resend API.
//
// The credential token is the owner's Resend API key.
package resend

import (
	"context"
	"errors"
	"net/http"

	"github.com/resend/resend-go/v3"

	"github.com/dmitrymomot/notemail/pkg/mailer"
)

// Provider implements mailer.Provider using the Resend API.
type Provider struct {
	httpClient *http.Client
	config     Config
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// New creates a Resend provider.
func New(cfg Config, opts ...Option) *Provider {
	p := &Provider{config: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Kind implements mailer.Provider.
func (p *Provider) Kind() mailer.Kind {
	return mailer.KindResend
}

// CheckAuthorized implements mailer.Provider.
func (p *Provider) CheckAuthorized(cred mailer.Credential) bool {
	return cred.Authorized && cred.Token != "" && p.config.SenderEmail != ""
}

// Send implements mailer.Provider.
func (p *Provider) Send(ctx context.Context, cred mailer.Credential, msg mailer.Message) mailer.Result {
	req := &resend.SendEmailRequest{
		From:    mailer.Recipient(p.config.SenderName, p.config.SenderEmail),
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.PlainText(),
		Headers: msg.Headers,
	}
	if len(msg.Tags) > 0 {
		req.Tags = convertTags(msg.Tags)
	}

	resp, err := p.client(cred.Token).Emails.SendWithContext(ctx, req)
	if err != nil {
		return mailer.Failed(mailer.KindResend, err)
	}
	if resp == nil || resp.Id == "" {
		return mailer.Failed(mailer.KindResend, errors.New("empty response from resend"))
	}
	return mailer.Sent(resp.Id)
}

func (p *Provider) client(apiKey string) *resend.Client {
	if p.httpClient != nil {
		return resend.NewCustomClient(p.httpClient, apiKey)
	}
	return resend.NewClient(apiKey)
}

// convertTags maps tags to Resend's name/value pairs. Resend only accepts
// ASCII letters, digits, underscores and dashes, so other bytes become '_'.
func convertTags(tags map[string]string) []resend.Tag {
	result := make([]resend.Tag, 0, len(tags))
	for name, value := range tags {
		result = append(result, resend.Tag{
			Name:  tagSafe(name),
			Value: tagSafe(value),
		})
	}
	return result
}

func tagSafe(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

var _ mailer.Provider = (*Provider)(nil)

