// Package gmail implements mailer.Provider on the Gmail API.
//
// The credential token is a stored Google grant understood by pkg/oauth.
// Messages are sent as base64url-encoded MIME through
// users.messages.send.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dmitrymomot/notemail/pkg/mailer"
	"github.com/dmitrymomot/notemail/pkg/oauth"
)

// userID addresses the mailbox owning the OAuth grant.
const userID = "me"

// Provider implements mailer.Provider using the Gmail API.
type Provider struct {
	tokens   *oauth.Google
	now      func() time.Time
	endpoint string
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock overrides the clock used for the Date header.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// New creates a Gmail provider. tokens turns stored grants into authorized clients.
func New(cfg Config, tokens *oauth.Google, opts ...Option) *Provider {
	base := cfg.APIBaseURL
	if base == "" {
		base = "https://gmail.googleapis.com"
	}
	p := &Provider{
		tokens:   tokens,
		now:      time.Now,
		endpoint: strings.TrimRight(base, "/") + "/",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Kind implements mailer.Provider.
func (p *Provider) Kind() mailer.Kind {
	return mailer.KindGmail
}

// CheckAuthorized implements mailer.Provider.
func (p *Provider) CheckAuthorized(cred mailer.Credential) bool {
	return cred.Authorized && p.tokens.Usable(cred.Token)
}

// Send implements mailer.Provider.
func (p *Provider) Send(ctx context.Context, cred mailer.Credential, msg mailer.Message) mailer.Result {
	id, err := p.send(ctx, cred, msg)
	if err != nil {
		return mailer.Failed(mailer.KindGmail, err)
	}
	return mailer.Sent(id)
}

func (p *Provider) send(ctx context.Context, cred mailer.Credential, msg mailer.Message) (string, error) {
	raw, err := buildMIME(msg, p.now())
	if err != nil {
		return "", fmt.Errorf("build message: %w", err)
	}

	client, err := p.tokens.Client(ctx, cred.Token)
	if err != nil {
		return "", err
	}

	svc, err := gmail.NewService(ctx,
		option.WithHTTPClient(client),
		option.WithEndpoint(p.endpoint),
	)
	if err != nil {
		return "", fmt.Errorf("gmail client: %w", err)
	}

	out, err := svc.Users.Messages.
		Send(userID, &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}).
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			if gerr.Message != "" {
				return "", fmt.Errorf("gmail api: status=%d: %s", gerr.Code, gerr.Message)
			}
			return "", fmt.Errorf("gmail api: status=%d", gerr.Code)
		}
		return "", err
	}
	if out.Id == "" {
		return "", errors.New("gmail api: response missing message id")
	}
	return out.Id, nil
}

var _ mailer.Provider = (*Provider)(nil)
