package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
)

// GmailSendScope is the narrowest scope that allows sending mail.
const GmailSendScope = "https://www.googleapis.com/auth/gmail.send"

// Google builds authorized clients for stored Google grants.
type Google struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewGoogle creates a Google client factory.
func NewGoogle(cfg GoogleConfig, opts ...Option) *Google {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{GmailSendScope}
	}

	return &Google{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       scopes,
			Endpoint:     googleOAuth.Endpoint,
		},
		httpClient: o.httpClient,
	}
}

// ParseToken decodes a stored grant. A value that does not look like JSON
// is taken as a bare bearer access token.
func ParseToken(grant string) (*oauth2.Token, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return nil, ErrEmptyToken
	}
	if !strings.HasPrefix(grant, "{") {
		return &oauth2.Token{AccessToken: grant, TokenType: "Bearer"}, nil
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(grant), &tok); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrInvalidToken
	}
	return &tok, nil
}

// Usable reports whether grant can produce a valid access token, either
// directly or through a refresh.
func (g *Google) Usable(grant string) bool {
	tok, err := ParseToken(grant)
	if err != nil {
		return false
	}
	return tok.Valid() || g.canRefresh(tok)
}

// Client returns an HTTP client that authorizes requests with grant.
func (g *Google) Client(ctx context.Context, grant string) (*http.Client, error) {
	tok, err := ParseToken(grant)
	if err != nil {
		return nil, err
	}

	ctx = g.contextWithHTTPClient(ctx)

	if g.canRefresh(tok) {
		return oauth2.NewClient(ctx, g.config.TokenSource(ctx, tok)), nil
	}
	if !tok.Valid() {
		return nil, ErrTokenExpired
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)), nil
}

func (g *Google) canRefresh(tok *oauth2.Token) bool {
	return tok.RefreshToken != "" && g.config.ClientID != ""
}

func (g *Google) contextWithHTTPClient(ctx context.Context) context.Context {
	if g.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}
	return ctx
}
