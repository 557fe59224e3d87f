package oauth

// GoogleConfig holds Google OAuth client credentials. Both fields are
// optional; without them stored grants cannot be refreshed.
type GoogleConfig struct {
	ClientID     string   `env:"GOOGLE_OAUTH_CLIENT_ID"`
	ClientSecret string   `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	Scopes       []string `env:"GOOGLE_OAUTH_SCOPES" envSeparator:","`
}
