package gmail

// Config holds Gmail API settings.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	APIBaseURL string `env:"GMAIL_API_BASE_URL" envDefault:"https://gmail.googleapis.com"`
}
