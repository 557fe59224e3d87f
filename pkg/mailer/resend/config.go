package resend

// Config holds Resend sender identity.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	SenderEmail string `env:"RESEND_FROM_EMAIL"`
	SenderName  string `env:"RESEND_FROM_NAME"`
}
