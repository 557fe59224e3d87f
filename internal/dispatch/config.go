package dispatch

import "time"

// Config holds pipeline settings.
type Config struct {
	// Primary is the provider tried first when a request names none.
	Primary string `env:"DISPATCH_PRIMARY_PROVIDER" envDefault:"gmail"`
	// Priority is the fallback order after the primary.
	Priority []string `env:"DISPATCH_PROVIDER_PRIORITY" envSeparator:"," envDefault:"gmail,resend"`

	Timeout    time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"30s"`
	SendLimit  time.Duration `env:"DISPATCH_SEND_LIMIT" envDefault:"2m"`
	PendingTTL time.Duration `env:"DISPATCH_PENDING_TTL" envDefault:"15m"`
	PreviewTTL time.Duration `env:"DISPATCH_PREVIEW_TTL" envDefault:"10m"`

	// Locale selects month names for date bindings.
	Locale string `env:"DISPATCH_LOCALE" envDefault:"en"`
}
