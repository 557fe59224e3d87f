package oauth

import "net/http"

// Option configures a Google client factory.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient sets the base HTTP client wrapped by authorized clients and
// used for token refresh. Useful for httptest servers and custom transports.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}
