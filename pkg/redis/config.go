package redis

import "time"

// Config holds connection settings. An empty URL disables Redis.
type Config struct {
	URL string `env:"REDIS_URL"`

	PoolSize     int `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`

	// Startup retries; attempt n waits n*RetryInterval.
	RetryAttempts int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`

	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Enabled reports whether a URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Options converts the config into Open options.
func (c Config) Options() []Option {
	return []Option{
		WithPoolSize(c.PoolSize),
		WithMinIdleConns(c.MinIdleConns),
		WithRetry(c.RetryAttempts, c.RetryInterval),
		WithTimeouts(c.DialTimeout, c.ReadTimeout, c.WriteTimeout),
	}
}
