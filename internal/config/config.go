// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/pkg/db"
	"github.com/dmitrymomot/notemail/pkg/logger"
	"github.com/dmitrymomot/notemail/pkg/mailer/gmail"
	"github.com/dmitrymomot/notemail/pkg/mailer/resend"
	"github.com/dmitrymomot/notemail/pkg/oauth"
	"github.com/dmitrymomot/notemail/pkg/redis"
	"github.com/dmitrymomot/notemail/pkg/storage"
)

// ErrInvalidConfig wraps every load failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Jobs configures the background queue.
type Jobs struct {
	Enabled         bool `env:"JOBS_ENABLED" envDefault:"true"`
	MaxWorkers      int  `env:"JOBS_MAX_WORKERS" envDefault:"20"`
	// DispatchWorkers bounds concurrent background sends.
	DispatchWorkers int  `env:"JOBS_DISPATCH_WORKERS" envDefault:"10"`
}

// Config is the full process configuration.
type Config struct {
	Log      logger.Config
	Server   Server
	DB       db.Config
	Jobs     Jobs
	Dispatch dispatch.Config
	Gmail    gmail.Config
	Google   oauth.GoogleConfig
	Resend   resend.Config
	Storage  storage.Config
	// Redis enables the shared preview cache. Without a URL previews are
	// cached in memory.
	Redis redis.Config
}

// Load reads an optional .env file, then parses the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("load env file: %w", err))
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	if cfg.Dispatch.Timeout >= cfg.Server.WriteTimeout {
		return nil, fmt.Errorf("%w: DISPATCH_TIMEOUT must be shorter than HTTP_WRITE_TIMEOUT", ErrInvalidConfig)
	}
	return &cfg, nil
}
