package storage

// Config holds S3 connection settings. Endpoint and PathStyle target
// MinIO and other S3-compatible services.
type Config struct {
	Bucket    string `env:"S3_BUCKET"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	PathStyle bool   `env:"S3_PATH_STYLE" envDefault:"false"`
}

// Enabled reports whether archiving is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

func (c Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}
