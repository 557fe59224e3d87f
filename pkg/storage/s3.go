package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive stores and retrieves rendered message bodies.
type Archive interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Option configures S3.
type Option func(*s3.Options)

// WithHTTPClient overrides the transport used by the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *s3.Options) { o.HTTPClient = c }
}

// S3 is an Archive on S3-compatible storage.
type S3 struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// New validates cfg and builds the client. It does not contact the bucket.
func New(cfg Config, opts ...Option) (*S3, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		// Plain bodies keep S3-compatible backends without trailer support working.
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		}
		for _, opt := range opts {
			opt(o)
		}
	})

	return &S3{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}, nil
}

func (s *S3) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return wrapS3Error(err, ErrUploadFailed)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapS3Error(err, ErrReadFailed)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return data, nil
}

// URL returns a presigned GET URL valid for expiry.
func (s *S3) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", wrapS3Error(err, ErrPresignFailed)
	}
	return req.URL, nil
}

var _ Archive = (*S3)(nil)

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// SendKey is the archive key for a send record's HTML.
func SendKey(ownerID, sendID string) string {
	return "sends/" + segment(ownerID) + "/" + segment(sendID) + ".html"
}

func segment(s string) string {
	s = strings.Trim(s, " /\\")
	s = strings.ReplaceAll(s, "..", "")
	s = unsafeSegment.ReplaceAllString(s, "_")
	if s == "" {
		s = "_"
	}
	return url.PathEscape(s)
}
