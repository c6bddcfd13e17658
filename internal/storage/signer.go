// Package storage presigns playback URLs stored as s3://bucket/key against
// an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/iliyamo/video-access/internal/config"
)

const scheme = "s3://"

var ErrBadObjectURL = errors.New("object url must look like s3://bucket/key")

// Signer issues time-limited GET URLs. A nil *Signer passes every URL
// through unchanged.
type Signer struct {
	presign *s3.PresignClient
	ttl     time.Duration
}

// NewSigner returns nil when storage is not configured.
func NewSigner(ctx context.Context, cfg config.StorageConfig) (*Signer, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Signer{presign: s3.NewPresignClient(client), ttl: ttl}, nil
}

// PlaybackURL presigns s3:// URLs; anything else is returned as is.
func (s *Signer) PlaybackURL(ctx context.Context, raw string) (string, error) {
	if s == nil || !strings.HasPrefix(raw, scheme) {
		return raw, nil
	}
	bucket, key, err := ParseObjectURL(raw)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = s.ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", raw, err)
	}
	return req.URL, nil
}

// ParseObjectURL splits s3://bucket/key.
func ParseObjectURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "s3" {
		return "", "", ErrBadObjectURL
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", ErrBadObjectURL
	}
	return u.Host, key, nil
}
