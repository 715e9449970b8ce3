// Package storage resolves template media stored in MinIO into presigned URLs.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const objectScheme = "s3"

// DefaultPresignTTL applies when no TTL is configured.
const DefaultPresignTTL = 24 * time.Hour

// Presigner turns s3://bucket/key references into time-limited GET URLs.
type Presigner struct {
	client *minio.Client
	ttl    time.Duration
}

// NewPresigner returns nil when MinIO is not configured.
func NewPresigner(cfg config.MinIOConfig) (*Presigner, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
		Region: cfg.GetMinIORegion(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ttl := cfg.GetMinIOPresignTTL()
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &Presigner{client: client, ttl: ttl}, nil
}

// Resolve presigns object references and passes other URLs through.
func (p *Presigner) Resolve(ctx context.Context, rawURL string) (string, error) {
	bucket, key, ok := ParseObjectURL(rawURL)
	if !ok {
		return rawURL, nil
	}
	if p == nil {
		return "", apperr.Unavailable("object storage not configured", nil)
	}

	signed, err := p.client.PresignedGetObject(ctx, bucket, key, p.ttl, url.Values{})
	if err != nil {
		return "", apperr.Unavailable("failed to presign template media", err)
	}
	return signed.String(), nil
}

// ParseObjectURL splits s3://bucket/key. Both parts must be non-empty.
func ParseObjectURL(rawURL string) (bucket, key string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !strings.EqualFold(u.Scheme, objectScheme) {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", false
	}
	return u.Host, key, true
}
