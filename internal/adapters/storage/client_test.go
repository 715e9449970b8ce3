package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"leadflow_backend/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	endpoint string
}

func (c testConfig) GetMinIOEndpoint() string          { return c.endpoint }
func (c testConfig) GetMinIOAccessKey() string         { return "access" }
func (c testConfig) GetMinIOSecretKey() string         { return "secret-key-123" }
func (c testConfig) GetMinIOUseSSL() bool              { return false }
func (c testConfig) GetMinIORegion() string            { return "us-east-1" }
func (c testConfig) GetMinIOPresignTTL() time.Duration { return time.Hour }
func (c testConfig) IsMinIOEnabled() bool              { return c.endpoint != "" }

func TestParseObjectURL(t *testing.T) {
	tests := []struct {
		raw    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://templates/offers/brochure.pdf", "templates", "offers/brochure.pdf", true},
		{"S3://templates/a.pdf", "templates", "a.pdf", true},
		{"s3://templates/", "", "", false},
		{"https://cdn.example/a.pdf", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			bucket, key, ok := ParseObjectURL(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.bucket, bucket)
			assert.Equal(t, tc.key, key)
		})
	}
}

func TestResolvePresignsObjectReferences(t *testing.T) {
	p, err := NewPresigner(testConfig{endpoint: "localhost:9000"})
	require.NoError(t, err)
	require.NotNil(t, p)

	signed, err := p.Resolve(context.Background(), "s3://templates/offers/brochure.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, "http://localhost:9000/templates/offers/brochure.pdf?"))
	assert.Contains(t, signed, "X-Amz-Signature=")
	assert.Contains(t, signed, "X-Amz-Expires=3600")
}

func TestResolvePassesThroughPlainURLs(t *testing.T) {
	var p *Presigner

	got, err := p.Resolve(context.Background(), "https://cdn.example/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/a.pdf", got)

	_, err = p.Resolve(context.Background(), "s3://templates/a.pdf")
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
}

func TestNewPresignerDisabled(t *testing.T) {
	p, err := NewPresigner(testConfig{})
	require.NoError(t, err)
	assert.Nil(t, p)
}
