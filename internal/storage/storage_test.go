package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"sunnyapi/internal/config"
	"sunnyapi/internal/model"
)

func TestImageKey(t *testing.T) {
	assert.Equal(t, "services/svc-1/img-1.jpg", ImageKey(model.KindService, "svc-1", "img-1", "image/jpeg"))
	assert.Equal(t, "ads/ad-1/img-2.webp", ImageKey(model.KindAd, "ad-1", "img-2", "image/webp"))
	assert.Equal(t, "ads/ad-1/img-3", ImageKey(model.KindAd, "ad-1", "img-3", "application/pdf"))
}

func TestNewMinIO_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MinIOConfig
		want string
	}{
		{"no endpoint", config.MinIOConfig{AccessKey: "a", SecretKey: "s", Bucket: "b"}, "minio endpoint is required"},
		{"no credentials", config.MinIOConfig{Endpoint: "localhost:9000", Bucket: "b"}, "minio credentials are required"},
		{"no bucket", config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, "minio bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMinIO(context.Background(), tt.cfg)
			assert.Nil(t, s)
			assert.EqualError(t, err, tt.want)
		})
	}
}
