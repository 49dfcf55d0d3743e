package storage

import (
	"context"
	"testing"

	"github.com/recipe-app/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsMinio(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{
		Backend: "MINIO",
		Minio: config.MinioConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minio",
			SecretKey: "minio123",
			Bucket:    "recipe-media",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "recipe-media", s.Bucket())
	assert.NoError(t, s.Close())
}

func TestNewValidatesConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{"unknown backend", config.StorageConfig{Backend: "s3"}, `unknown storage backend "s3"`},
		{"minio endpoint", config.StorageConfig{Backend: "minio"}, "minio endpoint is required"},
		{
			"minio credentials",
			config.StorageConfig{Minio: config.MinioConfig{Endpoint: "localhost:9000", Bucket: "b"}},
			"minio access key and secret key are required",
		},
		{"gcs bucket", config.StorageConfig{Backend: "gcs"}, "gcs bucket is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), tc.cfg)
			require.Error(t, err)
			assert.EqualError(t, err, tc.want)
		})
	}
}
