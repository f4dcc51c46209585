package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"replayhub/internal/platform/config"
)

func TestMemoryStore_Presign(t *testing.T) {
	store := NewMemoryStore("http://storage.local")
	ctx := context.Background()

	up, err := store.PresignUpload(ctx, "records", "1/abc", 30*time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(up)
	require.NoError(t, err)
	assert.Equal(t, "/records/1/abc", u.Path)
	assert.Equal(t, "PUT", u.Query().Get("method"))
	assert.Equal(t, "1800", u.Query().Get("expires"))

	down, err := store.PresignDownload(ctx, "records", "1/abc", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, down, "method=GET")
	assert.Contains(t, down, "expires=900")
}

func TestMemoryStore_TagReplacesSet(t *testing.T) {
	store := NewMemoryStore("http://storage.local")
	ctx := context.Background()

	assert.Nil(t, store.Tags("records", "k"))

	require.NoError(t, store.Tag(ctx, "records", "k", "retention", "vault"))
	assert.Equal(t, map[string]string{"retention": "vault"}, store.Tags("records", "k"))

	require.NoError(t, store.Tag(ctx, "records", "k", "retention", "default"))
	assert.Equal(t, map[string]string{"retention": "default"}, store.Tags("records", "k"))

	// copies are detached
	store.Tags("records", "k")["retention"] = "tampered"
	assert.Equal(t, "default", store.Tags("records", "k")["retention"])
}

func TestS3Store_PresignUsesEndpoint(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.StorageConfig{
		Region:          "us-east-1",
		Endpoint:        "http://minio.local:9000",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	raw, err := store.PresignUpload(context.Background(), "records", "7/deadbeef", 30*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "minio.local:9000", u.Host)
	assert.Equal(t, "/records/7/deadbeef", u.Path)
	assert.Equal(t, "1800", u.Query().Get("X-Amz-Expires"))
	assert.True(t, strings.HasPrefix(u.Query().Get("X-Amz-Credential"), "AKIDEXAMPLE/"))

	raw, err = store.PresignDownload(context.Background(), "records", "7/deadbeef", 15*time.Minute)
	require.NoError(t, err)
	u, err = url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestNewObjectStoreFromConfig(t *testing.T) {
	store, err := NewObjectStoreFromConfig(context.Background(), config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewObjectStoreFromConfig(context.Background(), config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}
