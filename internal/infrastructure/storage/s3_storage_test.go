package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/erp/setoff/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, &config.StorageConfig{AccessKey: "k", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, &config.StorageConfig{Bucket: "b", AccessKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key")
	})

	t.Run("valid config", func(t *testing.T) {
		s, err := NewS3ObjectStorage(ctx, &config.StorageConfig{
			Bucket:       "setoff",
			AccessKey:    "k",
			SecretKey:    "s",
			Endpoint:     "localhost:9000",
			UsePathStyle: true,
		}, WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.Equal(t, "setoff", s.Bucket())
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		expected string
	}{
		{"", false, ""},
		{"minio:9000", false, "http://minio:9000"},
		{"minio:9000", true, "https://minio:9000"},
		{"https://s3.example.com", false, "https://s3.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := normalizeEndpoint(tt.endpoint, tt.useSSL)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := normalizeEndpoint("http://", false)
	assert.Error(t, err)
}

type recordedPut struct {
	path        string
	contentType string
	body        string
}

func newFakeS3(t *testing.T, status int) (*httptest.Server, *[]recordedPut) {
	t.Helper()
	var mu sync.Mutex
	puts := []recordedPut{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			puts = append(puts, recordedPut{path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: string(body)})
			mu.Unlock()
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &puts
}

func TestS3ObjectStorage_Put(t *testing.T) {
	srv, puts := newFakeS3(t, http.StatusOK)
	s, err := NewS3ObjectStorage(context.Background(), &config.StorageConfig{
		Bucket:       "setoff",
		AccessKey:    "k",
		SecretKey:    "s",
		Endpoint:     srv.URL,
		UsePathStyle: true,
	})
	require.NoError(t, err)

	err = s.Put(context.Background(), "statements/a.csv", []byte("sequence\n1\n"), "text/csv")
	require.NoError(t, err)

	require.Len(t, *puts, 1)
	assert.Equal(t, "/setoff/statements/a.csv", (*puts)[0].path)
	assert.Equal(t, "text/csv", (*puts)[0].contentType)
	assert.Contains(t, (*puts)[0].body, "sequence")
}

func TestS3ObjectStorage_PutErrors(t *testing.T) {
	srv, _ := newFakeS3(t, http.StatusForbidden)
	s, err := NewS3ObjectStorage(context.Background(), &config.StorageConfig{
		Bucket:       "setoff",
		AccessKey:    "k",
		SecretKey:    "s",
		Endpoint:     srv.URL,
		UsePathStyle: true,
	})
	require.NoError(t, err)

	assert.Error(t, s.Put(context.Background(), "", []byte("x"), "text/plain"))
	err = s.Put(context.Background(), "k", []byte("x"), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to put object k")
}

func TestMemoryObjectStorage(t *testing.T) {
	s := NewMemoryObjectStorage()
	body := []byte("{}")
	require.NoError(t, s.Put(context.Background(), "b", body, "application/json"))
	require.NoError(t, s.Put(context.Background(), "a", []byte("x"), "text/plain"))
	body[0] = '['

	obj, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, "{}", string(obj.Body))
	assert.Equal(t, "application/json", obj.ContentType)
	assert.Equal(t, []string{"a", "b"}, s.Keys())
	assert.Error(t, s.Put(context.Background(), "", nil, ""))
}
