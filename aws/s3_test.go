package aws

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	missing bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		if f.missing {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = string(b)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func opts(url string) S3Opts {
	return S3Opts{
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Region:          "us-east-1",
		Bucket:          "snapshots",
		Endpoint:        url,
	}
}

func TestPutSnapshot(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, err := NewS3(context.Background(), opts(srv.URL))
	require.NoError(t, err)

	require.NoError(t, c.PutSnapshot(context.Background(), "snapshots/alice/1.html", []byte("<html></html>")))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "<html></html>", fake.objects["/snapshots/snapshots/alice/1.html"])
}

func TestNewS3MissingBucket(t *testing.T) {
	srv := httptest.NewServer(&fakeS3{missing: true})
	defer srv.Close()

	_, err := NewS3(context.Background(), opts(srv.URL))
	assert.Error(t, err)
}
