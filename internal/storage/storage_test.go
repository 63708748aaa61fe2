package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sceneflow-go/internal/config"
	"sceneflow-go/internal/logger"
)

type flakyUploader struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyUploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if f.calls.Add(1) <= f.failures {
		return "", errors.New("connection reset")
	}
	return "mem://" + key, nil
}

func TestRetryingRecovers(t *testing.T) {
	next := &flakyUploader{failures: 2}
	u := WithRetry(next, 3, time.Millisecond, logger.Discard())
	got, err := u.Upload(context.Background(), "a.json", "application/json", []byte("{}"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got != "mem://a.json" || next.calls.Load() != 3 {
		t.Fatalf("got %q after %d calls", got, next.calls.Load())
	}
}

func TestRetryingGivesUp(t *testing.T) {
	next := &flakyUploader{failures: 10}
	u := WithRetry(next, 2, time.Millisecond, logger.Discard())
	_, err := u.Upload(context.Background(), "a.json", "application/json", nil)
	var ue *UploadError
	if !errors.As(err, &ue) || ue.Key != "a.json" {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if next.calls.Load() != 2 {
		t.Fatalf("calls = %d", next.calls.Load())
	}
}

func TestLocalUpload(t *testing.T) {
	dir := t.TempDir()
	u := NewLocal(dir)
	got, err := u.Upload(context.Background(), "reports/x_script.json", "application/json", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	parsed, err := url.Parse(got)
	if err != nil || parsed.Scheme != "file" {
		t.Fatalf("url = %q", got)
	}
	data, err := os.ReadFile(parsed.Path)
	if err != nil || string(data) != `{"ok":true}` {
		t.Fatalf("read back %q, %v", data, err)
	}
}

func TestS3Upload(t *testing.T) {
	var gotPath, gotType atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			gotPath.Store(r.URL.Path)
			gotType.Store(r.Header.Get("Content-Type"))
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s3, err := NewS3(config.StorageConfig{
		Endpoint:  srv.URL,
		Bucket:    "scenes",
		AccessKey: "ak",
		SecretKey: "sk",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s3.Upload(context.Background(), "id_script.json", "application/json", []byte("{}"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotPath.Load() != "/scenes/id_script.json" || gotType.Load() != "application/json" {
		t.Fatalf("request = %v %v", gotPath.Load(), gotType.Load())
	}
	if !strings.HasPrefix(got, srv.URL+"/scenes/id_script.json") {
		t.Fatalf("url = %q", got)
	}
}

func TestS3PublicURL(t *testing.T) {
	s3, err := NewS3(config.StorageConfig{Endpoint: "s3.example.com", Bucket: "b", UseSSL: true, PublicURL: "https://cdn.example.com/b/"})
	if err != nil {
		t.Fatal(err)
	}
	if got := s3.objectURL("k 1.json"); got != "https://cdn.example.com/b/k%201.json" {
		t.Fatalf("url = %q", got)
	}
}

func TestNewFromConfig(t *testing.T) {
	if _, err := NewFromConfig(config.StorageConfig{Backend: "ftp"}, logger.Discard()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	u, err := NewFromConfig(config.StorageConfig{Backend: "local", LocalDir: t.TempDir(), UploadAttempts: 1}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := u.(*Retrying); !ok {
		t.Fatalf("backend is not wrapped in retries: %T", u)
	}
}
