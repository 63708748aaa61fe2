// Package storage uploads finished artifacts and returns their addresses.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"sceneflow-go/internal/config"
	"sceneflow-go/internal/logger"
)

// Uploader stores one object and returns a URL a downstream consumer can
// fetch it from.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// UploadError wraps the final failure after all attempts.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Retrying retries failed uploads a fixed number of times.
type Retrying struct {
	next     Uploader
	attempts uint
	delay    time.Duration
	log      *logger.Logger
}

func WithRetry(next Uploader, attempts int, delay time.Duration, log *logger.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{next: next, attempts: uint(attempts), delay: delay, log: log.With("component", "storage")}
}

func (r *Retrying) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	var url string
	err := retry.Do(
		func() error {
			u, err := r.next.Upload(ctx, key, contentType, data)
			if err != nil {
				return err
			}
			url = u
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.log.WithError(err).WithField("key", key).WithField("attempt", n+1).Warn("upload failed, retrying")
		}),
	)
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	return url, nil
}

// NewFromConfig builds the configured backend wrapped in retries.
func NewFromConfig(cfg config.StorageConfig, log *logger.Logger) (Uploader, error) {
	var backend Uploader
	switch cfg.Backend {
	case "s3":
		s3, err := NewS3(cfg)
		if err != nil {
			return nil, err
		}
		backend = s3
	case "local":
		backend = NewLocal(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	return WithRetry(backend, cfg.UploadAttempts, cfg.UploadDelay, log), nil
}
