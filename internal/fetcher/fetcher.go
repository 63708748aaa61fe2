// Package fetcher downloads document bytes from storage URLs.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sceneflow-go/internal/config"
	"sceneflow-go/internal/logger"
)

type Kind int

const (
	KindInvalidURL Kind = iota
	KindStatus
	KindTimeout
	KindTooLarge
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindStatus:
		return "status"
	case KindTimeout:
		return "timeout"
	case KindTooLarge:
		return "too_large"
	default:
		return "transport"
	}
}

// Error is returned for every failed fetch.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Permanent reports whether fetching the same URL again cannot succeed.
func (e *Error) Permanent() bool {
	return e.Kind == KindInvalidURL || e.Kind == KindTooLarge
}

type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	chunkSize int
	maxBytes  int64
	log       *logger.Logger
}

func New(cfg config.FetchConfig, log *logger.Logger) *Fetcher {
	return NewWithClient(cfg, &http.Client{}, log)
}

// NewWithClient lets callers supply the transport, e.g. in tests.
func NewWithClient(cfg config.FetchConfig, client *http.Client, log *logger.Logger) *Fetcher {
	chunk := cfg.ChunkSizeKB * 1024
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &Fetcher{
		client:    client,
		timeout:   cfg.Timeout,
		chunkSize: chunk,
		maxBytes:  cfg.MaxBytes,
		log:       log.With("component", "fetcher"),
	}
}

// Fetch downloads the whole body at rawURL. The configured timeout bounds the
// entire fetch including retries; cancelling ctx does not abort a download in
// progress.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, correlationID string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = errors.New("expected an absolute http(s) url")
		}
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	log := f.log.With("correlation_id", correlationID).With("url", rawURL)
	start := time.Now()

	var body []byte
	op := func() error {
		b, err := f.get(ctx, rawURL)
		if err != nil {
			var fe *Error
			if errors.As(err, &fe) && (fe.Permanent() || (fe.Kind == KindStatus && fe.StatusCode < 500)) {
				return backoff.Permanent(err)
			}
			log.WithError(err).Warn("fetch attempt failed")
			return err
		}
		body = b
		return nil
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		if ctx.Err() != nil {
			var fe *Error
			if !errors.As(err, &fe) || fe.Kind == KindTransport {
				err = &Error{Kind: KindTimeout, URL: rawURL, Err: ctx.Err()}
			}
		}
		return nil, err
	}

	log.WithField("bytes", len(body)).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("document fetched")
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.transportError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{Kind: KindStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, &Error{Kind: KindTooLarge, URL: rawURL, Err: fmt.Errorf("content length %d exceeds %d", resp.ContentLength, f.maxBytes)}
	}

	var out []byte
	if resp.ContentLength > 0 {
		out = make([]byte, 0, resp.ContentLength)
	}
	buf := make([]byte, f.chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		out = append(out, buf[:n]...)
		if f.maxBytes > 0 && int64(len(out)) > f.maxBytes {
			return nil, &Error{Kind: KindTooLarge, URL: rawURL, Err: fmt.Errorf("body exceeds %d bytes", f.maxBytes)}
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, f.transportError(ctx, rawURL, err)
		}
	}
}

func (f *Fetcher) transportError(ctx context.Context, rawURL string, err error) error {
	if ctx.Err() != nil {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	return &Error{Kind: KindTransport, URL: rawURL, Err: err}
}
