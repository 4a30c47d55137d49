package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore reads blobs from a public container over plain HTTP GET,
// e.g. https://account.blob.core.windows.net/uploads.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStore) URL(key string) string {
	return s.baseURL + "/" + url.PathEscape(key)
}

// Owns reports whether rawURL points into this container and returns its key.
func (s *HTTPStore) Owns(rawURL string) (string, bool) {
	return keyUnder(s.baseURL, rawURL)
}

// keyUnder extracts the object key from rawURL when it names a direct child of
// baseURL (same scheme and host, one path element below its path).
func keyUnder(baseURL, rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}
	prefix := strings.TrimRight(base.Path, "/") + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(u.Path, prefix)
	if key == "" || strings.Contains(key, "/") || key == "." || key == ".." {
		return "", false
	}
	return key, true
}

func (s *HTTPStore) Get(ctx context.Context, key string) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("build blob request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch blob %s: %w", key, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		drain(resp.Body)
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		drain(resp.Body)
		return nil, fmt.Errorf("fetch blob %s: unexpected status %d", key, resp.StatusCode)
	}

	return &Object{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}, nil
}

func (s *HTTPStore) Put(context.Context, string, io.ReadSeeker, int64, string) error {
	return ErrReadOnly
}

func (s *HTTPStore) Delete(context.Context, string) error {
	return ErrReadOnly
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
