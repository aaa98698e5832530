// Package assets uploads profile media to the record store's object storage
// over HTTP. Every caller treats uploads as best-effort.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tutorbase/internal/sentinel"
)

// HTTPUploader pushes blobs to the storage API and returns the public URL.
type HTTPUploader struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the HTTPUploader.
type Option func(*HTTPUploader)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) Option {
	return func(u *HTTPUploader) {
		u.httpClient = client
	}
}

// NewHTTPUploader creates an uploader against the given storage base URL.
func NewHTTPUploader(baseURL, apiKey string, opts ...Option) *HTTPUploader {
	u := &HTTPUploader{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload stores the blob under bucket/key and returns its public URL.
func (u *HTTPUploader) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", u.baseURL, bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if u.apiKey != "" {
		req.Header.Set("X-API-Key", u.apiKey)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload asset: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("upload asset: storage returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var payload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return payload.URL, nil
}
