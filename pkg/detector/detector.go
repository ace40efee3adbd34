// Package detector reports the latest upstream change id for scheduled runs.
//
// A detector returns an opaque identifier (a commit sha, a deployment id) or
// "" when no change can be identified. The pinger compares it with the last
// recorded id to decide whether a scheduled run has anything to announce.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single detector request.
const DefaultTimeout = 10 * time.Second

// Detector reports the latest change id.
type Detector interface {
	LatestChangeID(ctx context.Context) (string, error)
}

// Func adapts a function to the Detector interface.
type Func func(ctx context.Context) (string, error)

// LatestChangeID calls f.
func (f Func) LatestChangeID(ctx context.Context) (string, error) {
	return f(ctx)
}

// HTTPError is returned when an upstream API answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	URL        string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("detector request %s: unexpected status %d", e.URL, e.StatusCode)
}

// getJSON issues an authenticated GET and decodes the JSON response into v.
func getJSON(ctx context.Context, client *http.Client, url, authHeader string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "update-pinger/1.0")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func newHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: DefaultTimeout}
}
