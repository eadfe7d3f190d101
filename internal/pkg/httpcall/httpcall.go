// Package httpcall performs JSON-over-HTTP calls with bounded exponential
// backoff for requests that are safe to repeat.
package httpcall

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxBodyBytes = 4 << 20

type Caller struct {
	HTTPClient  *http.Client
	MaxRetries  int
	BackoffBase time.Duration
}

type Request struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
	// Retry allows repeating the request on transport errors, 5xx and 429.
	Retry bool
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func New(timeout time.Duration, maxRetries int, backoffBase time.Duration) Caller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return Caller{
		HTTPClient:  &http.Client{Timeout: timeout},
		MaxRetries:  maxRetries,
		BackoffBase: backoffBase,
	}
}

func (c Caller) Do(ctx context.Context, req Request) ([]byte, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	backoffBase := c.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 400 * time.Millisecond
	}
	attempts := 0
	if req.Retry && c.MaxRetries > 0 {
		attempts = c.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		body, retry, err := c.callOnce(ctx, client, req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || attempt == attempts {
			break
		}
		backoff := backoffBase * (1 << attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func (c Caller) callOnce(ctx context.Context, client *http.Client, req Request) ([]byte, bool, error) {
	var reader io.Reader
	if req.Body != nil {
		reader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, false, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, &StatusError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &StatusError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}
	return body, false, nil
}

func truncate(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
