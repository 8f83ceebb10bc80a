// Package httpx is the shared JSON-over-HTTP helper for the venue clients.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError is returned for a non-2xx response after retries.
type StatusError struct {
	Service string
	Status  string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API %s: %s", e.Service, e.Status, e.Body)
}

// Client retries transport errors, 429s and 5xx with exponential backoff.
type Client struct {
	Service     string
	HTTP        *http.Client
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func New(service string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		Service:     service,
		HTTP:        &http.Client{Timeout: timeout},
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// GetJSON fetches url and decodes the body into dst.
func (c *Client) GetJSON(ctx context.Context, url string, dst any) error {
	var attempt int
	for {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if ctx.Err() == nil && c.shouldRetry(attempt, 0) {
				if err := c.sleep(ctx, attempt); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
				return fmt.Errorf("%s decode: %w", c.Service, err)
			}
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()

		if c.shouldRetry(attempt, resp.StatusCode) {
			if err := c.sleep(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		return &StatusError{Service: c.Service, Status: resp.Status, Code: resp.StatusCode, Body: string(body)}
	}
}

func (c *Client) shouldRetry(attempt int, status int) bool {
	if attempt >= max(c.MaxAttempts, 1) {
		return false
	}
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	backoff := c.BaseBackoff * time.Duration(1<<uint(attempt-1))
	if c.MaxBackoff > 0 && backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	t := time.NewTimer(backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
