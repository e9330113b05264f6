// Package market integrates the swap aggregator and the price oracle over a
// shared retrying JSON client.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getbits/solbot/core/telegram/netutil"
)

const (
	defaultTimeout = 15 * time.Second
	defaultRetries = 2
	userAgent      = "solbot/1.0"
)

// client is a small JSON HTTP client with transient-error retry.
type client struct {
	httpClient *http.Client
	retries    int
}

func newClient(timeout time.Duration, retries int) *client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if retries < 0 {
		retries = 0
	}
	return &client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
	}
}

func (c *client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *client) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	return c.doJSON(req, out)
}

func (c *client) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return req.Context().Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		currReq := req
		if attempt > 0 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return fmt.Errorf("clone request body: %w", err)
				}
				currReq.Body = body
			}
		}

		resp, err := c.httpClient.Do(currReq)
		if err != nil {
			lastErr = err
			if netutil.ShouldRetry(err) && attempt < c.retries {
				continue
			}
			return fmt.Errorf("request %s: %w", req.URL.Host, lastErr)
		}

		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("read response: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("%s returned status %d", req.URL.Host, resp.StatusCode)
			if attempt < c.retries {
				continue
			}
			return lastErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%s returned unexpected status %d", req.URL.Host, resp.StatusCode)
		}

		if out == nil {
			return nil
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			return fmt.Errorf("%s returned empty response", req.URL.Host)
		}
		if err := json.Unmarshal(buf, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return lastErr
}
