package client

import (
	"bytes"
	"context"
	"dm-relay/errors"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every request/response call. Push subscriptions
// are not bounded by it.
const DefaultTimeout = 10 * time.Second

// Client carries what the registry and delivery clients share: the server
// base URL and an HTTP client with a finite timeout.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: normalizeURL(baseURL),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u != "" && !strings.Contains(u, "://") {
		u = "http://" + u
	}
	return strings.TrimRight(u, "/")
}

// statusError reports a non-2xx response.
func statusError(method, url string, resp *http.Response) error {
	return fmt.Errorf("%w: %s %s: %s", errors.ErrUnexpectedStatus, method, url, resp.Status)
}

// do sends the request and hands a 2xx response to decode. Non-2xx statuses
// are returned as errors unless accept lets them through.
func (c *Client) do(req *http.Request, accept func(status int) bool, decode func(resp *http.Response) error) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 && (accept == nil || !accept(resp.StatusCode)) {
		return statusError(req.Method, req.URL.Path, resp)
	}
	if decode == nil {
		return nil
	}
	return decode(resp)
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal failed: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
