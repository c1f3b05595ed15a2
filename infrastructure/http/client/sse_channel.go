package client

import (
	"bufio"
	"bytes"
	"context"
	"dm-relay/contract"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const maxEventSize = 1 << 20

// SSEChannel subscribes to GET /messages?client= as a text/event-stream.
type SSEChannel struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewSSEChannel(baseURL string, log *slog.Logger) *SSEChannel {
	return &SSEChannel{
		baseURL: normalizeURL(baseURL),
		// No client timeout for SSE; the subscription context governs it.
		http: &http.Client{},
		log:  log,
	}
}

func (c *SSEChannel) Subscribe(ctx context.Context, clientName string) (contract.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	u := c.baseURL + "/messages?client=" + url.QueryEscape(clientName)
	req, err := http.NewRequestWithContext(subCtx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		cancel()
		return nil, statusError(req.Method, req.URL.Path, resp)
	}
	c.log.Debug("SSE stream connected", "client", clientName)

	return startSubscription(subCtx, cancel, func(ctx context.Context, emit func([]byte) bool) error {
		defer func() { _ = resp.Body.Close() }()
		return readEvents(resp.Body, emit)
	}), nil
}

// readEvents splits an event stream into data payloads. Multi-line data
// fields are joined with "\n"; comments and other fields are skipped.
func readEvents(r io.Reader, emit func([]byte) bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxEventSize)

	var data bytes.Buffer
	pending := false
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if pending {
				frame := bytes.Clone(data.Bytes())
				data.Reset()
				pending = false
				if !emit(frame) {
					return nil
				}
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		value = strings.TrimPrefix(value, " ")
		if pending {
			data.WriteByte('\n')
		}
		data.WriteString(value)
		pending = true
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}
