package client

import (
	"context"
	"dm-relay/contract"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// WebSocketChannel subscribes to GET /ws?client= and reads one event per
// text frame.
type WebSocketChannel struct {
	baseURL string
	dialer  *websocket.Dialer
	log     *slog.Logger
}

func NewWebSocketChannel(baseURL string, log *slog.Logger) *WebSocketChannel {
	return &WebSocketChannel{
		baseURL: wsURL(normalizeURL(baseURL)),
		dialer:  websocket.DefaultDialer,
		log:     log,
	}
}

func wsURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}

func (c *WebSocketChannel) Subscribe(ctx context.Context, clientName string) (contract.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	u := c.baseURL + "/ws?client=" + url.QueryEscape(clientName)

	conn, resp, err := c.dialer.DialContext(subCtx, u, nil)
	if err != nil {
		cancel()
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("dial %s: %w", u, statusError("GET", "/ws", resp))
		}
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	c.log.Debug("WebSocket stream connected", "client", clientName)

	return startSubscription(subCtx, cancel, func(ctx context.Context, emit func([]byte) bool) error {
		defer func() { _ = conn.Close() }()
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()

		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return fmt.Errorf("read websocket: %w", err)
			}
			if kind != websocket.TextMessage {
				continue
			}
			if !emit(payload) {
				return nil
			}
		}
	}), nil
}
