package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/events"
)

// StreamOrderEvents subscribes to the admin order feed and calls fn for
// every event until ctx is cancelled or the connection drops.
func (c *Client) StreamOrderEvents(ctx context.Context, fn func(events.OrderEvent)) error {
	wsURL := c.baseURL + "/admin/commandes/stream"
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	token := c.tokens.Token()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.unauthorized(token)
			return ErrUnauthorized
		}
		if resp != nil {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("dial order stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read order stream: %w", err)
		}

		var ev events.OrderEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("skip malformed order event", zap.Error(err))
			continue
		}
		fn(ev)
	}
}

// IsStreamUnavailable reports whether err means the server has no push
// channel, in which case callers fall back to polling alone.
func IsStreamUnavailable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable
}
