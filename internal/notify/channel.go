package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/campuspay/student-portal/internal/model"
)

// EventNewNotification is the push event carrying one notification.
const EventNewNotification = "new_notification"

// pushFrame is the wire shape of one push-channel event.
type pushFrame struct {
	Event string             `json:"event"`
	Data  model.Notification `json:"data"`
}

// Channel is one authenticated websocket push connection. Exactly one
// channel exists per notifications view instance; the view closes it on
// teardown.
type Channel struct {
	conn *websocket.Conn
}

// Dial opens the push channel, authenticating with the bearer token at
// connect time. wsURL is the full websocket URL (ws:// or wss://).
func Dial(ctx context.Context, wsURL, token string) (*Channel, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("dialing push channel (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing push channel: %w", err)
	}
	return &Channel{conn: conn}, nil
}

// PushURL derives the websocket URL from the backend base URL and push path.
func PushURL(baseURL, pushPath string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + pushPath
}

// Next blocks until the next new-notification event arrives. Frames with
// other event names are skipped. Returns an error when the connection
// closes.
func (c *Channel) Next() (model.Notification, error) {
	for {
		var frame pushFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return model.Notification{}, fmt.Errorf("reading push frame: %w", err)
		}
		if frame.Event != EventNewNotification {
			continue
		}
		return frame.Data, nil
	}
}

// Close tears down the connection. Safe to call once per channel.
func (c *Channel) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
