package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one task lifecycle event from the /ws feed.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// StreamEvents connects to the WebSocket feed and returns a channel of
// events. The channel closes when ctx is cancelled or the connection drops;
// callers reconnect if they need more.
func (c *Client) StreamEvents(ctx context.Context) (<-chan *Event, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return nil, err
	}

	events := make(chan *Event, 64)
	go func() {
		defer close(events)
		defer conn.Close()

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// The server coalesces queued events into newline-separated
			// frames.
			for _, line := range strings.Split(string(message), "\n") {
				if line == "" {
					continue
				}
				var e Event
				if err := json.Unmarshal([]byte(line), &e); err != nil {
					continue
				}
				select {
				case events <- &e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}
